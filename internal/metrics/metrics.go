package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	CacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "offagent_cache_hits_total",
		Help: "Total intercepted requests served from a partition.",
	})
	CacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "offagent_cache_misses_total",
		Help: "Total intercepted requests that missed the cache.",
	})
	FallbacksServed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "offagent_fallbacks_served_total",
		Help: "Total responses served from a cached fallback after a network failure.",
	})
	UnavailableServed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "offagent_unavailable_served_total",
		Help: "Total synthesized service-unavailable responses.",
	})
	WritebackFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "offagent_writeback_failures_total",
		Help: "Total refused best-effort cache writebacks.",
	})
	NetworkFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "offagent_network_failures_total",
		Help: "Total upstream transport failures (includes timeouts).",
	})
	PassThrough = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "offagent_pass_through_total",
		Help: "Total requests not intercepted (non-GET or untrusted origin).",
	})

	BreakerOpened = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "offagent_breaker_opened_total",
		Help: "Total times the upstream breaker opened for a host.",
	})
	BreakerRefused = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "offagent_breaker_refused_total",
		Help: "Total fetches refused because the breaker was open.",
	})

	Installs = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "offagent_installs_total",
		Help: "Total successful installations.",
	})
	InstallFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "offagent_install_failures_total",
		Help: "Total failed installations (essential resource missing).",
	})
	OptionalSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "offagent_optional_skipped_total",
		Help: "Total optional resources skipped during install.",
	})
	PartitionsSwept = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "offagent_partitions_swept_total",
		Help: "Total stale partitions deleted during activation.",
	})

	SyncDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "offagent_sync_delivered_total",
		Help: "Total deferred items delivered to the collector.",
	})
	SyncFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "offagent_sync_failures_total",
		Help: "Total aborted drains (first undeliverable item).",
	})

	NotificationsShown = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "offagent_notifications_shown_total",
		Help: "Total notifications dispatched to application instances.",
	})
	NotificationParseFail = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "offagent_notification_parse_fail_total",
		Help: "Total push payloads that failed to parse (default template used).",
	})

	ControlFrames = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "offagent_control_frames_total",
		Help: "Total control channel frames handled.",
	})
	AttachedClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "offagent_attached_clients",
		Help: "Currently attached application instances.",
	})
)

func Register() {
	prometheus.MustRegister(
		CacheHits, CacheMisses, FallbacksServed, UnavailableServed,
		WritebackFailures, NetworkFailures, PassThrough,
		BreakerOpened, BreakerRefused,
		Installs, InstallFailures, OptionalSkipped, PartitionsSwept,
		SyncDelivered, SyncFailures,
		NotificationsShown, NotificationParseFail,
		ControlFrames, AttachedClients,
	)
}
