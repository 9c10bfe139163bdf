package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lzyats/offagent/internal/breaker"
	"github.com/lzyats/offagent/internal/classify"
	"github.com/lzyats/offagent/internal/config"
	"github.com/lzyats/offagent/internal/control"
	"github.com/lzyats/offagent/internal/hub"
	"github.com/lzyats/offagent/internal/lifecycle"
	"github.com/lzyats/offagent/internal/metrics"
	"github.com/lzyats/offagent/internal/notify"
	"github.com/lzyats/offagent/internal/outbox"
	"github.com/lzyats/offagent/internal/partition"
	"github.com/lzyats/offagent/internal/strategy"
	"github.com/lzyats/offagent/internal/uplink"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Version is injected via -ldflags "-X main.Version=..."
var Version = "dev"

// hubClaimer broadcasts the claimed frame when activation completes.
type hubClaimer struct{ h *hub.Hub }

func (c hubClaimer) Claim() { c.h.Broadcast(control.ClaimedFrame()) }

func main() {
	var cfgPaths string
	flag.StringVar(&cfgPaths, "c", "./config.yml", "config file path (supports: a.yml,b.yml)")
	flag.Parse()

	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg, err := config.Load(cfgPaths)
	if err != nil {
		log.Fatal("load config failed", zap.Error(err))
	}
	if cfg.Upstream.Base == "" {
		log.Fatal("upstream.base required")
	}
	log.Info("offagent starting",
		zap.String("version", Version),
		zap.String("addr", cfg.HTTP.Addr),
		zap.String("upstream", cfg.Upstream.Base),
		zap.String("static", cfg.StaticName()),
		zap.String("runtime", cfg.RuntimeName()))

	metrics.Register()

	var br *breaker.Breaker
	if cfg.Breaker.Enabled {
		br = breaker.New(breaker.Options{
			Threshold: cfg.Breaker.Threshold,
			Window:    cfg.Breaker.Window,
			OpenFor:   cfg.Breaker.OpenFor,
		})
	}
	fetch := strategy.NewHTTPFetcher(cfg.Upstream.Base, cfg.Upstream.Timeout, br)

	reg := partition.NewRegistry(cfg.Cache.MaxEntries)
	h := hub.New()

	lc := lifecycle.NewController(reg, fetch,
		cfg.StaticName(), cfg.RuntimeName(),
		cfg.Install.Essential, cfg.Install.Optional,
		hubClaimer{h: h}, log)

	engine := strategy.New(reg, cfg.StaticName(), cfg.RuntimeName(), fetch, cfg.Cache.FallbackKey, log)

	var store outbox.Store
	if cfg.Redis.Enabled {
		rs, err := outbox.NewRedisStore(outbox.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			Database: cfg.Redis.Database,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			log.Fatal("redis init failed", zap.Error(err))
		}
		defer rs.Close()
		store = rs
	} else {
		store = outbox.NewMemoryStore()
	}
	queue := outbox.New(store, uplink.NewSender(cfg.Sync.Collector, cfg.Sync.Timeout), log)

	knownQueues := make(map[string]bool, len(cfg.Sync.Queues))
	for _, q := range cfg.Sync.Queues {
		knownQueues[q] = true
	}

	var actions []notify.Action
	for _, a := range cfg.Notify.Actions {
		actions = append(actions, notify.Action{ID: a.ID, Label: a.Label})
	}
	notifier := notify.NewDispatcher(notify.Config{
		Default: notify.Template{
			Title:   cfg.Notify.Title,
			Body:    cfg.Notify.Body,
			Icon:    cfg.Notify.Icon,
			Actions: actions,
		},
		DismissAction: cfg.Notify.DismissAction,
		OwnOrigin:     cfg.Origin.Self,
		EntryPath:     cfg.Notify.EntryPath,
	}, h, log)

	ctrl := control.NewHandler(lc, reg, log)

	// Installation is attempted at startup; an essential failure leaves the
	// agent in installing, retryable via /internal/install.
	if err := lc.Install(context.Background()); err != nil {
		log.Error("install failed, agent stays uninstalled", zap.Error(err))
	}

	policy := classify.Policy{OwnOrigin: cfg.Origin.Self, Allowed: cfg.Origin.Allowed}

	upstreamURL, err := url.Parse(cfg.Upstream.Base)
	if err != nil {
		log.Fatal("bad upstream base", zap.Error(err))
	}
	proxy := httputil.NewSingleHostReverseProxy(upstreamURL)

	var clientSeq atomic.Int64

	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())

	// Application instances attach here; control frames and notifications
	// ride this connection.
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = cfg.Origin.Self
		}
		id := fmt.Sprintf("client-%d", clientSeq.Add(1))
		c := &hub.Client{ID: id, Origin: origin, WS: ws, Out: make(chan []byte, 256)}
		h.Add(c)
		metrics.AttachedClients.Set(float64(h.Len()))

		go h.WriteLoop(c, cfg.WriteTimeout, func() {
			h.Remove(id)
			metrics.AttachedClients.Set(float64(h.Len()))
		})

		go func() {
			// Detach closes the outbound queue, which in turn ends the
			// write loop and closes the websocket.
			defer func() {
				h.Detach(id)
				metrics.AttachedClients.Set(float64(h.Len()))
			}()
			for {
				_, msg, err := ws.ReadMessage()
				if err != nil {
					return
				}
				if reply := ctrl.Handle(context.Background(), msg); reply != nil {
					h.Send(c, reply)
				}
			}
		}()
	})

	// Sync trigger: connectivity is back, drain the tagged queue.
	mux.HandleFunc("/internal/sync", func(w http.ResponseWriter, r *http.Request) {
		tag := r.URL.Query().Get("tag")
		if !knownQueues[tag] {
			http.Error(w, "unknown tag", 404)
			return
		}
		delivered, err := queue.Drain(r.Context(), tag)
		if err != nil {
			log.Warn("drain aborted", zap.String("tag", tag), zap.Int("delivered", delivered), zap.Error(err))
			http.Error(w, err.Error(), 502)
			return
		}
		writeJSON(w, 200, map[string]any{"delivered": delivered})
	})

	// The hosting application parks locally produced data here until a sync
	// trigger drains it.
	mux.HandleFunc("/internal/queue", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", 405)
			return
		}
		tag := r.URL.Query().Get("tag")
		if !knownQueues[tag] {
			http.Error(w, "unknown tag", 404)
			return
		}
		var payload json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		if err := queue.Enqueue(r.Context(), tag, payload); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		w.WriteHeader(204)
	})

	// Push signal: optional JSON body overrides the default notification
	// template; a malformed body falls back to the default.
	mux.HandleFunc("/internal/push", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		tpl := notifier.Present(body)
		writeJSON(w, 200, tpl)
	})

	// Notification interaction signal.
	mux.HandleFunc("/internal/notification/click", func(w http.ResponseWriter, r *http.Request) {
		actionID := r.URL.Query().Get("action_id")
		dir := notifier.OnInteraction(actionID)
		switch dir.Kind {
		case notify.Dismissed:
			writeJSON(w, 200, map[string]any{"directive": "dismissed"})
		case notify.Focus:
			writeJSON(w, 200, map[string]any{"directive": "focus", "client_id": dir.ClientID})
		case notify.Open:
			writeJSON(w, 200, map[string]any{"directive": "open", "path": dir.Path})
		}
	})

	// Lifecycle signals from the host runtime.
	mux.HandleFunc("/internal/install", func(w http.ResponseWriter, r *http.Request) {
		if err := lc.Install(r.Context()); err != nil {
			code := 409
			if errors.Is(err, lifecycle.ErrInstall) {
				code = 502
			}
			http.Error(w, err.Error(), code)
			return
		}
		writeJSON(w, 200, map[string]any{"state": lc.State().String()})
	})
	mux.HandleFunc("/internal/activate", func(w http.ResponseWriter, r *http.Request) {
		if err := lc.Activate(r.Context()); err != nil {
			http.Error(w, err.Error(), 409)
			return
		}
		writeJSON(w, 200, map[string]any{"state": lc.State().String()})
	})
	mux.HandleFunc("/internal/skip-waiting", func(w http.ResponseWriter, r *http.Request) {
		if err := lc.SkipWaiting(r.Context()); err != nil {
			http.Error(w, err.Error(), 409)
			return
		}
		writeJSON(w, 200, map[string]any{"state": lc.State().String()})
	})
	mux.HandleFunc("/internal/state", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]any{
			"state":      lc.State().String(),
			"partitions": reg.Names(),
			"clients":    h.Len(),
		})
	})

	// Install-prompt collaborator: the host signals a pending prompt, the
	// agent enables the install control on every attached instance.
	mux.HandleFunc("/internal/prompt-available", func(w http.ResponseWriter, r *http.Request) {
		sent := h.Broadcast(control.PromptAvailableFrame())
		writeJSON(w, 200, map[string]any{"notified": sent})
	})

	// Interception boundary: everything else is either resolved by the
	// strategy engine or passed through to the upstream unmodified.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		dec := policy.Classify(classify.Request{
			URL:         r.URL.RequestURI(),
			Method:      r.Method,
			Destination: r.Header.Get("Sec-Fetch-Dest"),
			Accept:      r.Header.Get("Accept"),
		})
		if !dec.Intercept {
			metrics.PassThrough.Inc()
			proxy.ServeHTTP(w, r)
			return
		}

		key := r.URL.RequestURI()
		entry, err := engine.Handle(r.Context(), dec.Category, key, key)
		if err != nil {
			// No fallback left for this category; the failure is the
			// terminal response.
			http.Error(w, "upstream unreachable", 502)
			return
		}
		if entry.ContentType != "" {
			w.Header().Set("Content-Type", entry.ContentType)
		}
		w.WriteHeader(entry.Status)
		_, _ = w.Write(entry.Body)
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 2 * time.Second,
	}
	log.Info("offagent listening", zap.String("addr", cfg.HTTP.Addr), zap.String("state", lc.State().String()))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("server error", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

