// Package notify turns inbound push signals into user-facing notifications
// and routes notification interactions back into the application.
package notify

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/lzyats/offagent/internal/hub"
	"github.com/lzyats/offagent/internal/metrics"
)

// Template is a notification as shown to the user. The default template
// comes from config; a push signal may override individual fields.
type Template struct {
	Title   string            `json:"title" yaml:"title"`
	Body    string            `json:"body" yaml:"body"`
	Icon    string            `json:"icon" yaml:"icon"`
	Actions []Action          `json:"actions,omitempty" yaml:"actions"`
	Data    map[string]string `json:"data,omitempty" yaml:"data"`
}

type Action struct {
	ID    string `json:"action" yaml:"id"`
	Label string `json:"label" yaml:"label"`
}

// Directive tells the host what to do after a notification interaction.
type Directive struct {
	Kind     DirectiveKind
	ClientID string // set for Focus
	Path     string // set for Open
}

type DirectiveKind int

const (
	Dismissed DirectiveKind = iota
	Focus                   // bring an existing application instance forward
	Open                    // open a new instance at the default entry path
)

type Config struct {
	Default       Template
	DismissAction string
	OwnOrigin     string
	EntryPath     string
}

type Dispatcher struct {
	cfg Config
	hub *hub.Hub
	log *zap.Logger
}

func NewDispatcher(cfg Config, h *hub.Hub, log *zap.Logger) *Dispatcher {
	if cfg.DismissAction == "" {
		cfg.DismissAction = "dismiss"
	}
	if cfg.EntryPath == "" {
		cfg.EntryPath = "/"
	}
	return &Dispatcher{cfg: cfg, hub: h, log: log}
}

// Present merges the push payload over the default template and broadcasts
// the resulting notification to attached application instances. A payload
// that cannot be parsed is reported and replaced by the default template,
// never fatal. The resolved template is returned.
func (d *Dispatcher) Present(payload []byte) Template {
	tpl := d.resolve(payload)

	frame, _ := json.Marshal(struct {
		Type         string   `json:"type"`
		Notification Template `json:"notification"`
	}{Type: "NOTIFY", Notification: tpl})
	d.hub.Broadcast(frame)
	metrics.NotificationsShown.Inc()
	return tpl
}

func (d *Dispatcher) resolve(payload []byte) Template {
	tpl := d.cfg.Default
	if len(payload) == 0 {
		return tpl
	}

	// Track field presence so an override wins only where it actually
	// supplied a value (shallow merge).
	var fields map[string]json.RawMessage
	var override Template
	if err := json.Unmarshal(payload, &fields); err != nil {
		metrics.NotificationParseFail.Inc()
		d.log.Warn("push payload unparseable, using default template", zap.Error(err))
		return tpl
	}
	if err := json.Unmarshal(payload, &override); err != nil {
		metrics.NotificationParseFail.Inc()
		d.log.Warn("push payload malformed, using default template", zap.Error(err))
		return tpl
	}

	if _, ok := fields["title"]; ok {
		tpl.Title = override.Title
	}
	if _, ok := fields["body"]; ok {
		tpl.Body = override.Body
	}
	if _, ok := fields["icon"]; ok {
		tpl.Icon = override.Icon
	}
	if _, ok := fields["actions"]; ok {
		tpl.Actions = override.Actions
	}
	if _, ok := fields["data"]; ok {
		tpl.Data = override.Data
	}
	return tpl
}

// OnInteraction handles the selected notification action. The dismiss action
// closes silently; any other action focuses an attached instance of the
// agent's own origin, or directs the host to open a new one at the entry
// path.
func (d *Dispatcher) OnInteraction(actionID string) Directive {
	if actionID == d.cfg.DismissAction {
		return Directive{Kind: Dismissed}
	}

	if c, ok := d.hub.FindByOrigin(d.cfg.OwnOrigin); ok {
		frame, _ := json.Marshal(struct {
			Type string `json:"type"`
		}{Type: "FOCUS"})
		if !d.hub.Send(c, frame) {
			d.log.Warn("focus frame dropped", zap.String("client", c.ID))
		}
		return Directive{Kind: Focus, ClientID: c.ID}
	}
	return Directive{Kind: Open, Path: d.cfg.EntryPath}
}
