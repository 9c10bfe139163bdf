// Package control is the message-driven command interface between attached
// application instances and the agent. Frames are JSON; each frame maps to
// exactly one action, with no implicit state between frames.
package control

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/lzyats/offagent/internal/lifecycle"
	"github.com/lzyats/offagent/internal/metrics"
	"github.com/lzyats/offagent/internal/partition"
)

const (
	TypeSkipWaiting   = "SKIP_WAITING"
	TypeGetVersion    = "GET_VERSION"
	TypeCacheData     = "CACHE_DATA"
	TypePromptOutcome = "PROMPT_OUTCOME"

	// agent -> client
	TypeVersion         = "VERSION"
	TypeCacheDataResult = "CACHE_DATA_RESULT"
	TypePromptAvailable = "PROMPT_AVAILABLE"
	TypeClaimed         = "CLAIMED"
)

// DataKey is the fixed runtime-partition key CACHE_DATA writes to.
const DataKey = "control-data"

type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Outcome string          `json:"outcome,omitempty"`
	Version string          `json:"version,omitempty"`
	Error   string          `json:"error,omitempty"`
}

type Handler struct {
	lc  *lifecycle.Controller
	reg *partition.Registry
	log *zap.Logger
}

func NewHandler(lc *lifecycle.Controller, reg *partition.Registry, log *zap.Logger) *Handler {
	return &Handler{lc: lc, reg: reg, log: log}
}

// Handle processes one inbound frame and returns the reply frame to send on
// the same connection, or nil when the frame has no reply.
func (h *Handler) Handle(ctx context.Context, raw []byte) []byte {
	metrics.ControlFrames.Inc()

	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		h.log.Warn("undecodable control frame", zap.Error(err))
		return nil
	}

	switch f.Type {
	case TypeSkipWaiting:
		if err := h.lc.SkipWaiting(ctx); err != nil {
			h.log.Warn("skip-waiting failed", zap.Error(err))
		}
		return nil

	case TypeGetVersion:
		return marshal(Frame{Type: TypeVersion, Version: h.lc.StaticName()})

	case TypeCacheData:
		reply := Frame{Type: TypeCacheDataResult}
		runtime := h.reg.Open(h.lc.RuntimeName())
		err := runtime.Put(DataKey, partition.Entry{
			Status:      200,
			ContentType: "application/json",
			Body:        f.Payload,
		})
		if err != nil {
			// Reported, never fatal.
			h.log.Warn("cache-data write failed", zap.Error(err))
			reply.Error = err.Error()
		}
		return marshal(reply)

	case TypePromptOutcome:
		// Informational only; the agent does not consume the outcome.
		h.log.Info("install prompt outcome", zap.String("outcome", f.Outcome))
		return nil
	}

	h.log.Warn("unknown control frame", zap.String("type", f.Type))
	return nil
}

// PromptAvailableFrame is broadcast when the host signals that an install
// prompt is pending, so attached instances can enable their install control.
func PromptAvailableFrame() []byte {
	return marshal(Frame{Type: TypePromptAvailable})
}

// ClaimedFrame announces that the newly activated agent has taken control.
func ClaimedFrame() []byte {
	return marshal(Frame{Type: TypeClaimed})
}

func marshal(f Frame) []byte {
	b, _ := json.Marshal(f)
	return b
}
