// Package lifecycle drives the agent through
// installing -> installed -> activating -> active. Each external signal maps
// to exactly one transition; there is no event dispatcher behind it.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/lzyats/offagent/internal/metrics"
	"github.com/lzyats/offagent/internal/partition"
	"github.com/lzyats/offagent/internal/strategy"
)

// ErrInstall is fatal to installation: an essential resource could not be
// fetched or stored. The agent stays uninstalled.
var ErrInstall = errors.New("lifecycle: install failed")

type State int

const (
	Installing State = iota
	Installed
	Activating
	Active
)

func (s State) String() string {
	switch s {
	case Installing:
		return "installing"
	case Installed:
		return "installed"
	case Activating:
		return "activating"
	case Active:
		return "active"
	}
	return "unknown"
}

// Claimer takes control of all open application instances once activation
// completes. Implemented by the client hub.
type Claimer interface {
	Claim()
}

type Controller struct {
	reg         *partition.Registry
	fetch       strategy.Fetcher
	staticName  string
	runtimeName string
	essential   []string
	optional    []string
	claimer     Claimer
	log         *zap.Logger

	mu            sync.Mutex
	state         State
	skipRequested bool
}

func NewController(reg *partition.Registry, fetch strategy.Fetcher, staticName, runtimeName string, essential, optional []string, claimer Claimer, log *zap.Logger) *Controller {
	return &Controller{
		reg:         reg,
		fetch:       fetch,
		staticName:  staticName,
		runtimeName: runtimeName,
		essential:   essential,
		optional:    optional,
		claimer:     claimer,
		log:         log,
		state:       Installing,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) StaticName() string  { return c.staticName }
func (c *Controller) RuntimeName() string { return c.runtimeName }

// Install populates the static partition. The essential set is
// all-or-nothing: the first unreachable or unstorable resource fails the
// whole installation and discards anything already written. The optional set
// is best-effort; individual failures are logged and swallowed.
func (c *Controller) Install(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Installing {
		c.mu.Unlock()
		return fmt.Errorf("lifecycle: install in state %s", c.state)
	}
	c.mu.Unlock()

	static := c.reg.Open(c.staticName)

	for _, res := range c.essential {
		entry, err := c.fetch.Fetch(ctx, res)
		if err == nil && entry.Status != 200 {
			err = fmt.Errorf("status %d", entry.Status)
		}
		if err == nil {
			err = static.Put(res, entry)
		}
		if err != nil {
			// Discard the partial essential set.
			c.reg.Drop(c.staticName)
			metrics.InstallFailures.Inc()
			return fmt.Errorf("%w: essential %q: %v", ErrInstall, res, err)
		}
	}

	for _, res := range c.optional {
		entry, err := c.fetch.Fetch(ctx, res)
		if err == nil && entry.Status != 200 {
			err = fmt.Errorf("status %d", entry.Status)
		}
		if err == nil {
			err = static.Put(res, entry)
		}
		if err != nil {
			metrics.OptionalSkipped.Inc()
			c.log.Warn("optional resource skipped", zap.String("resource", res), zap.Error(err))
		}
	}

	c.mu.Lock()
	c.state = Installed
	skip := c.skipRequested
	c.mu.Unlock()
	metrics.Installs.Inc()
	c.log.Info("installed",
		zap.String("static", c.staticName),
		zap.Int("essential", len(c.essential)),
		zap.Int("optional", len(c.optional)))

	if skip {
		return c.Activate(ctx)
	}
	return nil
}

// Activate sweeps every partition whose name is not the current static or
// runtime partition, then claims all open application instances. The sweep
// fully completes before control is handed over; no intercepted request can
// observe a partially swept partition set.
func (c *Controller) Activate(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Installed {
		c.mu.Unlock()
		return fmt.Errorf("lifecycle: activate in state %s", c.state)
	}
	c.state = Activating
	c.mu.Unlock()

	for _, name := range c.reg.Names() {
		if name == c.staticName || name == c.runtimeName {
			continue
		}
		c.reg.Drop(name)
		metrics.PartitionsSwept.Inc()
		c.log.Info("partition swept", zap.String("partition", name))
	}
	// Runtime partition exists from activation on, even before first write.
	c.reg.Open(c.runtimeName)

	if c.claimer != nil {
		c.claimer.Claim()
	}

	c.mu.Lock()
	c.state = Active
	c.mu.Unlock()
	c.log.Info("active", zap.String("static", c.staticName), zap.String("runtime", c.runtimeName))
	return nil
}

// SkipWaiting forces the transition out of installing/installed without
// waiting for the natural handoff. During install it is recorded and applied
// as soon as install completes.
func (c *Controller) SkipWaiting(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case Installing:
		c.skipRequested = true
		c.mu.Unlock()
		c.log.Info("skip-waiting recorded, install still running")
		return nil
	case Installed:
		c.mu.Unlock()
		return c.Activate(ctx)
	default:
		state := c.state
		c.mu.Unlock()
		c.log.Info("skip-waiting ignored", zap.String("state", state.String()))
		return nil
	}
}
