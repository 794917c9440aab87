// Package loop runs the closed control loop: telemetry in, state estimate,
// rate decision, safety accounting, audit record, snapshot out. The loop is
// the only writer of pipeline state; concurrent readers (the HTTP API, the
// websocket feed) see an immutable snapshot behind a mutex.
package loop

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/audit"
	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/controller"
	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/estimator"
	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/ring"
	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/safety"
	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/telemetry"
	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/vitals"
)

// DefaultPeriod is the control cadence: 5 Hz.
const DefaultPeriod = 200 * time.Millisecond

const alertCapacity = 50

// #region types

// Alert is an operator-facing event raised by the loop.
type Alert struct {
	Time     time.Time `json:"time"`
	Cycle    int       `json:"cycle"`
	Severity string    `json:"severity"` // WARN or CRITICAL
	Code     string    `json:"code"`
	Message  string    `json:"message"`
}

// Snapshot is the read-side view of the most recent cycle.
type Snapshot struct {
	Cycle            int                  `json:"cycle"`
	UpdatedAt        time.Time            `json:"updated_at"`
	Sample           vitals.Telemetry     `json:"sample"`
	State            vitals.PatientState  `json:"state"`
	Output           vitals.ControlOutput `json:"output"`
	CumulativeVolume float64              `json:"cumulative_volume_ml"`
	MaxVolume24h     float64              `json:"max_volume_24h_ml"`
}

// Config wires a Runner. Store is optional; a nil store disables the audit
// trail (used by tests and the replay verifier).
type Config struct {
	Profile     vitals.PatientProfile
	Source      telemetry.Source
	ProxySource estimator.EnergyProxySource
	Store       *audit.Store
	Period      time.Duration
}

// #endregion types

// #region runner

// Runner owns the pipeline and serializes all mutation through RunCycle.
type Runner struct {
	cfg        Config
	est        *estimator.StateEstimator
	ctrl       *controller.AdaptiveController
	monitor    *safety.Monitor
	sessionID  string
	cycle      int
	lastOutput vitals.ControlOutput

	mu       sync.RWMutex
	snapshot Snapshot
	hasSnap  bool
	alerts   *ring.Buffer[Alert]
}

// NewRunner builds the pipeline. When cfg.Store is set, a session is opened
// and every cycle is recorded under it.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Period <= 0 {
		cfg.Period = DefaultPeriod
	}
	r := &Runner{
		cfg:     cfg,
		est:     estimator.New(cfg.Profile, cfg.ProxySource),
		ctrl:    controller.New(cfg.Profile),
		monitor: safety.NewMonitor(cfg.Profile),
		alerts:  ring.New[Alert](alertCapacity),
	}
	if cfg.Store != nil {
		mode := "rule-based"
		if cfg.ProxySource != nil {
			mode = "neural"
		}
		id, err := cfg.Store.BeginSession(cfg.Profile, mode, cfg.Period)
		if err != nil {
			return nil, err
		}
		r.sessionID = id
	}
	return r, nil
}

// SessionID reports the audit session, empty when auditing is disabled.
func (r *Runner) SessionID() string { return r.sessionID }

// #endregion runner

// #region cycle

// RunCycle executes one control cycle. The elapsed interval fed to the
// controller and the volume accounting is the configured period, not the wall
// clock, so a recorded session replays identically. The write lock is held
// for the whole mutation; readers always see a consistent cycle.
func (r *Runner) RunCycle() {
	sample, ok := r.cfg.Source.Next()

	r.mu.Lock()
	defer r.mu.Unlock()

	if !ok {
		// No fresh sample: hold the last commanded rate and account for it.
		if r.cycle > 0 {
			r.monitor.UpdateVolume(r.lastOutput.InfusionMlPerMin, r.cfg.Period.Minutes())
		}
		return
	}

	state := r.est.Estimate(sample, r.lastOutput.InfusionMlPerMin)
	out := r.ctrl.Decide(state, r.est, r.monitor, r.cfg.Period.Minutes())
	r.monitor.UpdateVolume(out.InfusionMlPerMin, r.cfg.Period.Minutes())

	if out.SafetyOverride {
		r.alerts.Push(Alert{
			Time: sample.Timestamp, Cycle: r.cycle, Severity: "CRITICAL",
			Code: "SAFETY_OVERRIDE", Message: out.WarningFlags,
		})
		log.Printf("[LOOP] cycle %d safety override: %s", r.cycle, out.WarningFlags)
	} else if out.WarningFlags != "" {
		r.alerts.Push(Alert{
			Time: sample.Timestamp, Cycle: r.cycle, Severity: "WARN",
			Code: "SAFETY_LIMIT", Message: out.WarningFlags,
		})
	}

	if r.cfg.Store != nil {
		rec := audit.CycleRecord{Cycle: r.cycle, Sample: sample, State: state, Output: out}
		if err := r.cfg.Store.RecordCycle(r.sessionID, rec); err != nil {
			log.Printf("[LOOP] audit write failed at cycle %d: %v", r.cycle, err)
		}
	}

	r.snapshot = Snapshot{
		Cycle:            r.cycle,
		UpdatedAt:        sample.Timestamp,
		Sample:           sample,
		State:            state,
		Output:           out,
		CumulativeVolume: r.monitor.CumulativeVolume(),
		MaxVolume24h:     r.monitor.MaxVolume24h(),
	}
	r.hasSnap = true

	r.lastOutput = out
	r.cycle++
}

// Run drives RunCycle at the configured cadence until ctx is done. Cycles
// that overrun the period raise a WARN alert; the last committed rate simply
// stands until the next tick.
func (r *Runner) Run(ctx context.Context) {
	log.Printf("[LOOP] starting, period %v", r.cfg.Period)
	ticker := time.NewTicker(r.cfg.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[LOOP] stopping after %d cycles", r.cycle)
			if r.cfg.Store != nil {
				if err := r.cfg.Store.EndSession(r.sessionID); err != nil {
					log.Printf("[LOOP] end session: %v", err)
				}
			}
			return
		case <-ticker.C:
			start := time.Now()
			r.RunCycle()
			if d := time.Since(start); d > r.cfg.Period {
				r.raise(Alert{
					Time: time.Now().UTC(), Cycle: r.cycle - 1, Severity: "WARN",
					Code: "CYCLE_OVERRUN", Message: d.String(),
				})
				log.Printf("[LOOP] cycle overrun: %v > %v", d, r.cfg.Period)
			}
		}
	}
}

// #endregion cycle

// #region read-side

// Snapshot returns the latest cycle view. ok is false before the first cycle.
func (r *Runner) Snapshot() (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot, r.hasSnap
}

// Alerts returns the recent alerts, oldest first.
func (r *Runner) Alerts() []Alert {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.alerts.Snapshot()
}

// StateHistory returns the estimator's recent state estimates.
func (r *Runner) StateHistory() []vitals.PatientState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.est.History()
}

// TelemetryHistory returns the recent telemetry samples.
func (r *Runner) TelemetryHistory() []vitals.Telemetry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.est.TelemetryHistory()
}

// Profile returns the session's patient profile.
func (r *Runner) Profile() vitals.PatientProfile { return r.cfg.Profile }

// Period returns the control cadence.
func (r *Runner) Period() time.Duration { return r.cfg.Period }

func (r *Runner) raise(a Alert) {
	r.mu.Lock()
	r.alerts.Push(a)
	r.mu.Unlock()
}

// #endregion read-side
