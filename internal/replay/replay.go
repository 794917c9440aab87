// Package replay re-runs a recorded session through a fresh pipeline and
// verifies that the recomputed states and decisions are bit-identical to the
// ones recorded live. Any divergence means nondeterminism crept into the
// pipeline, which is a defect.
package replay

import (
	"fmt"
	"time"

	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/audit"
	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/controller"
	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/estimator"
	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/safety"
	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/vitals"
)

// #region types

// Mismatch describes one cycle where the recomputation diverged.
type Mismatch struct {
	Cycle      int
	Field      string // "state" or "output"
	Recorded   string
	Recomputed string
}

// Summary is the result of verifying one session.
type Summary struct {
	SessionID  string
	Cycles     int
	Mismatches []Mismatch
}

// Identical reports whether every cycle recomputed exactly.
func (s Summary) Identical() bool { return len(s.Mismatches) == 0 }

// #endregion types

// recordedProxy feeds back the energy proxy values captured at record time,
// cycle by cycle. This reproduces neural-backend sessions without the model
// being present, and is exact for rule-based sessions too since the recorded
// value is what the pipeline actually used.
type recordedProxy struct {
	values []float64
	next   int
}

func (p *recordedProxy) EnergyProxy(vitals.Telemetry) (float64, error) {
	if p.next >= len(p.values) {
		return 0, fmt.Errorf("replay proxy exhausted at index %d", p.next)
	}
	v := p.values[p.next]
	p.next++
	return v, nil
}

// #region verify

// Verify loads a session from the store, re-runs its telemetry through a
// fresh pipeline built from the recorded profile and period, and compares
// every recomputed cycle against the recording.
func Verify(store *audit.Store, sessionID string) (Summary, error) {
	session, err := store.GetSession(sessionID)
	if err != nil {
		return Summary{}, fmt.Errorf("load session: %w", err)
	}
	cycles, err := store.GetCycles(sessionID)
	if err != nil {
		return Summary{}, fmt.Errorf("load cycles: %w", err)
	}

	proxy := &recordedProxy{values: make([]float64, len(cycles))}
	for i, c := range cycles {
		proxy.values[i] = c.State.EnergyProxy
	}

	period := time.Duration(session.PeriodMs) * time.Millisecond
	est := estimator.New(session.Profile, proxy)
	ctrl := controller.New(session.Profile)
	monitor := safety.NewMonitor(session.Profile)

	summary := Summary{SessionID: sessionID, Cycles: len(cycles)}
	var lastRate float64

	for _, rec := range cycles {
		state := est.Estimate(rec.Sample, lastRate)
		out := ctrl.Decide(state, est, monitor, period.Minutes())
		monitor.UpdateVolume(out.InfusionMlPerMin, period.Minutes())

		if state != rec.State {
			summary.Mismatches = append(summary.Mismatches, Mismatch{
				Cycle:      rec.Cycle,
				Field:      "state",
				Recorded:   fmt.Sprintf("%+v", rec.State),
				Recomputed: fmt.Sprintf("%+v", state),
			})
		}
		if out != rec.Output {
			summary.Mismatches = append(summary.Mismatches, Mismatch{
				Cycle:      rec.Cycle,
				Field:      "output",
				Recorded:   fmt.Sprintf("%+v", rec.Output),
				Recomputed: fmt.Sprintf("%+v", out),
			})
		}
		lastRate = out.InfusionMlPerMin
	}
	return summary, nil
}

// #endregion verify
