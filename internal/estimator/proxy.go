package estimator

import (
	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/numeric"
	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/vitals"
)

// RuleBasedSource is the built-in physiological heuristic for the energy
// proxy: a fixed weighted blend of hydration, blood loss, fatigue, oxygen
// saturation, and lactate terms. It never errors, which also makes it the
// fallback when a learned source is unreachable.
type RuleBasedSource struct{}

// EnergyProxy implements EnergyProxySource.
func (RuleBasedSource) EnergyProxy(m vitals.Telemetry) (float64, error) {
	hydration := numeric.Sigmoid(m.HydrationPct, 60.0, 0.1)
	blood := numeric.ExpDecay(m.BloodLossIdx, 3.0)

	// Fatigue costs little up to moderate levels, then dominates.
	var fatigue float64
	if m.FatigueIdx < 0.7 {
		fatigue = 1.0 - m.FatigueIdx
	} else {
		fatigue = 0.3 * (1.0 - m.FatigueIdx)
	}

	oxygen := numeric.Sigmoid(m.SpO2Pct, 92.0, 0.3)
	lactate := numeric.ExpDecay(max(0, m.LactateMmol-2.0), 0.5)

	e := 0.30*hydration + 0.25*blood + 0.20*fatigue + 0.15*oxygen + 0.10*lactate
	return numeric.Clamp(e, 0, 1), nil
}
