// Package controller turns a patient state estimate into an infusion rate
// decision. The policy is deliberate and inspectable: a deficit-driven base
// rate shaped by a handful of multiplicative modulations, then submitted to
// the safety monitor, which has the final word.
package controller

import (
	"fmt"

	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/estimator"
	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/numeric"
	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/safety"
	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/vitals"
)

const (
	// predictionHorizonMin is how far ahead the controller looks when
	// deciding whether to boost the rate preemptively.
	predictionHorizonMin = 10.0

	predictiveBoostFactor = 1.2
	predictedHydrationLow = 50.0

	lowReserveThreshold = 0.3
)

// AdaptiveController computes rate requests against a fixed patient profile.
// It holds no mutable state of its own; all history lives in the estimator
// and the safety monitor.
type AdaptiveController struct {
	profile vitals.PatientProfile
}

// New returns a controller for the given profile.
func New(profile vitals.PatientProfile) *AdaptiveController {
	return &AdaptiveController{profile: profile}
}

// Decide computes the infusion rate for one cycle. est supplies the forward
// prediction, monitor enforces the final limits, and elapsedMinutes is the
// interval the decision will be applied for.
func (c *AdaptiveController) Decide(s vitals.PatientState, est *estimator.StateEstimator, monitor *safety.Monitor, elapsedMinutes float64) vitals.ControlOutput {
	// Hydration deficit drives urgency: linear while mild, sigmoid-saturating
	// once the deficit passes half scale.
	deficit := (100.0 - s.HydrationPct) / 100.0
	urgency := deficit
	if deficit >= 0.5 {
		urgency = numeric.Sigmoid(deficit, 0.5, 5.0)
	}

	energyNeed := (1.0 - s.EnergyProxy) * (1.0 + 0.5*s.MetabolicLoad)
	amplification := 1.0 + 0.5*s.RiskScore

	rate := 0.4 + 1.4*numeric.Clamp((0.6*urgency+0.4*energyNeed)*amplification, 0, 1)

	predictiveBoost := false
	if pred, ok := est.PredictForward(predictionHorizonMin); ok && pred.HydrationPct < predictedHydrationLow {
		rate *= predictiveBoostFactor
		predictiveBoost = true
	}

	// Low signal trust scales the whole request down rather than gating it.
	rate *= s.Coherence

	if s.CardiacReserve < lowReserveThreshold {
		rate *= 0.5 + 0.5*numeric.Sigmoid(s.CardiacReserve, lowReserveThreshold, 10.0)
	}

	rate = numeric.Clamp(rate, safety.MinRateMlMin, c.profile.MaxSafeInfusionRate)

	check := monitor.Evaluate(rate, s, elapsedMinutes)
	limited := check.MaxAllowedRate < rate
	final := check.MaxAllowedRate

	return vitals.ControlOutput{
		InfusionMlPerMin: final,
		Confidence:       numeric.Clamp(1.0-s.Uncertainty, 0, 1),
		Rationale:        rationale(s, final, limited, predictiveBoost),
		SafetyOverride:   !check.Passed,
		WarningFlags:     check.WarningString(),
	}
}

// rationale renders the one-line decision trace logged and exposed per cycle.
func rationale(s vitals.PatientState, rate float64, safetyLimited, predictiveBoost bool) string {
	msg := fmt.Sprintf(
		"H=%.2f%% E_T=%.2f T=%.2fW/kg R=%.2f C_res=%.2f sigma=%.2f v=%.2fcm/s G(v)=%.2f u=%.2fml/min",
		s.HydrationPct, s.EnergyProxy, s.EnergyWPerKg, s.RiskScore,
		s.CardiacReserve, s.Uncertainty, s.FlowVelocityCmS, s.FlowEfficiency, rate)
	if safetyLimited {
		msg += " [SAFETY_LIM]"
	}
	if predictiveBoost {
		msg += " [PRED_BOOST]"
	}
	return msg
}
