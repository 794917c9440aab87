package controller

import (
	"strings"
	"testing"

	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/estimator"
	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/safety"
	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/vitals"
)

func nominalSample() vitals.Telemetry {
	return vitals.Telemetry{
		HydrationPct:      80,
		HeartRateBPM:      75,
		TempCelsius:       37,
		FatigueIdx:        0.2,
		AnxietyIdx:        0.1,
		SignalQuality:     1.0,
		SpO2Pct:           98,
		LactateMmol:       1.5,
		CardiacOutputLMin: 5,
	}
}

func pipeline() (*AdaptiveController, *estimator.StateEstimator, *safety.Monitor) {
	p := vitals.DefaultProfile()
	return New(p), estimator.New(p, nil), safety.NewMonitor(p)
}

func TestRateWithinBounds(t *testing.T) {
	c, e, m := pipeline()
	samples := []vitals.Telemetry{
		nominalSample(),
		{HydrationPct: 20, HeartRateBPM: 140, TempCelsius: 39, BloodLossIdx: 0.8, FatigueIdx: 0.9, AnxietyIdx: 0.9, SignalQuality: 0.3, SpO2Pct: 82, LactateMmol: 12, CardiacOutputLMin: 7},
		{HydrationPct: 100, HeartRateBPM: 55, TempCelsius: 36.8, SignalQuality: 1, SpO2Pct: 100, CardiacOutputLMin: 5},
	}
	for i, sample := range samples {
		s := e.Estimate(sample, 0.5)
		out := c.Decide(s, e, m, 0.2)
		if out.SafetyOverride {
			continue // sub-minimum rates are reported, not clamped up
		}
		if out.InfusionMlPerMin < safety.MinRateMlMin || out.InfusionMlPerMin > vitals.DefaultProfile().MaxSafeInfusionRate {
			t.Errorf("sample %d: rate %v outside [%v, %v]",
				i, out.InfusionMlPerMin, safety.MinRateMlMin, vitals.DefaultProfile().MaxSafeInfusionRate)
		}
		m.UpdateVolume(out.InfusionMlPerMin, 0.2)
	}
}

func TestDehydrationRaisesRate(t *testing.T) {
	c, e, m := pipeline()
	healthy := c.Decide(e.Estimate(nominalSample(), 0.5), e, m, 0.2)

	c2, e2, m2 := pipeline()
	dry := nominalSample()
	dry.HydrationPct = 40
	dehydrated := c2.Decide(e2.Estimate(dry, 0.5), e2, m2, 0.2)

	if dehydrated.InfusionMlPerMin <= healthy.InfusionMlPerMin {
		t.Errorf("dehydrated rate %v not above healthy rate %v",
			dehydrated.InfusionMlPerMin, healthy.InfusionMlPerMin)
	}
}

func TestPredictiveBoost(t *testing.T) {
	c, e, m := pipeline()
	sample := nominalSample()
	// Hydration falling fast enough that the 10 minute projection dips
	// below 50 while the current value is still above it.
	var out vitals.ControlOutput
	for i := 0; i < 8; i++ {
		sample.HydrationPct = 78 - float64(i)*3.5
		s := e.Estimate(sample, 0.5)
		out = c.Decide(s, e, m, 0.2)
		m.UpdateVolume(out.InfusionMlPerMin, 0.2)
	}
	if !strings.Contains(out.Rationale, "[PRED_BOOST]") {
		t.Errorf("rationale %q missing predictive boost marker", out.Rationale)
	}
}

func TestCoherenceScalesRate(t *testing.T) {
	dry := nominalSample()
	dry.HydrationPct = 40

	c1, e1, m1 := pipeline()
	clean := c1.Decide(e1.Estimate(dry, 0.5), e1, m1, 0.2)

	noisy := dry
	noisy.SignalQuality = 0.4
	c2, e2, m2 := pipeline()
	degraded := c2.Decide(e2.Estimate(noisy, 0.5), e2, m2, 0.2)

	if degraded.InfusionMlPerMin >= clean.InfusionMlPerMin {
		t.Errorf("noisy-signal rate %v not below clean-signal rate %v",
			degraded.InfusionMlPerMin, clean.InfusionMlPerMin)
	}
	if degraded.Confidence >= clean.Confidence {
		t.Errorf("noisy-signal confidence %v not below clean-signal %v",
			degraded.Confidence, clean.Confidence)
	}
}

func TestSafetyLimitMarksRationale(t *testing.T) {
	c, e, m := pipeline()
	m.UpdateVolume(0.1, 0.2) // tight step limit from a low committed rate

	dry := nominalSample()
	dry.HydrationPct = 30
	s := e.Estimate(dry, 0.5)
	out := c.Decide(s, e, m, 0.2)

	if out.InfusionMlPerMin > 0.4 {
		t.Errorf("rate %v exceeds step limit from 0.1", out.InfusionMlPerMin)
	}
	if !strings.Contains(out.Rationale, "[SAFETY_LIM]") {
		t.Errorf("rationale %q missing safety limit marker", out.Rationale)
	}
	if !strings.Contains(out.WarningFlags, safety.WarnRateChange) {
		t.Errorf("warning flags %q missing %s", out.WarningFlags, safety.WarnRateChange)
	}
}

func TestConfidenceIsInverseUncertainty(t *testing.T) {
	c, e, m := pipeline()
	s := e.Estimate(nominalSample(), 0.5)
	out := c.Decide(s, e, m, 0.2)
	if got, want := out.Confidence, 1.0-s.Uncertainty; got != want {
		t.Fatalf("confidence = %v, want %v", got, want)
	}
}

func TestRationaleFormat(t *testing.T) {
	c, e, m := pipeline()
	s := e.Estimate(nominalSample(), 0.5)
	out := c.Decide(s, e, m, 0.2)
	for _, field := range []string{"H=", "E_T=", "T=", "R=", "C_res=", "sigma=", "v=", "G(v)=", "u="} {
		if !strings.Contains(out.Rationale, field) {
			t.Errorf("rationale %q missing %q", out.Rationale, field)
		}
	}
}
