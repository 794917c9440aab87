package estimator

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/vitals"
)

func nominalSample() vitals.Telemetry {
	return vitals.Telemetry{
		Timestamp:         time.Unix(1700000000, 0),
		HydrationPct:      80,
		HeartRateBPM:      75,
		TempCelsius:       37,
		BloodLossIdx:      0,
		FatigueIdx:        0.2,
		AnxietyIdx:        0.1,
		SignalQuality:     1.0,
		SpO2Pct:           98,
		LactateMmol:       1.5,
		CardiacOutputLMin: 5,
	}
}

func TestNominalEstimate(t *testing.T) {
	e := New(vitals.DefaultProfile(), nil)
	s := e.Estimate(nominalSample(), 0.5)

	if math.Abs(s.HydrationPct-80) > 0.1 {
		t.Errorf("hydration = %v, want ~80", s.HydrationPct)
	}
	if s.HeartRateBPM != 75 {
		t.Errorf("heart rate = %v, want 75", s.HeartRateBPM)
	}
	if s.Uncertainty >= 0.5 {
		t.Errorf("uncertainty = %v, want < 0.5 for clean signals", s.Uncertainty)
	}
	if s.Coherence != 1.0 {
		t.Errorf("coherence = %v, want 1.0 for a pristine sample", s.Coherence)
	}
}

func TestStateBounds(t *testing.T) {
	e := New(vitals.DefaultProfile(), nil)
	extremes := []vitals.Telemetry{
		{HydrationPct: -50, HeartRateBPM: 300, TempCelsius: 45, BloodLossIdx: 1, FatigueIdx: 1, AnxietyIdx: 1, SignalQuality: 0, SpO2Pct: 40, LactateMmol: 30, CardiacOutputLMin: 20},
		{HydrationPct: 200, HeartRateBPM: 10, TempCelsius: 30, SignalQuality: 2, SpO2Pct: 100, CardiacOutputLMin: 0},
		nominalSample(),
	}
	for i, m := range extremes {
		s := e.Estimate(m, 1.5)
		checks := []struct {
			name    string
			v       float64
			lo, hi  float64
		}{
			{"hydration", s.HydrationPct, 0, 100},
			{"coherence", s.Coherence, 0.1, 1},
			{"energy proxy", s.EnergyProxy, 0, 1},
			{"flow velocity", s.FlowVelocityCmS, 0.05, 40},
			{"metabolic load", s.MetabolicLoad, 0, 1},
			{"cardiac reserve", s.CardiacReserve, 0, 1},
			{"risk", s.RiskScore, 0, 1},
			{"uncertainty", s.Uncertainty, 0, 1},
		}
		for _, c := range checks {
			if c.v < c.lo || c.v > c.hi {
				t.Errorf("sample %d: %s = %v outside [%v, %v]", i, c.name, c.v, c.lo, c.hi)
			}
		}
	}
}

func TestCoherenceDegradation(t *testing.T) {
	e := New(vitals.DefaultProfile(), nil)
	m := nominalSample()
	m.HeartRateBPM = 200 // implausible
	s := e.Estimate(m, 0.5)
	if s.Coherence != 0.5 {
		t.Errorf("coherence with implausible HR = %v, want 0.5", s.Coherence)
	}

	m = nominalSample()
	m.SpO2Pct = 80
	m.TempCelsius = 34
	s = e.Estimate(m, 0.5)
	want := 1.0 * 0.7 * 0.6
	if math.Abs(s.Coherence-want) > 1e-12 {
		t.Errorf("coherence with low SpO2 and temp = %v, want %v", s.Coherence, want)
	}
}

func TestCoherenceHeartRateInstability(t *testing.T) {
	e := New(vitals.DefaultProfile(), nil)
	m := nominalSample()
	for i := 0; i < 5; i++ {
		e.Estimate(m, 0.5)
	}
	jump := nominalSample()
	jump.HeartRateBPM = 130 // 55 bpm away from all of history, variance 3025
	s := e.Estimate(jump, 0.5)
	if math.Abs(s.Coherence-0.7) > 1e-12 {
		t.Errorf("coherence after HR jump = %v, want 0.7", s.Coherence)
	}
}

func TestCardiacReserveUsesAgePredictedMax(t *testing.T) {
	young := vitals.DefaultProfile()
	young.AgeYears = 20
	old := vitals.DefaultProfile()
	old.AgeYears = 80

	m := nominalSample()
	m.HeartRateBPM = 130

	sy := New(young, nil).Estimate(m, 0.5)
	so := New(old, nil).Estimate(m, 0.5)
	if sy.CardiacReserve <= so.CardiacReserve {
		t.Errorf("reserve young=%v old=%v; same HR should leave the younger patient more headroom",
			sy.CardiacReserve, so.CardiacReserve)
	}
}

func TestPredictionAvailability(t *testing.T) {
	e := New(vitals.DefaultProfile(), nil)
	for i := 0; i < 4; i++ {
		e.Estimate(nominalSample(), 0.5)
		if _, ok := e.PredictForward(10); ok {
			t.Fatalf("prediction available after %d estimates", i+1)
		}
	}
	e.Estimate(nominalSample(), 0.5)
	if _, ok := e.PredictForward(10); !ok {
		t.Fatal("prediction unavailable after 5 estimates")
	}
}

func TestPredictionTrendAndUncertaintyGrowth(t *testing.T) {
	e := New(vitals.DefaultProfile(), nil)
	m := nominalSample()
	for i := 0; i < 6; i++ {
		m.HydrationPct = 80 - float64(i)*2 // declining 2%/sample
		e.Estimate(m, 0.5)
	}
	last, _ := e.Latest()
	pred, ok := e.PredictForward(10)
	if !ok {
		t.Fatal("prediction unavailable")
	}
	if pred.HydrationPct >= last.HydrationPct {
		t.Errorf("predicted hydration %v not below current %v despite downward trend",
			pred.HydrationPct, last.HydrationPct)
	}
	wantU := math.Min(1, last.Uncertainty+0.05*10)
	if math.Abs(pred.Uncertainty-wantU) > 1e-12 {
		t.Errorf("predicted uncertainty = %v, want %v", pred.Uncertainty, wantU)
	}
}

type fixedSource struct {
	v   float64
	err error
}

func (f fixedSource) EnergyProxy(vitals.Telemetry) (float64, error) { return f.v, f.err }

func TestEnergyProxySourceSelection(t *testing.T) {
	m := nominalSample()

	s := New(vitals.DefaultProfile(), fixedSource{v: 0.42}).Estimate(m, 0.5)
	if s.EnergyProxy != 0.42 {
		t.Errorf("injected source ignored: energy proxy = %v", s.EnergyProxy)
	}

	ruleBased, _ := RuleBasedSource{}.EnergyProxy(m)
	s = New(vitals.DefaultProfile(), fixedSource{err: errors.New("backend down")}).Estimate(m, 0.5)
	if s.EnergyProxy != ruleBased {
		t.Errorf("failed source did not fall back: got %v, want %v", s.EnergyProxy, ruleBased)
	}
}

func TestDeterminism(t *testing.T) {
	run := func() []vitals.PatientState {
		e := New(vitals.DefaultProfile(), nil)
		m := nominalSample()
		for i := 0; i < 10; i++ {
			m.HydrationPct = 80 - float64(i)
			m.HeartRateBPM = 75 + float64(i)*3
			e.Estimate(m, 0.5)
		}
		return e.History()
	}
	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("history lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("state %d differs between identical runs:\n%+v\n%+v", i, a[i], b[i])
		}
	}
}
