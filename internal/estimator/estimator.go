// Package estimator derives a physiological patient state from raw telemetry.
// The estimate is a pure function of the measurement, the patient profile, and
// the bounded history the estimator carries; no wall clock, no randomness.
package estimator

import (
	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/numeric"
	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/ring"
	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/vitals"
)

const (
	historyCapacity = 50

	// Linear trend extrapolation uses the last trendWindow history entries
	// and grows uncertainty by uncertaintyGrowthPerMin for every projected
	// minute.
	trendWindow             = 5
	uncertaintyGrowthPerMin = 0.05
)

// EnergyProxySource produces the 0-1 metabolic energy proxy for a telemetry
// sample. Implementations must be deterministic for a given sample. A non-nil
// error makes the estimator fall back to the built-in rule-based source.
type EnergyProxySource interface {
	EnergyProxy(sample vitals.Telemetry) (float64, error)
}

// StateEstimator folds telemetry samples into PatientState estimates and keeps
// a bounded history of both. Not safe for concurrent use; the control loop
// owns serialization.
type StateEstimator struct {
	profile   vitals.PatientProfile
	source    EnergyProxySource
	fallback  RuleBasedSource
	telemetry *ring.Buffer[vitals.Telemetry]
	states    *ring.Buffer[vitals.PatientState]
}

// New builds an estimator for the given profile. A nil source selects the
// rule-based energy proxy.
func New(profile vitals.PatientProfile, source EnergyProxySource) *StateEstimator {
	return &StateEstimator{
		profile:   profile,
		source:    source,
		telemetry: ring.New[vitals.Telemetry](historyCapacity),
		states:    ring.New[vitals.PatientState](historyCapacity),
	}
}

// #region estimate

// Estimate derives the patient state for one telemetry sample at the given
// infusion rate and appends both to history.
func (e *StateEstimator) Estimate(m vitals.Telemetry, currentRateMlMin float64) vitals.PatientState {
	coherence := e.coherence(m)
	proxy := e.energyProxy(m)
	velocity := e.flowVelocity(m, currentRateMlMin)
	gain := numeric.Gaussian(velocity, e.profile.EnergyParams.VOptimalCmS, e.profile.EnergyParams.SigmaVelocity)
	load := metabolicLoad(m)
	reserve := e.cardiacReserve(m)

	s := vitals.PatientState{
		HydrationPct:    numeric.Clamp(m.HydrationPct, 0, 100),
		HeartRateBPM:    m.HeartRateBPM,
		Coherence:       coherence,
		EnergyProxy:     proxy,
		EnergyWPerKg:    e.energyTransfer(m, currentRateMlMin, velocity, gain),
		FlowVelocityCmS: velocity,
		FlowEfficiency:  gain,
		MetabolicLoad:   load,
		CardiacReserve:  reserve,
		RiskScore:       riskScore(m, proxy),
	}
	s.Uncertainty = 1.0 - coherence*(1.0-0.3*load)

	e.telemetry.Push(m)
	e.states.Push(s)
	return s
}

// coherence scores how much the current sample can be trusted: the sensor's
// own quality metric, degraded by physiologically implausible readings and by
// heart-rate instability across the recent history.
func (e *StateEstimator) coherence(m vitals.Telemetry) float64 {
	c := m.SignalQuality
	if m.HeartRateBPM < 40 || m.HeartRateBPM > 180 {
		c *= 0.5
	}
	if m.TempCelsius < 35 || m.TempCelsius > 40 {
		c *= 0.7
	}
	if m.SpO2Pct < 85 {
		c *= 0.6
	}
	if e.telemetry.Len() >= trendWindow {
		variance := 0.0
		for i := e.telemetry.Len() - trendWindow; i < e.telemetry.Len(); i++ {
			prev, _ := e.telemetry.At(i)
			d := prev.HeartRateBPM - m.HeartRateBPM
			variance += d * d
		}
		variance /= trendWindow
		if variance > 400 {
			c *= 0.7
		}
	}
	return numeric.Clamp(c, 0.1, 1.0)
}

func (e *StateEstimator) energyProxy(m vitals.Telemetry) float64 {
	if e.source != nil {
		if v, err := e.source.EnergyProxy(m); err == nil {
			return numeric.Clamp(v, 0, 1)
		}
	}
	v, _ := e.fallback.EnergyProxy(m)
	return v
}

// flowVelocity estimates effective circulatory flow velocity in cm/s from
// cardiac output plus the infusion contribution, normalized by an effective
// vessel cross-section scaled to body weight.
func (e *StateEstimator) flowVelocity(m vitals.Telemetry, rateMlMin float64) float64 {
	cardiacMlS := m.CardiacOutputLMin * 1000.0 / 60.0
	infusionMlS := rateMlMin / 60.0
	area := e.profile.WeightKg * 0.5
	if area < 1 {
		area = 1
	}
	return numeric.Clamp((cardiacMlS+infusionMlS)/area, 0.05, 40.0)
}

// tissueEfficiency degrades the muscle-tissue baseline for hypoxia, poor
// perfusion, and hypothermia, bounded by the ischemic floor and the
// brain/heart ceiling.
func (e *StateEstimator) tissueEfficiency(m vitals.Telemetry) float64 {
	p := e.profile.EnergyParams
	eta := p.EtaMuscle
	if m.SpO2Pct < 90 {
		eta *= 1.0 - numeric.Clamp((90.0-m.SpO2Pct)/20.0, 0, 0.6)
	}
	eta *= 0.5 + 0.5*e.profile.TissuePerfusion
	if m.TempCelsius < 36 {
		eta *= 1.0 - numeric.Clamp((36.0-m.TempCelsius)/5.0, 0, 0.4)
	}
	return numeric.Clamp(eta, p.EtaIschemic, p.EtaBrainHeart)
}

// energyTransfer computes the absolute energy delivery rate in W/kg:
// metabolic power plus the infusion's substrate power scaled by tissue
// efficiency and the flow-velocity gain.
func (e *StateEstimator) energyTransfer(m vitals.Telemetry, rateMlMin, velocity, gain float64) float64 {
	p := e.profile.EnergyParams
	pInput := p.PBaseline + p.PIVSupplement + p.PEnergyCells
	mdotKgS := rateMlMin / 60000.0 // ml/min of aqueous solution to kg/s
	iSpJKg := p.ISpStandard * 1000.0
	eta := e.tissueEfficiency(m)
	return (pInput + mdotKgS*iSpJKg*eta*gain) / e.profile.WeightKg
}

func metabolicLoad(m vitals.Telemetry) float64 {
	hrTerm := numeric.Clamp((m.HeartRateBPM-60.0)/100.0, 0, 1)
	tempTerm := abs(m.TempCelsius-37.0) / 3.0
	lactTerm := numeric.Clamp(m.LactateMmol/10.0, 0, 1)
	load := 0.3*hrTerm + 0.25*tempTerm + 0.25*lactTerm + 0.2*m.AnxietyIdx
	return numeric.Clamp(load, 0, 1)
}

// cardiacReserve estimates remaining chronotropic headroom against the
// age-predicted maximum (220 - age), penalized for hypoxia.
func (e *StateEstimator) cardiacReserve(m vitals.Telemetry) float64 {
	hrMax := 220.0 - e.profile.AgeYears
	if hrMax < 1 {
		hrMax = 1
	}
	reserve := 1.0 - numeric.Sigmoid(m.HeartRateBPM/hrMax, 0.85, 10.0)
	reserve *= numeric.Clamp(m.SpO2Pct/95.0, 0.5, 1.0)
	return numeric.Clamp(reserve, 0, 1)
}

func riskScore(m vitals.Telemetry, energyProxy float64) float64 {
	hypoxia := numeric.Clamp((95.0-m.SpO2Pct)/10.0, 0, 1)
	hypothermia := max(0, (36.0-m.TempCelsius)/2.0)
	acute := max(m.BloodLossIdx, max(hypoxia, hypothermia))

	depletion := 0.4*numeric.Clamp((100.0-m.HydrationPct)/50.0, 0, 1) + 0.6*(1.0-energyProxy)
	fever := max(0, (m.TempCelsius-38.5)/2.0)

	return numeric.Clamp(0.6*acute+0.3*depletion+0.1*fever, 0, 1)
}

// #endregion estimate

// #region prediction

// PredictForward linearly extrapolates hydration and energy proxy the given
// number of minutes ahead from the recent history trend. The second return is
// false until at least five estimates have accumulated.
func (e *StateEstimator) PredictForward(minutes float64) (vitals.PatientState, bool) {
	n := e.states.Len()
	if n < trendWindow {
		return vitals.PatientState{}, false
	}
	last, _ := e.states.At(n - 1)
	oldest, _ := e.states.At(n - trendWindow)

	hydTrend := (last.HydrationPct - oldest.HydrationPct) / float64(trendWindow)
	energyTrend := (last.EnergyProxy - oldest.EnergyProxy) / float64(trendWindow)

	pred := last
	pred.HydrationPct = numeric.Clamp(last.HydrationPct+hydTrend*minutes, 0, 100)
	pred.EnergyProxy = numeric.Clamp(last.EnergyProxy+energyTrend*minutes, 0, 1)
	pred.Uncertainty = numeric.Clamp(last.Uncertainty+uncertaintyGrowthPerMin*minutes, 0, 1)
	return pred, true
}

// #endregion prediction

// History returns the stored state estimates, oldest first.
func (e *StateEstimator) History() []vitals.PatientState {
	return e.states.Snapshot()
}

// TelemetryHistory returns the stored telemetry samples, oldest first.
func (e *StateEstimator) TelemetryHistory() []vitals.Telemetry {
	return e.telemetry.Snapshot()
}

// Latest returns the most recent state estimate.
func (e *StateEstimator) Latest() (vitals.PatientState, bool) {
	return e.states.Last()
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
