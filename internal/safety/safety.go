// Package safety enforces hard limits on requested infusion rates. The
// monitor is the last authority before a rate reaches the pump: it can only
// tighten a request, with a single emergency-floor exception for severe
// dehydration.
package safety

import (
	"strings"

	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/ring"
	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/vitals"
)

const (
	// MinRateMlMin is the lowest clinically meaningful infusion rate. Rates
	// below it are treated as effectively off.
	MinRateMlMin = 0.1

	// dailyVolumePerKg sets the 24h fluid ceiling in ml per kg body weight.
	dailyVolumePerKg = 35.0

	cardiacVolumeFactor = 0.7
	renalVolumeFactor   = 0.6

	volumeApproachFraction = 0.9
	maxRateDeltaMlMin      = 0.3
	rateHistoryCapacity    = 20
)

// Warning codes emitted by the evaluation checks, in check order.
const (
	WarnVolumeLimit   = "VOLUME_LIMIT_APPROACH"
	WarnLowReserve    = "LOW_CARDIAC_RESERVE"
	WarnRateChange    = "RATE_CHANGE_LIMITED"
	WarnHighRisk      = "HIGH_RISK_STATE"
	WarnTachycardia   = "TACHYCARDIA_DETECTED"
	WarnEmergencyRate = "EMERGENCY_MIN_RATE"
)

// CheckResult is the outcome of one safety evaluation. Passed is false only
// when even the final allowed rate is below the minimum meaningful rate.
type CheckResult struct {
	Passed         bool     `json:"passed"`
	MaxAllowedRate float64  `json:"max_allowed_rate"`
	Warnings       []string `json:"warnings"`
}

// WarningString joins the warning codes with single spaces.
func (r CheckResult) WarningString() string {
	return strings.Join(r.Warnings, " ")
}

// Monitor tracks cumulative delivered volume and recent rate decisions for a
// single patient session. Not safe for concurrent use.
type Monitor struct {
	profile      vitals.PatientProfile
	maxVolume24h float64
	cumulative   float64
	rates        *ring.Buffer[float64]
}

// NewMonitor derives the 24h volume ceiling from the profile: weight x 35 ml,
// reduced to 70% for cardiac conditions and 60% for renal impairment.
func NewMonitor(profile vitals.PatientProfile) *Monitor {
	maxVol := profile.WeightKg * dailyVolumePerKg
	if profile.CardiacCondition {
		maxVol *= cardiacVolumeFactor
	}
	if profile.RenalImpairment {
		maxVol *= renalVolumeFactor
	}
	return &Monitor{
		profile:      profile,
		maxVolume24h: maxVol,
		rates:        ring.New[float64](rateHistoryCapacity),
	}
}

// #region evaluation

// rateCheck inspects one hazard and returns the rate it allows plus an
// optional warning code. Checks run in a fixed order and the allowed rate is
// the running minimum, so no later check can undo an earlier restriction.
type rateCheck func(m *Monitor, allowed, requested float64, s vitals.PatientState, elapsedMinutes float64) (float64, string)

var checks = []rateCheck{
	checkVolumeBudget,
	checkCardiacReserve,
	checkRateChange,
	checkRiskState,
	checkTachycardia,
}

// Evaluate folds the requested rate through every check. elapsedMinutes is
// the caller-supplied projection window; the monitor never reads a clock.
func (m *Monitor) Evaluate(requested float64, s vitals.PatientState, elapsedMinutes float64) CheckResult {
	allowed := requested
	warnings := make([]string, 0, 2)

	for _, check := range checks {
		next, warn := check(m, allowed, requested, s, elapsedMinutes)
		if next < allowed {
			allowed = next
		}
		if warn != "" {
			warnings = append(warnings, warn)
		}
	}

	// Emergency floor: severe dehydration must keep a minimal drip even if
	// the checks above pushed the rate to zero. This is the only path that
	// raises the rate, and only ever to the minimum itself.
	if allowed < MinRateMlMin && s.HydrationPct < 50 {
		allowed = MinRateMlMin
		warnings = append(warnings, WarnEmergencyRate)
	}

	return CheckResult{
		Passed:         allowed >= MinRateMlMin,
		MaxAllowedRate: allowed,
		Warnings:       warnings,
	}
}

func checkVolumeBudget(m *Monitor, allowed, _ float64, _ vitals.PatientState, elapsedMinutes float64) (float64, string) {
	projected := m.cumulative + allowed*elapsedMinutes
	if projected > volumeApproachFraction*m.maxVolume24h {
		return 0.3, WarnVolumeLimit
	}
	return allowed, ""
}

func checkCardiacReserve(_ *Monitor, allowed, _ float64, s vitals.PatientState, _ float64) (float64, string) {
	if s.CardiacReserve < 0.2 {
		return 0.5, WarnLowReserve
	}
	return allowed, ""
}

// checkRateChange limits the step from the last committed rate to avoid
// abrupt pump transitions. The first decision of a session has no reference
// and passes through.
func checkRateChange(m *Monitor, allowed, _ float64, _ vitals.PatientState, _ float64) (float64, string) {
	last, ok := m.rates.Last()
	if !ok {
		return allowed, ""
	}
	delta := allowed - last
	if delta > maxRateDeltaMlMin {
		return last + maxRateDeltaMlMin, WarnRateChange
	}
	if delta < -maxRateDeltaMlMin {
		return last - maxRateDeltaMlMin, WarnRateChange
	}
	return allowed, ""
}

func checkRiskState(_ *Monitor, allowed, _ float64, s vitals.PatientState, _ float64) (float64, string) {
	if s.RiskScore > 0.75 {
		return 0.6, WarnHighRisk
	}
	return allowed, ""
}

func checkTachycardia(m *Monitor, allowed, _ float64, s vitals.PatientState, _ float64) (float64, string) {
	if s.HeartRateBPM > 1.4*m.profile.BaselineHRBPM {
		return 0.4, WarnTachycardia
	}
	return allowed, ""
}

// #endregion evaluation

// #region accounting

// UpdateVolume commits a delivered rate over an interval, adding to the 24h
// total and recording the rate for step limiting.
func (m *Monitor) UpdateVolume(rateMlMin, minutes float64) {
	m.cumulative += rateMlMin * minutes
	m.rates.Push(rateMlMin)
}

// Reset24hCounter clears the cumulative volume at the daily rollover. Rate
// history is preserved; the step limit spans the rollover.
func (m *Monitor) Reset24hCounter() {
	m.cumulative = 0
}

// CumulativeVolume reports the total delivered volume in ml since the last
// reset.
func (m *Monitor) CumulativeVolume() float64 { return m.cumulative }

// MaxVolume24h reports the session's 24h ceiling in ml.
func (m *Monitor) MaxVolume24h() float64 { return m.maxVolume24h }

// LastRate reports the most recently committed rate, if any.
func (m *Monitor) LastRate() (float64, bool) { return m.rates.Last() }

// RateHistory returns the committed rates, oldest first.
func (m *Monitor) RateHistory() []float64 { return m.rates.Snapshot() }

// #endregion accounting
