// Package telemetry supplies the control loop with patient measurements,
// either simulated or ingested live from wearable sensors over MQTT.
package telemetry

import (
	"math"
	"time"

	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/vitals"
)

// Source produces one telemetry sample per control cycle. ok is false when no
// sample is available for this cycle; the loop then holds the last rate.
type Source interface {
	Next() (vitals.Telemetry, bool)
}

// #region sim
// SimSource generates a deterministic sinusoidal patient: gradual dehydration
// and recovery with mild heart-rate, temperature, and lactate oscillation.
// Time advances by the configured period per sample, independent of the wall
// clock, so two runs with the same settings produce identical streams.
type SimSource struct {
	baselineHR float64
	period     time.Duration
	epoch      time.Time
	cycle      int
}

// NewSimSource builds a simulator stepped by period each call. epoch anchors
// the sample timestamps.
func NewSimSource(baselineHR float64, period time.Duration, epoch time.Time) *SimSource {
	return &SimSource{baselineHR: baselineHR, period: period, epoch: epoch}
}

// Next implements Source. It never fails.
func (s *SimSource) Next() (vitals.Telemetry, bool) {
	t := float64(s.cycle) * s.period.Seconds()
	m := vitals.Telemetry{
		Timestamp:         s.epoch.Add(time.Duration(s.cycle) * s.period),
		HydrationPct:      65.0 + 15.0*math.Sin(t*0.05),
		HeartRateBPM:      s.baselineHR + 20.0*math.Sin(t*0.1),
		TempCelsius:       37.0 + 0.5*math.Sin(t*0.03),
		BloodLossIdx:      0.0,
		FatigueIdx:        0.3 + 0.2*math.Sin(t*0.02),
		AnxietyIdx:        0.2,
		SignalQuality:     0.85 + 0.1*math.Sin(t*0.5),
		SpO2Pct:           97.0 + 2.0*math.Sin(t*0.08),
		LactateMmol:       2.0 + 1.0*math.Sin(t*0.04),
		CardiacOutputLMin: 5.0 + 1.0*math.Sin(t*0.06),
	}
	s.cycle++
	return m, true
}

// #endregion sim
