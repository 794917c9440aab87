package audit

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

var telemetryHeader = []string{
	"timestamp", "hydration_pct", "heart_rate_bpm", "temp_c", "blood_loss_idx",
	"fatigue_idx", "anxiety_idx", "signal_quality", "spo2_pct", "lactate_mmol",
	"cardiac_output_L_min",
}

var controlHeader = []string{
	"timestamp", "infusion_rate_ml_min", "confidence", "energy_T",
	"energy_T_abs_W_kg", "flow_velocity_cm_s", "flow_efficiency",
	"risk_score", "cardiac_reserve", "warnings", "rationale",
}

// ExportTelemetryCSV writes a session's telemetry log as CSV.
func (s *Store) ExportTelemetryCSV(sessionID string, w io.Writer) error {
	cycles, err := s.GetCycles(sessionID)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(telemetryHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range cycles {
		m := rec.Sample
		row := []string{
			m.Timestamp.UTC().Format(time.RFC3339Nano),
			f(m.HydrationPct), f(m.HeartRateBPM), f(m.TempCelsius),
			f(m.BloodLossIdx), f(m.FatigueIdx), f(m.AnxietyIdx),
			f(m.SignalQuality), f(m.SpO2Pct), f(m.LactateMmol),
			f(m.CardiacOutputLMin),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportControlCSV writes a session's control log as CSV.
func (s *Store) ExportControlCSV(sessionID string, w io.Writer) error {
	cycles, err := s.GetCycles(sessionID)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(controlHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range cycles {
		row := []string{
			rec.Sample.Timestamp.UTC().Format(time.RFC3339Nano),
			f(rec.Output.InfusionMlPerMin), f(rec.Output.Confidence),
			f(rec.State.EnergyProxy), f(rec.State.EnergyWPerKg),
			f(rec.State.FlowVelocityCmS), f(rec.State.FlowEfficiency),
			f(rec.State.RiskScore), f(rec.State.CardiacReserve),
			rec.Output.WarningFlags, rec.Output.Rationale,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func f(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
