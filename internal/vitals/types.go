package vitals

import "time"

// #region telemetry
// Telemetry is a single timestamped snapshot of raw sensor-derived signals.
// Values are immutable once captured; the telemetry source produces one per
// control cycle.
type Telemetry struct {
	Timestamp         time.Time `json:"timestamp"`
	HydrationPct      float64   `json:"hydration_pct"`       // 0-100: body water percentage
	HeartRateBPM      float64   `json:"heart_rate_bpm"`      // beats per minute
	TempCelsius       float64   `json:"temp_celsius"`        // core body temperature
	BloodLossIdx      float64   `json:"blood_loss_idx"`      // 0-1: cumulative blood loss estimate
	FatigueIdx        float64   `json:"fatigue_idx"`         // 0-1: muscular/metabolic fatigue
	AnxietyIdx        float64   `json:"anxiety_idx"`         // 0-1: stress/anxiety level
	SignalQuality     float64   `json:"signal_quality"`      // 0-1: sensor reliability metric
	SpO2Pct           float64   `json:"spo2_pct"`            // 0-100: blood oxygen saturation
	LactateMmol       float64   `json:"lactate_mmol"`        // blood lactate concentration
	CardiacOutputLMin float64   `json:"cardiac_output_l_min"` // measured/estimated cardiac output
}

// #endregion telemetry

// #region energy-params
// EnergyTransferParams holds the patient-specific constants of the nonlinear
// energy transfer model.
type EnergyTransferParams struct {
	// Metabolic power generation (Watts)
	PBaseline     float64 `json:"p_baseline"`      // baseline cellular respiration
	PIVSupplement float64 `json:"p_iv_supplement"` // IV substrate supplementation
	PEnergyCells  float64 `json:"p_energy_cells"`  // energy transfer cells (future, 0 until deployed)

	// Specific energy delivery (kJ/kg)
	ISpStandard      float64 `json:"i_sp_standard"`
	ISpATPLoaded     float64 `json:"i_sp_atp_loaded"`
	ISpMitochondrial float64 `json:"i_sp_mitochondrial"`

	// Tissue absorption efficiency (dimensionless)
	EtaBrainHeart float64 `json:"eta_brain_heart"` // well-perfused tissue
	EtaMuscle     float64 `json:"eta_muscle"`
	EtaIschemic   float64 `json:"eta_ischemic"` // ischemic/hypoxic tissue

	// Flow velocity optimization
	VOptimalCmS   float64 `json:"v_optimal_cm_s"` // patient-specific optimal velocity
	SigmaVelocity float64 `json:"sigma_velocity"` // velocity tolerance
}

// DefaultEnergyTransferParams returns the standard-IV-therapy defaults
// (no energy cells deployed).
func DefaultEnergyTransferParams() EnergyTransferParams {
	return EnergyTransferParams{
		PBaseline:     100.0,
		PIVSupplement: 35.0,
		PEnergyCells:  0.0,

		ISpStandard:      1.2,
		ISpATPLoaded:     4.5,
		ISpMitochondrial: 8.0,

		EtaBrainHeart: 0.90,
		EtaMuscle:     0.75,
		EtaIschemic:   0.40,

		VOptimalCmS:   20.0,
		SigmaVelocity: 5.0,
	}
}

// #endregion energy-params

// #region patient-profile
// PatientProfile is the static per-patient configuration. It is provided once
// at session start, owned by the orchestrator, and read-only everywhere else.
type PatientProfile struct {
	WeightKg            float64              `json:"weight_kg"`
	AgeYears            float64              `json:"age_years"`
	CardiacCondition    bool                 `json:"cardiac_condition"`
	RenalImpairment     bool                 `json:"renal_impairment"`
	BaselineHRBPM       float64              `json:"baseline_hr_bpm"`
	MaxSafeInfusionRate float64              `json:"max_safe_infusion_rate"` // ml/min
	TissuePerfusion     float64              `json:"tissue_perfusion"`       // 0-1: overall perfusion state
	EnergyParams        EnergyTransferParams `json:"energy_params"`
}

// DefaultProfile returns a healthy adult reference profile, matching the
// values used by the simulation scenarios.
func DefaultProfile() PatientProfile {
	return PatientProfile{
		WeightKg:            75.0,
		AgeYears:            35.0,
		CardiacCondition:    false,
		RenalImpairment:     false,
		BaselineHRBPM:       70.0,
		MaxSafeInfusionRate: 1.5,
		TissuePerfusion:     0.9,
		EnergyParams:        DefaultEnergyTransferParams(),
	}
}

// #endregion patient-profile

// #region patient-state
// PatientState is the estimator's derived view of the patient for one cycle.
// All fields are clamped to their documented ranges before the state is
// returned or stored.
type PatientState struct {
	HydrationPct    float64 `json:"hydration_pct"`
	HeartRateBPM    float64 `json:"heart_rate_bpm"`
	Coherence       float64 `json:"coherence"`         // 0.1-1: signal-trust scalar
	EnergyProxy     float64 `json:"energy_proxy"`      // 0-1: ATP/metabolic energy proxy
	EnergyWPerKg    float64 `json:"energy_w_per_kg"`   // absolute energy transfer rate
	FlowVelocityCmS float64 `json:"flow_velocity_cm_s"`
	FlowEfficiency  float64 `json:"flow_efficiency"` // Gaussian velocity term G(v)
	MetabolicLoad   float64 `json:"metabolic_load"`  // 0-1
	CardiacReserve  float64 `json:"cardiac_reserve"` // 0-1
	RiskScore       float64 `json:"risk_score"`      // 0-1
	Uncertainty     float64 `json:"uncertainty"`     // 0-1
}

// #endregion patient-state

// #region control-output
// ControlOutput is the final per-cycle decision emitted by the controller.
type ControlOutput struct {
	InfusionMlPerMin float64 `json:"infusion_ml_per_min"`
	Confidence       float64 `json:"confidence"` // 1 - state uncertainty
	Rationale        string  `json:"rationale"`
	SafetyOverride   bool    `json:"safety_override"` // even the emergency floor could not be honored
	WarningFlags     string  `json:"warning_flags"`   // space-delimited warning tokens
}

// #endregion control-output
