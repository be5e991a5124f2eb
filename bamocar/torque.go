package bamocar

// BipolarScaler maps a centered analog reading to a signed torque command.
// Deflection below the deadzone maps to exactly zero; beyond it the reading
// scales linearly to the configured accelerator cap and clamps there. The
// mapping is total: out-of-range raw input is clamped, never rejected.
type BipolarScaler struct {
	Center          uint16 // raw reading at rest (also the full-deflection span)
	Deadzone        uint16 // half-width around Center treated as zero
	MaxAccelPercent uint8  // torque cap as a percent of full scale
}

// Scale converts a raw analog reading to a signed torque command in
// [-maxTorque, +maxTorque] where maxTorque = MaxAccelPercent/100 * 32767.
func (s BipolarScaler) Scale(raw uint16) int16 {
	if s.Center == 0 {
		return 0
	}
	maxTorque := int32(s.MaxAccelPercent) * TorqueFullScale / 100

	centered := int32(raw) - int32(s.Center)
	if centered <= int32(s.Deadzone) && centered >= -int32(s.Deadzone) {
		return 0
	}

	scaled := centered * maxTorque / int32(s.Center)
	if scaled > maxTorque {
		scaled = maxTorque
	} else if scaled < -maxTorque {
		scaled = -maxTorque
	}
	return int16(scaled)
}

// PedalScaler maps a pedal-style pot reading to a non-negative torque
// command. The pot reads RestValue with the pedal released and PressedValue
// fully pressed (the bench harness wires it inverted, so RestValue >
// PressedValue). Total function: readings past either end clamp.
type PedalScaler struct {
	RestValue       uint16
	PressedValue    uint16
	MaxAccelPercent uint8
}

// Percent returns how far the pedal is pressed, capped at MaxAccelPercent.
func (s PedalScaler) Percent(raw uint16) float64 {
	span := float64(s.RestValue) - float64(s.PressedValue)
	if span == 0 {
		return 0
	}
	percent := (float64(s.RestValue) - float64(raw)) * 100.0 / span
	if percent < 0 {
		percent = 0
	}
	if percent > float64(s.MaxAccelPercent) {
		percent = float64(s.MaxAccelPercent)
	}
	return percent
}

// Scale converts a raw pedal reading to a torque command in [0, maxTorque].
func (s PedalScaler) Scale(raw uint16) int16 {
	return int16(TorqueFullScale * s.Percent(raw) / 100.0)
}
