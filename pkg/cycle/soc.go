package cycle

// DefaultMinVoltage is the policy floor representing an empty cell for
// the SOC estimate. 3.0 V is the deep-discharge cutoff for a single
// li-ion cell; it is configurable because packs and chemistries differ.
const DefaultMinVoltage = 3.0

// SOC estimates state of charge from the latest voltage, linearly
// between vMin (empty) and vTarget (full), clamped to [0, 100].
func SOC(voltage, vMin, vTarget float64) float64 {
	if vTarget <= vMin {
		return 0
	}
	pct := (voltage - vMin) / (vTarget - vMin) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// Charge-rate defaults used to derive controller setpoints from the
// configured capacity.
const (
	cellFullVoltage = 4.20 // V, li-ion single cell
	chargeRateC     = 0.5  // conservative 0.5C charge current
)

// DeriveSetpoints computes the controller Vref/Iref from the battery
// capacity the same way the configuration screen pre-fills them: full
// cell voltage and a 0.5C charge current.
func DeriveSetpoints(capacityMah int) (vref float64, irefA float64) {
	if capacityMah <= 0 {
		return cellFullVoltage, 0
	}
	return cellFullVoltage, float64(capacityMah) / 1000 * chargeRateC
}
