package touch

// Sensitivity maps a potentiometer reading onto a multiplier in
// [minMult, maxMult]. The reading is clamped to [0, potMax] first so that
// ADC overshoot cannot push the multiplier out of range. potMax must be > 0.
func Sensitivity(rawPot, potMax int, minMult, maxMult float64) float64 {
	if rawPot < 0 {
		rawPot = 0
	} else if rawPot > potMax {
		rawPot = potMax
	}

	if rawPot == potMax {
		return maxMult
	}

	normalized := float64(rawPot) / float64(potMax)
	multiplier := minMult + normalized*(maxMult-minMult)
	if minMult <= maxMult && multiplier > maxMult {
		multiplier = maxMult
	}
	return multiplier
}
