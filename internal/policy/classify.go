package policy

// Classify maps a reading value to a status level under the given policy.
// Pure and deterministic; the only error case is a malformed policy.
//
// The boundary is inclusive on the alerting side: a value exactly on a bound
// is Warning, never Normal. A value at or beyond bound*(1±NearMargin) is
// Critical. NearMargin == 0 collapses the two cutoffs; the collapsed case
// yields Warning only, so a zero margin can never produce an always-critical
// rule.
func Classify(value float64, p Policy) (Level, error) {
	if err := p.Validate(); err != nil {
		return Normal, err
	}

	switch p.Mode {
	case SingleUpperBound:
		return classifyUpper(value, p.Upper, p.NearMargin), nil
	case SingleLowerBound:
		return classifyLower(value, p.Lower, p.NearMargin), nil
	default: // DualBound, validated above
		upper := classifyUpper(value, p.Upper, p.NearMargin)
		lower := classifyLower(value, p.Lower, p.NearMargin)
		return Worst(upper, lower), nil
	}
}

// IsApproaching reports whether the value is still inside the bound but
// within the near-margin band of it. Advisory only: it flags "approaching
// threshold" for display and must never drive alert transitions, since
// Classify still reports Normal for these values.
func IsApproaching(value float64, p Policy) (bool, error) {
	if err := p.Validate(); err != nil {
		return false, err
	}
	if p.NearMargin == 0 {
		return false, nil
	}

	switch p.Mode {
	case SingleUpperBound:
		return approachingUpper(value, p.Upper, p.NearMargin), nil
	case SingleLowerBound:
		return approachingLower(value, p.Lower, p.NearMargin), nil
	default:
		return approachingUpper(value, p.Upper, p.NearMargin) ||
			approachingLower(value, p.Lower, p.NearMargin), nil
	}
}

func classifyUpper(value, upper, margin float64) Level {
	if margin > 0 && value >= upper*(1+margin) {
		return Critical
	}
	if value >= upper {
		return Warning
	}
	return Normal
}

func classifyLower(value, lower, margin float64) Level {
	if margin > 0 && value <= lower*(1-margin) {
		return Critical
	}
	if value <= lower {
		return Warning
	}
	return Normal
}

func approachingUpper(value, upper, margin float64) bool {
	return value < upper && value > upper*(1-margin)
}

func approachingLower(value, lower, margin float64) bool {
	return value > lower && value < lower*(1+margin)
}
