package generator

// Band is a coarse confidence classification.
type Band string

const (
	BandHigh   Band = "high"
	BandMedium Band = "medium"
	BandLow    Band = "low"
)

// Thresholds are the lower bounds of the high and medium bands.
type Thresholds struct {
	High   float64 `yaml:"high"`
	Medium float64 `yaml:"medium"`
}

// Classify maps a score in [0,1] to a band.
func (t Thresholds) Classify(score float64) Band {
	switch {
	case score >= t.High:
		return BandHigh
	case score >= t.Medium:
		return BandMedium
	default:
		return BandLow
	}
}

// Trusted reports whether score is high enough for an inferred value to be used.
func (t Thresholds) Trusted(score float64) bool {
	return t.Classify(score) == BandHigh
}
