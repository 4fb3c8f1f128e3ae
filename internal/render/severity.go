// Package render turns analysis results into what the operator sees:
// a severity tier, an annotated frame and a status line.
package render

// Severity is the risk tier of a result.
type Severity int

const (
	Low Severity = iota
	Moderate
	High
)

// Classification thresholds.
const (
	DefaultHighThreshold = 0.5
	ModerateThreshold    = 0.3
)

func (s Severity) String() string {
	switch s {
	case High:
		return "HIGH"
	case Moderate:
		return "MODERATE"
	default:
		return "LOW"
	}
}

// MarshalText lets Severity appear as its name in JSON.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Classify applies the default tier table. Any indicator is HIGH on its own.
func Classify(score float64, indicators []string) Severity {
	return ClassifyAt(score, indicators, DefaultHighThreshold)
}

// ClassifyAt is Classify with a configurable HIGH threshold.
// A non-positive threshold uses DefaultHighThreshold.
func ClassifyAt(score float64, indicators []string, high float64) Severity {
	if high <= 0 {
		high = DefaultHighThreshold
	}
	switch {
	case score >= high || len(indicators) > 0:
		return High
	case score >= ModerateThreshold:
		return Moderate
	default:
		return Low
	}
}
