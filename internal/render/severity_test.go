package render

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		score      float64
		indicators []string
		want       Severity
	}{
		{name: "high score", score: 0.6, want: High},
		{name: "moderate score", score: 0.35, want: Moderate},
		{name: "indicator alone", score: 0.1, indicators: []string{"rope"}, want: High},
		{name: "low", score: 0.1, want: Low},
		{name: "high boundary", score: 0.5, want: High},
		{name: "moderate boundary", score: 0.3, want: Moderate},
		{name: "zero", score: 0, want: Low},
		{name: "empty indicator list", score: 0.2, indicators: []string{}, want: Low},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.score, tt.indicators); got != tt.want {
				t.Errorf("Classify(%v, %v) = %v, want %v", tt.score, tt.indicators, got, tt.want)
			}
		})
	}
}

func TestClassifyAt(t *testing.T) {
	tests := []struct {
		name      string
		score     float64
		threshold float64
		want      Severity
	}{
		{name: "raised threshold demotes", score: 0.6, threshold: 0.8, want: Moderate},
		{name: "raised threshold reached", score: 0.8, threshold: 0.8, want: High},
		{name: "lowered threshold", score: 0.2, threshold: 0.2, want: High},
		{name: "zero threshold uses default", score: 0.5, threshold: 0, want: High},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyAt(tt.score, nil, tt.threshold); got != tt.want {
				t.Errorf("ClassifyAt(%v, nil, %v) = %v, want %v", tt.score, tt.threshold, got, tt.want)
			}
		})
	}
}

func TestSeverity_String(t *testing.T) {
	tests := map[Severity]string{Low: "LOW", Moderate: "MODERATE", High: "HIGH"}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}
