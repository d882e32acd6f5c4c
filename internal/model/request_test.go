package model

import "testing"

func TestEffectiveQuality(t *testing.T) {
	q := func(v int) *int { return &v }

	tests := []struct {
		in   *int
		want int
	}{
		{nil, DefaultQuality},
		{q(50), 50},
		{q(5), MinQuality},
		{q(0), MinQuality},
		{q(-10), MinQuality},
		{q(100), 100},
		{q(150), MaxQuality},
	}

	for _, tt := range tests {
		if got := (ProcessingRequest{Quality: tt.in}).EffectiveQuality(); got != tt.want {
			t.Errorf("EffectiveQuality(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestTarget(t *testing.T) {
	for in, want := range map[string]string{
		"pdf":    "pdf",
		"WEBP":   "webp",
		".webp":  "webp",
		" .PDF ": "pdf",
		"":       "",
	} {
		if got := (ProcessingRequest{TargetFormat: in}).Target(); got != want {
			t.Errorf("Target(%q) = %q, want %q", in, got, want)
		}
	}
}
