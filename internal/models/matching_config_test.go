package models

import "testing"

func TestNextRadiusKm(t *testing.T) {
	cfg := &MatchingConfig{InitialRadiusKm: 1.5, MaxRadiusKm: 5.0, RadiusExpansionStepKm: 1.0}

	tests := []struct {
		name    string
		current float64
		want    float64
	}{
		{"first expansion", 1.5, 2.5},
		{"mid expansion", 3.5, 4.5},
		{"capped at max", 4.5, 5.0},
		{"already at max", 5.0, 5.0},
		{"never decreases past max", 6.0, 6.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cfg.NextRadiusKm(tt.current); got != tt.want {
				t.Errorf("NextRadiusKm(%v) = %v, want %v", tt.current, got, tt.want)
			}
		})
	}
}

func TestMatchingConfigValidate(t *testing.T) {
	valid := DefaultMatchingConfig()
	if err := valid.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*MatchingConfig)
	}{
		{"zero initial radius", func(c *MatchingConfig) { c.InitialRadiusKm = 0 }},
		{"max below initial", func(c *MatchingConfig) { c.MaxRadiusKm = c.InitialRadiusKm - 1 }},
		{"zero expansion step", func(c *MatchingConfig) { c.RadiusExpansionStepKm = 0 }},
		{"zero offer timeout", func(c *MatchingConfig) { c.OfferTimeoutSeconds = 0 }},
		{"zero retry limit", func(c *MatchingConfig) { c.MaxRetryAttempts = 0 }},
		{"negative weight", func(c *MatchingConfig) { c.WeightRating = -0.1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultMatchingConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
