package config

import (
	"strings"
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DB_DSN", "postgres://localhost:5432/speedcam")
	t.Setenv("JWT_ACCESS_SECRET", "test-secret")
	t.Setenv("OCR_BASE_URL", "http://localhost:9000")
}

func TestLoadDefaultsConfidenceThreshold(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.OCR.ConfidenceThreshold != 0.5 {
		t.Errorf("default confidence threshold = %v, want 0.5", cfg.OCR.ConfidenceThreshold)
	}
}

func TestLoadConfidenceThresholdRange(t *testing.T) {
	cases := []struct {
		name    string
		value   string
		want    float64
		wantErr bool
	}{
		{name: "zero", value: "0", want: 0},
		{name: "half", value: "0.5", want: 0.5},
		{name: "one", value: "1", want: 1},
		{name: "negative", value: "-0.1", wantErr: true},
		{name: "above one", value: "1.5", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv("OCR_CONFIDENCE_THRESHOLD", tc.value)

			cfg, err := Load()
			if tc.wantErr {
				if err == nil {
					t.Fatalf("Load accepted threshold %s", tc.value)
				}
				if !strings.Contains(err.Error(), "OCR_CONFIDENCE_THRESHOLD") {
					t.Errorf("Load error = %q, want threshold rejection", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load rejected threshold %s: %v", tc.value, err)
			}
			if cfg.OCR.ConfidenceThreshold != tc.want {
				t.Errorf("confidence threshold = %v, want %v", cfg.OCR.ConfidenceThreshold, tc.want)
			}
		})
	}
}
