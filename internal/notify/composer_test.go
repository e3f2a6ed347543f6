package notify

import (
	"strings"
	"testing"
	"time"

	"speedcam-service/internal/domain/traffic"
)

func testComposer(now time.Time) *Composer {
	c := NewComposer(2)
	c.now = func() time.Time { return now }
	return c
}

func floatPtr(f float64) *float64 {
	return &f
}

func TestComposeClauseOrder(t *testing.T) {
	now := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	expiry := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	c := testComposer(now)

	msg := c.Compose(ComposeInput{
		OwnerName:    "Asha",
		LicensePlate: "MH12AB1234",
		SpeedLimit:   50,
		Location: &traffic.Location{
			Latitude:  floatPtr(18.52),
			Longitude: floatPtr(73.85),
			City:      "Pune",
			Region:    "Maharashtra",
			Country:   "IN",
		},
		ExpiryDate:      &expiry,
		PriorViolations: 3,
	})

	clauses := []string{
		"Dear Asha,",
		"License Plate: MH12AB1234 has violated the speed limit of 50 km/h.",
		"Location: Pune, Maharashtra, IN",
		"Date and Time: 2026-03-14 15:09:26",
		"Latitude: 18.52, Longitude: 73.85",
		"Warning: Your license has expired on 2020-01-01.",
		"Your violations have reached the maximum limit!",
	}

	prev := -1
	for _, clause := range clauses {
		idx := strings.Index(msg, clause)
		if idx < 0 {
			t.Fatalf("message missing clause %q:\n%s", clause, msg)
		}
		if idx < prev {
			t.Errorf("clause %q out of order:\n%s", clause, msg)
		}
		prev = idx
	}
}

func TestComposeOmitsLocationClausesWhenUnresolved(t *testing.T) {
	c := testComposer(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))

	msg := c.Compose(ComposeInput{
		OwnerName:    "Ravi",
		LicensePlate: "KA01ZZ9999",
		SpeedLimit:   60,
		Location:     nil,
	})

	if strings.Contains(msg, "Location:") {
		t.Errorf("message should omit location clause:\n%s", msg)
	}
	if strings.Contains(msg, "Latitude:") {
		t.Errorf("message should omit GPS clause:\n%s", msg)
	}
	if !strings.Contains(msg, "Date and Time: 2026-03-14 12:00:00") {
		t.Errorf("timestamp clause missing:\n%s", msg)
	}
}

func TestComposeOmitsGPSWithoutCoordinates(t *testing.T) {
	c := testComposer(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))

	msg := c.Compose(ComposeInput{
		OwnerName:    "Ravi",
		LicensePlate: "KA01ZZ9999",
		SpeedLimit:   60,
		Location:     &traffic.Location{City: "Pune", Region: "Maharashtra", Country: "IN"},
	})

	if !strings.Contains(msg, "Location: Pune, Maharashtra, IN") {
		t.Errorf("location clause missing:\n%s", msg)
	}
	if strings.Contains(msg, "Latitude:") {
		t.Errorf("GPS clause should be omitted without coordinates:\n%s", msg)
	}
}

func TestComposeExpiryWarning(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		expiry *time.Time
		want   bool
	}{
		{
			name:   "expired years ago",
			expiry: timePtr(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)),
			want:   true,
		},
		{
			name:   "expired yesterday",
			expiry: timePtr(time.Date(2026, 3, 13, 23, 59, 0, 0, time.UTC)),
			want:   true,
		},
		{
			name:   "expires today is not yet expired",
			expiry: timePtr(time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)),
			want:   false,
		},
		{
			name:   "expires in the future",
			expiry: timePtr(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)),
			want:   false,
		},
		{
			name:   "no expiry on record",
			expiry: nil,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := testComposer(now).Compose(ComposeInput{
				OwnerName:    "Asha",
				LicensePlate: "MH12AB1234",
				SpeedLimit:   50,
				ExpiryDate:   tt.expiry,
			})
			got := strings.Contains(msg, "Warning: Your license has expired")
			if got != tt.want {
				t.Errorf("expiry warning present = %v, want %v:\n%s", got, tt.want, msg)
			}
		})
	}
}

func TestComposeRepeatOffenderWarning(t *testing.T) {
	tests := []struct {
		name  string
		prior int
		want  bool
	}{
		{name: "zero prior violations", prior: 0, want: false},
		{name: "at threshold", prior: 2, want: false},
		{name: "above threshold", prior: 3, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := testComposer(time.Now()).Compose(ComposeInput{
				OwnerName:       "Asha",
				LicensePlate:    "MH12AB1234",
				SpeedLimit:      50,
				PriorViolations: tt.prior,
			})
			got := strings.Contains(msg, "Your violations have reached the maximum limit!")
			if got != tt.want {
				t.Errorf("repeat warning present = %v, want %v (prior=%d)", got, tt.want, tt.prior)
			}
		})
	}
}

func timePtr(ts time.Time) *time.Time {
	return &ts
}
