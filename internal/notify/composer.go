package notify

import (
	"fmt"
	"strings"
	"time"

	"speedcam-service/internal/domain/traffic"
)

// ComposeInput carries every fact the notification can mention.
// PriorViolations is the owner's count before the current violation was
// applied, so the repeat-offender warning reflects history only.
type ComposeInput struct {
	OwnerName       string
	LicensePlate    string
	SpeedLimit      int
	Location        *traffic.Location
	ExpiryDate      *time.Time
	PriorViolations int
}

// Composer builds the violation notification body. It is deterministic given
// its inputs and the clock; clause order is part of the contract.
type Composer struct {
	repeatThreshold int
	now             func() time.Time
}

func NewComposer(repeatThreshold int) *Composer {
	return &Composer{
		repeatThreshold: repeatThreshold,
		now:             time.Now,
	}
}

func (c *Composer) Compose(in ComposeInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Dear %s,\n", in.OwnerName)
	fmt.Fprintf(&b, "Traffic Violation Detected! License Plate: %s has violated the speed limit of %d km/h.",
		in.LicensePlate, in.SpeedLimit)

	if in.Location != nil {
		fmt.Fprintf(&b, "\nLocation: %s, %s, %s", in.Location.City, in.Location.Region, in.Location.Country)
	}

	fmt.Fprintf(&b, "\nDate and Time: %s", c.now().Format("2006-01-02 15:04:05"))

	if in.Location.HasCoordinates() {
		fmt.Fprintf(&b, "\nLatitude: %v, Longitude: %v", *in.Location.Latitude, *in.Location.Longitude)
	}

	if in.ExpiryDate != nil && beforeToday(*in.ExpiryDate, c.now()) {
		fmt.Fprintf(&b, "\nWarning: Your license has expired on %s.", in.ExpiryDate.Format("2006-01-02"))
	}

	if in.PriorViolations > c.repeatThreshold {
		b.WriteString("\nYour violations have reached the maximum limit!")
	}

	return b.String()
}

// beforeToday compares at date granularity: a license expiring today is not
// yet expired.
func beforeToday(expiry, now time.Time) bool {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	expiryDay := time.Date(expiry.Year(), expiry.Month(), expiry.Day(), 0, 0, 0, 0, now.Location())
	return expiryDay.Before(today)
}
