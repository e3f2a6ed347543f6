package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"speedcam-service/internal/domain/traffic"
)

// IPLocator resolves the enforcement point's approximate location from its
// network origin via an ipinfo-style JSON endpoint. Results are ephemeral;
// callers fetch fresh per violation.
type IPLocator struct {
	endpoint string
	client   *http.Client
}

func NewIPLocator(endpoint string, timeout time.Duration) *IPLocator {
	return &IPLocator{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type ipinfoResponse struct {
	Loc     string `json:"loc"`
	City    string `json:"city"`
	Region  string `json:"region"`
	Country string `json:"country"`
}

func (l *IPLocator) Locate(ctx context.Context) (*traffic.Location, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build geolocation request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geolocation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geolocation service returned %d", resp.StatusCode)
	}

	var info ipinfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode geolocation response: %w", err)
	}

	loc := &traffic.Location{
		City:    info.City,
		Region:  info.Region,
		Country: info.Country,
	}
	if lat, lon, ok := parseLoc(info.Loc); ok {
		loc.Latitude = &lat
		loc.Longitude = &lon
	}
	return loc, nil
}

// parseLoc splits ipinfo's "lat,lon" field. Coordinates are optional; a
// malformed field just means no GPS clause in the notification.
func parseLoc(loc string) (lat, lon float64, ok bool) {
	parts := strings.Split(strings.TrimSpace(loc), ",")
	if len(parts) != 2 {
		return 0, 0, false
	}
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lon, errLon := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errLat != nil || errLon != nil {
		return 0, 0, false
	}
	return lat, lon, true
}
