package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"speedcam-service/internal/domain/traffic"
)

// ErrNotConfigured means SMS credentials are absent; dispatches are skipped
// and logged instead of failing the pipeline.
var ErrNotConfigured = errors.New("sms gateway is not configured")

// TwilioGateway dispatches notifications through the Twilio Messages REST
// API.
type TwilioGateway struct {
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string
	client     *http.Client
}

func NewTwilioGateway(accountSID, authToken, fromNumber, baseURL string) *TwilioGateway {
	return &TwilioGateway{
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

func (g *TwilioGateway) configured() bool {
	return g.accountSID != "" && g.authToken != "" && g.fromNumber != ""
}

type twilioResponse struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Send delivers body to an E.164 destination and returns the delivery SID
// and status.
func (g *TwilioGateway) Send(ctx context.Context, to, body string) (*traffic.Delivery, error) {
	if !g.configured() {
		return nil, ErrNotConfigured
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", g.fromNumber)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", g.baseURL, g.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build sms request: %w", err)
	}
	req.SetBasicAuth(g.accountSID, g.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sms request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return nil, fmt.Errorf("read sms response: %w", err)
	}

	var out twilioResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode sms response (%d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode, out.Message)
	}

	return &traffic.Delivery{SID: out.SID, Status: out.Status}, nil
}
