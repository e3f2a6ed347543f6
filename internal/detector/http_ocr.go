package detector

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"speedcam-service/internal/domain/traffic"
)

// HTTPOCRClient talks to an OCR sidecar over HTTP. The sidecar wraps the
// actual recognition engine; this client only moves frames in and candidate
// tuples out.
type HTTPOCRClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPOCRClient(baseURL string, timeout time.Duration) *HTTPOCRClient {
	return &HTTPOCRClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type ocrRequest struct {
	ImageBase64 string `json:"image_base64"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
}

type ocrResponse struct {
	Candidates []traffic.OCRCandidate `json:"candidates"`
}

func (c *HTTPOCRClient) ReadText(ctx context.Context, frame *traffic.Frame) ([]traffic.OCRCandidate, error) {
	payload, err := json.Marshal(ocrRequest{
		ImageBase64: base64.StdEncoding.EncodeToString(frame.Data),
		Width:       frame.Width,
		Height:      frame.Height,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal ocr request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/readtext", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build ocr request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ocr request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ocr service returned %d: %s", resp.StatusCode, string(body))
	}

	var out ocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode ocr response: %w", err)
	}
	return out.Candidates, nil
}
