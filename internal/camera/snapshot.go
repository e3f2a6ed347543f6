package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	"speedcam-service/internal/domain/traffic"
)

// SnapshotSource pulls frames from a camera's HTTP still-image endpoint
// (e.g. Hikvision ISAPI /Streaming/channels/101/picture) at a fixed
// interval. A failed read ends the stream; the pipeline treats that as a
// capture failure.
type SnapshotSource struct {
	url      string
	interval time.Duration
	client   *http.Client
	seq      int64
}

func NewSnapshotSource(url string, interval, timeout time.Duration) *SnapshotSource {
	return &SnapshotSource{
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: timeout},
	}
}

func (s *SnapshotSource) Next(ctx context.Context) (*traffic.Frame, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(s.interval):
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build snapshot request: %v", traffic.ErrStreamClosed, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: snapshot request failed: %v", traffic.ErrStreamClosed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: camera returned %d", traffic.ErrStreamClosed, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read snapshot body: %v", traffic.ErrStreamClosed, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty snapshot", traffic.ErrStreamClosed)
	}

	s.seq++
	frame := &traffic.Frame{
		Data:       data,
		Seq:        s.seq,
		CapturedAt: time.Now(),
	}

	// Dimensions are informational; an undecodable header is not fatal as
	// long as the OCR sidecar accepts the bytes.
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		frame.Width = cfg.Width
		frame.Height = cfg.Height
	}

	return frame, nil
}

func (s *SnapshotSource) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
