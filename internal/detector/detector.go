package detector

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"speedcam-service/internal/domain/traffic"
)

// OCRClient is the external text-recognition capability. It returns the raw
// candidate set for a frame in no guaranteed order.
type OCRClient interface {
	ReadText(ctx context.Context, frame *traffic.Frame) ([]traffic.OCRCandidate, error)
}

type PlateDetector struct {
	ocr       OCRClient
	threshold float64
	log       zerolog.Logger
}

func NewPlateDetector(ocr OCRClient, threshold float64, log zerolog.Logger) *PlateDetector {
	return &PlateDetector{
		ocr:       ocr,
		threshold: threshold,
		log:       log,
	}
}

// Detect runs OCR over a frame and selects the first candidate whose
// confidence is strictly above the threshold, in the engine's scan order.
// Remaining candidates are ignored for this frame; the full set is still
// returned so callers can persist it for audit. A nil detection with a nil
// error means nothing cleared the threshold, which is the expected steady
// state and not an error.
func (d *PlateDetector) Detect(ctx context.Context, frame *traffic.Frame) (*traffic.PlateDetection, []traffic.OCRCandidate, error) {
	candidates, err := d.ocr.ReadText(ctx, frame)
	if err != nil {
		return nil, nil, err
	}

	for _, c := range candidates {
		if c.Confidence <= d.threshold {
			continue
		}
		text := strings.TrimSpace(c.Text)
		if text == "" {
			continue
		}

		d.log.Info().
			Str("plate", text).
			Float64("confidence", c.Confidence).
			Int64("frame_seq", frame.Seq).
			Msg("license plate detected")

		return &traffic.PlateDetection{
			Text:       text,
			Confidence: c.Confidence,
			Box:        c.Box,
		}, candidates, nil
	}

	d.log.Debug().
		Int("candidates", len(candidates)).
		Int64("frame_seq", frame.Seq).
		Msg("no candidate above confidence threshold")

	return nil, candidates, nil
}
