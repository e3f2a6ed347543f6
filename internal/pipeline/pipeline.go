package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"speedcam-service/internal/domain/traffic"
	"speedcam-service/internal/service"
)

// FrameSource yields frames on demand. Next returns an error wrapping
// traffic.ErrStreamClosed at end of stream or on an unrecoverable read
// error; both are fatal to the loop. Close must be safe to call on every
// exit path.
type FrameSource interface {
	Next(ctx context.Context) (*traffic.Frame, error)
	Close() error
}

type Detector interface {
	Detect(ctx context.Context, frame *traffic.Frame) (*traffic.PlateDetection, []traffic.OCRCandidate, error)
}

type Processor interface {
	ProcessDetection(ctx context.Context, det *traffic.PlateDetection, frame *traffic.Frame, candidates []traffic.OCRCandidate) (*service.DetectionResult, error)
}

// Pipeline decouples capture, detection and processing into stages joined by
// bounded channels, so frame acquisition is not blocked on store or gateway
// latency. Detection and processing each run on a single goroutine, which
// keeps violations for the same plate in frame order.
type Pipeline struct {
	source    FrameSource
	detector  Detector
	processor Processor
	queueSize int
	log       zerolog.Logger
}

func New(source FrameSource, detector Detector, processor Processor, queueSize int, log zerolog.Logger) *Pipeline {
	if queueSize <= 0 {
		queueSize = 8
	}
	return &Pipeline{
		source:    source,
		detector:  detector,
		processor: processor,
		queueSize: queueSize,
		log:       log,
	}
}

type detected struct {
	frame      *traffic.Frame
	detection  *traffic.PlateDetection
	candidates []traffic.OCRCandidate
}

// Run drives the loop until the frame source is exhausted or ctx is
// cancelled. The source is released on every exit path. A frame-source
// failure is returned to the caller; a cancelled context is a clean stop.
func (p *Pipeline) Run(ctx context.Context) error {
	defer func() {
		if err := p.source.Close(); err != nil {
			p.log.Error().Err(err).Msg("failed to close frame source")
		}
	}()

	frames := make(chan *traffic.Frame, p.queueSize)
	detections := make(chan detected, p.queueSize)

	var captureErr error
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(frames)
		captureErr = p.capture(ctx, frames)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(detections)
		p.detect(ctx, frames, detections)
	}()

	p.process(ctx, detections)
	wg.Wait()

	if captureErr != nil {
		p.log.Error().Err(captureErr).Msg("frame capture stopped")
		return captureErr
	}
	p.log.Info().Msg("pipeline stopped")
	return nil
}

func (p *Pipeline) capture(ctx context.Context, frames chan<- *traffic.Frame) error {
	for {
		frame, err := p.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		select {
		case frames <- frame:
		case <-ctx.Done():
			return nil
		}
	}
}

func (p *Pipeline) detect(ctx context.Context, frames <-chan *traffic.Frame, detections chan<- detected) {
	for frame := range frames {
		det, candidates, err := p.detector.Detect(ctx, frame)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.Error().Err(err).Int64("frame_seq", frame.Seq).Msg("ocr failed, skipping frame")
			continue
		}
		if det == nil {
			// Expected steady state, nothing cleared the threshold.
			continue
		}

		select {
		case detections <- detected{frame: frame, detection: det, candidates: candidates}:
		case <-ctx.Done():
			return
		}
	}
}

func (p *Pipeline) process(ctx context.Context, detections <-chan detected) {
	for d := range detections {
		result, err := p.processor.ProcessDetection(ctx, d.detection, d.frame, d.candidates)
		if err != nil {
			if errors.Is(err, traffic.ErrUnknownPlate) {
				// Already logged and discarded by the processor.
				continue
			}
			if ctx.Err() != nil {
				return
			}
			p.log.Error().Err(err).Int64("frame_seq", d.frame.Seq).Msg("frame processing aborted")
			continue
		}

		p.log.Info().
			Str("plate", result.LicensePlate).
			Str("outcome", string(result.Outcome)).
			Int64("frame_seq", d.frame.Seq).
			Msg("frame processed")
	}
}
