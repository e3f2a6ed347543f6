package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"speedcam-service/internal/config"
	"speedcam-service/internal/domain/traffic"
	"speedcam-service/internal/notify"
	"speedcam-service/internal/utils"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

// OwnerDirectory is the read/write surface of the owner registry. Lookup
// returns nil for unregistered plates and always delivers E.164 phones.
type OwnerDirectory interface {
	Lookup(ctx context.Context, plate string) (*traffic.Owner, error)
	Create(ctx context.Context, owner *traffic.Owner) error
}

// ViolationStore appends violation records. RecordViolation is transactional
// per plate: the owner existence check, the insert and the count increment
// either all happen or none do.
type ViolationStore interface {
	RecordViolation(ctx context.Context, draft traffic.ViolationDraft) (*traffic.Receipt, error)
	FindViolations(ctx context.Context, q traffic.ViolationQuery) ([]traffic.Violation, error)
}

type Locator interface {
	Locate(ctx context.Context) (*traffic.Location, error)
}

type MessageGateway interface {
	Send(ctx context.Context, to, body string) (*traffic.Delivery, error)
}

type SnapshotStore interface {
	UploadSnapshot(ctx context.Context, plate string, ts time.Time, data []byte) (string, error)
}

// ViolationService drives one detection through store, enrich, compose and
// notify. All collaborators are injected; there are no ambient globals.
type ViolationService struct {
	owners     OwnerDirectory
	violations ViolationStore
	locator    Locator
	composer   *notify.Composer
	gateway    MessageGateway
	snapshots  SnapshotStore // nil when snapshot storage is not configured
	enforce    config.EnforcementConfig
	log        zerolog.Logger
}

func NewViolationService(
	owners OwnerDirectory,
	violations ViolationStore,
	locator Locator,
	composer *notify.Composer,
	gateway MessageGateway,
	snapshots SnapshotStore,
	enforce config.EnforcementConfig,
	log zerolog.Logger,
) *ViolationService {
	return &ViolationService{
		owners:     owners,
		violations: violations,
		locator:    locator,
		composer:   composer,
		gateway:    gateway,
		snapshots:  snapshots,
		enforce:    enforce,
		log:        log,
	}
}

// DetectionResult is the terminal state of one detection's processing.
type DetectionResult struct {
	LicensePlate string          `json:"license_plate"`
	ViolationID  uuid.UUID       `json:"violation_id"`
	Outcome      traffic.Outcome `json:"outcome"`
	DeliverySID  string          `json:"delivery_sid,omitempty"`
	SnapshotURL  string          `json:"snapshot_url,omitempty"`
}

// ProcessDetection runs the detection-to-notification sequence. Unknown
// plates discard the event and surface traffic.ErrUnknownPlate; a missing
// phone or a gateway failure keeps the stored violation and is reported in
// the result, not as an error. Store connectivity errors abort the rest of
// the sequence.
func (s *ViolationService) ProcessDetection(
	ctx context.Context,
	det *traffic.PlateDetection,
	frame *traffic.Frame,
	candidates []traffic.OCRCandidate,
) (*DetectionResult, error) {
	if det == nil || det.Text == "" {
		return nil, fmt.Errorf("%w: detection is required", ErrInvalidInput)
	}

	plate := utils.NormalizePlate(det.Text)
	if plate == "" {
		return nil, fmt.Errorf("%w: plate cannot be empty after normalization", ErrInvalidInput)
	}

	snapshotURL := s.uploadSnapshot(ctx, plate, frame)

	confidence := det.Confidence
	receipt, err := s.violations.RecordViolation(ctx, traffic.ViolationDraft{
		LicensePlate:  plate,
		Message:       fmt.Sprintf("Speeding violation detected (over %d km/h)", s.enforce.SpeedLimit),
		OCRConfidence: &confidence,
		SnapshotURL:   snapshotURL,
		RawCandidates: candidates,
	})
	if err != nil {
		if errors.Is(err, traffic.ErrUnknownPlate) {
			s.log.Warn().
				Str("plate", plate).
				Msg("violation attempted for unregistered plate, discarded")
			return &DetectionResult{LicensePlate: plate, Outcome: traffic.OutcomeDiscarded}, err
		}
		s.log.Error().Err(err).Str("plate", plate).Msg("failed to record violation")
		return nil, fmt.Errorf("record violation: %w", err)
	}

	s.log.Info().
		Str("violation_id", receipt.ViolationID.String()).
		Str("plate", plate).
		Int("prior_count", receipt.PriorCount).
		Msg("violation recorded")

	location, err := s.locator.Locate(ctx)
	if err != nil {
		// Degraded composition: the message simply omits the location and
		// GPS clauses.
		s.log.Warn().Err(err).Msg("geolocation unavailable")
		location = nil
	}

	owner, err := s.owners.Lookup(ctx, plate)
	if err != nil {
		s.log.Error().Err(err).Str("plate", plate).Msg("failed to load owner for notification")
		return nil, fmt.Errorf("lookup owner: %w", err)
	}
	if owner == nil {
		// The store just accepted this plate, so a missing owner means it
		// was deleted in between. The violation stays recorded.
		s.log.Error().Str("plate", plate).Msg("owner disappeared after violation was recorded")
		return &DetectionResult{
			LicensePlate: plate,
			ViolationID:  receipt.ViolationID,
			Outcome:      traffic.OutcomeDiscarded,
			SnapshotURL:  snapshotURL,
		}, nil
	}

	result := &DetectionResult{
		LicensePlate: plate,
		ViolationID:  receipt.ViolationID,
		SnapshotURL:  snapshotURL,
	}

	if owner.Phone == "" {
		s.log.Warn().
			Str("plate", plate).
			Str("owner", owner.OwnerName).
			Msg("no phone number registered, notification skipped")
		result.Outcome = traffic.OutcomeSkippedNoPhone
		return result, nil
	}

	body := s.composer.Compose(notify.ComposeInput{
		OwnerName:       owner.OwnerName,
		LicensePlate:    plate,
		SpeedLimit:      s.enforce.SpeedLimit,
		Location:        location,
		ExpiryDate:      owner.LicenseExpiryDate,
		PriorViolations: receipt.PriorCount,
	})

	delivery, err := s.gateway.Send(ctx, owner.Phone, body)
	if err != nil {
		// Non-fatal: the violation record remains, only delivery failed.
		s.log.Error().
			Err(err).
			Str("plate", plate).
			Str("phone", owner.Phone).
			Msg("failed to dispatch notification")
		result.Outcome = traffic.OutcomeDispatchFailed
		return result, nil
	}

	s.log.Info().
		Str("plate", plate).
		Str("phone", owner.Phone).
		Str("delivery_sid", delivery.SID).
		Str("delivery_status", delivery.Status).
		Msg("notification dispatched")

	result.Outcome = traffic.OutcomeNotified
	result.DeliverySID = delivery.SID
	return result, nil
}

func (s *ViolationService) uploadSnapshot(ctx context.Context, plate string, frame *traffic.Frame) string {
	if s.snapshots == nil || frame == nil || len(frame.Data) == 0 {
		return ""
	}
	url, err := s.snapshots.UploadSnapshot(ctx, plate, frame.CapturedAt, frame.Data)
	if err != nil {
		s.log.Warn().Err(err).Str("plate", plate).Msg("snapshot upload failed")
		return ""
	}
	return url
}

func (s *ViolationService) FindViolations(ctx context.Context, plateQuery *string, from, to *string, limit, offset int) ([]traffic.Violation, error) {
	q, err := buildViolationQuery(plateQuery, from, to)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	q.Limit = limit
	q.Offset = offset

	violations, err := s.violations.FindViolations(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("find violations: %w", err)
	}
	return violations, nil
}

// exportLimit caps XLSX exports; the paginated list endpoint is the way to
// walk larger ranges.
const exportLimit = 1000

func (s *ViolationService) ExportViolations(ctx context.Context, plateQuery *string, from, to *string) ([]traffic.Violation, error) {
	q, err := buildViolationQuery(plateQuery, from, to)
	if err != nil {
		return nil, err
	}
	q.Limit = exportLimit

	violations, err := s.violations.FindViolations(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("export violations: %w", err)
	}
	return violations, nil
}

func buildViolationQuery(plateQuery *string, from, to *string) (traffic.ViolationQuery, error) {
	q := traffic.ViolationQuery{}

	if plateQuery != nil {
		normalized := utils.NormalizePlate(*plateQuery)
		if normalized != "" {
			q.LicensePlate = &normalized
		}
	}

	if from != nil && *from != "" {
		t, err := time.Parse(time.RFC3339, *from)
		if err != nil {
			return q, fmt.Errorf("%w: invalid from time format", ErrInvalidInput)
		}
		q.From = &t
	}
	if to != nil && *to != "" {
		t, err := time.Parse(time.RFC3339, *to)
		if err != nil {
			return q, fmt.Errorf("%w: invalid to time format", ErrInvalidInput)
		}
		q.To = &t
	}

	return q, nil
}

func (s *ViolationService) GetOwner(ctx context.Context, plateQuery string) (*traffic.Owner, error) {
	plate := utils.NormalizePlate(plateQuery)
	if plate == "" {
		return nil, fmt.Errorf("%w: plate query cannot be empty", ErrInvalidInput)
	}

	owner, err := s.owners.Lookup(ctx, plate)
	if err != nil {
		return nil, fmt.Errorf("lookup owner: %w", err)
	}
	if owner == nil {
		return nil, fmt.Errorf("%w: owner for plate %s", ErrNotFound, plate)
	}
	return owner, nil
}

// CreateOwner registers an owner record through the admin surface. The
// violation pipeline never creates owners.
func (s *ViolationService) CreateOwner(ctx context.Context, owner *traffic.Owner) error {
	if owner.OwnerName == "" {
		return fmt.Errorf("%w: owner_name is required", ErrInvalidInput)
	}
	plate := utils.NormalizePlate(owner.LicensePlate)
	if plate == "" {
		return fmt.Errorf("%w: license_plate is required", ErrInvalidInput)
	}
	owner.LicensePlate = plate

	if err := s.owners.Create(ctx, owner); err != nil {
		s.log.Error().Err(err).Str("plate", plate).Msg("failed to create owner")
		return fmt.Errorf("create owner: %w", err)
	}

	s.log.Info().Str("plate", plate).Str("owner", owner.OwnerName).Msg("owner registered")
	return nil
}
