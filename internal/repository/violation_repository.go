package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"speedcam-service/internal/domain/traffic"
)

type violationRow struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	LicensePlate  string    `gorm:"not null"`
	Message       string    `gorm:"not null"`
	OCRConfidence *float64
	SnapshotURL   *string
	RawCandidates datatypes.JSON `gorm:"type:jsonb"`
	RecordedAt    time.Time      `gorm:"not null"`
}

func (violationRow) TableName() string {
	return "violations"
}

type ViolationRepository struct {
	db     *gorm.DB
	owners *OwnerRepository
}

func NewViolationRepository(db *gorm.DB, owners *OwnerRepository) *ViolationRepository {
	return &ViolationRepository{db: db, owners: owners}
}

// RecordViolation appends a violation row and bumps the owner's count in one
// transaction. Unknown plates fail with traffic.ErrUnknownPlate and leave
// both tables untouched. The returned receipt carries the count as it stood
// before this violation's increment.
func (r *ViolationRepository) RecordViolation(ctx context.Context, draft traffic.ViolationDraft) (*traffic.Receipt, error) {
	row := violationRow{
		ID:           uuid.New(),
		LicensePlate: draft.LicensePlate,
		Message:      draft.Message,
		RecordedAt:   time.Now(),
	}
	if draft.OCRConfidence != nil {
		row.OCRConfidence = draft.OCRConfidence
	}
	if draft.SnapshotURL != "" {
		row.SnapshotURL = &draft.SnapshotURL
	}
	if len(draft.RawCandidates) > 0 {
		raw, err := json.Marshal(draft.RawCandidates)
		if err != nil {
			return nil, fmt.Errorf("marshal raw candidates: %w", err)
		}
		row.RawCandidates = datatypes.JSON(raw)
	}

	var priorCount int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exists ownerRow
		if err := tx.Select("license_plate").Where("license_plate = ?", draft.LicensePlate).First(&exists).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return traffic.ErrUnknownPlate
			}
			return fmt.Errorf("check owner: %w", err)
		}

		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert violation: %w", err)
		}

		newCount, err := r.owners.incrementViolations(tx, draft.LicensePlate)
		if err != nil {
			return err
		}
		priorCount = newCount - 1
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &traffic.Receipt{
		ViolationID: row.ID,
		PriorCount:  priorCount,
		RecordedAt:  row.RecordedAt,
	}, nil
}

func (r *ViolationRepository) FindViolations(ctx context.Context, q traffic.ViolationQuery) ([]traffic.Violation, error) {
	query := r.db.WithContext(ctx).Model(&violationRow{})

	if q.LicensePlate != nil {
		query = query.Where("license_plate = ?", *q.LicensePlate)
	}
	if q.From != nil {
		query = query.Where("recorded_at >= ?", *q.From)
	}
	if q.To != nil {
		query = query.Where("recorded_at <= ?", *q.To)
	}

	query = query.Order("recorded_at DESC")

	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	if q.Offset > 0 {
		query = query.Offset(q.Offset)
	}

	var rows []violationRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find violations: %w", err)
	}

	result := make([]traffic.Violation, 0, len(rows))
	for _, row := range rows {
		result = append(result, traffic.Violation{
			ID:            row.ID,
			LicensePlate:  row.LicensePlate,
			Message:       row.Message,
			OCRConfidence: row.OCRConfidence,
			SnapshotURL:   row.SnapshotURL,
			RecordedAt:    row.RecordedAt,
		})
	}
	return result, nil
}
