package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"speedcam-service/internal/domain/traffic"
	"speedcam-service/internal/utils"
)

type ownerRow struct {
	LicensePlate      string `gorm:"primaryKey"`
	OwnerName         string `gorm:"not null"`
	Phone             string `gorm:"not null"`
	ViolationsCount   int    `gorm:"not null"`
	LicenseExpiryDate *time.Time
	City              *string
	Region            *string
	Country           *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (ownerRow) TableName() string {
	return "owners"
}

type OwnerRepository struct {
	db                 *gorm.DB
	defaultCountryCode string
}

func NewOwnerRepository(db *gorm.DB, defaultCountryCode string) *OwnerRepository {
	return &OwnerRepository{db: db, defaultCountryCode: defaultCountryCode}
}

// Lookup returns the owner record for a plate, or nil when the plate is not
// registered. The delivered phone is E.164-normalized; the stored value is
// never rewritten by reads.
func (r *OwnerRepository) Lookup(ctx context.Context, plate string) (*traffic.Owner, error) {
	var row ownerRow
	err := r.db.WithContext(ctx).Where("license_plate = ?", plate).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup owner: %w", err)
	}
	return r.toOwner(&row), nil
}

func (r *OwnerRepository) Create(ctx context.Context, owner *traffic.Owner) error {
	row := ownerRow{
		LicensePlate:      owner.LicensePlate,
		OwnerName:         owner.OwnerName,
		Phone:             owner.Phone,
		ViolationsCount:   owner.ViolationsCount,
		LicenseExpiryDate: owner.LicenseExpiryDate,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
	if owner.City != "" {
		row.City = &owner.City
	}
	if owner.Region != "" {
		row.Region = &owner.Region
	}
	if owner.Country != "" {
		row.Country = &owner.Country
	}

	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create owner: %w", err)
	}
	return nil
}

// incrementViolations applies a relative "+1" to the owner's count inside the
// given transaction and returns the new value. A read-modify-write here would
// lose updates under concurrent violations for the same plate, so the
// increment stays in SQL.
func (r *OwnerRepository) incrementViolations(tx *gorm.DB, plate string) (int, error) {
	var newCount int
	res := tx.Raw(
		`UPDATE owners
		 SET violations_count = violations_count + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE license_plate = ?
		 RETURNING violations_count`,
		plate,
	).Scan(&newCount)
	if res.Error != nil {
		return 0, fmt.Errorf("increment violations: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, traffic.ErrUnknownPlate
	}
	return newCount, nil
}

func (r *OwnerRepository) toOwner(row *ownerRow) *traffic.Owner {
	owner := &traffic.Owner{
		LicensePlate:      row.LicensePlate,
		OwnerName:         row.OwnerName,
		Phone:             utils.NormalizePhone(row.Phone, r.defaultCountryCode),
		ViolationsCount:   row.ViolationsCount,
		LicenseExpiryDate: row.LicenseExpiryDate,
	}
	if row.City != nil {
		owner.City = *row.City
	}
	if row.Region != nil {
		owner.Region = *row.Region
	}
	if row.Country != nil {
		owner.Country = *row.Country
	}
	return owner
}
