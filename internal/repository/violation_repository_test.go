package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"speedcam-service/internal/domain/traffic"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	sqlDB, err := database.DB()
	if err != nil {
		t.Fatalf("unwrap test database: %v", err)
	}
	// A single connection keeps every session on the same in-memory database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	statements := []string{
		`CREATE TABLE owners (
			license_plate TEXT PRIMARY KEY,
			owner_name TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			violations_count INTEGER NOT NULL DEFAULT 0 CHECK (violations_count >= 0),
			license_expiry_date DATETIME,
			city TEXT,
			region TEXT,
			country TEXT,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE violations (
			id TEXT PRIMARY KEY,
			license_plate TEXT NOT NULL REFERENCES owners (license_plate),
			message TEXT NOT NULL,
			ocr_confidence REAL,
			snapshot_url TEXT,
			raw_candidates TEXT,
			recorded_at DATETIME NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if err := database.Exec(stmt).Error; err != nil {
			t.Fatalf("create test schema: %v", err)
		}
	}
	return database
}

func seedOwner(t *testing.T, owners *OwnerRepository, plate, phone string) {
	t.Helper()
	err := owners.Create(context.Background(), &traffic.Owner{
		LicensePlate: plate,
		OwnerName:    "Asha Verma",
		Phone:        phone,
	})
	if err != nil {
		t.Fatalf("seed owner %s: %v", plate, err)
	}
}

func ownerCount(t *testing.T, db *gorm.DB, plate string) int {
	t.Helper()
	var count int
	err := db.Raw(`SELECT violations_count FROM owners WHERE license_plate = ?`, plate).Scan(&count).Error
	if err != nil {
		t.Fatalf("read owner count: %v", err)
	}
	return count
}

func violationRows(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var rows int64
	if err := db.Model(&violationRow{}).Count(&rows).Error; err != nil {
		t.Fatalf("count violations: %v", err)
	}
	return rows
}

func TestRecordViolationUnknownPlateLeavesTablesUntouched(t *testing.T) {
	db := newTestDB(t)
	owners := NewOwnerRepository(db, "+91")
	violations := NewViolationRepository(db, owners)
	seedOwner(t, owners, "MH12AB1234", "9876543210")

	_, err := violations.RecordViolation(context.Background(), traffic.ViolationDraft{
		LicensePlate: "ZZ99ZZ9999",
		Message:      "Speeding violation detected (over 50 km/h)",
	})
	if !errors.Is(err, traffic.ErrUnknownPlate) {
		t.Fatalf("RecordViolation error = %v, want traffic.ErrUnknownPlate", err)
	}

	if rows := violationRows(t, db); rows != 0 {
		t.Errorf("violations table has %d rows after rejected record, want 0", rows)
	}
	if count := ownerCount(t, db, "MH12AB1234"); count != 0 {
		t.Errorf("unrelated owner count = %d after rejected record, want 0", count)
	}
}

func TestRecordViolationAppendsAndIncrements(t *testing.T) {
	db := newTestDB(t)
	owners := NewOwnerRepository(db, "+91")
	violations := NewViolationRepository(db, owners)
	seedOwner(t, owners, "MH12AB1234", "9876543210")

	confidence := 0.91
	first, err := violations.RecordViolation(context.Background(), traffic.ViolationDraft{
		LicensePlate:  "MH12AB1234",
		Message:       "Speeding violation detected (over 50 km/h)",
		OCRConfidence: &confidence,
		RawCandidates: []traffic.OCRCandidate{
			{Text: "MH12AB1234", Confidence: 0.91},
			{Text: "MH12A81234", Confidence: 0.44},
		},
	})
	if err != nil {
		t.Fatalf("first RecordViolation: %v", err)
	}
	if first.PriorCount != 0 {
		t.Errorf("first receipt PriorCount = %d, want 0", first.PriorCount)
	}
	if first.ViolationID == uuid.Nil {
		t.Error("first receipt has zero violation ID")
	}

	second, err := violations.RecordViolation(context.Background(), traffic.ViolationDraft{
		LicensePlate: "MH12AB1234",
		Message:      "Speeding violation detected (over 50 km/h)",
	})
	if err != nil {
		t.Fatalf("second RecordViolation: %v", err)
	}
	if second.PriorCount != 1 {
		t.Errorf("second receipt PriorCount = %d, want 1", second.PriorCount)
	}

	if rows := violationRows(t, db); rows != 2 {
		t.Errorf("violations table has %d rows, want 2", rows)
	}
	if count := ownerCount(t, db, "MH12AB1234"); count != 2 {
		t.Errorf("owner count = %d, want 2", count)
	}
}

func TestRecordViolationConcurrentCallsCountEachOne(t *testing.T) {
	const workers = 8

	db := newTestDB(t)
	owners := NewOwnerRepository(db, "+91")
	violations := NewViolationRepository(db, owners)
	seedOwner(t, owners, "MH12AB1234", "9876543210")

	priors := make(chan int, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			receipt, err := violations.RecordViolation(context.Background(), traffic.ViolationDraft{
				LicensePlate: "MH12AB1234",
				Message:      "Speeding violation detected (over 50 km/h)",
			})
			if err != nil {
				t.Errorf("concurrent RecordViolation: %v", err)
				return
			}
			priors <- receipt.PriorCount
		}()
	}
	wg.Wait()
	close(priors)

	seen := make(map[int]bool, workers)
	for prior := range priors {
		if seen[prior] {
			t.Errorf("duplicate PriorCount %d across concurrent receipts", prior)
		}
		seen[prior] = true
		if prior < 0 || prior >= workers {
			t.Errorf("PriorCount %d outside [0, %d)", prior, workers)
		}
	}
	if len(seen) != workers {
		t.Fatalf("got %d receipts, want %d", len(seen), workers)
	}

	if count := ownerCount(t, db, "MH12AB1234"); count != workers {
		t.Errorf("owner count = %d after %d violations, want %d", count, workers, workers)
	}
	if rows := violationRows(t, db); rows != workers {
		t.Errorf("violations table has %d rows, want %d", rows, workers)
	}
}

func TestFindViolationsFiltersByPlate(t *testing.T) {
	db := newTestDB(t)
	owners := NewOwnerRepository(db, "+91")
	violations := NewViolationRepository(db, owners)
	seedOwner(t, owners, "MH12AB1234", "9876543210")
	seedOwner(t, owners, "KA01CD5678", "")

	for _, plate := range []string{"MH12AB1234", "KA01CD5678", "MH12AB1234"} {
		_, err := violations.RecordViolation(context.Background(), traffic.ViolationDraft{
			LicensePlate: plate,
			Message:      "Speeding violation detected (over 50 km/h)",
		})
		if err != nil {
			t.Fatalf("RecordViolation %s: %v", plate, err)
		}
	}

	plate := "MH12AB1234"
	found, err := violations.FindViolations(context.Background(), traffic.ViolationQuery{LicensePlate: &plate})
	if err != nil {
		t.Fatalf("FindViolations: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("FindViolations returned %d rows, want 2", len(found))
	}
	for _, v := range found {
		if v.LicensePlate != plate {
			t.Errorf("returned violation for plate %s, want %s", v.LicensePlate, plate)
		}
	}
}

func TestLookupNormalizesPhoneWithoutRewritingRow(t *testing.T) {
	db := newTestDB(t)
	owners := NewOwnerRepository(db, "+91")
	seedOwner(t, owners, "MH12AB1234", "9876543210")

	owner, err := owners.Lookup(context.Background(), "MH12AB1234")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if owner == nil {
		t.Fatal("Lookup returned nil for seeded plate")
	}
	if owner.Phone != "+919876543210" {
		t.Errorf("Lookup phone = %q, want %q", owner.Phone, "+919876543210")
	}

	var stored string
	err = db.Raw(`SELECT phone FROM owners WHERE license_plate = ?`, "MH12AB1234").Scan(&stored).Error
	if err != nil {
		t.Fatalf("read stored phone: %v", err)
	}
	if stored != "9876543210" {
		t.Errorf("stored phone = %q after Lookup, want %q untouched", stored, "9876543210")
	}
}
