// Package dbtest opens throwaway sqlite databases with the full schema for
// repository and service tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/mediconnect-backend/pkg/db/models"
	"github.com/angelmondragon/mediconnect-backend/pkg/enums"
)

// Open returns an isolated in-memory database. A single pooled connection
// keeps concurrent tests from tripping sqlite's writer lock.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := "file:mc_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return conn
}

func MustCreateMedication(t testing.TB, db *gorm.DB, stock int) *models.Medication {
	t.Helper()
	med := &models.Medication{
		ID:    uuid.New(),
		Code:  fmt.Sprintf("MED-%s", uuid.NewString()[:8]),
		Name:  "Amoxicillin 500mg",
		Stock: stock,
	}
	if err := db.Create(med).Error; err != nil {
		t.Fatalf("create medication: %v", err)
	}
	return med
}

func MustCreatePatient(t testing.TB, db *gorm.DB) *models.Patient {
	t.Helper()
	patient := &models.Patient{
		ID:       uuid.New(),
		IDNumber: fmt.Sprintf("ID-%s", uuid.NewString()[:8]),
		Name:     "Ana Torres",
	}
	if err := db.Create(patient).Error; err != nil {
		t.Fatalf("create patient: %v", err)
	}
	return patient
}

func MustCreateRequest(t testing.TB, db *gorm.DB, patientID, medicationID uuid.UUID, qty int, status enums.RequestStatus) *models.MedicationRequest {
	t.Helper()
	req := &models.MedicationRequest{
		ID:           uuid.New(),
		PatientID:    patientID,
		MedicationID: medicationID,
		Qty:          qty,
		Status:       status,
	}
	if err := db.Create(req).Error; err != nil {
		t.Fatalf("create request: %v", err)
	}
	return req
}

// StockOf reads the current counter straight from the table.
func StockOf(t testing.TB, db *gorm.DB, medicationID uuid.UUID) int {
	t.Helper()
	var med models.Medication
	if err := db.First(&med, "id = ?", medicationID).Error; err != nil {
		t.Fatalf("load medication: %v", err)
	}
	return med.Stock
}
