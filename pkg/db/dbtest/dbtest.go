// Package dbtest opens isolated in-memory sqlite databases for tests.
package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/bintrack-backend/pkg/db/models"
)

// Open returns a fresh database with every model migrated. Each call gets its
// own shared-cache name so parallel tests never see each other's rows.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := "file:bintrack_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

// MustCreate inserts each value, failing the test on the first error.
func MustCreate(t testing.TB, conn *gorm.DB, values ...any) {
	t.Helper()
	for _, v := range values {
		if err := conn.Create(v).Error; err != nil {
			t.Fatalf("seed %T: %v", v, err)
		}
	}
}

// Int returns a pointer to v for nullable integer columns.
func Int(v int) *int { return &v }

// Float returns a pointer to v for nullable float columns.
func Float(v float64) *float64 { return &v }

// String returns a pointer to v for nullable text columns.
func String(v string) *string { return &v }
