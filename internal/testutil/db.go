// Package testutil holds helpers shared by package tests.
package testutil

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"lesson_bundle_backend/internal/model"
	"lesson_bundle_backend/pkg/database"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// OpenDB returns a migrated in-memory SQLite database private to the test,
// with the default badge catalog seeded.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,

		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := database.SeedBadges(db, DefaultBadges()); err != nil {
		t.Fatalf("seed badges: %v", err)
	}
	return db
}

func DefaultBadges() []model.Badge {
	return []model.Badge{
		{Name: model.BadgeFirstStep, Description: "first attempt"},
		{Name: model.BadgeQuizMaster, Description: "five attempts"},
		{Name: model.BadgeHighAchiever, Description: "perfect score"},
	}
}

var ErrInjected = errors.New("injected failure")

// FailCreate makes every INSERT into table fail until the returned func is
// called.
func FailCreate(t *testing.T, db *gorm.DB, table string) func() {
	t.Helper()
	return register(t, db.Callback().Create().Before("gorm:create"), "test:fail_create_"+table, table)
}

// FailDelete makes every DELETE from table fail until the returned func is
// called.
func FailDelete(t *testing.T, db *gorm.DB, table string) func() {
	t.Helper()
	return register(t, db.Callback().Delete().Before("gorm:delete"), "test:fail_delete_"+table, table)
}

type callbackRegistrar interface {
	Register(name string, fn func(*gorm.DB)) error
}

func register(t *testing.T, cb callbackRegistrar, name, table string) func() {
	var mu sync.Mutex
	active := true
	err := cb.Register(name, func(tx *gorm.DB) {
		mu.Lock()
		defer mu.Unlock()
		if active && tx.Statement.Table == table {
			tx.AddError(fmt.Errorf("%w: %s", ErrInjected, table))
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}
	disable := func() {
		mu.Lock()
		active = false
		mu.Unlock()
	}
	t.Cleanup(disable)
	return disable
}

// CountRows returns the number of rows in each table.
func CountRows(t *testing.T, db *gorm.DB, tables ...string) map[string]int64 {
	t.Helper()
	out := make(map[string]int64, len(tables))
	for _, table := range tables {
		var n int64
		if err := db.Table(table).Count(&n).Error; err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		out[table] = n
	}
	return out
}
