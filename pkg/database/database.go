package database

import (
	"errors"
	"fmt"
	"lesson_bundle_backend/internal/config"
	"lesson_bundle_backend/internal/model"
	"lesson_bundle_backend/internal/util"
	"log"
	"os"

	"gopkg.in/yaml.v3"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Models lists every table owned by this service, in migration order.
func Models() []interface{} {
	return []interface{}{
		&model.Resource{},
		&model.LessonNote{},
		&model.LearnerNote{},
		&model.Quiz{},
		&model.Question{},
		&model.Option{},
		&model.Bundle{},
		&model.BundleResource{},
		&model.QuizAttempt{},
		&model.Badge{},
		&model.StudentBadge{},
		&model.NoteView{},
	}
}

func dialector(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", util.DatabaseMySQL:
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
			cfg.User,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.DBName,
			cfg.Charset,
			cfg.ParseTime,
		)
		return mysql.Open(dsn), nil
	case util.DatabasePostgres:
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
		return postgres.Open(dsn), nil
	case util.DatabaseSQLite:
		path := cfg.Path
		if path == "" {
			path = "lesson_bundle.db"
		}
		return sqlite.Open(path), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func InitDB(cfg *config.DatabaseConfig, debug bool) (*gorm.DB, error) {
	d, err := dialector(cfg)
	if err != nil {
		return nil, err
	}

	logLevel := logger.Warn
	if debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(d, &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,

		// BundleService.DeleteBundle deletes in dependency order
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}

	if cfg.Driver == util.DatabaseSQLite {
		// sqlite allows a single writer
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}

	log.Println("Database connection established")
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return err
	}
	log.Println("Database migration completed")
	return nil
}

type badgeCatalog struct {
	Badges []model.Badge `yaml:"badges"`
}

// LoadBadgeCatalog reads the badge catalog file.
func LoadBadgeCatalog(path string) ([]model.Badge, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var catalog badgeCatalog
	if err := yaml.Unmarshal(raw, &catalog); err != nil {
		return nil, fmt.Errorf("parse badge catalog %s: %w", path, err)
	}
	if len(catalog.Badges) == 0 {
		return nil, errors.New("badge catalog is empty")
	}
	return catalog.Badges, nil
}

// SeedBadges inserts catalog entries that are not present yet, keyed by name.
func SeedBadges(db *gorm.DB, badges []model.Badge) error {
	for i := range badges {
		b := badges[i]
		if b.Name == "" {
			return errors.New("badge catalog entry without a name")
		}
		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"description", "icon", "updated_at"}),
		}).Create(&b).Error
		if err != nil {
			return fmt.Errorf("seed badge %q: %w", b.Name, err)
		}
	}
	return nil
}
