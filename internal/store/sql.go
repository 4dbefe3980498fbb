package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Record is the row layout of the SQL store.
type Record struct {
	Key   string `gorm:"primaryKey;size:256"`
	Value string `gorm:"type:text;not null"`
}

// SQL is a Store backed by SQLite through gorm. The driver is pure Go, so no
// cgo toolchain is needed.
type SQL struct {
	db *gorm.DB
}

var _ Store = (*SQL)(nil)

// OpenSQL opens (creating if needed) the SQLite database at path and migrates
// the schema. ":memory:" gives a private in-memory database.
func OpenSQL(path string) (*SQL, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite %s: %w", path, err)
	}
	// One connection: SQLite allows a single writer, and every pooled
	// connection to :memory: would see its own empty database.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &SQL{db: db}, nil
}

// Get returns the stored value.
func (s *SQL) Get(key string) (string, error) {
	var r Record
	err := s.db.Where(map[string]any{"key": key}).Take(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return r.Value, nil
}

// Put upserts the record and reports whether it already existed.
func (s *SQL) Put(key, value string) (bool, error) {
	var existed bool
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&Record{}).Where(map[string]any{"key": key}).Count(&n).Error; err != nil {
			return err
		}
		existed = n > 0
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value"}),
		}).Create(&Record{Key: key, Value: value}).Error
	})
	if err != nil {
		return false, err
	}
	return existed, nil
}

// Delete removes the record.
func (s *SQL) Delete(key string) error {
	res := s.db.Where(map[string]any{"key": key}).Delete(&Record{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *SQL) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
