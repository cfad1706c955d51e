// Package store persists accounts and letters in a relational database via
// GORM. The SQLite driver is pure Go, so tests run against ":memory:" without
// cgo.
package store

import (
	"errors"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ebeckert/letterwell/internal/crypto"
	"github.com/ebeckert/letterwell/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("record not found")

// maxOpenConns bounds the shared connection pool.
const maxOpenConns = 5

// Store wraps the database handle. Google OAuth tokens pass through enc on
// the way in and out so they are never stored in the clear.
type Store struct {
	db  *gorm.DB
	enc crypto.Encryptor
}

// Open connects to the SQLite database at path, runs migrations, and bounds
// the connection pool.
func Open(path string, enc crypto.Encryptor) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)

	if err := db.AutoMigrate(&model.User{}, &model.Letter{}); err != nil {
		return nil, err
	}

	return &Store{db: db, enc: enc}, nil
}

// NormalizeEmail lower-cases and trims an email address. All lookups and
// writes go through this so the unique index is effectively case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
