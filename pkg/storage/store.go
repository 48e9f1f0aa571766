// Package storage persists a log of flights in SQLite through gorm.
package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// MemoryDSN is the shared in-memory database used when no path is given.
const MemoryDSN = "file::memory:?cache=shared"

// Flight outcomes.
const (
	OutcomeInProgress = "in_progress"
	OutcomeDestroyed  = "destroyed"
	OutcomeLanded     = "landed"
	OutcomeOrbit      = "orbit"
	OutcomeAborted    = "aborted"
)

// DefaultListLimit caps ListFlights when no limit is given.
const DefaultListLimit = 50

// ErrFlightNotFound is returned when no flight has the requested ID.
var ErrFlightNotFound = errors.New("flight not found")

// FlightRecord is one flight. Apoapsis is nil on an escape trajectory.
type FlightRecord struct {
	ID          string     `json:"id" gorm:"primaryKey;size:36"`
	Rocket      string     `json:"rocket" gorm:"size:64"`
	Outcome     string     `json:"outcome" gorm:"size:16;index"`
	Reason      string     `json:"reason,omitempty" gorm:"size:255"`
	StartedAt   time.Time  `json:"started_at" gorm:"index"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	MissionTime float64    `json:"mission_time"`

	MaxAltitude   float64  `json:"max_altitude"`
	MaxSpeed      float64  `json:"max_speed"`
	FinalAltitude float64  `json:"final_altitude"`
	Apoapsis      *float64 `json:"apoapsis"`
	Periapsis     *float64 `json:"periapsis"`

	Ignitions int `json:"ignitions"`
	Stagings  int `json:"stagings"`
	LogLines  int `json:"log_lines"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SetOrbit stores apoapsis and periapsis altitudes, dropping non-finite values.
func (r *FlightRecord) SetOrbit(apoapsis, periapsis float64) {
	r.Apoapsis = finite(apoapsis)
	r.Periapsis = finite(periapsis)
}

func finite(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

// Store is the flight log database.
type Store struct {
	db *gorm.DB
}

// Open opens or creates the database at path and migrates the schema. An
// empty path opens MemoryDSN.
func Open(path string) (*Store, error) {
	dsn := path
	if dsn == "" {
		dsn = MemoryDSN
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open flight log %q: %w", dsn, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("flight log handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&FlightRecord{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate flight log: %w", err)
	}
	return &Store{db: db}, nil
}

// SaveFlight inserts the record or replaces every column but created_at.
func (s *Store) SaveFlight(ctx context.Context, rec *FlightRecord) error {
	if rec == nil || rec.ID == "" {
		return errors.New("flight record needs an id")
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(rec).Error
	if err != nil {
		return fmt.Errorf("save flight %s: %w", rec.ID, err)
	}
	return nil
}

// GetFlight loads one flight.
func (s *Store) GetFlight(ctx context.Context, id string) (*FlightRecord, error) {
	var rec FlightRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrFlightNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get flight %s: %w", id, err)
	}
	return &rec, nil
}

// ListFlights returns up to limit flights, newest first. A non-positive
// limit means DefaultListLimit.
func (s *Store) ListFlights(ctx context.Context, limit int) ([]FlightRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	var recs []FlightRecord
	err := s.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list flights: %w", err)
	}
	return recs, nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
