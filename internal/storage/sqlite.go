// Package storage persists server records in SQLite and applies embedded schema migrations.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Driver sqlite

	"github.com/woozymasta/gamestatus/internal/models"
)

var (
	// ErrDuplicate is returned when a record with the same protocol, address and port exists.
	ErrDuplicate = errors.New("server record already exists")

	// ErrInvalidRecord wraps validation failures of client supplied fields.
	ErrInvalidRecord = errors.New("invalid server record")
)

const recordColumns = `id, name, address, protocol, port, created_at, updated_at`

// Repository manages the SQLite database connection.
type Repository struct {
	db *sql.DB
}

// New initializes a new SQLite connection, sets connection pool parameters, and runs migrations.
func New(dbPath string) (*Repository, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// CreateRecord validates rec, assigns a new id and timestamps, and stores it.
func (r *Repository) CreateRecord(rec models.ServerRecord) (models.ServerRecord, error) {
	if err := normalize(&rec); err != nil {
		return rec, err
	}
	if rec.Name == "" {
		rec.Name = rec.Address
	}

	now := time.Now().UTC()
	rec.ID = uuid.NewString()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	_, err := r.db.Exec(`
		INSERT INTO servers (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Name, rec.Address, string(rec.Protocol), rec.Port, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return rec, mapConstraint(err)
	}

	return rec, nil
}

// GetRecord returns the record with id, or nil when it does not exist.
func (r *Repository) GetRecord(id string) (*models.ServerRecord, error) {
	row := r.db.QueryRow(`SELECT `+recordColumns+` FROM servers WHERE id = ?`, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, err
	}

	return &rec, nil
}

// ListRecords returns every record, oldest first.
func (r *Repository) ListRecords() ([]models.ServerRecord, error) {
	return r.ListByProtocol("")
}

// ListByProtocol returns records with the given protocol. An empty protocol matches all.
func (r *Repository) ListByProtocol(protocol models.Protocol) ([]models.ServerRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM servers WHERE 1=1`
	var args []any

	if protocol != "" {
		query += ` AND protocol = ?`
		args = append(args, string(protocol))
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	records := []models.ServerRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// UpdateRecord overwrites the mutable fields of an existing record.
// It reports false when no record with that id exists.
func (r *Repository) UpdateRecord(rec models.ServerRecord) (bool, error) {
	if err := normalize(&rec); err != nil {
		return false, err
	}

	res, err := r.db.Exec(`
		UPDATE servers SET name = ?, address = ?, protocol = ?, port = ?, updated_at = ?
		WHERE id = ?`,
		rec.Name, rec.Address, string(rec.Protocol), rec.Port, time.Now().UTC(), rec.ID,
	)
	if err != nil {
		return false, mapConstraint(err)
	}

	n, err := res.RowsAffected()
	return n > 0, err
}

// SetDetected persists the outcome of protocol auto detection. Records that
// no longer use auto detection are left untouched.
func (r *Repository) SetDetected(id string, protocol models.Protocol, port int) (bool, error) {
	if !protocol.Queryable() {
		return false, fmt.Errorf("%w: %q", models.ErrUnknownProtocol, protocol)
	}

	res, err := r.db.Exec(`
		UPDATE servers SET protocol = ?, port = ?, updated_at = ?
		WHERE id = ? AND protocol = ?`,
		string(protocol), port, time.Now().UTC(), id, string(models.ProtocolAuto),
	)
	if err != nil {
		return false, mapConstraint(err)
	}

	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteRecord removes the record with id and reports whether it existed.
func (r *Repository) DeleteRecord(id string) (bool, error) {
	res, err := r.db.Exec(`DELETE FROM servers WHERE id = ?`, id)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	return n > 0, err
}

// normalize resolves protocol aliases and validates the record.
func normalize(rec *models.ServerRecord) error {
	p, err := models.ParseProtocol(string(rec.Protocol))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	rec.Protocol = p
	rec.Address = strings.TrimSpace(rec.Address)

	if err := rec.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (models.ServerRecord, error) {
	var (
		rec      models.ServerRecord
		protocol string
	)

	err := s.Scan(&rec.ID, &rec.Name, &rec.Address, &protocol, &rec.Port, &rec.CreatedAt, &rec.UpdatedAt)
	rec.Protocol = models.Protocol(protocol)

	return rec, err
}

func mapConstraint(err error) error {
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}
