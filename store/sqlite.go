// Package store persists device assignments and preset tables in SQLite so
// a device that reappears gets the same channels, preset range and edited
// sounds it had before.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jorgetrad99/guitar-midi-sub000/engine"
)

const busyTimeout = 5 * time.Second

const schema = `
CREATE TABLE IF NOT EXISTS assignments (
	device      TEXT PRIMARY KEY,
	channels    TEXT NOT NULL,
	range_start INTEGER NOT NULL,
	range_end   INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS presets (
	device        TEXT NOT NULL,
	id            INTEGER NOT NULL,
	name          TEXT NOT NULL,
	program       INTEGER NOT NULL,
	bank          INTEGER NOT NULL DEFAULT 0,
	per_zone      INTEGER NOT NULL DEFAULT 0,
	zone_programs TEXT,
	icon          TEXT,
	category      TEXT,
	PRIMARY KEY (device, id)
);
`

// SQLite implements engine.Store on a single database file.
type SQLite struct {
	db *sql.DB
}

// Open creates (or opens) the database at path and applies the schema.
func Open(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	// Pragmas ride on the connection string, see mattn/go-sqlite3 docs.
	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL",
		path, busyTimeout.Milliseconds())

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	// One writer only; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) LoadAssignment(device string) (engine.Assignment, bool, error) {
	var (
		channelsJSON string
		a            engine.Assignment
	)
	err := s.db.QueryRow(
		`SELECT channels, range_start, range_end FROM assignments WHERE device = ?`,
		device,
	).Scan(&channelsJSON, &a.RangeStart, &a.RangeEnd)
	if err == sql.ErrNoRows {
		return engine.Assignment{}, false, nil
	}
	if err != nil {
		return engine.Assignment{}, false, fmt.Errorf("loading assignment for %q: %w", device, err)
	}
	if err := json.Unmarshal([]byte(channelsJSON), &a.Channels); err != nil {
		return engine.Assignment{}, false, fmt.Errorf("decoding channels for %q: %w", device, err)
	}
	return a, true, nil
}

func (s *SQLite) SaveAssignment(device string, a engine.Assignment) error {
	channelsJSON, err := json.Marshal(a.Channels)
	if err != nil {
		return fmt.Errorf("encoding channels for %q: %w", device, err)
	}
	_, err = s.db.Exec(
		`INSERT INTO assignments (device, channels, range_start, range_end)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(device) DO UPDATE SET
		   channels = excluded.channels,
		   range_start = excluded.range_start,
		   range_end = excluded.range_end`,
		device, string(channelsJSON), a.RangeStart, a.RangeEnd,
	)
	if err != nil {
		return fmt.Errorf("saving assignment for %q: %w", device, err)
	}
	return nil
}

func (s *SQLite) LoadPresets(device string) ([]engine.Preset, error) {
	rows, err := s.db.Query(
		`SELECT id, name, program, bank, per_zone, zone_programs, icon, category
		 FROM presets WHERE device = ? ORDER BY id`,
		device,
	)
	if err != nil {
		return nil, fmt.Errorf("loading presets for %q: %w", device, err)
	}
	defer rows.Close()

	var out []engine.Preset
	for rows.Next() {
		var (
			p         engine.Preset
			perZone   int
			zonesJSON sql.NullString
			icon      sql.NullString
			category  sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Program, &p.Bank, &perZone, &zonesJSON, &icon, &category); err != nil {
			return nil, fmt.Errorf("scanning preset for %q: %w", device, err)
		}
		p.PerZone = perZone != 0
		p.Icon = icon.String
		p.Category = category.String
		if zonesJSON.Valid && zonesJSON.String != "" {
			if err := json.Unmarshal([]byte(zonesJSON.String), &p.ZonePrograms); err != nil {
				return nil, fmt.Errorf("decoding zone programs for %q preset %d: %w", device, p.ID, err)
			}
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading presets for %q: %w", device, err)
	}
	return out, nil
}

func (s *SQLite) SavePreset(device string, p engine.Preset) error {
	var zonesJSON any
	if len(p.ZonePrograms) > 0 {
		b, err := json.Marshal(p.ZonePrograms)
		if err != nil {
			return fmt.Errorf("encoding zone programs for %q preset %d: %w", device, p.ID, err)
		}
		zonesJSON = string(b)
	}
	perZone := 0
	if p.PerZone {
		perZone = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO presets (device, id, name, program, bank, per_zone, zone_programs, icon, category)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(device, id) DO UPDATE SET
		   name = excluded.name,
		   program = excluded.program,
		   bank = excluded.bank,
		   per_zone = excluded.per_zone,
		   zone_programs = excluded.zone_programs,
		   icon = excluded.icon,
		   category = excluded.category`,
		device, p.ID, p.Name, p.Program, p.Bank, perZone, zonesJSON, p.Icon, p.Category,
	)
	if err != nil {
		return fmt.Errorf("saving preset %d for %q: %w", p.ID, device, err)
	}
	return nil
}

// RemoveDevice drops everything stored for a device. Called when the
// operator removes a device record, never on mere disconnection.
func (s *SQLite) RemoveDevice(device string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("removing %q: %w", device, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM assignments WHERE device = ?`, device); err != nil {
		return fmt.Errorf("removing assignment for %q: %w", device, err)
	}
	if _, err := tx.Exec(`DELETE FROM presets WHERE device = ?`, device); err != nil {
		return fmt.Errorf("removing presets for %q: %w", device, err)
	}
	return tx.Commit()
}
