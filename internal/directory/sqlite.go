// ABOUTME: SQLite-backed Directory using modernc.org/sqlite
// ABOUTME: Creates its tables on open and supports bulk seeding in one transaction

package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLite implements Directory over an SQLite file.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
}

var (
	_ Directory = (*SQLite)(nil)
	_ Seeder    = (*SQLite)(nil)
)

// OpenSQLite opens (or creates) the directory tables in the SQLite file at path.
func OpenSQLite(path string, logger *slog.Logger) (*SQLite, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating directory database dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening directory database: %w", err)
	}
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	d := &SQLite{db: db, logger: logger.With("component", "directory", "driver", "sqlite")}
	if err := d.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating directory schema: %w", err)
	}

	d.logger.Info("directory opened", "path", path)
	return d, nil
}

func (d *SQLite) createSchema() error {
	_, err := d.db.Exec(`
		CREATE TABLE IF NOT EXISTS meals (
			date        TEXT PRIMARY KEY,
			day_of_week TEXT NOT NULL DEFAULT '',
			menu        TEXT NOT NULL DEFAULT '',
			summary     TEXT NOT NULL DEFAULT '',
			tags        TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS students (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			display_name TEXT NOT NULL DEFAULT '',
			grade        TEXT NOT NULL DEFAULT '',
			sex          TEXT NOT NULL DEFAULT '',
			country      TEXT NOT NULL DEFAULT '',
			birth_month  INTEGER NOT NULL DEFAULT 0,
			birth_day    INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_students_grade ON students(grade);

		CREATE TABLE IF NOT EXISTS schedules (
			id      INTEGER PRIMARY KEY AUTOINCREMENT,
			grade   TEXT NOT NULL,
			subject TEXT NOT NULL,
			period  INTEGER NOT NULL DEFAULT 0,
			time    TEXT NOT NULL DEFAULT '',
			teacher TEXT NOT NULL DEFAULT '',
			room    TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_schedules_grade ON schedules(grade);

		CREATE TABLE IF NOT EXISTS events (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			name        TEXT NOT NULL,
			type        TEXT NOT NULL DEFAULT '',
			start_date  TEXT NOT NULL,
			end_date    TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			grades      TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_events_start ON events(start_date);
	`)
	return err
}

// Close closes the database.
func (d *SQLite) Close() error {
	return d.db.Close()
}

// MealFor implements Directory.
func (d *SQLite) MealFor(ctx context.Context, date string) (*Meal, error) {
	var m Meal
	var tags string
	err := d.db.QueryRowContext(ctx, `
		SELECT date, day_of_week, menu, summary, tags FROM meals WHERE date = ?
	`, date).Scan(&m.Date, &m.DayOfWeek, &m.Menu, &m.Summary, &tags)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying meal: %w", err)
	}
	m.Tags = splitList(tags)
	return &m, nil
}

// Students implements Directory.
func (d *SQLite) Students(ctx context.Context) ([]Student, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT display_name, grade, sex, country, birth_month, birth_day
		FROM students ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying students: %w", err)
	}
	defer rows.Close()

	var out []Student
	for rows.Next() {
		var s Student
		if err := rows.Scan(&s.DisplayName, &s.Grade, &s.Sex, &s.Country, &s.BirthMonth, &s.BirthDay); err != nil {
			return nil, fmt.Errorf("scanning student: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CountStudents implements Directory.
func (d *SQLite) CountStudents(ctx context.Context, f StudentFilter) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM students
		WHERE (? = '' OR grade = ?)
		  AND (? = '' OR country = ? COLLATE NOCASE)
	`, f.Grade, f.Grade, f.Country, f.Country).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting students: %w", err)
	}
	return n, nil
}

// ScheduleFor implements Directory.
func (d *SQLite) ScheduleFor(ctx context.Context, grade string) ([]ScheduleEntry, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT grade, subject, period, time, teacher, room, summary
		FROM schedules WHERE grade = ? ORDER BY period, id
	`, grade)
	if err != nil {
		return nil, fmt.Errorf("querying schedule: %w", err)
	}
	defer rows.Close()

	var out []ScheduleEntry
	for rows.Next() {
		var e ScheduleEntry
		if err := rows.Scan(&e.Grade, &e.Subject, &e.Period, &e.Time, &e.Teacher, &e.Room, &e.Summary); err != nil {
			return nil, fmt.Errorf("scanning schedule: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpcomingEvents implements Directory.
func (d *SQLite) UpcomingEvents(ctx context.Context, q EventQuery) ([]Event, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT name, type, start_date, end_date, description, grades
		FROM events
		WHERE (start_date >= ? OR (start_date < ? AND end_date <> '' AND end_date >= ?))
		  AND (? = '' OR start_date <= ?)
		ORDER BY start_date, id
	`, q.From, q.From, q.From, q.To, q.To)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var all []Event
	for rows.Next() {
		var e Event
		var grades string
		if err := rows.Scan(&e.Name, &e.Type, &e.StartDate, &e.EndDate, &e.Description, &grades); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		e.Grades = splitList(grades)
		all = append(all, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return filterEvents(all, q), nil
}

// Seed implements Seeder. Meals are upserted by date; other records are appended.
func (d *SQLite) Seed(ctx context.Context, data *SeedData) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning seed: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, m := range data.Meals {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO meals (date, day_of_week, menu, summary, tags) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(date) DO UPDATE SET
				day_of_week = excluded.day_of_week, menu = excluded.menu,
				summary = excluded.summary, tags = excluded.tags
		`, m.Date, m.DayOfWeek, m.Menu, m.Summary, joinList(m.Tags)); err != nil {
			return fmt.Errorf("seeding meal %s: %w", m.Date, err)
		}
	}
	for _, s := range data.Students {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO students (display_name, grade, sex, country, birth_month, birth_day)
			VALUES (?, ?, ?, ?, ?, ?)
		`, s.DisplayName, s.Grade, s.Sex, s.Country, s.BirthMonth, s.BirthDay); err != nil {
			return fmt.Errorf("seeding student: %w", err)
		}
	}
	for _, e := range data.Schedules {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO schedules (grade, subject, period, time, teacher, room, summary)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, e.Grade, e.Subject, e.Period, e.Time, e.Teacher, e.Room, e.Summary); err != nil {
			return fmt.Errorf("seeding schedule: %w", err)
		}
	}
	for _, e := range data.Events {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO events (name, type, start_date, end_date, description, grades)
			VALUES (?, ?, ?, ?, ?, ?)
		`, e.Name, e.Type, e.StartDate, e.EndDate, e.Description, joinList(e.Grades)); err != nil {
			return fmt.Errorf("seeding event %s: %w", e.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing seed: %w", err)
	}
	d.logger.Info("directory seeded",
		"meals", len(data.Meals),
		"students", len(data.Students),
		"schedules", len(data.Schedules),
		"events", len(data.Events),
	)
	return nil
}
