// ABOUTME: Postgres-backed Directory using a pgx connection pool
// ABOUTME: Mirrors the SQLite tables so the same seed files load into either backend

package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres implements Directory over a pgx pool.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var (
	_ Directory = (*Postgres)(nil)
	_ Seeder    = (*Postgres)(nil)
)

// OpenPostgres connects to dsn and ensures the directory tables exist.
func OpenPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*Postgres, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	p := &Postgres{pool: pool, logger: logger.With("component", "directory", "driver", "postgres")}
	if err := p.createSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating directory schema: %w", err)
	}
	p.logger.Info("directory opened")
	return p, nil
}

func (p *Postgres) createSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS meals (
			date        TEXT PRIMARY KEY,
			day_of_week TEXT NOT NULL DEFAULT '',
			menu        TEXT NOT NULL DEFAULT '',
			summary     TEXT NOT NULL DEFAULT '',
			tags        TEXT[] NOT NULL DEFAULT '{}'
		);
		CREATE TABLE IF NOT EXISTS students (
			id           BIGSERIAL PRIMARY KEY,
			display_name TEXT NOT NULL DEFAULT '',
			grade        TEXT NOT NULL DEFAULT '',
			sex          TEXT NOT NULL DEFAULT '',
			country      TEXT NOT NULL DEFAULT '',
			birth_month  INTEGER NOT NULL DEFAULT 0,
			birth_day    INTEGER NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS schedules (
			id      BIGSERIAL PRIMARY KEY,
			grade   TEXT NOT NULL,
			subject TEXT NOT NULL,
			period  INTEGER NOT NULL DEFAULT 0,
			time    TEXT NOT NULL DEFAULT '',
			teacher TEXT NOT NULL DEFAULT '',
			room    TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS events (
			id          BIGSERIAL PRIMARY KEY,
			name        TEXT NOT NULL,
			type        TEXT NOT NULL DEFAULT '',
			start_date  TEXT NOT NULL,
			end_date    TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			grades      TEXT[] NOT NULL DEFAULT '{}'
		);
	`)
	return err
}

// Close releases the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// MealFor implements Directory.
func (p *Postgres) MealFor(ctx context.Context, date string) (*Meal, error) {
	var m Meal
	err := p.pool.QueryRow(ctx, `
		SELECT date, day_of_week, menu, summary, tags FROM meals WHERE date = $1
	`, date).Scan(&m.Date, &m.DayOfWeek, &m.Menu, &m.Summary, &m.Tags)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying meal: %w", err)
	}
	return &m, nil
}

// Students implements Directory.
func (p *Postgres) Students(ctx context.Context) ([]Student, error) {
	rows, err := p.pool.Query(ctx, `
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
func (p *Postgres) CountStudents(ctx context.Context, f StudentFilter) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM students
		WHERE ($1 = '' OR grade = $1)
		  AND ($2 = '' OR lower(country) = lower($2))
	`, f.Grade, f.Country).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting students: %w", err)
	}
	return n, nil
}

// ScheduleFor implements Directory.
func (p *Postgres) ScheduleFor(ctx context.Context, grade string) ([]ScheduleEntry, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT grade, subject, period, time, teacher, room, summary
		FROM schedules WHERE grade = $1 ORDER BY period, id
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
func (p *Postgres) UpcomingEvents(ctx context.Context, q EventQuery) ([]Event, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT name, type, start_date, end_date, description, grades
		FROM events
		WHERE (start_date >= $1 OR (start_date < $1 AND end_date <> '' AND end_date >= $1))
		  AND ($2 = '' OR start_date <= $2)
		ORDER BY start_date, id
	`, q.From, q.To)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var all []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Name, &e.Type, &e.StartDate, &e.EndDate, &e.Description, &e.Grades); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		all = append(all, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return filterEvents(all, q), nil
}

// Seed implements Seeder using a single transaction and a batch per table.
func (p *Postgres) Seed(ctx context.Context, data *SeedData) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning seed: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	batch := &pgx.Batch{}
	for _, m := range data.Meals {
		batch.Queue(`
			INSERT INTO meals (date, day_of_week, menu, summary, tags) VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (date) DO UPDATE SET
				day_of_week = EXCLUDED.day_of_week, menu = EXCLUDED.menu,
				summary = EXCLUDED.summary, tags = EXCLUDED.tags
		`, m.Date, m.DayOfWeek, m.Menu, m.Summary, nonNil(m.Tags))
	}
	for _, s := range data.Students {
		batch.Queue(`
			INSERT INTO students (display_name, grade, sex, country, birth_month, birth_day)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, s.DisplayName, s.Grade, s.Sex, s.Country, s.BirthMonth, s.BirthDay)
	}
	for _, e := range data.Schedules {
		batch.Queue(`
			INSERT INTO schedules (grade, subject, period, time, teacher, room, summary)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, e.Grade, e.Subject, e.Period, e.Time, e.Teacher, e.Room, e.Summary)
	}
	for _, e := range data.Events {
		batch.Queue(`
			INSERT INTO events (name, type, start_date, end_date, description, grades)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, e.Name, e.Type, e.StartDate, e.EndDate, e.Description, nonNil(e.Grades))
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("seeding directory: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing seed: %w", err)
	}
	p.logger.Info("directory seeded", "rows", batch.Len())
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
