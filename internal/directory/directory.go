// ABOUTME: School data types and the Directory lookup interface
// ABOUTME: Shared by the SQLite and Postgres backends and the cached decorator

package directory

import (
	"context"
	"errors"
	"slices"
	"strings"
)

// ErrNotFound is returned when a single-record lookup has no match.
var ErrNotFound = errors.New("not found")

// DateLayout is the layout of every date string in this package.
const DateLayout = "2006-01-02"

// MaxEvents caps UpcomingEvents results.
const MaxEvents = 10

// Meal is the menu for one school day.
type Meal struct {
	Date      string   `yaml:"date"`
	DayOfWeek string   `yaml:"day_of_week"`
	Menu      string   `yaml:"menu"`
	Summary   string   `yaml:"summary"`
	Tags      []string `yaml:"tags"`
}

// Student is one roster entry. BirthMonth and BirthDay are zero when unknown.
type Student struct {
	DisplayName string `yaml:"display_name"`
	Grade       string `yaml:"grade"`
	Sex         string `yaml:"sex"`
	Country     string `yaml:"country"`
	BirthMonth  int    `yaml:"birth_month"`
	BirthDay    int    `yaml:"birth_day"`
}

// HasBirthday reports whether both birthday fields are set.
func (s Student) HasBirthday() bool {
	return s.BirthMonth >= 1 && s.BirthMonth <= 12 && s.BirthDay >= 1 && s.BirthDay <= 31
}

// StudentFilter narrows CountStudents. Empty fields match everything.
type StudentFilter struct {
	Grade   string
	Country string
}

// ScheduleEntry is one class period for a grade.
type ScheduleEntry struct {
	Grade   string `yaml:"grade"`
	Subject string `yaml:"subject"`
	Period  int    `yaml:"period"`
	Time    string `yaml:"time"`
	Teacher string `yaml:"teacher"`
	Room    string `yaml:"room"`
	Summary string `yaml:"summary"`
}

// Event is a dated school event. EndDate may be empty for one-day events.
type Event struct {
	Name        string   `yaml:"name"`
	Type        string   `yaml:"type"`
	StartDate   string   `yaml:"start_date"`
	EndDate     string   `yaml:"end_date"`
	Description string   `yaml:"description"`
	Grades      []string `yaml:"grades"`
}

// EventQuery selects events that are ongoing or start within [From, To].
// An empty To leaves the range open. Limit defaults to and is capped at MaxEvents.
type EventQuery struct {
	From  string
	To    string
	Grade string
	Limit int
}

// Directory is the read-only data source for the retrieval tools.
type Directory interface {
	// MealFor returns the menu for date, or ErrNotFound.
	MealFor(ctx context.Context, date string) (*Meal, error)

	// Students returns the whole roster.
	Students(ctx context.Context) ([]Student, error)

	// CountStudents counts roster entries matching filter.
	CountStudents(ctx context.Context, filter StudentFilter) (int, error)

	// ScheduleFor returns a grade's periods ordered by period.
	ScheduleFor(ctx context.Context, grade string) ([]ScheduleEntry, error)

	// UpcomingEvents returns matching events ordered by start date.
	UpcomingEvents(ctx context.Context, q EventQuery) ([]Event, error)
}

// SeedData is a bulk load of directory records.
type SeedData struct {
	Meals     []Meal          `yaml:"meals"`
	Students  []Student       `yaml:"students"`
	Schedules []ScheduleEntry `yaml:"schedules"`
	Events    []Event         `yaml:"events"`
}

// Seeder is implemented by backends that accept bulk loads.
type Seeder interface {
	Seed(ctx context.Context, data *SeedData) error
}

func (q EventQuery) limit() int {
	if q.Limit <= 0 || q.Limit > MaxEvents {
		return MaxEvents
	}
	return q.Limit
}

// matchesGrade reports whether an event applies to grade. Events with no
// grades apply to everyone.
func (e Event) matchesGrade(grade string) bool {
	if grade == "" || len(e.Grades) == 0 {
		return true
	}
	return slices.ContainsFunc(e.Grades, func(g string) bool {
		return strings.EqualFold(strings.TrimSpace(g), strings.TrimSpace(grade))
	})
}

// filterEvents applies the grade filter and limit to date-ordered rows.
func filterEvents(rows []Event, q EventQuery) []Event {
	out := make([]Event, 0, min(len(rows), q.limit()))
	for _, e := range rows {
		if !e.matchesGrade(q.Grade) {
			continue
		}
		out = append(out, e)
		if len(out) == q.limit() {
			break
		}
	}
	return out
}

func joinList(items []string) string {
	return strings.Join(items, ",")
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
