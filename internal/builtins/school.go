// ABOUTME: School pack provides the read-only retrieval tools offered to the model.
// ABOUTME: Meals, birthdays, schedules, events and roster counts, each rendered as short markdown.

package builtins

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/2389/missionlink-gateway/internal/directory"
	"github.com/2389/missionlink-gateway/internal/packs"
)

// SchoolPackID is the pack ID the school tools register under.
const SchoolPackID = "builtin:school"

// DefaultBirthdayLimit is used when get_upcoming_birthdays has no limit.
const DefaultBirthdayLimit = 5

// SchoolPack creates the school pack. now and loc decide what "today" means;
// a nil now uses time.Now and a nil loc uses UTC.
func SchoolPack(dir directory.Directory, now func() time.Time, loc *time.Location, logger *slog.Logger) *packs.BuiltinPack {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &schoolHandlers{
		dir:    dir,
		now:    now,
		loc:    loc,
		logger: logger.With("component", "builtins", "pack", SchoolPackID),
	}

	return &packs.BuiltinPack{
		ID: SchoolPackID,
		Tools: []*packs.BuiltinTool{
			{
				Definition: packs.ToolDefinition{
					Name:            "get_meals",
					Description:     "Get the school meal menu. Defaults to today if no date provided.",
					InputSchemaJSON: `{"type":"object","properties":{"date":{"type":"string","format":"date","description":"Optional: Date in YYYY-MM-DD format"}}}`,
				},
				Handler: s.GetMeals,
			},
			{
				Definition: packs.ToolDefinition{
					Name:            "get_upcoming_birthdays",
					Description:     "Get a list of upcoming student birthdays for the next week or month.",
					InputSchemaJSON: `{"type":"object","properties":{"limit":{"type":"integer","minimum":1,"description":"Number of birthdays to show (default 5)"}}}`,
				},
				Handler: s.GetUpcomingBirthdays,
			},
			{
				Definition: packs.ToolDefinition{
					Name:            "get_stats",
					Description:     "Get statistics about the student body (e.g., student counts by grade or country).",
					InputSchemaJSON: `{"type":"object","properties":{"grade":{"type":"string"},"country":{"type":"string"}}}`,
				},
				Handler: s.GetStats,
			},
			{
				Definition: packs.ToolDefinition{
					Name:            "get_schedule",
					Description:     "Get the school schedule for a specific grade.",
					InputSchemaJSON: `{"type":"object","properties":{"Grade":{"type":"string"}},"required":["Grade"]}`,
				},
				Handler: s.GetSchedule,
			},
			{
				Definition: packs.ToolDefinition{
					Name:            "get_upcoming_events",
					Description:     "Get the list of upcoming school events or holidays (학교 일정).",
					InputSchemaJSON: `{"type":"object","properties":{"Grade":{"type":"string","description":"Optional: Filter events by grade"},"from":{"type":"string","format":"date","description":"Optional: first date (YYYY-MM-DD), defaults to today"},"to":{"type":"string","format":"date","description":"Optional: last start date (YYYY-MM-DD)"}}}`,
				},
				Handler: s.GetUpcomingEvents,
			},
		},
	}
}

type schoolHandlers struct {
	dir    directory.Directory
	now    func() time.Time
	loc    *time.Location
	logger *slog.Logger
}

func (s *schoolHandlers) today() time.Time {
	return s.now().In(s.loc)
}

// failed logs a backend error and returns the text the model sees instead.
// Cancellation is passed through so the router can report it as such.
func (s *schoolHandlers) failed(ctx context.Context, tool string, err error, text string) (string, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	s.logger.Warn("directory lookup failed", "tool_name", tool, "error", err)
	return text, nil
}

// Tool input types

type getMealsInput struct {
	Date string `json:"date"`
}

type getBirthdaysInput struct {
	Limit *int `json:"limit"`
}

type getStatsInput struct {
	Grade   string `json:"grade"`
	Country string `json:"country"`
}

type getScheduleInput struct {
	Grade string `json:"Grade"`
}

type getEventsInput struct {
	Grade string `json:"Grade"`
	From  string `json:"from"`
	To    string `json:"to"`
}

// GetMeals renders the menu for a date, today by default.
func (s *schoolHandlers) GetMeals(ctx context.Context, input json.RawMessage) (string, error) {
	var in getMealsInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}
	date := in.Date
	if date == "" {
		date = s.today().Format(directory.DateLayout)
	}

	meal, err := s.dir.MealFor(ctx, date)
	if errors.Is(err, directory.ErrNotFound) {
		return fmt.Sprintf("No meal data available for %s.", date), nil
	}
	if err != nil {
		return s.failed(ctx, "get_meals", err, "Error fetching meal data.")
	}

	day := meal.DayOfWeek
	if day == "" {
		day = "Menu"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**%s (%s)**\n", day, date)
	if meal.Summary != "" {
		fmt.Fprintf(&b, "✨ *%s* (Summary)\n\n", meal.Summary)
	}
	b.WriteString(meal.Menu)
	b.WriteString("\n")
	if len(meal.Tags) > 0 {
		fmt.Fprintf(&b, "\n🏷️ Tags: %s", strings.Join(meal.Tags, ", "))
	}
	return b.String(), nil
}

// GetUpcomingBirthdays lists the next birthdays counting forward from today,
// wrapping past the end of the year.
func (s *schoolHandlers) GetUpcomingBirthdays(ctx context.Context, input json.RawMessage) (string, error) {
	var in getBirthdaysInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}
	limit := DefaultBirthdayLimit
	if in.Limit != nil && *in.Limit > 0 {
		limit = *in.Limit
	}

	students, err := s.dir.Students(ctx)
	if err != nil {
		return s.failed(ctx, "get_upcoming_birthdays", err, "Error fetching birthday data.")
	}

	upcoming := UpcomingBirthdays(students, s.today(), limit)
	if len(upcoming) == 0 {
		return "No student birthdays found in the directory.", nil
	}

	lines := make([]string, len(upcoming))
	for i, st := range upcoming {
		lines[i] = fmt.Sprintf("- %s: %d/%d", st.DisplayName, st.BirthMonth, st.BirthDay)
	}
	return strings.Join(lines, "\n"), nil
}

// GetStats counts roster entries by grade and country.
func (s *schoolHandlers) GetStats(ctx context.Context, input json.RawMessage) (string, error) {
	var in getStatsInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}

	n, err := s.dir.CountStudents(ctx, directory.StudentFilter{
		Grade:   strings.TrimSpace(in.Grade),
		Country: strings.TrimSpace(in.Country),
	})
	if err != nil {
		return s.failed(ctx, "get_stats", err, "Error fetching statistics.")
	}
	return fmt.Sprintf("Count: %d", n), nil
}

// GetSchedule lists a grade's class periods.
func (s *schoolHandlers) GetSchedule(ctx context.Context, input json.RawMessage) (string, error) {
	var in getScheduleInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}

	entries, err := s.dir.ScheduleFor(ctx, strings.TrimSpace(in.Grade))
	if err != nil {
		return s.failed(ctx, "get_schedule", err, "Error fetching schedule.")
	}
	if len(entries) == 0 {
		return "No schedule data available for this grade.", nil
	}

	lines := make([]string, len(entries))
	for i, e := range entries {
		var b strings.Builder
		fmt.Fprintf(&b, "- **%s**", e.Subject)
		if e.Time != "" {
			fmt.Fprintf(&b, " (%s)", e.Time)
		}
		if e.Teacher != "" {
			fmt.Fprintf(&b, " - %s", e.Teacher)
		}
		if e.Room != "" {
			fmt.Fprintf(&b, " @ %s", e.Room)
		}
		fmt.Fprintf(&b, " [Period %d]", e.Period)
		if e.Summary != "" {
			fmt.Fprintf(&b, "\n  - %s", e.Summary)
		}
		lines[i] = b.String()
	}
	return strings.Join(lines, "\n"), nil
}

// GetUpcomingEvents lists events that are ongoing or start on or after from.
func (s *schoolHandlers) GetUpcomingEvents(ctx context.Context, input json.RawMessage) (string, error) {
	var in getEventsInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}
	grade := strings.TrimSpace(in.Grade)
	from := in.From
	if from == "" {
		from = s.today().Format(directory.DateLayout)
	}
	if in.To != "" && in.To < from {
		return fmt.Sprintf("Error: 'to' (%s) is before 'from' (%s).", in.To, from), nil
	}

	events, err := s.dir.UpcomingEvents(ctx, directory.EventQuery{
		From:  from,
		To:    in.To,
		Grade: grade,
		Limit: directory.MaxEvents,
	})
	if err != nil {
		return s.failed(ctx, "get_upcoming_events", err, "Error fetching event data.")
	}
	if len(events) == 0 {
		if grade != "" {
			return fmt.Sprintf("No upcoming school events found for Grade %s.", grade), nil
		}
		return "No upcoming school events found.", nil
	}

	lines := make([]string, len(events))
	for i, e := range events {
		kind := e.Type
		if kind == "" {
			kind = "Event"
		}
		line := fmt.Sprintf("- [%s] %s: %s", kind, e.Name, e.StartDate)
		if e.EndDate != "" {
			line += " to " + e.EndDate
		}
		if e.Description != "" {
			line += "\n  - " + e.Description
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n"), nil
}

// UpcomingBirthdays returns up to limit students with known birthdays,
// ordered by days from today's calendar date. A birthday today comes first
// and earlier dates wrap to the end of the list. Ties keep roster order.
func UpcomingBirthdays(students []directory.Student, today time.Time, limit int) []directory.Student {
	todayDOY := dayOfYear(int(today.Month()), today.Day())

	type ranked struct {
		student  directory.Student
		distance int
	}
	var list []ranked
	for _, st := range students {
		if !st.HasBirthday() {
			continue
		}
		d := dayOfYear(st.BirthMonth, st.BirthDay) - todayDOY
		if d < 0 {
			d += 366
		}
		list = append(list, ranked{student: st, distance: d})
	}

	slices.SortStableFunc(list, func(a, b ranked) int {
		return a.distance - b.distance
	})

	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	out := make([]directory.Student, len(list))
	for i, r := range list {
		out[i] = r.student
	}
	return out
}

// dayOfYear maps a month/day to its position in a leap year so Feb 29 has a slot.
func dayOfYear(month, day int) int {
	return time.Date(2000, time.Month(month), day, 0, 0, 0, 0, time.UTC).YearDay()
}
