// ABOUTME: Loads directory seed data from YAML files
// ABOUTME: Validates dates and required fields before anything touches a backend

package directory

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadSeedFile reads and validates a YAML seed document.
func LoadSeedFile(path string) (*SeedData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	return ParseSeed(raw)
}

// ParseSeed parses and validates a YAML seed document.
func ParseSeed(raw []byte) (*SeedData, error) {
	var data SeedData
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parsing seed: %w", err)
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}
	return &data, nil
}

// Validate checks required fields and date layouts.
func (d *SeedData) Validate() error {
	for i, m := range d.Meals {
		if err := checkDate(m.Date); err != nil {
			return fmt.Errorf("meals[%d].date: %w", i, err)
		}
	}
	for i, s := range d.Students {
		if (s.BirthMonth != 0 || s.BirthDay != 0) && !s.HasBirthday() {
			return fmt.Errorf("students[%d]: invalid birthday %d/%d", i, s.BirthMonth, s.BirthDay)
		}
	}
	for i, e := range d.Schedules {
		if e.Grade == "" || e.Subject == "" {
			return fmt.Errorf("schedules[%d]: grade and subject are required", i)
		}
	}
	for i, e := range d.Events {
		if e.Name == "" {
			return fmt.Errorf("events[%d]: name is required", i)
		}
		if err := checkDate(e.StartDate); err != nil {
			return fmt.Errorf("events[%d].start_date: %w", i, err)
		}
		if e.EndDate != "" {
			if err := checkDate(e.EndDate); err != nil {
				return fmt.Errorf("events[%d].end_date: %w", i, err)
			}
			if e.EndDate < e.StartDate {
				return fmt.Errorf("events[%d]: end_date before start_date", i)
			}
		}
	}
	return nil
}

func checkDate(s string) error {
	if _, err := time.Parse(DateLayout, s); err != nil {
		return fmt.Errorf("%q is not a YYYY-MM-DD date", s)
	}
	return nil
}
