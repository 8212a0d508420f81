// Package directory is the read-only school data store behind the retrieval tools.
//
// # Overview
//
// The Directory interface exposes five lookups: meals by date, the student
// roster, student counts, class schedules by grade, and upcoming events. Two
// backends implement it:
//
//   - SQLite (modernc.org/sqlite), the default, usually sharing the gateway
//     database file
//   - Postgres (pgx connection pool), for schools that keep their data in a
//     shared server
//
// Both backends accept a SeedData document so operators can load data from a
// YAML file with the seed command.
//
// # Caching
//
// Cached wraps any Directory and keeps roster, count and schedule reads for a
// configurable TTL. Concurrent misses for the same key share one backend read.
//
// # Dates
//
// Dates are ISO strings (YYYY-MM-DD) in the institution's local calendar.
// Comparisons are lexical, which matches calendar order for this layout.
package directory
