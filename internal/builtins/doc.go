// Package builtins provides the built-in tool packs offered to the model.
//
// # Overview
//
// Built-in tools run inside the gateway process. Each one reads from a
// directory.Directory and returns a short markdown string that is fed
// back to the model verbatim. None of them write anything.
//
// # School Pack (builtin:school)
//
//   - get_meals: menu for a date (YYYY-MM-DD), today by default
//   - get_upcoming_birthdays: next birthdays from today, wrapping at year end (limit, default 5)
//   - get_stats: roster count filtered by grade and/or country
//   - get_schedule: class periods for a Grade (required)
//   - get_upcoming_events: ongoing and upcoming events, optional Grade filter and from/to window (max 10)
//
// "Today" is computed from an injected clock in the institution time zone,
// so tests can pin it.
//
// # Errors
//
// Directory failures are logged and turned into a descriptive string such
// as "Error fetching schedule." so the conversation can continue. Argument
// validation happens earlier, in the packs router, against each tool's
// declared schema.
//
// # Registration
//
//	pack := builtins.SchoolPack(dir, time.Now, loc, logger)
//	if err := registry.RegisterBuiltinPack(pack); err != nil {
//		return err
//	}
package builtins
