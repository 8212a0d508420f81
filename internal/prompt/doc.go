// ABOUTME: Package prompt builds the per-request system prompt from a template
// ABOUTME: Substitutes caller context and rotating daily content into placeholders

// Package prompt renders the assistant's system prompt.
//
// # Overview
//
// A Template is plain data: a string carrying {{placeholder}} tokens. Build
// substitutes the tokens it recognizes with values from a Context and leaves
// everything else untouched, so a template edited ahead of the code never
// breaks a request.
//
// # Placeholders
//
//   - {{currentTime}}: request time in the institution's time zone
//   - {{displayName}}: caller display name
//   - {{grade}}, {{userGrade}}: caller grade, or "unknown, ask the user"
//   - {{dailyVerse}}, {{dailyWord}}: today's rotating content
//   - {{country}}: always "N/A"
//
// # Daily Content
//
// DailyContentFor picks one verse and one vocabulary word by counting whole
// days since the Unix epoch in the given location and indexing each list
// modulo its length. Every request on the same local day sees the same pair.
package prompt
