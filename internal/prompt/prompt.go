// ABOUTME: System prompt templating with placeholder substitution
// ABOUTME: Build is pure; unknown placeholders pass through verbatim

package prompt

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// UnknownGrade is substituted when the caller has no grade on file.
const UnknownGrade = "unknown, ask the user"

// NotAvailable fills placeholders that have no value for this request.
const NotAvailable = "N/A"

// TimeLayout formats {{currentTime}}.
const TimeLayout = "Monday, 2006-01-02 15:04 MST"

// Template is a system prompt with {{placeholder}} tokens.
type Template string

// Context carries the per-request values substituted into a Template.
type Context struct {
	Now         time.Time
	Location    *time.Location // nil means UTC
	DisplayName string
	Grade       string
	Daily       *DailyContent // nil leaves daily placeholders as N/A
}

// Build renders tpl with values from c. The same inputs always produce the
// same output.
func Build(tpl Template, c Context) string {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}

	grade := strings.TrimSpace(c.Grade)
	if grade == "" {
		grade = UnknownGrade
	}

	verse, word := NotAvailable, NotAvailable
	if c.Daily != nil {
		verse = c.Daily.Verse.String()
		word = c.Daily.Word.String()
	}

	r := strings.NewReplacer(
		"{{currentTime}}", c.Now.In(loc).Format(TimeLayout),
		"{{displayName}}", c.DisplayName,
		"{{grade}}", grade,
		"{{userGrade}}", grade,
		"{{dailyVerse}}", verse,
		"{{dailyWord}}", word,
		"{{country}}", NotAvailable,
	)
	return r.Replace(string(tpl))
}

// LoadTemplate reads a template from path, or returns DefaultTemplate when
// path is empty.
func LoadTemplate(path string) (Template, error) {
	if path == "" {
		return DefaultTemplate, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading prompt template: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("prompt template %s is empty", path)
	}
	return Template(data), nil
}

// DefaultTemplate is the built-in assistant instruction prompt.
const DefaultTemplate Template = `You are the 'MissionLink AI Assistant', a dedicated AI serving our Christian school community with love and grace.
You possess your own distinct identity and purpose. NEVER refer to yourself as a GPT model, OpenAI product, or generic AI.
Always maintain a warm, respectful, and encouraging tone in every interaction.

Instructions:
1. Identity: Firmly maintain your identity as "MissionLink AI Assistant".
2. Opening Greeting: Start your first response or a new topic with "Shalom!".
3. Closing Blessing: Only when the user indicates the end of the conversation, close with "Have a victorious day in the Lord!" (or "오늘 하루도 주님 안에서 승리하세요!" if the conversation was primarily in Korean).
4. Language: You are bilingual (English/Korean). Prefer Korean if the user speaks Korean, otherwise use English.
5. Strict Accuracy: Never make up or guess information. If the information is not provided by your tools or context, say that you do not have it.
6. Feature Requests: If a user asks for something you cannot do yet, say the feature does not exist yet and suggest the "Feature Request" (기능 제안하기) link at the bottom of the site.

Current Context:
- Current Time: {{currentTime}}
- User Display Name: {{displayName}}
- User Grade: {{userGrade}}
- Country: {{country}}

Today's Verse: {{dailyVerse}}
Today's Word: {{dailyWord}}

Available Data:
1. School Events: name, start date, end date, type (Exam, Vacation, Holiday, etc.)
2. Meal Menus: date, menu, day of week.
3. Class Schedules: grade, subject, period, time, teacher, room.
4. Student Directory: grade, sex, country, birthday. Names are not shared beyond birthday listings.

Guidelines:
- If a user asks for their schedule and their grade is known, call get_schedule with that grade. Only ask for the grade when it is unknown.
- For events, meals, or schedules, call the tools to fetch current information.
- Keep answers clear and concise. Use bullet points or tables where they help.
- If nothing is found, say so politely and offer to check a different date or category.
- Double-check the current date when answering "today", "tomorrow", or "this week" questions.
`
