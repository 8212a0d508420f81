// ABOUTME: Normalizes inbound chat payloads into canonical role-tagged text messages
// ABOUTME: Accepts {messages:[...]} with string, content-parts, or parts shapes, or a {text} shorthand

package conversation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrBadRequest is returned for payloads that cannot be normalized.
var ErrBadRequest = errors.New("bad request")

// Role tags a canonical message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one normalized conversation turn.
type Message struct {
	Role Role
	Text string
}

// Shape identifies which representation an inbound message used.
type Shape int

const (
	ShapeEmpty        Shape = iota // no parts and no content
	ShapeText                      // "content": "..."
	ShapeContentParts              // "content": [{type, text}, ...]
	ShapeParts                     // "parts": [{type, text}, ...]
)

func (s Shape) String() string {
	switch s {
	case ShapeEmpty:
		return "empty"
	case ShapeText:
		return "text"
	case ShapeContentParts:
		return "content_parts"
	case ShapeParts:
		return "parts"
	default:
		return "unknown"
	}
}

// part is one element of a structured parts array. Non-text parts are skipped.
type part struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// rawMessage is the wire form of a single inbound message.
type rawMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
	Parts   json.RawMessage `json:"parts"`
}

// payload is the wire form of a chat request body.
type payload struct {
	Messages json.RawMessage `json:"messages"`
	Text     *string         `json:"text"`
}

// ParseBody decodes a chat request body and normalizes it.
// A present "messages" field wins over the "text" shorthand.
func ParseBody(body []byte) ([]Message, error) {
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON body", ErrBadRequest)
	}

	if isAbsent(p.Messages) {
		if p.Text != nil {
			return []Message{{Role: RoleUser, Text: *p.Text}}, nil
		}
		return nil, fmt.Errorf("%w: messages is required", ErrBadRequest)
	}

	return Normalize(p.Messages)
}

// Normalize converts a raw JSON messages array into canonical messages.
// Output order mirrors input order. An empty array yields an empty slice.
func Normalize(raw json.RawMessage) ([]Message, error) {
	if isAbsent(raw) {
		return nil, fmt.Errorf("%w: messages is required", ErrBadRequest)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: messages must be a list", ErrBadRequest)
	}

	out := make([]Message, 0, len(items))
	for i, item := range items {
		msg, err := normalizeOne(item)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		out = append(out, msg)
	}
	return out, nil
}

func normalizeOne(item json.RawMessage) (Message, error) {
	var m rawMessage
	if err := json.Unmarshal(item, &m); err != nil {
		return Message{}, fmt.Errorf("%w: message must be an object", ErrBadRequest)
	}

	role, err := parseRole(m.Role)
	if err != nil {
		return Message{}, err
	}

	shape, err := classify(m)
	if err != nil {
		return Message{}, err
	}

	text, err := normalizers[shape](m)
	if err != nil {
		return Message{}, err
	}
	return Message{Role: role, Text: text}, nil
}

func parseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleSystem, RoleUser, RoleAssistant:
		return r, nil
	case "":
		return "", fmt.Errorf("%w: role is required", ErrBadRequest)
	default:
		return "", fmt.Errorf("%w: unsupported role %q", ErrBadRequest, s)
	}
}

// classify picks the representation. A non-empty parts array takes
// precedence over content; otherwise content decides.
func classify(m rawMessage) (Shape, error) {
	if !isAbsent(m.Parts) {
		first := firstByte(m.Parts)
		if first != '[' {
			return 0, fmt.Errorf("%w: parts must be a list", ErrBadRequest)
		}
		if !isEmptyArray(m.Parts) {
			return ShapeParts, nil
		}
	}

	if isAbsent(m.Content) {
		return ShapeEmpty, nil
	}
	switch firstByte(m.Content) {
	case '"':
		return ShapeText, nil
	case '[':
		return ShapeContentParts, nil
	default:
		return 0, fmt.Errorf("%w: content must be a string or a list of parts", ErrBadRequest)
	}
}

var normalizers = map[Shape]func(rawMessage) (string, error){
	ShapeEmpty: func(rawMessage) (string, error) { return "", nil },
	ShapeText: func(m rawMessage) (string, error) {
		var s string
		if err := json.Unmarshal(m.Content, &s); err != nil {
			return "", fmt.Errorf("%w: content: %v", ErrBadRequest, err)
		}
		return s, nil
	},
	ShapeContentParts: func(m rawMessage) (string, error) { return joinTextParts(m.Content) },
	ShapeParts:        func(m rawMessage) (string, error) { return joinTextParts(m.Parts) },
}

// joinTextParts concatenates the text of every text-typed part, in order.
func joinTextParts(raw json.RawMessage) (string, error) {
	var parts []part
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", fmt.Errorf("%w: parts must be objects", ErrBadRequest)
	}

	var b strings.Builder
	for _, p := range parts {
		if p.Type == "text" {
			b.WriteString(p.Text)
		}
	}
	return b.String(), nil
}

// RequireUserTurn checks the conversation ends with a user message.
func RequireUserTurn(msgs []Message) error {
	if len(msgs) == 0 {
		return fmt.Errorf("%w: no messages", ErrBadRequest)
	}
	if msgs[len(msgs)-1].Role != RoleUser {
		return fmt.Errorf("%w: last message must be from the user", ErrBadRequest)
	}
	return nil
}

// LastUserQuery returns the text of the most recent user message, or "".
func LastUserQuery(msgs []Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser {
			return msgs[i].Text
		}
	}
	return ""
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func isEmptyArray(raw json.RawMessage) bool {
	var items []json.RawMessage
	return json.Unmarshal(raw, &items) == nil && len(items) == 0
}

func firstByte(raw json.RawMessage) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}
