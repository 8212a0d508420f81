// ABOUTME: Tests for chat payload normalization
// ABOUTME: Covers every message shape, the text shorthand, ordering, and rejection cases

package conversation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_Shapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []Message
	}{
		{
			name: "string content",
			raw:  `[{"role":"user","content":"hello"}]`,
			want: []Message{{Role: RoleUser, Text: "hello"}},
		},
		{
			name: "content parts concatenated",
			raw:  `[{"role":"user","content":[{"type":"text","text":"a"},{"type":"image","url":"x"},{"type":"text","text":"b"}]}]`,
			want: []Message{{Role: RoleUser, Text: "ab"}},
		},
		{
			name: "parts field concatenated",
			raw:  `[{"role":"assistant","parts":[{"type":"text","text":"Shalom! "},{"type":"text","text":"How can I help?"}]}]`,
			want: []Message{{Role: RoleAssistant, Text: "Shalom! How can I help?"}},
		},
		{
			name: "parts win over content",
			raw:  `[{"role":"user","content":"ignored","parts":[{"type":"text","text":"used"}]}]`,
			want: []Message{{Role: RoleUser, Text: "used"}},
		},
		{
			name: "empty parts fall back to content",
			raw:  `[{"role":"user","content":"fallback","parts":[]}]`,
			want: []Message{{Role: RoleUser, Text: "fallback"}},
		},
		{
			name: "no content at all",
			raw:  `[{"role":"user"}]`,
			want: []Message{{Role: RoleUser, Text: ""}},
		},
		{
			name: "null content",
			raw:  `[{"role":"user","content":null}]`,
			want: []Message{{Role: RoleUser, Text: ""}},
		},
		{
			name: "only non-text parts",
			raw:  `[{"role":"user","parts":[{"type":"file"}]}]`,
			want: []Message{{Role: RoleUser, Text: ""}},
		},
		{
			name: "empty list",
			raw:  `[]`,
			want: []Message{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(json.RawMessage(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_PreservesOrderAcrossShapes(t *testing.T) {
	raw := `[
		{"role":"system","content":"be kind"},
		{"role":"user","parts":[{"type":"text","text":"first"}]},
		{"role":"assistant","content":[{"type":"text","text":"second"}]},
		{"role":"user","content":"third"},
		{"role":"user","content":"third"}
	]`

	got, err := Normalize(json.RawMessage(raw))
	require.NoError(t, err)
	require.Len(t, got, 5)

	texts := make([]string, len(got))
	for i, m := range got {
		texts[i] = m.Text
	}
	assert.Equal(t, []string{"be kind", "first", "second", "third", "third"}, texts, "no reordering or dedupe")
}

func TestNormalize_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"absent", ``},
		{"null", `null`},
		{"object instead of list", `{"role":"user","content":"hi"}`},
		{"string instead of list", `"hi"`},
		{"non-object message", `["hi"]`},
		{"missing role", `[{"content":"hi"}]`},
		{"unknown role", `[{"role":"tool","content":"hi"}]`},
		{"numeric content", `[{"role":"user","content":42}]`},
		{"object content", `[{"role":"user","content":{"text":"hi"}}]`},
		{"parts not a list", `[{"role":"user","parts":"hi"}]`},
		{"parts of strings", `[{"role":"user","parts":["hi"]}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(json.RawMessage(tt.raw))
			assert.ErrorIs(t, err, ErrBadRequest)
		})
	}
}

func TestParseBody(t *testing.T) {
	t.Run("messages", func(t *testing.T) {
		got, err := ParseBody([]byte(`{"messages":[{"role":"user","content":"hi"}]}`))
		require.NoError(t, err)
		assert.Equal(t, []Message{{Role: RoleUser, Text: "hi"}}, got)
	})

	t.Run("text shorthand", func(t *testing.T) {
		got, err := ParseBody([]byte(`{"text":"오늘 급식?"}`))
		require.NoError(t, err)
		assert.Equal(t, []Message{{Role: RoleUser, Text: "오늘 급식?"}}, got)
	})

	t.Run("messages win over text", func(t *testing.T) {
		got, err := ParseBody([]byte(`{"messages":[{"role":"user","content":"a"}],"text":"b"}`))
		require.NoError(t, err)
		assert.Equal(t, "a", got[0].Text)
	})

	t.Run("null messages uses text", func(t *testing.T) {
		got, err := ParseBody([]byte(`{"messages":null,"text":"b"}`))
		require.NoError(t, err)
		assert.Equal(t, "b", got[0].Text)
	})

	t.Run("neither", func(t *testing.T) {
		_, err := ParseBody([]byte(`{}`))
		assert.ErrorIs(t, err, ErrBadRequest)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := ParseBody([]byte(`{"messages":`))
		assert.ErrorIs(t, err, ErrBadRequest)
	})

	t.Run("messages not a list", func(t *testing.T) {
		_, err := ParseBody([]byte(`{"messages":"hi"}`))
		assert.ErrorIs(t, err, ErrBadRequest)
	})
}

func TestRequireUserTurn(t *testing.T) {
	assert.ErrorIs(t, RequireUserTurn(nil), ErrBadRequest)
	assert.ErrorIs(t, RequireUserTurn([]Message{{Role: RoleUser}, {Role: RoleAssistant}}), ErrBadRequest)
	assert.NoError(t, RequireUserTurn([]Message{{Role: RoleAssistant}, {Role: RoleUser}}))
}

func TestLastUserQuery(t *testing.T) {
	msgs := []Message{
		{Role: RoleUser, Text: "first"},
		{Role: RoleAssistant, Text: "reply"},
		{Role: RoleUser, Text: "second"},
	}
	assert.Equal(t, "second", LastUserQuery(msgs))
	assert.Equal(t, "", LastUserQuery([]Message{{Role: RoleAssistant, Text: "x"}}))
}
