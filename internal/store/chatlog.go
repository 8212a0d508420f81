// ABOUTME: Chat log entity store methods for recording completed assistant exchanges
// ABOUTME: Records who asked what, what was answered, and which tools ran

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// chatLogTimeLayout is fixed-width so created_at sorts lexically in time order.
const chatLogTimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// AppendChatLog appends a new chat log entry.
// Generates ID and CreatedAt if not set.
func (s *SQLiteStore) AppendChatLog(ctx context.Context, l *ChatLog) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}

	tools := l.ToolsCalled
	if tools == nil {
		tools = []string{}
	}
	toolsJSON, err := json.Marshal(tools)
	if err != nil {
		return fmt.Errorf("marshaling tools called: %w", err)
	}

	query := `
		INSERT INTO chat_logs (id, user_id, query, response, tools_called, status, error, steps, input_tokens, output_tokens, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		l.ID,
		l.UserID,
		l.Query,
		l.Response,
		string(toolsJSON),
		string(l.Status),
		l.Error,
		l.Steps,
		l.InputTokens,
		l.OutputTokens,
		l.CreatedAt.UTC().Format(chatLogTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting chat log: %w", err)
	}

	s.logger.Debug("appended chat log",
		"id", l.ID,
		"user_id", l.UserID,
		"status", l.Status,
		"tools", len(tools),
	)
	return nil
}

// normalizeChatLogLimit applies default (100) and cap (1000) to the list limit.
func normalizeChatLogLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}

// scanChatLog scans a row into a ChatLog.
func scanChatLog(scanner interface{ Scan(dest ...any) error }) (ChatLog, error) {
	var l ChatLog
	var toolsJSON, status, createdAt string

	if err := scanner.Scan(
		&l.ID,
		&l.UserID,
		&l.Query,
		&l.Response,
		&toolsJSON,
		&status,
		&l.Error,
		&l.Steps,
		&l.InputTokens,
		&l.OutputTokens,
		&createdAt,
	); err != nil {
		return l, fmt.Errorf("scanning chat log: %w", err)
	}

	l.Status = ChatStatus(status)
	if err := json.Unmarshal([]byte(toolsJSON), &l.ToolsCalled); err != nil {
		return l, fmt.Errorf("unmarshaling tools called: %w", err)
	}

	var err error
	l.CreatedAt, err = time.Parse(chatLogTimeLayout, createdAt)
	if err != nil {
		return l, fmt.Errorf("parsing timestamp: %w", err)
	}
	return l, nil
}

const chatLogQuery = `
	SELECT id, user_id, query, response, tools_called, status, error, steps, input_tokens, output_tokens, created_at
	FROM chat_logs
	WHERE (? IS NULL OR user_id = ?)
	  AND (? IS NULL OR status = ?)
	  AND (? IS NULL OR created_at >= ?)
	ORDER BY created_at DESC
	LIMIT ?
`

// ListChatLogs returns chat logs matching the filter criteria, newest first.
func (s *SQLiteStore) ListChatLogs(ctx context.Context, f ChatLogFilter) ([]ChatLog, error) {
	limit := normalizeChatLogLimit(f.Limit)

	var statusStr, sinceStr *string
	if f.Status != nil {
		st := string(*f.Status)
		statusStr = &st
	}
	if f.Since != nil {
		ts := f.Since.UTC().Format(chatLogTimeLayout)
		sinceStr = &ts
	}

	rows, err := s.db.QueryContext(ctx, chatLogQuery,
		f.UserID, f.UserID,
		statusStr, statusStr,
		sinceStr, sinceStr,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying chat logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var logs []ChatLog
	for rows.Next() {
		l, err := scanChatLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chat logs: %w", err)
	}

	if logs == nil {
		logs = []ChatLog{}
	}
	return logs, nil
}
