package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/loomgate/loomgate/internal/chatmodel"
)

type sqliteSessionStore struct {
	db *sql.DB
}

func (s *sqliteSessionStore) ensureSession(ctx context.Context, tx *sql.Tx, location string, now int64) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (location, created_at, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(location) DO UPDATE SET updated_at = excluded.updated_at`,
		location, now, now,
	)
	if err != nil {
		return fmt.Errorf("store: ensure session %s: %w", location, err)
	}
	return nil
}

func (s *sqliteSessionStore) Append(ctx context.Context, location string, msg chatmodel.Message, tokenCount int) (int64, error) {
	if err := msg.Validate(); err != nil {
		return 0, fmt.Errorf("store: append: %w", err)
	}

	now := time.Now().UTC()
	nowUnix := now.Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: append begin: %w", err)
	}
	defer tx.Rollback()

	if err := s.ensureSession(ctx, tx, location, nowUnix); err != nil {
		return 0, err
	}

	var toolCallsJSON sql.NullString
	if len(msg.ToolCalls) > 0 {
		b, err := json.Marshal(msg.ToolCalls)
		if err != nil {
			return 0, fmt.Errorf("store: marshal tool_calls: %w", err)
		}
		toolCallsJSON = sql.NullString{String: string(b), Valid: true}
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO messages (location, role, content, tool_calls, tool_call_id, tool_name, token_count, compacted, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		location, string(msg.Role), msg.Content, toolCallsJSON, nullIfEmpty(msg.ToolCallID), nullIfEmpty(msg.ToolName), tokenCount, nowUnix,
	)
	if err != nil {
		return 0, fmt.Errorf("store: insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: message id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: append commit: %w", err)
	}
	return id, nil
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func scanMessage(row interface {
	Scan(dest ...any) error
}) (StoredMessage, error) {
	var (
		sm            StoredMessage
		role          string
		content       string
		toolCallsJSON sql.NullString
		toolCallID    sql.NullString
		toolName      sql.NullString
		compacted     int
		createdAt     int64
	)
	if err := row.Scan(&sm.ID, &sm.Location, &role, &content, &toolCallsJSON, &toolCallID, &toolName, &sm.TokenCount, &compacted, &createdAt); err != nil {
		return StoredMessage{}, err
	}

	sm.Message.Role = chatmodel.Role(role)
	sm.Message.Content = content
	if toolCallID.Valid {
		sm.Message.ToolCallID = toolCallID.String
	}
	if toolName.Valid {
		sm.Message.ToolName = toolName.String
	}
	if toolCallsJSON.Valid && toolCallsJSON.String != "" {
		var calls []chatmodel.ToolCall
		if err := json.Unmarshal([]byte(toolCallsJSON.String), &calls); err != nil {
			return StoredMessage{}, fmt.Errorf("store: decode tool_calls: %w", err)
		}
		sm.Message.ToolCalls = calls
	}
	sm.Compacted = compacted != 0
	sm.CreatedAt = time.Unix(createdAt, 0).UTC()
	return sm, nil
}

func (s *sqliteSessionStore) Messages(ctx context.Context, location string, includeCompacted bool) ([]StoredMessage, error) {
	query := `SELECT id, location, role, content, tool_calls, tool_call_id, tool_name, token_count, compacted, created_at
	          FROM messages WHERE location = ?`
	args := []any{location}
	if !includeCompacted {
		query += " AND compacted = 0"
	}
	query += " ORDER BY id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: messages %s: %w", location, err)
	}
	defer rows.Close()

	var out []StoredMessage
	for rows.Next() {
		sm, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}

func (s *sqliteSessionStore) ActiveIDs(ctx context.Context, location string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM messages WHERE location = ? AND compacted = 0 ORDER BY id ASC`, location)
	if err != nil {
		return nil, fmt.Errorf("store: active_ids %s: %w", location, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *sqliteSessionStore) TokenSum(ctx context.Context, location string) (int, error) {
	var sum sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT SUM(token_count) FROM messages WHERE location = ? AND compacted = 0`, location).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("store: token_sum %s: %w", location, err)
	}
	return int(sum.Int64), nil
}

func (s *sqliteSessionStore) MarkCompacted(ctx context.Context, location string, upToID int64) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET compacted = 1
		 WHERE location = ? AND compacted = 0 AND id <= ? AND role != ?`,
		location, upToID, string(chatmodel.RoleSystem),
	)
	if err != nil {
		return 0, fmt.Errorf("store: mark_compacted %s: %w", location, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *sqliteSessionStore) Clear(ctx context.Context, location string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE location = ?`, location)
	if err != nil {
		return 0, fmt.Errorf("store: clear %s: %w", location, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *sqliteSessionStore) Delete(ctx context.Context, location string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE location = ?`, location)
	if err != nil {
		return false, fmt.Errorf("store: delete %s: %w", location, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *sqliteSessionStore) List(ctx context.Context) ([]SessionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.location, s.created_at, s.updated_at, COUNT(m.id)
		FROM sessions s
		LEFT JOIN messages m ON m.location = s.location
		GROUP BY s.location
		ORDER BY s.updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("store: list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionInfo
	for rows.Next() {
		var (
			info                 SessionInfo
			createdAt, updatedAt int64
		)
		if err := rows.Scan(&info.Location, &createdAt, &updatedAt, &info.MessageCount); err != nil {
			return nil, err
		}
		info.CreatedAt = time.Unix(createdAt, 0).UTC()
		info.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		out = append(out, info)
	}
	return out, rows.Err()
}

func (s *sqliteSessionStore) Close() error { return nil }
