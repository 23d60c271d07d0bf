package history

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mkessler-io/motionbridge/internal/db"
)

// Invocation is one audited tool call.
type Invocation struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id,omitempty"`
	Tool      string    `json:"tool"`
	Args      string    `json:"args,omitempty"`
	OK        bool      `json:"ok"`
	Error     string    `json:"error,omitempty"`
	ElapsedMS int64     `json:"elapsed_ms"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter narrows a history query.
type Filter struct {
	Tool      string `json:"tool,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	OnlyFails bool   `json:"only_fails,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}

// Service handles the invocation audit log.
type Service struct {
	db *db.DB
}

// NewService creates a new history service
func NewService(database *db.DB) *Service {
	return &Service{db: database}
}

// RecordInvocation appends one audit row. sessionID may be empty for
// sessionless callers and is stored as NULL. Arguments are stored as JSON
// text; values that fail to serialize are recorded as an empty document
// rather than dropping the row.
func (s *Service) RecordInvocation(sessionID, tool string, args map[string]interface{}, ok bool, errMsg string, elapsed time.Duration) {
	encoded, err := json.Marshal(args)
	if err != nil {
		encoded = []byte("{}")
	}
	var session interface{}
	if sessionID != "" {
		session = sessionID
	}
	_, dbErr := s.db.Exec(
		`INSERT INTO invocations (session_id, tool, args, ok, error, elapsed_ms) VALUES (?, ?, ?, ?, ?, ?)`,
		session, tool, string(encoded), boolToInt(ok), errMsg, elapsed.Milliseconds(),
	)
	_ = dbErr // audit failures must never break dispatch
}

// List returns invocations matching the filter, newest first, plus the total
// count before limiting.
func (s *Service) List(filter Filter) ([]Invocation, int, error) {
	query := `
		SELECT id, COALESCE(session_id, ''), tool, COALESCE(args, ''), ok, COALESCE(error, ''), elapsed_ms, created_at
		FROM invocations
		WHERE 1=1
	`
	countQuery := `SELECT COUNT(*) FROM invocations WHERE 1=1`

	var args []interface{}
	var conditions []string

	if filter.Tool != "" {
		conditions = append(conditions, "tool = ?")
		args = append(args, filter.Tool)
	}
	if filter.SessionID != "" {
		conditions = append(conditions, "session_id = ?")
		args = append(args, filter.SessionID)
	}
	if filter.OnlyFails {
		conditions = append(conditions, "ok = 0")
	}

	if len(conditions) > 0 {
		clause := " AND " + strings.Join(conditions, " AND ")
		query += clause
		countQuery += clause
	}

	var total int
	if err := s.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count invocations: %w", err)
	}

	query += " ORDER BY created_at DESC, id DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, filter.Offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query invocations: %w", err)
	}
	defer rows.Close()

	var out []Invocation
	for rows.Next() {
		var inv Invocation
		var ok int
		if err := rows.Scan(&inv.ID, &inv.SessionID, &inv.Tool, &inv.Args, &ok, &inv.Error, &inv.ElapsedMS, &inv.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan invocation: %w", err)
		}
		inv.OK = ok != 0
		out = append(out, inv)
	}
	return out, total, rows.Err()
}

// ToolStats aggregates outcomes per tool.
type ToolStats struct {
	Tool      string `json:"tool"`
	Calls     int    `json:"calls"`
	Failures  int    `json:"failures"`
	AvgMillis int64  `json:"avg_ms"`
}

// Stats summarizes the audit log per tool, busiest first.
func (s *Service) Stats() ([]ToolStats, error) {
	rows, err := s.db.Query(`
		SELECT tool, COUNT(*), SUM(CASE WHEN ok = 0 THEN 1 ELSE 0 END), CAST(AVG(elapsed_ms) AS INTEGER)
		FROM invocations
		GROUP BY tool
		ORDER BY COUNT(*) DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	var out []ToolStats
	for rows.Next() {
		var st ToolStats
		if err := rows.Scan(&st.Tool, &st.Calls, &st.Failures, &st.AvgMillis); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
