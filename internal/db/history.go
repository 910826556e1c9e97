package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/voice-coach/internal/types"
)

// appendSessionSQL appends one record and recomputes the average in the same
// statement. The row lock taken by the upsert serializes concurrent appends
// for one email, so each sees every earlier record. A record whose id is
// already in the history matches no row.
const appendSessionSQL = `
INSERT INTO users (username, email, all_sessions_details, avg_score)
VALUES ($1, $2, jsonb_build_array($3::jsonb), ROUND(($3::jsonb->>'overall_score')::numeric, 2))
ON CONFLICT (email) DO UPDATE SET
    username = COALESCE(NULLIF(EXCLUDED.username, ''), users.username),
    all_sessions_details = users.all_sessions_details || jsonb_build_array($3::jsonb),
    avg_score = (
        SELECT ROUND(AVG((s->>'overall_score')::numeric), 2)
        FROM jsonb_array_elements(users.all_sessions_details || jsonb_build_array($3::jsonb)) AS s
    ),
    updated_at = NOW()
WHERE NOT users.all_sessions_details @> jsonb_build_array(jsonb_build_object('id', $3::jsonb->'id'))
RETURNING username, email, all_sessions_details, avg_score::float8`

// AppendSession atomically appends record to the user's history, creating the
// user row on first write, and returns the updated history.
func (db *DB) AppendSession(ctx context.Context, username, email string, record *types.SessionRecord) (*types.UserHistory, error) {
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}

	history, err := scanHistory(db.pool.QueryRow(ctx, appendSessionSQL, username, email, payload))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrSessionExists, record.ID)
		}
		return nil, fmt.Errorf("failed to append session %s: %w", record.ID, err)
	}
	return history, nil
}

// GetHistory returns the user's profile and sessions. Unknown users get the
// empty new-user profile.
func (db *DB) GetHistory(ctx context.Context, email string) (*types.UserHistory, error) {
	history, err := scanHistory(db.pool.QueryRow(ctx,
		`SELECT username, email, all_sessions_details, avg_score::float8 FROM users WHERE email = $1`,
		email,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.NewUserHistory(email), nil
		}
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	return history, nil
}

// GetSession returns one record from the user's history, or nil if absent.
func (db *DB) GetSession(ctx context.Context, email, id string) (*types.SessionRecord, error) {
	var raw []byte
	err := db.pool.QueryRow(ctx,
		`SELECT s FROM users, jsonb_array_elements(users.all_sessions_details) AS s
		 WHERE users.email = $1 AND s->>'id' = $2
		 LIMIT 1`,
		email, id,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}

	var record types.SessionRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return &record, nil
}

func scanHistory(row pgx.Row) (*types.UserHistory, error) {
	var (
		h   types.UserHistory
		raw []byte
	)
	if err := row.Scan(&h.Username, &h.Email, &raw, &h.AvgScore); err != nil {
		return nil, err
	}
	sessions, err := decodeSessions(raw)
	if err != nil {
		return nil, err
	}
	h.Sessions = sessions
	return &h, nil
}

// decodeSessions parses the JSONB history column. NULL or empty means no sessions.
func decodeSessions(raw []byte) ([]types.SessionRecord, error) {
	sessions := []types.SessionRecord{}
	if len(raw) == 0 || string(raw) == "null" {
		return sessions, nil
	}
	if err := json.Unmarshal(raw, &sessions); err != nil {
		return nil, fmt.Errorf("failed to decode sessions: %w", err)
	}
	return sessions, nil
}
