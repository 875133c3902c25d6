package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store persists the audit trail in Postgres. See migrations/ for the schema.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// LogRequest inserts the attempt row and returns its correlation id.
func (s *Store) LogRequest(ctx context.Context, rec RequestRecord) (string, error) {
	correlationID := uuid.NewString()

	query := `
		INSERT INTO llm_audit_entries (
			correlation_id, tenant_id, user_id, provider, model,
			sensitivity, was_anonymized, anonymization_method,
			prompt_hash, purpose, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.db.ExecContext(ctx, query,
		correlationID,
		rec.TenantID,
		rec.UserID,
		rec.Provider,
		rec.Model,
		rec.Sensitivity,
		rec.WasAnonymized,
		nullString(rec.Method),
		rec.PromptHash,
		rec.Purpose,
		time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("audit: failed to log request: %w", err)
	}
	return correlationID, nil
}

// LogResponse attaches outcome fields to an existing attempt row.
func (s *Store) LogResponse(ctx context.Context, correlationID string, rec ResponseRecord) error {
	query := `
		UPDATE llm_audit_entries
		SET response_hash = $2, tokens_in = $3, tokens_out = $4,
		    latency_ms = $5, estimated_cost = $6
		WHERE correlation_id = $1
	`
	_, err := s.db.ExecContext(ctx, query,
		correlationID,
		rec.ResponseHash,
		rec.TokensIn,
		rec.TokensOut,
		rec.Latency.Milliseconds(),
		rec.EstimatedCost,
	)
	if err != nil {
		return fmt.Errorf("audit: failed to log response: %w", err)
	}
	return nil
}

// LogError records the failure text against an attempt. Error text must never
// contain message content; the gateway only passes provider/transport errors
// and stage names. Terminal failures that happen before any attempt row
// exists arrive with an empty correlation id and are stored as standalone
// rows so the trail stays complete.
func (s *Store) LogError(ctx context.Context, correlationID string, errorText string) error {
	if correlationID == "" {
		query := `
			INSERT INTO llm_audit_entries (
				correlation_id, tenant_id, user_id, provider, model,
				sensitivity, prompt_hash, purpose, error_text, created_at
			) VALUES ($1, '', '', '', '', '', '', '', $2, $3)
		`
		if _, err := s.db.ExecContext(ctx, query, uuid.NewString(), errorText, time.Now().UTC()); err != nil {
			return fmt.Errorf("audit: failed to log error: %w", err)
		}
		return nil
	}

	query := `UPDATE llm_audit_entries SET error_text = $2 WHERE correlation_id = $1`
	if _, err := s.db.ExecContext(ctx, query, correlationID, errorText); err != nil {
		return fmt.Errorf("audit: failed to log error: %w", err)
	}
	return nil
}

// MarkHumanValidated records that a reviewer signed off on the response.
func (s *Store) MarkHumanValidated(ctx context.Context, correlationID, validatorID string) error {
	query := `
		UPDATE llm_audit_entries
		SET human_validated = TRUE, validator_id = $2, validated_at = $3
		WHERE correlation_id = $1
	`
	if _, err := s.db.ExecContext(ctx, query, correlationID, validatorID, time.Now().UTC()); err != nil {
		return fmt.Errorf("audit: failed to mark human validated: %w", err)
	}
	return nil
}

// Filter selects entries for compliance reporting.
type Filter struct {
	TenantID    string
	Provider    string
	Sensitivity string
	StartTime   time.Time
	EndTime     time.Time
	Limit       int
	Offset      int
}

// Query retrieves audit entries for a tenant, newest first.
func (s *Store) Query(ctx context.Context, filter Filter) ([]Entry, error) {
	query := `
		SELECT correlation_id, tenant_id, user_id, provider, model,
		       sensitivity, was_anonymized, anonymization_method,
		       prompt_hash, response_hash, tokens_in, tokens_out,
		       latency_ms, estimated_cost, purpose,
		       human_validated, validator_id, validated_at, error_text, created_at
		FROM llm_audit_entries
		WHERE tenant_id = $1
	`
	args := []interface{}{filter.TenantID}
	argIdx := 2

	if filter.Provider != "" {
		query += fmt.Sprintf(" AND provider = $%d", argIdx)
		args = append(args, filter.Provider)
		argIdx++
	}
	if filter.Sensitivity != "" {
		query += fmt.Sprintf(" AND sensitivity = $%d", argIdx)
		args = append(args, filter.Sensitivity)
		argIdx++
	}
	if !filter.StartTime.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, filter.StartTime)
		argIdx++
	}
	if !filter.EndTime.IsZero() {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, filter.EndTime)
		argIdx++
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var method, responseHash, validatorID, errorText sql.NullString
		var validatedAt sql.NullTime
		err := rows.Scan(
			&e.CorrelationID, &e.TenantID, &e.UserID, &e.Provider, &e.Model,
			&e.Sensitivity, &e.WasAnonymized, &method,
			&e.PromptHash, &responseHash, &e.TokensIn, &e.TokensOut,
			&e.LatencyMS, &e.EstimatedCost, &e.Purpose,
			&e.HumanValidated, &validatorID, &validatedAt, &errorText, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("audit: failed to scan entry: %w", err)
		}
		e.Method = method.String
		e.ResponseHash = responseHash.String
		e.ValidatorID = validatorID.String
		e.ValidatedAt = validatedAt.Time
		e.ErrorText = errorText.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
