// Package audit records a hash-only, append-only compliance trail of every
// provider attempt. Message content never enters the store; only sha256
// digests of prompt and response do.
package audit

import (
	"context"
	"time"
)

// Entry is one provider attempt. Append-only: rows are inserted on request,
// then updated in place only to attach the response/error outcome and the
// human-validation mark for the same correlation id.
type Entry struct {
	CorrelationID  string
	TenantID       string
	UserID         string
	Provider       string
	Model          string
	Sensitivity    string
	WasAnonymized  bool
	Method         string
	PromptHash     string
	ResponseHash   string
	TokensIn       int32
	TokensOut      int32
	LatencyMS      int64
	EstimatedCost  float64
	Purpose        string
	HumanValidated bool
	ValidatorID    string
	ValidatedAt    time.Time
	ErrorText      string
	CreatedAt      time.Time
}

// RequestRecord carries everything known at the moment an attempt starts.
type RequestRecord struct {
	TenantID      string
	UserID        string
	Provider      string
	Model         string
	Sensitivity   string
	WasAnonymized bool
	Method        string
	PromptHash    string
	Purpose       string
}

// ResponseRecord closes out a successful attempt.
type ResponseRecord struct {
	ResponseHash  string
	TokensIn      int32
	TokensOut     int32
	Latency       time.Duration
	EstimatedCost float64
}

// Logger is the trail the gateway writes to. Implementations must be durable
// and append-only; the gateway treats write failures as non-fatal to the
// user-facing response but surfaces them in its own logs.
type Logger interface {
	LogRequest(ctx context.Context, rec RequestRecord) (correlationID string, err error)
	LogResponse(ctx context.Context, correlationID string, rec ResponseRecord) error
	LogError(ctx context.Context, correlationID string, errorText string) error
	MarkHumanValidated(ctx context.Context, correlationID, validatorID string) error
}
