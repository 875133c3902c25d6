package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Recorder keeps the trail in memory. Used in tests and by embedders that
// forward entries to their own durable store.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) LogRequest(_ context.Context, rec RequestRecord) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	correlationID := uuid.NewString()
	r.entries = append(r.entries, Entry{
		CorrelationID: correlationID,
		TenantID:      rec.TenantID,
		UserID:        rec.UserID,
		Provider:      rec.Provider,
		Model:         rec.Model,
		Sensitivity:   rec.Sensitivity,
		WasAnonymized: rec.WasAnonymized,
		Method:        rec.Method,
		PromptHash:    rec.PromptHash,
		Purpose:       rec.Purpose,
		CreatedAt:     time.Now().UTC(),
	})
	return correlationID, nil
}

func (r *Recorder) LogResponse(_ context.Context, correlationID string, rec ResponseRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].CorrelationID == correlationID {
			r.entries[i].ResponseHash = rec.ResponseHash
			r.entries[i].TokensIn = rec.TokensIn
			r.entries[i].TokensOut = rec.TokensOut
			r.entries[i].LatencyMS = rec.Latency.Milliseconds()
			r.entries[i].EstimatedCost = rec.EstimatedCost
			return nil
		}
	}
	return nil
}

func (r *Recorder) LogError(_ context.Context, correlationID string, errorText string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].CorrelationID == correlationID {
			r.entries[i].ErrorText = errorText
			return nil
		}
	}
	// Terminal failures before any attempt row carry an empty correlation id;
	// record them as standalone entries so the trail stays complete.
	r.entries = append(r.entries, Entry{
		CorrelationID: correlationID,
		ErrorText:     errorText,
		CreatedAt:     time.Now().UTC(),
	})
	return nil
}

func (r *Recorder) MarkHumanValidated(_ context.Context, correlationID, validatorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].CorrelationID == correlationID {
			r.entries[i].HumanValidated = true
			r.entries[i].ValidatorID = validatorID
			r.entries[i].ValidatedAt = time.Now().UTC()
			return nil
		}
	}
	return nil
}

// Entries returns a copy of the recorded trail.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}
