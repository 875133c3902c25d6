package gateway

import (
	"fmt"

	"github.com/mvandenbroeck/legal-ai-gateway/internal/classify"
)

// BlockingError stops the entire request: the anonymization gate failed, so
// nothing may be sent to any provider. It is never absorbed by fallback.
// Reason names the stage and kind counts, never a detected value.
type BlockingError struct {
	Stage  string // "anonymize" or "verify"
	Reason string
}

func (e *BlockingError) Error() string {
	return fmt.Sprintf("gateway: request blocked at %s stage: %s", e.Stage, e.Reason)
}

// NoAllowedProviderError means the sensitivity tier has no available, healthy
// candidate. Fatal; there is no best-effort mode for protected data.
type NoAllowedProviderError struct {
	Tier classify.SensitivityTier
}

func (e *NoAllowedProviderError) Error() string {
	return fmt.Sprintf("gateway: no allowed provider available for sensitivity tier %s", e.Tier)
}

// AllProvidersExhaustedError means every candidate failed recoverably.
type AllProvidersExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *AllProvidersExhaustedError) Error() string {
	return fmt.Sprintf("gateway: all %d candidate providers failed, last error: %v", e.Attempts, e.LastErr)
}

func (e *AllProvidersExhaustedError) Unwrap() error {
	return e.LastErr
}
