// Package anonymize performs reversible placeholder substitution of detected
// entities. The placeholder mapping lives only for the duration of one
// request: it is never logged and never written to durable storage.
package anonymize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mvandenbroeck/legal-ai-gateway/internal/detect"
)

// Result holds an anonymized text alongside the mapping needed to restore it.
type Result struct {
	Text        string
	Mapping     map[string]string // placeholder -> original value
	EntityCount int
}

// Message mirrors a chat message; only the Content field is anonymized.
type Message struct {
	Role    string
	Content string
}

// Anonymizer substitutes detector output with stable per-value placeholders.
type Anonymizer struct {
	detector *detect.Detector
}

func New(detector *detect.Detector) *Anonymizer {
	if detector == nil {
		detector = detect.New()
	}
	return &Anonymizer{detector: detector}
}

// placeholderLabels keeps the placeholders readable for a human auditor.
var placeholderLabels = map[detect.Kind]string{
	detect.KindNationalID:    "NATIONAL_ID",
	detect.KindBusinessID:    "BUSINESS_ID",
	detect.KindPhone:         "PHONE",
	detect.KindBankAccount:   "BANK_ACCOUNT",
	detect.KindEmail:         "EMAIL",
	detect.KindDateOfBirth:   "DATE_OF_BIRTH",
	detect.KindPostalAddress: "ADDRESS",
	detect.KindFileReference: "FILE_REF",
	detect.KindPersonName:    "PERSON",
	detect.KindHealth:        "HEALTH_TERM",
	detect.KindCriminal:      "CRIMINAL_TERM",
	detect.KindMinor:         "MINOR_TERM",
	detect.KindLegalCitation: "CITATION",
}

// Anonymize detects entities in text and replaces each unique literal value
// with a stable placeholder. The same value appearing twice gets the same
// placeholder; counters are per kind so `[PERSON_2]` reads naturally.
func (a *Anonymizer) Anonymize(text string) (Result, error) {
	entities := a.detector.Detect(text)
	return a.substitute(text, entities, map[string]string{}, map[detect.Kind]int{})
}

// AnonymizeMessages anonymizes the content of every message and merges the
// per-message mappings into one. Roles are left untouched.
func (a *Anonymizer) AnonymizeMessages(messages []Message) ([]Message, map[string]string, error) {
	merged := map[string]string{}
	counters := map[detect.Kind]int{}
	out := make([]Message, len(messages))
	for i, msg := range messages {
		entities := a.detector.Detect(msg.Content)
		res, err := a.substitute(msg.Content, entities, merged, counters)
		if err != nil {
			return nil, nil, err
		}
		out[i] = Message{Role: msg.Role, Content: res.Text}
	}
	return out, merged, nil
}

// substitute applies placeholders for entities, reusing and extending the
// supplied mapping and per-kind counters so repeated values across messages
// stay stable.
func (a *Anonymizer) substitute(text string, entities []detect.Entity, mapping map[string]string, counters map[detect.Kind]int) (Result, error) {
	if len(entities) == 0 {
		return Result{Text: text, Mapping: mapping}, nil
	}

	// One placeholder per unique literal value.
	valueToPlaceholder := map[string]string{}
	for ph, orig := range mapping {
		valueToPlaceholder[orig] = ph
	}

	type sub struct {
		value       string
		placeholder string
	}
	var subs []sub
	count := 0
	for _, e := range entities {
		count++
		if _, seen := valueToPlaceholder[e.Value]; seen {
			continue
		}
		counters[e.Kind]++
		ph := fmt.Sprintf("[%s_%d]", placeholderLabels[e.Kind], counters[e.Kind])
		valueToPlaceholder[e.Value] = ph
		mapping[ph] = e.Value
		subs = append(subs, sub{value: e.Value, placeholder: ph})
	}

	// Substitutions also cover values mapped in earlier messages.
	for ph, orig := range mapping {
		found := false
		for _, s := range subs {
			if s.value == orig {
				found = true
				break
			}
		}
		if !found {
			subs = append(subs, sub{value: orig, placeholder: ph})
		}
	}

	// Longest value first so a value that is a substring of another cannot
	// corrupt the longer one once it has been replaced.
	sort.Slice(subs, func(i, j int) bool {
		if len(subs[i].value) != len(subs[j].value) {
			return len(subs[i].value) > len(subs[j].value)
		}
		return subs[i].value < subs[j].value
	})

	result := text
	for _, s := range subs {
		// A source text that already contains one of our placeholder tokens
		// would make deanonymization ambiguous. Refuse rather than guess.
		if strings.Contains(text, s.placeholder) {
			return Result{}, fmt.Errorf("anonymize: text already contains placeholder token %s", s.placeholder)
		}
		result = strings.ReplaceAll(result, s.value, s.placeholder)
	}

	return Result{Text: result, Mapping: mapping, EntityCount: count}, nil
}

// Deanonymize restores the original values, longest placeholder first.
func Deanonymize(text string, mapping map[string]string) string {
	if len(mapping) == 0 {
		return text
	}
	placeholders := make([]string, 0, len(mapping))
	for ph := range mapping {
		placeholders = append(placeholders, ph)
	}
	sort.Slice(placeholders, func(i, j int) bool {
		if len(placeholders[i]) != len(placeholders[j]) {
			return len(placeholders[i]) > len(placeholders[j])
		}
		return placeholders[i] < placeholders[j]
	})
	for _, ph := range placeholders {
		text = strings.ReplaceAll(text, ph, mapping[ph])
	}
	return text
}

// Verify confirms no original entity value of length >= 3 survived in the
// anonymized text. This is the last line of defense before text leaves the
// trust boundary; it must run before any non-tier-1 provider call.
func Verify(anonymized string, entities []detect.Entity) bool {
	for _, e := range entities {
		if len(e.Value) < 3 {
			continue
		}
		if strings.Contains(anonymized, e.Value) {
			return false
		}
	}
	return true
}
