// Package classify assigns a sensitivity tier to free text and resolves which
// providers that tier authorizes. Classification is deterministic: when the
// detector finds nothing but the text still has substantive content, the
// result defaults upward to sensitive rather than down to public.
package classify

import (
	"fmt"
	"strings"

	"github.com/mvandenbroeck/legal-ai-gateway/internal/detect"
)

// SourcePublishedReference marks text coming from a published reference
// database (case law, statutes). The collaborator's guarantee trumps whatever
// the detector finds in the text itself.
const SourcePublishedReference = "published_reference_database"

// Context carries caller-supplied hints about where the text came from.
type Context struct {
	Source        string
	HasClientData bool
}

// Result is the immutable outcome of one classification.
type Result struct {
	Tier             SensitivityTier
	Entities         []detect.Entity
	Reasons          []string
	AllowedProviders []string
}

// ProviderDirectory resolves which provider names a trust tier bound admits.
// The provider registry implements it.
type ProviderDirectory interface {
	NamesWithinTrust(maxTrustTier int) []string
}

// Classifier ties the entity detector to the tier rules.
type Classifier struct {
	detector  *detect.Detector
	providers ProviderDirectory
}

func New(detector *detect.Detector, providers ProviderDirectory) *Classifier {
	if detector == nil {
		detector = detect.New()
	}
	return &Classifier{detector: detector, providers: providers}
}

// kindTiers maps entity kinds to the minimum tier they imply.
var kindTiers = map[detect.Kind]SensitivityTier{
	detect.KindHealth:        TierCritical,
	detect.KindCriminal:      TierCritical,
	detect.KindMinor:         TierCritical,
	detect.KindNationalID:    TierCritical,
	detect.KindPersonName:    TierSensitive,
	detect.KindFileReference: TierSensitive,
	detect.KindDateOfBirth:   TierSensitive,
	detect.KindBusinessID:    TierSemiSensitive,
	detect.KindPhone:         TierSemiSensitive,
	detect.KindBankAccount:   TierSemiSensitive,
	detect.KindEmail:         TierSemiSensitive,
	detect.KindPostalAddress: TierSemiSensitive,
	detect.KindLegalCitation: TierPublic,
}

// Classify runs the detector and applies the tier rules. ctx may be nil.
func (c *Classifier) Classify(text string, ctx *Context) Result {
	if ctx != nil && ctx.Source == SourcePublishedReference {
		return c.finish(Result{
			Tier:    TierPublic,
			Reasons: []string{"source is a published reference database"},
		})
	}

	if strings.TrimSpace(text) == "" {
		return c.finish(Result{
			Tier:    TierPublic,
			Reasons: []string{"empty text"},
		})
	}

	entities := c.detector.Detect(text)

	tier := TierPublic
	var reasons []string
	kindCounts := map[detect.Kind]int{}
	for _, e := range entities {
		kindCounts[e.Kind]++
		if implied, ok := kindTiers[e.Kind]; ok && implied > tier {
			tier = implied
		}
	}
	for kind, n := range kindCounts {
		reasons = append(reasons, fmt.Sprintf("detected %d %s entity(ies)", n, kind))
	}

	if len(entities) == 0 || citationOnly(entities) {
		if citationOnly(entities) && isOnlyCitations(text, entities) {
			reasons = append(reasons, "text consists solely of published legal citations")
			tier = TierPublic
		} else if tier < TierSensitive {
			// Precautionary default: substantive text with no detections is
			// treated as sensitive, never public.
			tier = TierSensitive
			reasons = append(reasons, "no entities detected in substantive text, defaulting to sensitive")
		}
	}

	if ctx != nil && ctx.HasClientData && tier < TierSensitive {
		tier = TierSensitive
		reasons = append(reasons, "caller asserted client data is present")
	}

	return c.finish(Result{Tier: tier, Entities: entities, Reasons: reasons})
}

func (c *Classifier) finish(r Result) Result {
	if c.providers != nil {
		r.AllowedProviders = c.providers.NamesWithinTrust(r.Tier.MaxTrustTier())
	}
	return r
}

func citationOnly(entities []detect.Entity) bool {
	if len(entities) == 0 {
		return false
	}
	for _, e := range entities {
		if e.Kind != detect.KindLegalCitation {
			return false
		}
	}
	return true
}

// isOnlyCitations reports whether nothing substantive remains once every
// citation span and punctuation is stripped out.
func isOnlyCitations(text string, entities []detect.Entity) bool {
	remainder := []byte(text)
	for _, e := range entities {
		for i := e.Start; i < e.End && i < len(remainder); i++ {
			remainder[i] = ' '
		}
	}
	stripped := strings.Map(func(r rune) rune {
		if strings.ContainsRune(" \t\n\r.,;:()[]-–—'\"", r) {
			return -1
		}
		return r
	}, string(remainder))
	return stripped == ""
}
