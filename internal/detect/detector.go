// Package detect finds regulated identifiers, contact details, and legal
// context markers in free text. Both the classifier and the anonymizer consume
// its output so there is a single definition of what counts as sensitive.
package detect

import (
	"regexp"
	"sort"
	"strings"
)

// Kind identifies the category of a detected entity.
type Kind string

const (
	KindNationalID    Kind = "national_id"
	KindBusinessID    Kind = "business_id"
	KindPhone         Kind = "phone"
	KindBankAccount   Kind = "bank_account"
	KindEmail         Kind = "email"
	KindDateOfBirth   Kind = "date_of_birth"
	KindPostalAddress Kind = "postal_address"
	KindFileReference Kind = "file_reference"
	KindPersonName    Kind = "person_name"
	KindHealth        Kind = "health_keyword"
	KindCriminal      Kind = "criminal_keyword"
	KindMinor         Kind = "minor_keyword"
	KindLegalCitation Kind = "legal_citation"
)

// Entity is a single match in the scanned text. Entities are produced fresh on
// every Detect call and are never persisted.
type Entity struct {
	Kind       Kind
	Value      string
	Start      int
	End        int
	Confidence float64
}

type pattern struct {
	kind       Kind
	re         *regexp.Regexp
	confidence float64
	// group selects a capture group as the entity value; 0 means whole match.
	group int
}

// Detector runs an ordered battery of compiled patterns over text.
type Detector struct {
	patterns []pattern
}

// nameStopwords are capitalized words that start common Dutch/French/English
// sentences and must not be mistaken for the first half of a person name.
var nameStopwords = map[string]bool{
	"De": true, "Het": true, "Een": true, "Deze": true, "Die": true, "Dit": true,
	"Le": true, "La": true, "Les": true, "Un": true, "Une": true, "Ce": true,
	"The": true, "This": true, "That": true, "Hof": true, "Rechtbank": true,
	"Cour": true, "Tribunal": true, "Wetboek": true, "Code": true, "Artikel": true,
	"Article": true,
}

// New compiles the full pattern battery. Pattern order matters only for equal
// spans; overlap resolution prefers confidence, then length.
func New() *Detector {
	specs := []struct {
		kind       Kind
		expr       string
		confidence float64
		group      int
	}{
		// Belgian national register number: 85.06.15-123.45 and spacing variants.
		{KindNationalID, `\b\d{2}[.\- ]\d{2}[.\- ]\d{2}[.\- ]\d{3}[.\- ]\d{2}\b`, 0.98, 0},
		// KBO/BCE enterprise number and BE VAT number.
		{KindBusinessID, `\b(?:BE[ .]?)?0\d{3}[. ]\d{3}[. ]\d{3}\b`, 0.92, 0},
		{KindBusinessID, `(?i)\b(?:btw|tva|vat)[-: ]*(?:BE)?\s?0\d{9}\b`, 0.92, 0},
		// IBAN (Belgian and general European shapes).
		{KindBankAccount, `\b[A-Z]{2}\d{2}(?:[ ]?[0-9A-Z]{4}){2,7}(?:[ ]?[0-9A-Z]{1,3})?\b`, 0.9, 0},
		// Phone numbers: +32 variants, 0X/0XX national formats.
		{KindPhone, `(?:\+|00)\d{2}[ ./-]?\(?\d{1,3}\)?(?:[ ./-]?\d{2,4}){2,4}`, 0.85, 0},
		{KindPhone, `\b0\d{1,2}[ ./-]\d{2,3}[ ./-]\d{2}[ ./-]\d{2}\b`, 0.8, 0},
		// Email.
		{KindEmail, `\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`, 0.97, 0},
		// Date of birth: only after an explicit birth marker.
		{KindDateOfBirth, `(?i)(?:geboren\s+op|geboortedatum|n[ée]e?\s+le|date\s+de\s+naissance|date\s+of\s+birth|born\s+on)\s*[:,]?\s*(\d{1,2}[ ./-]\d{1,2}[ ./-]\d{2,4})`, 0.93, 1},
		// Postal address: street keyword followed within 40 chars by a 4-digit
		// Belgian postal code.
		{KindPostalAddress, `(?i)\b[\p{L}'\-]*(?:straat|laan|steenweg|dreef|plein|baan|weg|rue|avenue|chauss[ée]e|boulevard|place|street|lane|road)\s+\d{1,4}[a-zA-Z]?\b[^.\n]{0,40}?\b\d{4}\b(?:\s+[\p{L}][\p{L}\-]+)?`, 0.85, 0},
		// Internal file references: dossier/rolnummer style markers.
		{KindFileReference, `(?i)\b(?:dossier(?:nummer|nr)?|rolnummer|rol\.?\s?nr|ref(?:erentie)?|zaak)\s*[.:n°#]*\s*(\d{2,4}[/.-][A-Z]?[/.-]?\d{1,6}(?:[/.-]\d{1,4})?)`, 0.88, 1},
		// Person name after an honorific or legal title.
		{KindPersonName, `\b(?:Mr\.|Mtr\.|Meester|Ma[îi]tre|Dhr\.|De\s+heer|Mevr(?:ouw)?\.?|M\.|Mme\.?|Dr\.|Prof\.)\s+([A-Z][\p{L}'\-]+(?:\s+(?:van|de|der|den|du|le|t')?\s*[A-Z][\p{L}'\-]+){0,2})`, 0.9, 1},
		// Two consecutive capitalized words not at a sentence boundary.
		{KindPersonName, `(?:[a-z0-9,;)]\s+)([A-Z][\p{L}'\-]{2,}\s+[A-Z][\p{L}'\-]{2,})\b`, 0.6, 1},
		// Published legal citations: ECLI, cassation, statute articles.
		{KindLegalCitation, `\bECLI:[A-Z]{2}:[A-Z0-9]+:\d{4}:[A-Z0-9.]+\b`, 0.99, 0},
		{KindLegalCitation, `(?i)\bCass\.\s*,?\s*\d{1,2}\s+\p{L}+\s+\d{4}\b`, 0.95, 0},
		{KindLegalCitation, `(?i)\b(?:art(?:ikel|icle)?\.?\s+\d+(?:bis|ter|quater)?(?:,\s*§\s*\d+)?\s+(?:van\s+het|du|of\s+the)?\s*\p{L}[\p{L}. ]{2,40}(?:wetboek|code))\b`, 0.9, 0},
		{KindLegalCitation, `(?i)\b(?:Hof\s+van\s+(?:Cassatie|Beroep)|Cour\s+de\s+cassation|Grondwettelijk\s+Hof|Raad\s+van\s+State)\b(?:\s+\p{L}+)?(?:\s+\d{1,2}\s+\p{L}+\s+\d{4})?`, 0.9, 0},
	}

	d := &Detector{patterns: make([]pattern, 0, len(specs)+3)}
	for _, s := range specs {
		d.patterns = append(d.patterns, pattern{
			kind:       s.kind,
			re:         regexp.MustCompile(s.expr),
			confidence: s.confidence,
			group:      s.group,
		})
	}
	d.patterns = append(d.patterns,
		lexiconPattern(KindHealth, healthLexicon, 0.9),
		lexiconPattern(KindCriminal, criminalLexicon, 0.9),
		lexiconPattern(KindMinor, minorLexicon, 0.9),
	)
	return d
}

func lexiconPattern(kind Kind, words []string, confidence float64) pattern {
	escaped := make([]string, len(words))
	for i, w := range words {
		escaped[i] = regexp.QuoteMeta(w)
	}
	expr := `(?i)\b(?:` + strings.Join(escaped, "|") + `)\b`
	return pattern{kind: kind, re: regexp.MustCompile(expr), confidence: confidence}
}

// Detect scans text and returns non-overlapping entities ordered by start
// offset. When two matches overlap, the higher-confidence match wins; on equal
// confidence the longer match wins.
func (d *Detector) Detect(text string) []Entity {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var raw []Entity
	for _, p := range d.patterns {
		idxs := p.re.FindAllStringSubmatchIndex(text, -1)
		for _, m := range idxs {
			start, end := m[0], m[1]
			if p.group > 0 && len(m) > 2*p.group+1 && m[2*p.group] >= 0 {
				start, end = m[2*p.group], m[2*p.group+1]
			}
			if end <= start {
				continue
			}
			value := text[start:end]
			if p.kind == KindPersonName && isNameStopword(value) {
				continue
			}
			raw = append(raw, Entity{
				Kind:       p.kind,
				Value:      value,
				Start:      start,
				End:        end,
				Confidence: p.confidence,
			})
		}
	}
	return resolveOverlaps(raw)
}

func isNameStopword(value string) bool {
	first, _, _ := strings.Cut(value, " ")
	return nameStopwords[first]
}

// resolveOverlaps drops any entity whose span overlaps a stronger one.
func resolveOverlaps(entities []Entity) []Entity {
	if len(entities) == 0 {
		return nil
	}
	// Strongest first: confidence desc, then length desc, then start asc.
	sort.SliceStable(entities, func(i, j int) bool {
		if entities[i].Confidence != entities[j].Confidence {
			return entities[i].Confidence > entities[j].Confidence
		}
		li, lj := entities[i].End-entities[i].Start, entities[j].End-entities[j].Start
		if li != lj {
			return li > lj
		}
		return entities[i].Start < entities[j].Start
	})

	kept := make([]Entity, 0, len(entities))
	for _, e := range entities {
		overlaps := false
		for _, k := range kept {
			if e.Start < k.End && k.Start < e.End {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, e)
		}
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].Start < kept[j].Start })
	return kept
}
