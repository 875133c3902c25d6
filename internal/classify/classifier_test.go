package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mvandenbroeck/legal-ai-gateway/internal/detect"
)

type staticDirectory struct {
	byTrust map[int][]string
}

func (d staticDirectory) NamesWithinTrust(maxTrustTier int) []string {
	return d.byTrust[maxTrustTier]
}

func TestTierOrderingAndNames(t *testing.T) {
	assert.True(t, TierPublic < TierSemiSensitive)
	assert.True(t, TierSemiSensitive < TierSensitive)
	assert.True(t, TierSensitive < TierCritical)

	assert.Equal(t, "public", TierPublic.String())
	assert.Equal(t, "semi_sensitive", TierSemiSensitive.String())
	assert.Equal(t, "sensitive", TierSensitive.String())
	assert.Equal(t, "critical", TierCritical.String())
}

func TestParseTierUnknownStaysStrict(t *testing.T) {
	assert.Equal(t, TierCritical, ParseTier("critical"))
	assert.Equal(t, TierPublic, ParseTier("public"))
	assert.Equal(t, TierSensitive, ParseTier("totally-open"))
	assert.Equal(t, TierSensitive, ParseTier(""))
}

func TestMaxTrustTier(t *testing.T) {
	assert.Equal(t, 3, TierPublic.MaxTrustTier())
	assert.Equal(t, 2, TierSemiSensitive.MaxTrustTier())
	assert.Equal(t, 2, TierSensitive.MaxTrustTier())
	assert.Equal(t, 1, TierCritical.MaxTrustTier())
}

func TestClassifyTiers(t *testing.T) {
	c := New(detect.New(), nil)

	tests := []struct {
		name string
		text string
		ctx  *Context
		want SensitivityTier
	}{
		{
			name: "national register number is critical",
			text: "Mijn cliënt, geboren op 15.06.1985 met rijksregisternummer 85.06.15-123.45, vraagt advies.",
			want: TierCritical,
		},
		{
			name: "health keyword is critical",
			text: "de diagnose staat niet in het verslag van de verzekeraar",
			want: TierCritical,
		},
		{
			name: "criminal keyword is critical",
			text: "het parket heeft het onderzoek overgenomen",
			want: TierCritical,
		},
		{
			name: "contact details are semi sensitive",
			text: "antwoord sturen naar jan.peeters@example.be voor vrijdag a.u.b. zonder verdere toelichting te vragen over iets anders dan dit adres en deze datum want meer is er niet",
			want: TierSemiSensitive,
		},
		{
			name: "empty text is public",
			text: "   ",
			want: TierPublic,
		},
		{
			name: "pure citation is public",
			text: "Cass. 12 maart 2019",
			want: TierPublic,
		},
		{
			name: "citation inside substantive prose defaults to sensitive",
			text: "Wat zegt Cass. 12 maart 2019 over verjaring bij aanneming?",
			want: TierSensitive,
		},
		{
			name: "substantive text without entities defaults to sensitive",
			text: "leg het verschil uit tussen huur en pacht volgens het gemeen recht",
			want: TierSensitive,
		},
		{
			name: "published reference source overrides detection",
			text: "arrest inzake jan.peeters@example.be met rijksregisternummer 85.06.15-123.45",
			ctx:  &Context{Source: SourcePublishedReference},
			want: TierPublic,
		},
		{
			name: "caller-asserted client data raises the floor",
			text: "antwoord sturen naar jan.peeters@example.be met het volledige advies en alle stukken uit het dossier van de zaak die wij eerder bespraken tijdens de vergadering",
			ctx:  &Context{HasClientData: true},
			want: TierSensitive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.text, tt.ctx)
			assert.Equal(t, tt.want, got.Tier, "reasons: %v", got.Reasons)
			assert.NotEmpty(t, got.Reasons)
		})
	}
}

func TestClassifyMaxAcrossEntities(t *testing.T) {
	c := New(detect.New(), nil)

	// The highest tier among all detections wins.
	text := "Mail jan.peeters@example.be; de minderjarige verschijnt volgende week."
	got := c.Classify(text, nil)
	assert.Equal(t, TierCritical, got.Tier)
}

func TestClassifyResolvesAllowedProviders(t *testing.T) {
	dir := staticDirectory{byTrust: map[int][]string{
		1: {"inhouse"},
		2: {"inhouse", "abroad"},
		3: {"inhouse", "abroad", "experimental"},
	}}
	c := New(detect.New(), dir)

	critical := c.Classify("het strafblad van de cliënt telt drie feiten", nil)
	assert.Equal(t, TierCritical, critical.Tier)
	assert.Equal(t, []string{"inhouse"}, critical.AllowedProviders)

	public := c.Classify("Cass. 12 maart 2019", nil)
	assert.Equal(t, TierPublic, public.Tier)
	assert.Equal(t, []string{"inhouse", "abroad", "experimental"}, public.AllowedProviders)

	// The allowed set narrows monotonically as the tier rises.
	sensitive := c.Classify("vergelijk de opzegtermijnen in beide stelsels grondig", nil)
	assert.Equal(t, TierSensitive, sensitive.Tier)
	assert.Subset(t, public.AllowedProviders, sensitive.AllowedProviders)
	assert.Subset(t, sensitive.AllowedProviders, critical.AllowedProviders)
}
