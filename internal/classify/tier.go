package classify

// SensitivityTier orders how protected a piece of text is. Higher values are
// more restrictive; precedence across multiple detections takes the maximum.
type SensitivityTier int

const (
	TierPublic SensitivityTier = iota
	TierSemiSensitive
	TierSensitive
	TierCritical
)

func (t SensitivityTier) String() string {
	switch t {
	case TierPublic:
		return "public"
	case TierSemiSensitive:
		return "semi_sensitive"
	case TierSensitive:
		return "sensitive"
	case TierCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParseTier maps a tier name back to its value. Unknown names fall back to
// TierSensitive so a bad override never loosens the gate.
func ParseTier(s string) SensitivityTier {
	switch s {
	case "public":
		return TierPublic
	case "semi_sensitive":
		return TierSemiSensitive
	case "sensitive":
		return TierSensitive
	case "critical":
		return TierCritical
	default:
		return TierSensitive
	}
}

// MaxTrustTier returns the least-trusted provider tier (1 = most trusted) that
// may still receive data of this sensitivity. The table is fixed: public data
// may go anywhere, semi-sensitive and sensitive data may reach conditionally
// trusted providers (anonymized), critical data stays with tier-1 providers.
func (t SensitivityTier) MaxTrustTier() int {
	switch t {
	case TierPublic:
		return 3
	case TierSemiSensitive, TierSensitive:
		return 2
	case TierCritical:
		return 1
	default:
		return 1
	}
}
