package models

// Tier is the subscription class that decides a user's lookup quota.
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

func (t Tier) Valid() bool {
	return t == TierFree || t == TierPro
}

// ParseTier falls back to free for anything unrecognised.
func ParseTier(s string) Tier {
	if t := Tier(s); t.Valid() {
		return t
	}
	return TierFree
}
