package domain

// Reputation is the read projection returned by every mutating call.
type Reputation struct {
	UserID     string
	TrustScore int
	// Badges mirrors the legacy flat name list on the user record.
	Badges       []string
	BadgeRecords []Badge
}

// ReputationChange summarises what a single recompute committed.
type ReputationChange struct {
	UserID        string
	PreviousScore int
	Score         int
	Awarded       []Badge
	Revoked       []string
}

// ScoreChanged reports whether the stored trust score moved.
func (c ReputationChange) ScoreChanged() bool {
	return c.PreviousScore != c.Score
}
