package domain

import "time"

// User is the marketplace account projection owned by the reputation service.
// TrustScore and Badges are derived from Facts and only written during a recompute.
type User struct {
	ID         string
	Name       string
	Email      string
	TrustScore int
	// Badges is the legacy flat list of awarded badge names, kept in lock-step with the ledger.
	Badges    []string
	CreatedAt time.Time
	UpdatedAt time.Time
}
