package domain

import "time"

// ReferralStatus enumerates referral lifecycle states.
type ReferralStatus string

const (
	ReferralPending   ReferralStatus = "PENDING"
	ReferralCompleted ReferralStatus = "COMPLETED"
)

// Referral links a referring user to the account they brought in.
type Referral struct {
	ID          string
	ReferrerID  string
	RefereeID   string
	Status      ReferralStatus
	CreatedAt   time.Time
	CompletedAt *time.Time
}
