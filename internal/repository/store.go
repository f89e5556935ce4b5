package repository

import (
	"context"
	"errors"
	"time"

	"github.com/spec-kit/reputation-service/internal/domain"
)

var errWrongUser = errors.New("ledger write for a user outside the transaction")

// Store is the persistence boundary of the reputation service. Every
// read-modify-write of one user's facts, score and badges goes through
// WithinUserTx so that concurrent mutations of the same user serialise.
type Store interface {
	CreateUser(ctx context.Context, user *domain.User, facts *domain.Facts) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetFacts(ctx context.Context, userID string) (*domain.Facts, error)
	ListBadges(ctx context.Context, userID string) ([]domain.Badge, error)
	// Snapshot reads the user row, facts and badges as of a single commit.
	Snapshot(ctx context.Context, userID string) (*domain.User, *domain.Facts, []domain.Badge, error)
	// WithinUserTx locks userID, runs fn and commits when fn returns nil.
	// Unknown users yield a NOT_FOUND error without calling fn.
	WithinUserTx(ctx context.Context, userID string, fn func(tx UserTx) error) error
	Referrals() ReferralRepository
	Ping(ctx context.Context) error
}

// UserTx is the view of one locked user inside WithinUserTx.
type UserTx interface {
	// User returns the locked row as read at the start of the transaction.
	User() *domain.User
	Facts(ctx context.Context) (*domain.Facts, error)
	SaveFacts(ctx context.Context, facts *domain.Facts) error
	SaveTrustScore(ctx context.Context, score int) error
	Ledger() BadgeLedger
}

// BadgeLedger holds at most one row per (user, badge name). Every write also
// keeps the legacy users.badges name list in step.
type BadgeLedger interface {
	// AwardIfAbsent inserts the badge unless one with the same name exists and
	// reports whether a row was inserted.
	AwardIfAbsent(ctx context.Context, userID string, award domain.BadgeAward, at time.Time) (*domain.Badge, bool, error)
	// RevokeIfPresentAndMirrored deletes the badge only when it is MIRRORED.
	RevokeIfPresentAndMirrored(ctx context.Context, userID, name string) (bool, error)
	List(ctx context.Context, userID string) ([]domain.Badge, error)
}

// ReferralRepository persists referrals. At most one exists per referee.
type ReferralRepository interface {
	Create(ctx context.Context, referral *domain.Referral) error
	GetByID(ctx context.Context, id string) (*domain.Referral, error)
	// MarkCompleted moves a PENDING referral to COMPLETED and reports whether
	// this call performed the transition.
	MarkCompleted(ctx context.Context, id string, at time.Time) (bool, error)
}
