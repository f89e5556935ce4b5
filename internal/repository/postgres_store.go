package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/reputation-service/internal/domain"
)

// PostgresStore implements Store on a pgx pool. The per-user scope is a
// transaction holding SELECT ... FOR UPDATE on the user row.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore returns a Postgres-backed Store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) CreateUser(ctx context.Context, user *domain.User, facts *domain.Facts) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if user.Badges == nil {
		user.Badges = []string{}
	}
	if facts == nil {
		facts = domain.NewFacts(user.ID, user.CreatedAt)
	}
	facts.UserID = user.ID

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := (&userRepository{db: tx}).Create(ctx, user); err != nil {
			return err
		}
		return (&factsRepository{db: tx}).Create(ctx, facts)
	})
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return (&userRepository{db: s.pool}).GetByID(ctx, id)
}

func (s *PostgresStore) GetFacts(ctx context.Context, userID string) (*domain.Facts, error) {
	return (&factsRepository{db: s.pool}).Get(ctx, userID)
}

func (s *PostgresStore) ListBadges(ctx context.Context, userID string) ([]domain.Badge, error) {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return (&badgeRepository{db: s.pool}).List(ctx, userID)
}

// Snapshot reads inside one read-only REPEATABLE READ transaction so all
// three reads see the same commit.
func (s *PostgresStore) Snapshot(ctx context.Context, userID string) (user *domain.User, facts *domain.Facts, badges []domain.Badge, err error) {
	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	err = pgx.BeginTxFunc(ctx, s.pool, opts, func(tx pgx.Tx) error {
		var err error
		if user, err = (&userRepository{db: tx}).GetByID(ctx, userID); err != nil {
			return err
		}
		if facts, err = (&factsRepository{db: tx}).Get(ctx, userID); err != nil {
			return err
		}
		badges, err = (&badgeRepository{db: tx}).List(ctx, userID)
		return err
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return user, facts, badges, nil
}

func (s *PostgresStore) WithinUserTx(ctx context.Context, userID string, fn func(tx UserTx) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		user, err := (&userRepository{db: tx}).GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		return fn(&postgresTx{
			user:   user,
			users:  &userRepository{db: tx},
			facts:  &factsRepository{db: tx},
			badges: &badgeRepository{db: tx},
		})
	})
}

func (s *PostgresStore) Referrals() ReferralRepository {
	return &referralRepository{db: s.pool}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

type postgresTx struct {
	user   *domain.User
	users  *userRepository
	facts  *factsRepository
	badges *badgeRepository
}

func (t *postgresTx) User() *domain.User {
	u := *t.user
	return &u
}

func (t *postgresTx) Facts(ctx context.Context) (*domain.Facts, error) {
	return t.facts.Get(ctx, t.user.ID)
}

func (t *postgresTx) SaveFacts(ctx context.Context, facts *domain.Facts) error {
	return t.facts.Save(ctx, facts)
}

func (t *postgresTx) SaveTrustScore(ctx context.Context, score int) error {
	return t.users.UpdateTrustScore(ctx, t.user.ID, score)
}

func (t *postgresTx) Ledger() BadgeLedger {
	return t.badges
}
