package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/reputation-service/internal/domain"
	apperrors "github.com/spec-kit/reputation-service/pkg/util/errorutil"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const userColumns = `id, name, email, trust_score, badges, created_at, updated_at`

type userRepository struct {
	db querier
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (id, name, email, trust_score, badges, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $6)
        RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.TrustScore,
		user.Badges,
		user.CreatedAt,
	).Scan(&user.UpdatedAt)
	if isUniqueViolation(err) {
		return apperrors.NewConflict("user already exists", map[string]any{"userId": user.ID})
	}
	return err
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return r.scan(r.db.QueryRow(ctx, query, id), id)
}

// GetForUpdate row-locks the user until the surrounding transaction ends.
func (r *userRepository) GetForUpdate(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id=$1 FOR UPDATE`
	return r.scan(r.db.QueryRow(ctx, query, id), id)
}

func (r *userRepository) UpdateTrustScore(ctx context.Context, id string, score int) error {
	const query = `
        UPDATE users SET trust_score=$1, updated_at=NOW()
        WHERE id=$2`

	cmd, err := r.db.Exec(ctx, query, score, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return apperrors.NewNotFound("user", map[string]any{"userId": id})
	}
	return nil
}

func (r *userRepository) scan(row pgx.Row, id string) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.TrustScore,
		&user.Badges,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"userId": id})
		}
		return nil, err
	}
	if user.Badges == nil {
		user.Badges = []string{}
	}
	return &user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
