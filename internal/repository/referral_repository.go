package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/reputation-service/internal/domain"
	apperrors "github.com/spec-kit/reputation-service/pkg/util/errorutil"
)

type referralRepository struct {
	db querier
}

func (r *referralRepository) Create(ctx context.Context, referral *domain.Referral) error {
	const query = `
        INSERT INTO referrals (id, referrer_id, referee_id, status, created_at)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (referee_id) DO NOTHING`

	if referral.ID == "" {
		referral.ID = uuid.NewString()
	}
	if referral.Status == "" {
		referral.Status = domain.ReferralPending
	}
	if referral.CreatedAt.IsZero() {
		referral.CreatedAt = time.Now().UTC()
	}
	cmd, err := r.db.Exec(ctx, query,
		referral.ID,
		referral.ReferrerID,
		referral.RefereeID,
		referral.Status,
		referral.CreatedAt,
	)
	if isForeignKeyViolation(err) {
		return apperrors.NewNotFound("user", map[string]any{
			"referrerId": referral.ReferrerID,
			"refereeId":  referral.RefereeID,
		})
	}
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return apperrors.NewConflict("referee already referred", map[string]any{"refereeId": referral.RefereeID})
	}
	return nil
}

func (r *referralRepository) GetByID(ctx context.Context, id string) (*domain.Referral, error) {
	const query = `
        SELECT id, referrer_id, referee_id, status, created_at, completed_at
        FROM referrals WHERE id=$1`

	var ref domain.Referral
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&ref.ID,
		&ref.ReferrerID,
		&ref.RefereeID,
		&ref.Status,
		&ref.CreatedAt,
		&ref.CompletedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("referral", map[string]any{"referralId": id})
		}
		return nil, err
	}
	return &ref, nil
}

func (r *referralRepository) MarkCompleted(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `
        UPDATE referrals SET status=$1, completed_at=$2
        WHERE id=$3 AND status=$4`

	cmd, err := r.db.Exec(ctx, query, domain.ReferralCompleted, at, id, domain.ReferralPending)
	if err != nil {
		return false, err
	}
	if cmd.RowsAffected() == 1 {
		return true, nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}
