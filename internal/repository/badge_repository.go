package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/reputation-service/internal/domain"
)

const badgeColumns = `id, user_id, name, slug, kind, origin, metadata, awarded_at`

// badgeRepository is the Postgres BadgeLedger. It must run on a transaction
// that already holds the user row lock.
type badgeRepository struct {
	db querier
}

func (r *badgeRepository) AwardIfAbsent(ctx context.Context, userID string, award domain.BadgeAward, at time.Time) (*domain.Badge, bool, error) {
	const insert = `
        INSERT INTO badges (` + badgeColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (user_id, name) DO NOTHING`

	metadata := award.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	badge := domain.Badge{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      award.Name,
		Slug:      domain.BadgeSlug(award.Name),
		AwardedAt: at,
		Metadata:  metadata,
		Origin:    award.Origin,
		Kind:      award.Kind,
	}
	cmd, err := r.db.Exec(ctx, insert,
		badge.ID,
		badge.UserID,
		badge.Name,
		badge.Slug,
		badge.Kind,
		badge.Origin,
		badge.Metadata,
		badge.AwardedAt,
	)
	if err != nil {
		return nil, false, err
	}
	if cmd.RowsAffected() == 0 {
		existing, err := r.get(ctx, userID, award.Name)
		return existing, false, err
	}

	const mirror = `
        UPDATE users SET badges = array_append(badges, $2::text), updated_at=NOW()
        WHERE id=$1 AND NOT ($2::text = ANY(badges))`
	if _, err := r.db.Exec(ctx, mirror, userID, badge.Name); err != nil {
		return nil, false, err
	}
	return &badge, true, nil
}

func (r *badgeRepository) RevokeIfPresentAndMirrored(ctx context.Context, userID, name string) (bool, error) {
	const remove = `DELETE FROM badges WHERE user_id=$1 AND name=$2 AND kind=$3`
	cmd, err := r.db.Exec(ctx, remove, userID, name, domain.BadgeMirrored)
	if err != nil {
		return false, err
	}
	if cmd.RowsAffected() == 0 {
		return false, nil
	}

	const mirror = `
        UPDATE users SET badges = array_remove(badges, $2::text), updated_at=NOW()
        WHERE id=$1`
	if _, err := r.db.Exec(ctx, mirror, userID, name); err != nil {
		return false, err
	}
	return true, nil
}

func (r *badgeRepository) List(ctx context.Context, userID string) ([]domain.Badge, error) {
	const query = `SELECT ` + badgeColumns + ` FROM badges WHERE user_id=$1 ORDER BY awarded_at, name`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Badge{}
	for rows.Next() {
		var badge domain.Badge
		if err := rows.Scan(
			&badge.ID,
			&badge.UserID,
			&badge.Name,
			&badge.Slug,
			&badge.Kind,
			&badge.Origin,
			&badge.Metadata,
			&badge.AwardedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, badge)
	}
	return result, rows.Err()
}

func (r *badgeRepository) get(ctx context.Context, userID, name string) (*domain.Badge, error) {
	const query = `SELECT ` + badgeColumns + ` FROM badges WHERE user_id=$1 AND name=$2`
	var badge domain.Badge
	if err := r.db.QueryRow(ctx, query, userID, name).Scan(
		&badge.ID,
		&badge.UserID,
		&badge.Name,
		&badge.Slug,
		&badge.Kind,
		&badge.Origin,
		&badge.Metadata,
		&badge.AwardedAt,
	); err != nil {
		return nil, err
	}
	return &badge, nil
}
