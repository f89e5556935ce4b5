package repository

import (
	"context"
	"errors"
	"slices"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/reputation-service/internal/domain"
	apperrors "github.com/spec-kit/reputation-service/pkg/util/errorutil"
)

type factsRepository struct {
	db querier
}

func (r *factsRepository) Create(ctx context.Context, f *domain.Facts) error {
	const query = `
        INSERT INTO user_facts (user_id, account_created_at, updated_at)
        VALUES ($1, $2, $2)`
	if _, err := r.db.Exec(ctx, query, f.UserID, f.AccountCreatedAt); err != nil {
		return err
	}
	return r.Save(ctx, f)
}

func (r *factsRepository) Get(ctx context.Context, userID string) (*domain.Facts, error) {
	const query = `
        SELECT user_id, identity_verified, payment_verified, email_verified,
               background_check_status, tax_verified_status, insurance_active,
               subscription_tier, account_created_at, job_success_score,
               completion_percentage, updated_at
        FROM user_facts WHERE user_id=$1`

	var f domain.Facts
	if err := r.db.QueryRow(ctx, query, userID).Scan(
		&f.UserID,
		&f.IdentityVerified,
		&f.PaymentVerified,
		&f.EmailVerified,
		&f.BackgroundCheckStatus,
		&f.TaxVerifiedStatus,
		&f.InsuranceActive,
		&f.SubscriptionTier,
		&f.AccountCreatedAt,
		&f.JobSuccessScore,
		&f.CompletionPercentage,
		&f.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"userId": userID})
		}
		return nil, err
	}

	certs, err := r.listCertifications(ctx, userID)
	if err != nil {
		return nil, err
	}
	f.Certifications = certs

	clouds, err := r.listClouds(ctx, userID)
	if err != nil {
		return nil, err
	}
	f.CloudMemberships = clouds
	return &f, nil
}

// Save writes the whole facts record. Certifications are only ever added or
// moved forward, so they are upserted; cloud memberships are replaced.
func (r *factsRepository) Save(ctx context.Context, f *domain.Facts) error {
	const updateFacts = `
        UPDATE user_facts SET
            identity_verified=$2, payment_verified=$3, email_verified=$4,
            background_check_status=$5, tax_verified_status=$6, insurance_active=$7,
            subscription_tier=$8, job_success_score=$9, completion_percentage=$10,
            updated_at=$11
        WHERE user_id=$1`
	cmd, err := r.db.Exec(ctx, updateFacts,
		f.UserID,
		f.IdentityVerified,
		f.PaymentVerified,
		f.EmailVerified,
		f.BackgroundCheckStatus,
		f.TaxVerifiedStatus,
		f.InsuranceActive,
		f.SubscriptionTier,
		f.JobSuccessScore,
		f.CompletionPercentage,
		f.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return apperrors.NewNotFound("user", map[string]any{"userId": f.UserID})
	}

	const upsertCert = `
        INSERT INTO certifications (id, user_id, title, issuer, issuer_ref, status, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (id) DO UPDATE SET status=EXCLUDED.status, updated_at=EXCLUDED.updated_at`
	for _, cert := range f.Certifications {
		if _, err := r.db.Exec(ctx, upsertCert,
			cert.ID,
			f.UserID,
			cert.Title,
			cert.Issuer,
			cert.IssuerRef,
			cert.Status,
			cert.CreatedAt,
			cert.UpdatedAt,
		); err != nil {
			return err
		}
	}

	clouds := f.CloudMemberships
	if clouds == nil {
		clouds = []string{}
	}
	const pruneClouds = `DELETE FROM cloud_memberships WHERE user_id=$1 AND cloud_id <> ALL($2::text[])`
	if _, err := r.db.Exec(ctx, pruneClouds, f.UserID, clouds); err != nil {
		return err
	}
	const addClouds = `
        INSERT INTO cloud_memberships (user_id, cloud_id)
        SELECT $1, unnest($2::text[])
        ON CONFLICT DO NOTHING`
	_, err = r.db.Exec(ctx, addClouds, f.UserID, clouds)
	return err
}

func (r *factsRepository) listCertifications(ctx context.Context, userID string) ([]domain.Certification, error) {
	const query = `
        SELECT id, title, issuer, issuer_ref, status, created_at, updated_at
        FROM certifications WHERE user_id=$1
        ORDER BY created_at, id`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Certification
	for rows.Next() {
		var cert domain.Certification
		if err := rows.Scan(
			&cert.ID,
			&cert.Title,
			&cert.Issuer,
			&cert.IssuerRef,
			&cert.Status,
			&cert.CreatedAt,
			&cert.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, cert)
	}
	return result, rows.Err()
}

func (r *factsRepository) listClouds(ctx context.Context, userID string) ([]string, error) {
	const query = `SELECT cloud_id FROM cloud_memberships WHERE user_id=$1`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	clouds, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	// Facts keeps memberships byte-sorted regardless of database collation.
	slices.Sort(clouds)
	if len(clouds) == 0 {
		return nil, nil
	}
	return clouds, nil
}
