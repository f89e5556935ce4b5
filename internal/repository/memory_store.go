package repository

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/reputation-service/internal/domain"
	"github.com/spec-kit/reputation-service/internal/syncutil"
	apperrors "github.com/spec-kit/reputation-service/pkg/util/errorutil"
)

type memoryRecord struct {
	user   domain.User
	facts  *domain.Facts
	badges []domain.Badge
}

func (r *memoryRecord) clone() *memoryRecord {
	out := &memoryRecord{
		user:   r.user,
		facts:  r.facts.Clone(),
		badges: make([]domain.Badge, len(r.badges)),
	}
	out.user.Badges = slices.Clone(r.user.Badges)
	for i, b := range r.badges {
		b.Metadata = maps.Clone(b.Metadata)
		out.badges[i] = b
	}
	return out
}

// MemoryStore keeps everything in process. Writers lock the user key, mutate
// a private copy of the record and swap it in on commit, so a failed
// transaction leaves no trace.
type MemoryStore struct {
	locks *syncutil.KeyedMutex

	mu        sync.RWMutex
	users     map[string]*memoryRecord
	referrals *memoryReferrals
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		locks:     syncutil.NewKeyedMutex(),
		users:     make(map[string]*memoryRecord),
		referrals: newMemoryReferrals(),
	}
}

func (s *MemoryStore) CreateUser(ctx context.Context, user *domain.User, facts *domain.Facts) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if user.Badges == nil {
		user.Badges = []string{}
	}
	if facts == nil {
		facts = domain.NewFacts(user.ID, user.CreatedAt)
	}
	facts.UserID = user.ID

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[user.ID]; exists {
		return apperrors.NewConflict("user already exists", map[string]any{"userId": user.ID})
	}
	s.users[user.ID] = &memoryRecord{user: *user, facts: facts.Clone()}
	return nil
}

func (s *MemoryStore) record(userID string) (*memoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.users[userID]
	if !ok {
		return nil, apperrors.NewNotFound("user", map[string]any{"userId": userID})
	}
	return rec.clone(), nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id string) (*domain.User, error) {
	rec, err := s.record(id)
	if err != nil {
		return nil, err
	}
	return &rec.user, nil
}

func (s *MemoryStore) GetFacts(ctx context.Context, userID string) (*domain.Facts, error) {
	rec, err := s.record(userID)
	if err != nil {
		return nil, err
	}
	return rec.facts, nil
}

func (s *MemoryStore) ListBadges(ctx context.Context, userID string) ([]domain.Badge, error) {
	rec, err := s.record(userID)
	if err != nil {
		return nil, err
	}
	return sortedBadges(rec.badges), nil
}

func (s *MemoryStore) Snapshot(ctx context.Context, userID string) (*domain.User, *domain.Facts, []domain.Badge, error) {
	rec, err := s.record(userID)
	if err != nil {
		return nil, nil, nil, err
	}
	return &rec.user, rec.facts, sortedBadges(rec.badges), nil
}

func (s *MemoryStore) WithinUserTx(ctx context.Context, userID string, fn func(tx UserTx) error) error {
	unlock, err := s.locks.Lock(ctx, userID)
	if err != nil {
		return err
	}
	defer unlock()

	working, err := s.record(userID)
	if err != nil {
		return err
	}
	if err := fn(&memoryTx{rec: working}); err != nil {
		return err
	}

	s.mu.Lock()
	s.users[userID] = working
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Referrals() ReferralRepository {
	return s.referrals
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

type memoryTx struct {
	rec *memoryRecord
}

func (t *memoryTx) User() *domain.User {
	u := t.rec.user
	u.Badges = slices.Clone(u.Badges)
	return &u
}

func (t *memoryTx) Facts(context.Context) (*domain.Facts, error) {
	return t.rec.facts.Clone(), nil
}

func (t *memoryTx) SaveFacts(_ context.Context, facts *domain.Facts) error {
	t.rec.facts = facts.Clone()
	return nil
}

func (t *memoryTx) SaveTrustScore(_ context.Context, score int) error {
	t.rec.user.TrustScore = score
	t.rec.user.UpdatedAt = time.Now().UTC()
	return nil
}

func (t *memoryTx) Ledger() BadgeLedger {
	return t
}

func (t *memoryTx) checkUser(userID string) error {
	if userID != t.rec.user.ID {
		return apperrors.NewInternalError(errWrongUser)
	}
	return nil
}

func (t *memoryTx) AwardIfAbsent(_ context.Context, userID string, award domain.BadgeAward, at time.Time) (*domain.Badge, bool, error) {
	if err := t.checkUser(userID); err != nil {
		return nil, false, err
	}
	for i := range t.rec.badges {
		if t.rec.badges[i].Name == award.Name {
			existing := t.rec.badges[i]
			return &existing, false, nil
		}
	}
	badge := newBadge(userID, award, at)
	t.rec.badges = append(t.rec.badges, badge)
	if !slices.Contains(t.rec.user.Badges, badge.Name) {
		t.rec.user.Badges = append(t.rec.user.Badges, badge.Name)
	}
	return &badge, true, nil
}

func (t *memoryTx) RevokeIfPresentAndMirrored(_ context.Context, userID, name string) (bool, error) {
	if err := t.checkUser(userID); err != nil {
		return false, err
	}
	idx := slices.IndexFunc(t.rec.badges, func(b domain.Badge) bool {
		return b.Name == name && b.Kind == domain.BadgeMirrored
	})
	if idx < 0 {
		return false, nil
	}
	t.rec.badges = slices.Delete(t.rec.badges, idx, idx+1)
	t.rec.user.Badges = slices.DeleteFunc(t.rec.user.Badges, func(n string) bool { return n == name })
	return true, nil
}

func (t *memoryTx) List(_ context.Context, userID string) ([]domain.Badge, error) {
	if err := t.checkUser(userID); err != nil {
		return nil, err
	}
	return sortedBadges(t.rec.badges), nil
}

type memoryReferrals struct {
	mu        sync.Mutex
	byID      map[string]*domain.Referral
	byReferee map[string]string
}

func newMemoryReferrals() *memoryReferrals {
	return &memoryReferrals{
		byID:      make(map[string]*domain.Referral),
		byReferee: make(map[string]string),
	}
}

func (r *memoryReferrals) Create(_ context.Context, referral *domain.Referral) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byReferee[referral.RefereeID]; ok {
		return apperrors.NewConflict("referee already referred", map[string]any{
			"refereeId":  referral.RefereeID,
			"referralId": existing,
		})
	}
	if referral.ID == "" {
		referral.ID = uuid.NewString()
	}
	if referral.Status == "" {
		referral.Status = domain.ReferralPending
	}
	if referral.CreatedAt.IsZero() {
		referral.CreatedAt = time.Now().UTC()
	}
	stored := *referral
	r.byID[stored.ID] = &stored
	r.byReferee[stored.RefereeID] = stored.ID
	return nil
}

func (r *memoryReferrals) GetByID(_ context.Context, id string) (*domain.Referral, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, ok := r.byID[id]
	if !ok {
		return nil, apperrors.NewNotFound("referral", map[string]any{"referralId": id})
	}
	out := *ref
	return &out, nil
}

func (r *memoryReferrals) MarkCompleted(_ context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, ok := r.byID[id]
	if !ok {
		return false, apperrors.NewNotFound("referral", map[string]any{"referralId": id})
	}
	if ref.Status != domain.ReferralPending {
		return false, nil
	}
	completedAt := at
	ref.Status = domain.ReferralCompleted
	ref.CompletedAt = &completedAt
	return true, nil
}

func newBadge(userID string, award domain.BadgeAward, at time.Time) domain.Badge {
	return domain.Badge{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      award.Name,
		Slug:      domain.BadgeSlug(award.Name),
		AwardedAt: at,
		Metadata:  maps.Clone(award.Metadata),
		Origin:    award.Origin,
		Kind:      award.Kind,
	}
}

func sortedBadges(badges []domain.Badge) []domain.Badge {
	out := slices.Clone(badges)
	if out == nil {
		out = []domain.Badge{}
	}
	slices.SortStableFunc(out, func(a, b domain.Badge) int {
		if c := a.AwardedAt.Compare(b.AwardedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}
