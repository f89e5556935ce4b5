package worker

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/reputation-service/internal/domain"
	"github.com/spec-kit/reputation-service/internal/observability"
	"github.com/spec-kit/reputation-service/internal/repository"
	apperrors "github.com/spec-kit/reputation-service/pkg/util/errorutil"
)

// FactCommand is one message on the fact-command stream. It either carries a
// fact delta or, when BadgeName is set, a direct badge grant.
type FactCommand struct {
	UserID string `json:"userId"`
	domain.FactDelta
	BadgeName string `json:"badgeName,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// DecodeFactCommand parses a stream payload. Malformed payloads are permanent failures.
func DecodeFactCommand(payload string) (FactCommand, error) {
	var cmd FactCommand
	if err := json.Unmarshal([]byte(payload), &cmd); err != nil {
		return cmd, apperrors.NewValidationError("malformed fact command", map[string]any{"error": err.Error()})
	}
	cmd.UserID = strings.TrimSpace(cmd.UserID)
	if cmd.UserID == "" {
		return cmd, apperrors.NewValidationError("userId is required", nil)
	}
	return cmd, nil
}

// certificationIDSpace seeds certification ids derived from command keys.
var certificationIDSpace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:reputation:fact-command:certification"))

// ReputationWriter is the subset of the reputation service commands drive.
type ReputationWriter interface {
	ApplyFact(ctx context.Context, userID string, delta domain.FactDelta) (*domain.Reputation, error)
	GrantBadgeDirectly(ctx context.Context, userID, badgeName, reason string) (*domain.Reputation, error)
}

// CommandProcessor applies commands at most once per idempotency key.
type CommandProcessor struct {
	writer  ReputationWriter
	applied repository.IdempotencyStore
	ttl     time.Duration
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewCommandProcessor wires a processor.
func NewCommandProcessor(writer ReputationWriter, applied repository.IdempotencyStore, ttl time.Duration, metrics *observability.Metrics, logger *zap.Logger) *CommandProcessor {
	return &CommandProcessor{
		writer:  writer,
		applied: applied,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger,
	}
}

// Process applies cmd. It reports applied=false when the same assertion was
// already the last one applied to its slot.
func (p *CommandProcessor) Process(ctx context.Context, cmd FactCommand) (applied bool, err error) {
	if cmd.BadgeName != "" {
		if _, err := p.writer.GrantBadgeDirectly(ctx, cmd.UserID, cmd.BadgeName, cmd.Reason); err != nil {
			return false, err
		}
		return true, nil
	}

	delta, err := cmd.FactDelta.Normalize()
	if err != nil {
		return false, err
	}
	slot := cmd.UserID + "|" + string(delta.Fact) + "|" + delta.Scope()
	key := delta.IdempotencyKey(cmd.UserID)
	if delta.Fact == domain.FactCertificationAdded && delta.Certification.ID == "" {
		// Same message, same id: a redelivered add finds its own row.
		delta.Certification.ID = uuid.NewSHA1(certificationIDSpace, []byte(key)).String()
	}

	last, ok, err := p.applied.LastApplied(ctx, slot)
	if err != nil {
		return false, err
	}
	if ok && last == key {
		p.logger.Debug("duplicate fact command skipped",
			zap.String("user_id", cmd.UserID),
			zap.String("fact", string(delta.Fact)))
		return false, nil
	}

	if _, err := p.writer.ApplyFact(ctx, cmd.UserID, delta); err != nil {
		return false, err
	}
	if err := p.applied.MarkApplied(ctx, slot, key, p.ttl); err != nil {
		// The fact is committed. A redelivery applies again, which every
		// delta tolerates: flags and statuses are set-to, and certification
		// adds carry an id derived from key.
		p.logger.Warn("failed to record applied command", zap.String("slot", slot), zap.Error(err))
	}
	return true, nil
}
