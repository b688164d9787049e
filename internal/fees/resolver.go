package fees

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oberonmarkets/comex-ledger/pkg/errors"
	"github.com/oberonmarkets/comex-ledger/pkg/models"
)

// scheduleKey identifies one configured schedule. A nil account uuid
// is the global scope.
type scheduleKey struct {
	kind    models.FeeKind
	typeID  uint32
	account uuid.UUID
}

// Resolver is the fee-schedule configuration store. At most one
// schedule exists per (kind, type id, scope) key; an account-scoped
// schedule overrides the global one for that account only.
type Resolver struct {
	mu        sync.RWMutex
	logger    *zap.Logger
	admins    map[uuid.UUID]struct{}
	schedules map[scheduleKey]models.FeeSchedule
}

// NewResolver creates a resolver administered by the given accounts.
func NewResolver(logger *zap.Logger, admins []uuid.UUID) *Resolver {
	set := make(map[uuid.UUID]struct{}, len(admins))
	for _, a := range admins {
		set[a] = struct{}{}
	}
	return &Resolver{
		logger:    logger,
		admins:    set,
		schedules: make(map[scheduleKey]models.FeeSchedule),
	}
}

// IsAdmin reports whether the account holds administrative rights.
func (r *Resolver) IsAdmin(account uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.admins[account]
	return ok
}

// Resolve returns the schedule applicable to account for the given fee
// kind and type id: the account override when present, else the global
// schedule, else the zero schedule.
func (r *Resolver) Resolve(kind models.FeeKind, typeID uint32, account uuid.UUID) models.FeeSchedule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.schedules[scheduleKey{kind: kind, typeID: typeID, account: account}]; ok {
		return s
	}
	if s, ok := r.schedules[scheduleKey{kind: kind, typeID: typeID, account: uuid.Nil}]; ok {
		return s
	}
	return models.ZeroFeeSchedule()
}

// SetSchedule installs or replaces the schedule for (kind, typeID,
// scope). A uuid.Nil scope targets the global schedule. Fails
// Restricted when the caller is not an administrator and BadFeeArgs
// when the schedule violates the percentage/collar invariants.
func (r *Resolver) SetSchedule(kind models.FeeKind, typeID uint32, scope uuid.UUID, schedule models.FeeSchedule, caller uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.admins[caller]; !ok {
		return errors.New(errors.KindRestricted)
	}
	if err := ValidateSchedule(schedule); err != nil {
		return err
	}

	r.schedules[scheduleKey{kind: kind, typeID: typeID, account: scope}] = schedule
	r.logger.Info("fee schedule updated",
		zap.String("kind", string(kind)),
		zap.Uint32("type_id", typeID),
		zap.String("scope", scopeLabel(scope)),
		zap.String("percent_bps", schedule.PercentBps.String()),
		zap.String("fixed", schedule.Fixed.String()),
		zap.Bool("mirror", schedule.Mirror),
	)
	return nil
}

func scopeLabel(scope uuid.UUID) string {
	if scope == uuid.Nil {
		return "global"
	}
	return scope.String()
}
