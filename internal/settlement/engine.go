// Package settlement implements the transfer-settlement engine: the
// validation taxonomy, fee computation and apportionment, and the
// atomic application of every resulting mutation.
package settlement

import (
	"math/big"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/oberonmarkets/comex-ledger/internal/fees"
	"github.com/oberonmarkets/comex-ledger/internal/ledger"
	"github.com/oberonmarkets/comex-ledger/pkg/errors"
	"github.com/oberonmarkets/comex-ledger/pkg/models"
)

// Registry is the currency / token-type registry consumed by the
// engine.
type Registry interface {
	CurrencyExists(id uint32) bool
	TokenTypeExists(id uint32) bool
	Decimals(id uint32) (uint8, error)
}

// Directory resolves the fee-owner account for a trading account.
type Directory interface {
	FeeOwnerOf(account uuid.UUID) (uuid.UUID, bool)
}

// Governance exposes the ledger-wide gates.
type Governance interface {
	IsReadOnly() bool
	IsSealed() bool
}

// maxQuantity is the exclusive upper bound on any quantity or amount;
// values at or beyond 2^64 fail BadQty before narrowing anywhere.
var maxQuantity = decimal.NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), 64), 0)

// Engine settles transfers against the ledger store. Settlements are
// strictly serial: one mutex, one state transition at a time, no
// partial result ever visible.
type Engine struct {
	mu        sync.Mutex
	logger    *zap.Logger
	store     *ledger.Store
	resolver  *fees.Resolver
	registry  Registry
	directory Directory
	gov       Governance
	metrics   *Metrics
}

// NewEngine wires the engine to its stores and collaborators.
func NewEngine(logger *zap.Logger, store *ledger.Store, resolver *fees.Resolver, reg Registry, dir Directory, gov Governance, metrics *Metrics) *Engine {
	return &Engine{
		logger:    logger,
		store:     store,
		resolver:  resolver,
		registry:  reg,
		directory: dir,
		gov:       gov,
		metrics:   metrics,
	}
}

// MintBatch mints a new token batch. Blocked while read-only.
func (e *Engine) MintBatch(tokenType uint32, quantity decimal.Decimal, originator uuid.UUID, fee models.OriginatorSchedule, mirrorBps decimal.Decimal, tags []string) (uint64, error) {
	if e.gov.IsReadOnly() {
		return 0, errors.New(errors.KindReadOnly)
	}
	if !e.registry.TokenTypeExists(tokenType) {
		return 0, errors.New(errors.KindBadTokTypeId)
	}
	if quantity.GreaterThanOrEqual(maxQuantity) {
		return 0, errors.New(errors.KindBadQtyA)
	}
	id, err := e.store.MintBatch(tokenType, quantity, originator, fee, mirrorBps, tags)
	if err != nil {
		return 0, err
	}
	e.metrics.BatchesMinted.Inc()
	return id, nil
}

// SetBatchOriginatorFee lowers a batch's originator schedule.
func (e *Engine) SetBatchOriginatorFee(batchID uint64, next models.OriginatorSchedule, caller uuid.UUID) error {
	if e.gov.IsReadOnly() {
		return errors.New(errors.KindReadOnly)
	}
	return e.store.SetBatchFee(batchID, next, caller)
}

// SetFeeSchedule installs a fee schedule. A uuid.Nil scope targets the
// global schedule.
func (e *Engine) SetFeeSchedule(kind models.FeeKind, typeID uint32, scope uuid.UUID, schedule models.FeeSchedule, caller uuid.UUID) error {
	if e.gov.IsReadOnly() {
		return errors.New(errors.KindReadOnly)
	}
	return e.resolver.SetSchedule(kind, typeID, scope, schedule, caller)
}

// GetLedgerEntry returns the account's entry view.
func (e *Engine) GetLedgerEntry(account uuid.UUID) models.LedgerEntryView {
	return e.store.GetLedgerEntry(account)
}

// GetBatch returns the batch view.
func (e *Engine) GetBatch(id uint64) (models.BatchView, error) {
	return e.store.GetBatch(id)
}

// transferClass is the resolved shape of a valid request.
type transferClass int

const (
	classCurrencyOneSided transferClass = iota
	classTokenOneSided
	classSwap
)

// legID tags errors with the leg that caused them.
type legID int

const (
	legA legID = iota
	legB
)

func (l legID) badCcy() errors.Kind {
	if l == legA {
		return errors.KindBadCcyTypeIdA
	}
	return errors.KindBadCcyTypeIdB
}

func (l legID) badTok() errors.Kind {
	if l == legA {
		return errors.KindBadTokTypeIdA
	}
	return errors.KindBadTokTypeIdB
}

func (l legID) badQty() errors.Kind {
	if l == legA {
		return errors.KindBadQtyA
	}
	return errors.KindBadQtyB
}

func (l legID) insufficientCurrency() errors.Kind {
	if l == legA {
		return errors.KindInsufficientCurrencyA
	}
	return errors.KindInsufficientCurrencyB
}

func (l legID) insufficientTokens() errors.Kind {
	if l == legA {
		return errors.KindInsufficientTokensA
	}
	return errors.KindInsufficientTokensB
}

// validate runs the short-circuit validation chain of a transfer
// request and returns its class.
func (e *Engine) validate(req *models.TransferRequest) (transferClass, error) {
	a, b := req.LegA, req.LegB

	// Negative values never reach the stores; they abort as null
	// transfers together with the all-zero case.
	if a.TokenQuantity.IsNegative() || a.CcyAmount.IsNegative() ||
		b.TokenQuantity.IsNegative() || b.CcyAmount.IsNegative() {
		return 0, errors.New(errors.KindBadNullTransfer)
	}
	if !a.MovesTokens() && !a.MovesCurrency() && !b.MovesTokens() && !b.MovesCurrency() {
		return 0, errors.New(errors.KindBadNullTransfer)
	}

	for _, leg := range []struct {
		id  legID
		leg models.Leg
	}{{legA, a}, {legB, b}} {
		if leg.leg.MovesCurrency() != (leg.leg.CcyTypeID != 0) {
			return 0, errors.New(leg.id.badCcy())
		}
		if leg.leg.MovesCurrency() && !e.registry.CurrencyExists(leg.leg.CcyTypeID) {
			return 0, errors.New(leg.id.badCcy())
		}
		if leg.leg.MovesTokens() != (leg.leg.TokenTypeID != 0) {
			return 0, errors.New(leg.id.badTok())
		}
		if leg.leg.MovesTokens() && !e.registry.TokenTypeExists(leg.leg.TokenTypeID) {
			return 0, errors.New(leg.id.badTok())
		}
	}

	class, err := classify(a, b)
	if err != nil {
		return 0, err
	}
	if class != classSwap && req.Type == models.TransferOther {
		return 0, errors.New(errors.KindBadTransferType)
	}

	for _, leg := range []struct {
		id  legID
		leg models.Leg
	}{{legA, a}, {legB, b}} {
		if leg.leg.TokenQuantity.GreaterThanOrEqual(maxQuantity) ||
			leg.leg.CcyAmount.GreaterThanOrEqual(maxQuantity) {
			return 0, errors.New(leg.id.badQty())
		}
	}
	return class, nil
}

// classify resolves the request into exactly one supported shape.
func classify(a, b models.Leg) (transferClass, error) {
	aTok, aCcy := a.MovesTokens(), a.MovesCurrency()
	bTok, bCcy := b.MovesTokens(), b.MovesCurrency()

	switch {
	case aTok && !aCcy && bCcy && !bTok:
		return classSwap, nil
	case bTok && !bCcy && aCcy && !aTok:
		return classSwap, nil
	case aTok && !aCcy && !bTok && !bCcy:
		return classTokenOneSided, nil
	case bTok && !bCcy && !aTok && !aCcy:
		return classTokenOneSided, nil
	case aCcy && !aTok && !bCcy && !bTok:
		return classCurrencyOneSided, nil
	case bCcy && !bTok && !aCcy && !aTok:
		return classCurrencyOneSided, nil
	default:
		// Token-for-token, currency-for-currency, or a leg mixing
		// both asset classes as outgoing value.
		return 0, errors.New(errors.KindBadTransferTypes)
	}
}
