// Package ledger holds the account store and the token batch store.
// The store only mutates state; it never computes fees. Settlement
// hands it a mutation plan that is applied all-or-nothing.
package ledger

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/oberonmarkets/comex-ledger/internal/fees"
	"github.com/oberonmarkets/comex-ledger/pkg/errors"
	"github.com/oberonmarkets/comex-ledger/pkg/models"
)

// entry is one account's ledger state. tokenTotals caches the summed
// holding quantity per token type and is maintained on every holding
// mutation.
type entry struct {
	balances    map[uint32]decimal.Decimal
	holdings    map[uint64]decimal.Decimal
	tokenTotals map[uint32]decimal.Decimal
}

func newEntry() *entry {
	return &entry{
		balances:    make(map[uint32]decimal.Decimal),
		holdings:    make(map[uint64]decimal.Decimal),
		tokenTotals: make(map[uint32]decimal.Decimal),
	}
}

func (e *entry) clone() *entry {
	c := newEntry()
	for k, v := range e.balances {
		c.balances[k] = v
	}
	for k, v := range e.holdings {
		c.holdings[k] = v
	}
	for k, v := range e.tokenTotals {
		c.tokenTotals[k] = v
	}
	return c
}

// batch is a token batch. Identity fields are immutable after mint;
// only the originator fee schedule may change, and only downward.
type batch struct {
	id         uint64
	tokenType  uint32
	minted     decimal.Decimal
	originator uuid.UUID
	mintedAt   time.Time
	fee        models.OriginatorSchedule
	mirrorBps  decimal.Decimal
	tags       []string
}

// Store is the combined account and batch store.
type Store struct {
	mu       sync.RWMutex
	logger   *zap.Logger
	accounts map[uuid.UUID]*entry
	batches  map[uint64]*batch
	batchSeq uint64
	now      func() time.Time
}

// NewStore creates an empty store. Batch ids are 1-based and
// monotonically increasing.
func NewStore(logger *zap.Logger) *Store {
	return &Store{
		logger:   logger,
		accounts: make(map[uuid.UUID]*entry),
		batches:  make(map[uint64]*batch),
		now:      time.Now,
	}
}

func (s *Store) account(id uuid.UUID) *entry {
	e, ok := s.accounts[id]
	if !ok {
		e = newEntry()
		s.accounts[id] = e
	}
	return e
}

// GetBalance returns the account's balance for a currency, zero when
// the account or the currency is unknown.
func (s *Store) GetBalance(account uuid.UUID, ccyType uint32) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.accounts[account]
	if !ok {
		return decimal.Zero
	}
	b, ok := e.balances[ccyType]
	if !ok {
		return decimal.Zero
	}
	return b
}

// CreditCurrency adds amount to the account's balance.
func (s *Store) CreditCurrency(account uuid.UUID, ccyType uint32, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return errors.New(errors.KindBadFeeArgs)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.account(account)
	e.balances[ccyType] = e.balances[ccyType].Add(amount)
	return nil
}

// DebitCurrency removes amount from the account's balance, failing
// InsufficientBalance when the balance does not cover it.
func (s *Store) DebitCurrency(account uuid.UUID, ccyType uint32, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return errors.New(errors.KindBadFeeArgs)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.account(account)
	bal := e.balances[ccyType]
	if bal.LessThan(amount) {
		return errors.New(errors.KindInsufficientBalance)
	}
	e.balances[ccyType] = bal.Sub(amount)
	return nil
}

// MintBatch creates a new token batch credited to the originator and
// returns its id. Fails BadFeeArgs when the originator schedule
// violates the percentage/collar invariants.
func (s *Store) MintBatch(tokenType uint32, quantity decimal.Decimal, originator uuid.UUID, fee models.OriginatorSchedule, mirrorBps decimal.Decimal, tags []string) (uint64, error) {
	if quantity.IsNegative() || quantity.IsZero() {
		return 0, errors.New(errors.KindBadFeeArgs)
	}
	if err := fees.ValidateOriginatorSchedule(fee); err != nil {
		return 0, err
	}
	if mirrorBps.IsNegative() || mirrorBps.GreaterThan(fees.MaxPercentBps) {
		return 0, errors.New(errors.KindBadFeeArgs)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.batchSeq++
	id := s.batchSeq
	s.batches[id] = &batch{
		id:         id,
		tokenType:  tokenType,
		minted:     quantity,
		originator: originator,
		mintedAt:   s.now(),
		fee:        fee,
		mirrorBps:  mirrorBps,
		tags:       append([]string(nil), tags...),
	}

	e := s.account(originator)
	e.holdings[id] = quantity
	e.tokenTotals[tokenType] = e.tokenTotals[tokenType].Add(quantity)

	s.logger.Info("batch minted",
		zap.Uint64("batch_id", id),
		zap.Uint32("token_type", tokenType),
		zap.String("quantity", quantity.String()),
		zap.String("originator", originator.String()),
	)
	return id, nil
}

// MoveTokenQuantity moves quantity of one batch between accounts,
// failing InsufficientTokens when the source holding is short.
func (s *Store) MoveTokenQuantity(batchID uint64, from, to uuid.UUID, quantity decimal.Decimal) error {
	if quantity.IsNegative() {
		return errors.New(errors.KindBadFeeArgs)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moveLocked(batchID, from, to, quantity)
}

func (s *Store) moveLocked(batchID uint64, from, to uuid.UUID, quantity decimal.Decimal) error {
	b, ok := s.batches[batchID]
	if !ok {
		return errors.New(errors.KindNotFound)
	}

	src := s.account(from)
	held := src.holdings[batchID]
	if held.LessThan(quantity) {
		return errors.New(errors.KindInsufficientTokens)
	}

	remaining := held.Sub(quantity)
	if remaining.IsZero() {
		delete(src.holdings, batchID)
	} else {
		src.holdings[batchID] = remaining
	}
	src.tokenTotals[b.tokenType] = src.tokenTotals[b.tokenType].Sub(quantity)

	dst := s.account(to)
	dst.holdings[batchID] = dst.holdings[batchID].Add(quantity)
	dst.tokenTotals[b.tokenType] = dst.tokenTotals[b.tokenType].Add(quantity)
	return nil
}

// SetBatchFee replaces a batch's originator schedule. Only the
// originator may call it, and no field may increase.
func (s *Store) SetBatchFee(batchID uint64, next models.OriginatorSchedule, caller uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[batchID]
	if !ok {
		return errors.New(errors.KindNotFound)
	}
	if caller != b.originator {
		return errors.New(errors.KindRestricted)
	}
	if err := fees.ValidateOriginatorSchedule(next); err != nil {
		return err
	}
	if err := fees.ValidateDecrease(b.fee, next); err != nil {
		return err
	}

	b.fee = next
	s.logger.Info("batch originator fee lowered", zap.Uint64("batch_id", batchID))
	return nil
}

// GetBatch returns a copy of the batch record.
func (s *Store) GetBatch(batchID uint64) (models.BatchView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.batches[batchID]
	if !ok {
		return models.BatchView{}, errors.New(errors.KindNotFound)
	}
	return models.BatchView{
		ID:         b.id,
		TokenType:  b.tokenType,
		Minted:     b.minted,
		Originator: b.originator,
		MintedAt:   b.mintedAt,
		Fee:        b.fee,
		MirrorBps:  b.mirrorBps,
		Tags:       append([]string(nil), b.tags...),
	}, nil
}

// GetLedgerEntry returns a copy of the account's entry. Unknown
// accounts yield an empty view. Holdings are ordered by ascending
// batch id.
func (s *Store) GetLedgerEntry(account uuid.UUID) models.LedgerEntryView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	view := models.LedgerEntryView{
		Account:     account,
		Balances:    make(map[uint32]decimal.Decimal),
		Holdings:    nil,
		TokenTotals: make(map[uint32]decimal.Decimal),
	}
	e, ok := s.accounts[account]
	if !ok {
		return view
	}
	for k, v := range e.balances {
		view.Balances[k] = v
	}
	for k, v := range e.tokenTotals {
		if !v.IsZero() {
			view.TokenTotals[k] = v
		}
	}
	ids := make([]uint64, 0, len(e.holdings))
	for id := range e.holdings {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		view.Holdings = append(view.Holdings, models.Holding{BatchID: id, Quantity: e.holdings[id]})
	}
	return view
}

// HoldingsOf returns the account's holdings of one token type,
// ascending batch id. This is the batch-selection order for
// settlement: oldest batch first.
func (s *Store) HoldingsOf(account uuid.UUID, tokenType uint32) []models.Holding {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.accounts[account]
	if !ok {
		return nil
	}
	var out []models.Holding
	for id, qty := range e.holdings {
		if b, ok := s.batches[id]; ok && b.tokenType == tokenType {
			out = append(out, models.Holding{BatchID: id, Quantity: qty})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BatchID < out[j].BatchID })
	return out
}
