package ledger

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oberonmarkets/comex-ledger/pkg/errors"
)

// CurrencyMove is one currency debit or credit inside a plan.
type CurrencyMove struct {
	Account uuid.UUID
	CcyType uint32
	Amount  decimal.Decimal
}

// TokenMove is one batch-quantity transfer inside a plan.
type TokenMove struct {
	BatchID  uint64
	From     uuid.UUID
	To       uuid.UUID
	Quantity decimal.Decimal
}

// Plan is the full set of mutations of one settlement. Apply lands it
// all-or-nothing.
type Plan struct {
	Debits     []CurrencyMove
	Credits    []CurrencyMove
	TokenMoves []TokenMove
}

// IsEmpty reports whether the plan mutates nothing.
func (p *Plan) IsEmpty() bool {
	return len(p.Debits) == 0 && len(p.Credits) == 0 && len(p.TokenMoves) == 0
}

// Apply executes the plan atomically: every mutation is first staged
// on copies of the affected entries, with sufficiency re-checked, and
// the copies are committed only when the whole plan went through. On
// any failure the store is left untouched.
func (s *Store) Apply(plan *Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make(map[uuid.UUID]*entry)
	stage := func(id uuid.UUID) *entry {
		if e, ok := staged[id]; ok {
			return e
		}
		var e *entry
		if cur, ok := s.accounts[id]; ok {
			e = cur.clone()
		} else {
			e = newEntry()
		}
		staged[id] = e
		return e
	}

	for _, d := range plan.Debits {
		if d.Amount.IsNegative() {
			return errors.New(errors.KindBadFeeArgs)
		}
		e := stage(d.Account)
		bal := e.balances[d.CcyType]
		if bal.LessThan(d.Amount) {
			return errors.New(errors.KindInsufficientBalance)
		}
		e.balances[d.CcyType] = bal.Sub(d.Amount)
	}
	for _, c := range plan.Credits {
		if c.Amount.IsNegative() {
			return errors.New(errors.KindBadFeeArgs)
		}
		e := stage(c.Account)
		e.balances[c.CcyType] = e.balances[c.CcyType].Add(c.Amount)
	}
	for _, m := range plan.TokenMoves {
		if m.Quantity.IsNegative() {
			return errors.New(errors.KindBadFeeArgs)
		}
		if m.Quantity.IsZero() {
			continue
		}
		b, ok := s.batches[m.BatchID]
		if !ok {
			return errors.New(errors.KindNotFound)
		}
		src := stage(m.From)
		held := src.holdings[m.BatchID]
		if held.LessThan(m.Quantity) {
			return errors.New(errors.KindInsufficientTokens)
		}
		remaining := held.Sub(m.Quantity)
		if remaining.IsZero() {
			delete(src.holdings, m.BatchID)
		} else {
			src.holdings[m.BatchID] = remaining
		}
		src.tokenTotals[b.tokenType] = src.tokenTotals[b.tokenType].Sub(m.Quantity)

		dst := stage(m.To)
		dst.holdings[m.BatchID] = dst.holdings[m.BatchID].Add(m.Quantity)
		dst.tokenTotals[b.tokenType] = dst.tokenTotals[b.tokenType].Add(m.Quantity)
	}

	for id, e := range staged {
		s.accounts[id] = e
	}
	return nil
}
