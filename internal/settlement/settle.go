package settlement

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/oberonmarkets/comex-ledger/internal/fees"
	"github.com/oberonmarkets/comex-ledger/internal/ledger"
	"github.com/oberonmarkets/comex-ledger/pkg/errors"
	"github.com/oberonmarkets/comex-ledger/pkg/models"
)

// portion is the quantity a settlement draws from one batch.
type portion struct {
	batchID uint64
	qty     decimal.Decimal
}

// batchWalker consumes an account's holdings of one token type in
// ascending batch id order. The requested quantity and the token fees
// continue the same walk, so a batch is never skipped and never
// revisited.
type batchWalker struct {
	holdings []models.Holding
	idx      int
	used     decimal.Decimal // consumed from holdings[idx]
}

func newBatchWalker(holdings []models.Holding) *batchWalker {
	return &batchWalker{holdings: holdings, used: decimal.Zero}
}

// take consumes qty from the walk, oldest batch first. ok is false
// when the remaining holdings cannot cover it.
func (w *batchWalker) take(qty decimal.Decimal) ([]portion, bool) {
	var out []portion
	remaining := qty
	for remaining.IsPositive() {
		if w.idx >= len(w.holdings) {
			return nil, false
		}
		h := w.holdings[w.idx]
		avail := h.Quantity.Sub(w.used)
		if avail.IsZero() {
			w.idx++
			w.used = decimal.Zero
			continue
		}
		take := decimal.Min(avail, remaining)
		out = append(out, portion{batchID: h.BatchID, qty: take})
		w.used = w.used.Add(take)
		remaining = remaining.Sub(take)
	}
	return out, true
}

// settlementState accumulates the plan, the fee breakdown and the
// accounts whose entries must be snapshotted.
type settlementState struct {
	plan    ledger.Plan
	charges []models.FeeCharge
	touched map[uuid.UUID]struct{}
}

func (st *settlementState) touch(accounts ...uuid.UUID) {
	for _, a := range accounts {
		st.touched[a] = struct{}{}
	}
}

// SettleTransfer validates the request, computes fees when asked to,
// and applies every mutation atomically. Any failure leaves both
// stores untouched.
func (e *Engine) SettleTransfer(req *models.TransferRequest, applyFees bool) (*models.SettlementResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	res, err := e.settleLocked(req, applyFees)
	if err != nil {
		e.metrics.Settlements.WithLabelValues(string(errors.KindOf(err))).Inc()
		return nil, err
	}
	e.metrics.Settlements.WithLabelValues("ok").Inc()
	return res, nil
}

func (e *Engine) settleLocked(req *models.TransferRequest, applyFees bool) (*models.SettlementResult, error) {
	if e.gov.IsReadOnly() {
		return nil, errors.New(errors.KindReadOnly)
	}
	if !e.gov.IsSealed() {
		return nil, errors.New(errors.KindRestricted)
	}

	class, err := e.validate(req)
	if err != nil {
		return nil, err
	}

	st := &settlementState{touched: make(map[uuid.UUID]struct{})}
	st.touch(req.LegA.Account, req.LegB.Account)

	tokLeg, tokID, hasTok := tokenSide(req)
	ccyLeg, ccyID, hasCcy := currencySide(req)

	// Token side: move the requested quantity oldest batch first, then
	// source the token fees from the same walk.
	var consumed []portion
	if hasTok {
		payer := tokLeg.Account
		receiver := counterparty(req, tokID)
		walker := newBatchWalker(e.store.HoldingsOf(payer, tokLeg.TokenTypeID))

		var ok bool
		consumed, ok = walker.take(tokLeg.TokenQuantity)
		if !ok {
			return nil, errors.New(tokID.insufficientTokens())
		}
		for _, p := range consumed {
			st.plan.TokenMoves = append(st.plan.TokenMoves, ledger.TokenMove{
				BatchID: p.batchID, From: payer, To: receiver, Quantity: p.qty,
			})
		}

		if applyFees {
			// In a swap the batch originators are paid out of the
			// currency-fee apportionment instead of in token units.
			chargeOriginator := class == classTokenOneSided
			if err := e.applyTokenFees(st, walker, payer, tokID, tokLeg.TokenTypeID, tokLeg.TokenQuantity, consumed, chargeOriginator); err != nil {
				return nil, err
			}
		}
	}

	// Currency side: requested amount plus fees; in a swap the fee is
	// apportioned across the token side's batch provenance.
	if hasCcy {
		payer := ccyLeg.Account
		receiver := counterparty(req, ccyID)
		amount := ccyLeg.CcyAmount
		ccyType := ccyLeg.CcyTypeID

		st.plan.Debits = append(st.plan.Debits, ledger.CurrencyMove{Account: payer, CcyType: ccyType, Amount: amount})
		st.plan.Credits = append(st.plan.Credits, ledger.CurrencyMove{Account: receiver, CcyType: ccyType, Amount: amount})

		if applyFees {
			sched := e.resolver.Resolve(models.FeeKindCurrency, ccyType, payer)
			payerFee := fees.Charge(sched, amount)

			mirror := decimal.Zero
			if class == classSwap && sched.Mirror {
				mirror = fees.MirrorCharge(sched, tokLeg.TokenQuantity)
				payerFee = payerFee.Add(mirror)
			}

			e.distributeCurrencyFee(st, payer, ccyType, payerFee, consumed, "exchange")

			// The mirrored charge is levied on the token payer too,
			// independently, not split.
			if mirror.IsPositive() {
				e.distributeCurrencyFee(st, tokLeg.Account, ccyType, mirror, consumed, "mirror")
			}
		}
	}

	if err := e.checkCurrencySufficiency(st, req); err != nil {
		return nil, err
	}

	before := e.snapshot(st)
	if err := e.store.Apply(&st.plan); err != nil {
		// Sufficiency was confirmed above; a store rejection here is a
		// programming error, surfaced verbatim.
		return nil, err
	}
	after := e.snapshot(st)

	for _, c := range st.charges {
		e.metrics.FeesRouted.WithLabelValues(c.Label).Add(c.Amount.InexactFloat64())
	}
	e.logger.Info("transfer settled",
		zap.String("type", string(req.Type)),
		zap.Int("class", int(class)),
		zap.Bool("apply_fees", applyFees),
		zap.Int("fee_charges", len(st.charges)),
	)

	return &models.SettlementResult{Before: before, After: after, Fees: st.charges}, nil
}

// applyTokenFees computes the token-leg exchange fee and, for
// one-sided token transfers, the per-batch originator fees, sourcing
// both from the continuing batch walk. Both route to the payer's
// fee-owner; in swaps the batch originators are paid from the
// currency-side apportionment instead.
func (e *Engine) applyTokenFees(st *settlementState, walker *batchWalker, payer uuid.UUID, leg legID, tokenType uint32, quantity decimal.Decimal, consumed []portion, chargeOriginator bool) error {
	sched := e.resolver.Resolve(models.FeeKindToken, tokenType, payer)
	exchange := fees.Charge(sched, quantity)

	type origCharge struct {
		batchID uint64
		amount  decimal.Decimal
	}
	var origs []origCharge
	feeTotal := exchange
	if chargeOriginator {
		for _, p := range consumed {
			view, err := e.store.GetBatch(p.batchID)
			if err != nil {
				return err
			}
			if view.Fee.IsZero() {
				continue
			}
			amt := fees.OriginatorCharge(view.Fee, p.qty)
			if amt.IsZero() {
				continue
			}
			origs = append(origs, origCharge{batchID: p.batchID, amount: amt})
			feeTotal = feeTotal.Add(amt)
		}
	}

	if feeTotal.IsZero() {
		return nil
	}
	owner, ok := e.directory.FeeOwnerOf(payer)
	if !ok {
		e.logger.Warn("no fee owner for account, token fee waived",
			zap.String("account", payer.String()),
			zap.String("amount", feeTotal.String()))
		return nil
	}

	sourced, okTake := walker.take(feeTotal)
	if !okTake {
		return errors.New(leg.insufficientTokens())
	}
	for _, p := range sourced {
		st.plan.TokenMoves = append(st.plan.TokenMoves, ledger.TokenMove{
			BatchID: p.batchID, From: payer, To: owner, Quantity: p.qty,
		})
	}
	st.touch(owner)

	if exchange.IsPositive() {
		st.charges = append(st.charges, models.FeeCharge{
			Payer: payer, Recipient: owner, Kind: models.FeeKindToken,
			TypeID: tokenType, Amount: exchange, Label: "exchange",
		})
	}
	for _, oc := range origs {
		st.charges = append(st.charges, models.FeeCharge{
			Payer: payer, Recipient: owner, Kind: models.FeeKindToken,
			TypeID: tokenType, BatchID: oc.batchID, Amount: oc.amount, Label: "originator",
		})
	}
	return nil
}

// distributeCurrencyFee routes one currency fee total. In a swap whose
// consumed batches carry originator schedules the total is apportioned
// across those batches in proportion to the quantity each contributed,
// floor per batch; each portion splits into the batch originator's
// share and the exchange remainder. Rounding drift is bounded by one
// unit per batch touched; the floor leftover goes to the fee-owner.
func (e *Engine) distributeCurrencyFee(st *settlementState, payer uuid.UUID, ccyType uint32, total decimal.Decimal, consumed []portion, label string) {
	if total.IsZero() {
		return
	}
	owner, ok := e.directory.FeeOwnerOf(payer)
	if !ok {
		e.logger.Warn("no fee owner for account, currency fee waived",
			zap.String("account", payer.String()),
			zap.String("amount", total.String()))
		return
	}

	st.plan.Debits = append(st.plan.Debits, ledger.CurrencyMove{Account: payer, CcyType: ccyType, Amount: total})
	st.touch(owner)

	// Apportionment only matters when the token provenance carries
	// originator schedules.
	type share struct {
		p    portion
		view models.BatchView
	}
	var shares []share
	apportion := false
	totalQty := decimal.Zero
	for _, p := range consumed {
		view, err := e.store.GetBatch(p.batchID)
		if err != nil {
			continue
		}
		shares = append(shares, share{p: p, view: view})
		totalQty = totalQty.Add(p.qty)
		if !view.Fee.IsZero() {
			apportion = true
		}
	}

	if !apportion || totalQty.IsZero() {
		st.plan.Credits = append(st.plan.Credits, ledger.CurrencyMove{Account: owner, CcyType: ccyType, Amount: total})
		st.charges = append(st.charges, models.FeeCharge{
			Payer: payer, Recipient: owner, Kind: models.FeeKindCurrency,
			TypeID: ccyType, Amount: total, Label: label,
		})
		return
	}

	exchangeTotal := decimal.Zero
	assigned := decimal.Zero
	for _, sh := range shares {
		part := floorShare(total, sh.p.qty, totalQty)
		assigned = assigned.Add(part)

		origPart := decimal.Zero
		if !sh.view.Fee.IsZero() {
			origPart = decimal.Min(fees.OriginatorCharge(sh.view.Fee, part), part)
		}
		exchPart := part.Sub(origPart)
		exchangeTotal = exchangeTotal.Add(exchPart)

		if origPart.IsPositive() {
			st.plan.Credits = append(st.plan.Credits, ledger.CurrencyMove{
				Account: sh.view.Originator, CcyType: ccyType, Amount: origPart,
			})
			st.touch(sh.view.Originator)
			st.charges = append(st.charges, models.FeeCharge{
				Payer: payer, Recipient: sh.view.Originator, Kind: models.FeeKindCurrency,
				TypeID: ccyType, BatchID: sh.p.batchID, Amount: origPart, Label: "originator",
			})
		}
	}
	// Floor leftover lands with the exchange.
	exchangeTotal = exchangeTotal.Add(total.Sub(assigned))

	if exchangeTotal.IsPositive() {
		st.plan.Credits = append(st.plan.Credits, ledger.CurrencyMove{Account: owner, CcyType: ccyType, Amount: exchangeTotal})
		st.charges = append(st.charges, models.FeeCharge{
			Payer: payer, Recipient: owner, Kind: models.FeeKindCurrency,
			TypeID: ccyType, Amount: exchangeTotal, Label: label,
		})
	}
}

// floorShare returns floor(total * qty / totalQty).
func floorShare(total, qty, totalQty decimal.Decimal) decimal.Decimal {
	q, _ := total.Mul(qty).QuoRem(totalQty, 0)
	return q
}

// checkCurrencySufficiency verifies every currency debit against the
// current balances, attributing shortfalls to the leg whose account
// pays.
func (e *Engine) checkCurrencySufficiency(st *settlementState, req *models.TransferRequest) error {
	type balKey struct {
		account uuid.UUID
		ccyType uint32
	}
	required := make(map[balKey]decimal.Decimal)
	for _, d := range st.plan.Debits {
		k := balKey{account: d.Account, ccyType: d.CcyType}
		required[k] = required[k].Add(d.Amount)
	}
	for k, amt := range required {
		if e.store.GetBalance(k.account, k.ccyType).GreaterThanOrEqual(amt) {
			continue
		}
		switch k.account {
		case req.LegA.Account:
			return errors.New(legA.insufficientCurrency())
		case req.LegB.Account:
			return errors.New(legB.insufficientCurrency())
		default:
			return errors.New(errors.KindInsufficientBalance)
		}
	}
	return nil
}

func (e *Engine) snapshot(st *settlementState) map[uuid.UUID]models.LedgerEntryView {
	out := make(map[uuid.UUID]models.LedgerEntryView, len(st.touched))
	for a := range st.touched {
		out[a] = e.store.GetLedgerEntry(a)
	}
	return out
}

// tokenSide returns the leg supplying token quantity, when any.
func tokenSide(req *models.TransferRequest) (models.Leg, legID, bool) {
	if req.LegA.MovesTokens() {
		return req.LegA, legA, true
	}
	if req.LegB.MovesTokens() {
		return req.LegB, legB, true
	}
	return models.Leg{}, legA, false
}

// currencySide returns the leg supplying currency, when any.
func currencySide(req *models.TransferRequest) (models.Leg, legID, bool) {
	if req.LegA.MovesCurrency() {
		return req.LegA, legA, true
	}
	if req.LegB.MovesCurrency() {
		return req.LegB, legB, true
	}
	return models.Leg{}, legA, false
}

// counterparty returns the account on the other side of the given leg.
func counterparty(req *models.TransferRequest, id legID) uuid.UUID {
	if id == legA {
		return req.LegB.Account
	}
	return req.LegA.Account
}
