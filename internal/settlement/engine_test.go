package settlement

import (
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oberonmarkets/comex-ledger/internal/directory"
	"github.com/oberonmarkets/comex-ledger/internal/fees"
	"github.com/oberonmarkets/comex-ledger/internal/governance"
	"github.com/oberonmarkets/comex-ledger/internal/ledger"
	"github.com/oberonmarkets/comex-ledger/internal/registry"
	"github.com/oberonmarkets/comex-ledger/pkg/errors"
	"github.com/oberonmarkets/comex-ledger/pkg/models"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// fixture wires a full engine with one currency (usd) and one token
// type (t2) registered, sealed and ready to trade.
type fixture struct {
	store    *ledger.Store
	resolver *fees.Resolver
	registry *registry.Registry
	dir      *directory.Directory
	gov      *governance.State
	engine   *Engine
	admin    uuid.UUID
	usd      uint32
	t2       uint32
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zap.NewNop()
	f := &fixture{
		store: ledger.NewStore(log),
		dir:   directory.NewDirectory(),
		gov:   governance.NewState(log),
		admin: uuid.New(),
	}
	f.resolver = fees.NewResolver(log, []uuid.UUID{f.admin})
	f.registry = registry.NewRegistry(log)

	var err error
	f.usd, err = f.registry.RegisterCurrency("USD", "cent", 2)
	require.NoError(t, err)
	f.t2, err = f.registry.RegisterTokenType("T2", "bar", "spot")
	require.NoError(t, err)

	metrics := NewMetrics(prometheus.NewRegistry())
	f.engine = NewEngine(log, f.store, f.resolver, f.registry, f.dir, f.gov, metrics)
	f.gov.Seal()
	return f
}

func (f *fixture) mint(t *testing.T, owner uuid.UUID, qty int64, fee models.OriginatorSchedule) uint64 {
	t.Helper()
	id, err := f.engine.MintBatch(f.t2, d(qty), owner, fee, decimal.Zero, nil)
	require.NoError(t, err)
	return id
}

func (f *fixture) setGlobalCcySchedule(t *testing.T, s models.FeeSchedule) {
	t.Helper()
	require.NoError(t, f.engine.SetFeeSchedule(models.FeeKindCurrency, f.usd, uuid.Nil, s, f.admin))
}

// tokenTransfer builds a one-sided token request from -> to.
func (f *fixture) tokenTransfer(from, to uuid.UUID, qty int64) *models.TransferRequest {
	return &models.TransferRequest{
		LegA: models.Leg{Account: from, TokenQuantity: d(qty), TokenTypeID: f.t2},
		LegB: models.Leg{Account: to},
		Type: models.TransferAdjustment,
	}
}

// ccyTransfer builds a one-sided currency request from -> to.
func (f *fixture) ccyTransfer(from, to uuid.UUID, amount int64) *models.TransferRequest {
	return &models.TransferRequest{
		LegA: models.Leg{Account: from, CcyAmount: d(amount), CcyTypeID: f.usd},
		LegB: models.Leg{Account: to},
		Type: models.TransferAdjustment,
	}
}

// swap builds a token-for-currency request: seller pays tokens, buyer
// pays currency.
func (f *fixture) swap(seller, buyer uuid.UUID, qty, amount int64) *models.TransferRequest {
	return &models.TransferRequest{
		LegA: models.Leg{Account: seller, TokenQuantity: d(qty), TokenTypeID: f.t2},
		LegB: models.Leg{Account: buyer, CcyAmount: d(amount), CcyTypeID: f.usd},
	}
}

func (f *fixture) usdTotal(accounts ...uuid.UUID) decimal.Decimal {
	total := decimal.Zero
	for _, a := range accounts {
		total = total.Add(f.store.GetBalance(a, f.usd))
	}
	return total
}

// Scenario 1: three batches of 1000 T2 to W, transfer 3000 to G with
// no fees: G holds 3000, W holds 0.
func TestTransferAcrossBatchesNoFees(t *testing.T) {
	f := newFixture(t)
	w, g := uuid.New(), uuid.New()
	for i := 0; i < 3; i++ {
		f.mint(t, w, 1000, models.ZeroOriginatorSchedule())
	}

	res, err := f.engine.SettleTransfer(f.tokenTransfer(w, g, 3000), false)
	require.NoError(t, err)
	assert.Empty(t, res.Fees)

	assert.True(t, f.store.GetLedgerEntry(g).TokenTotals[f.t2].Equal(d(3000)))
	assert.True(t, f.store.GetLedgerEntry(w).TokenTotals[f.t2].IsZero())

	// oldest-batch-first: G ends up holding all three batches
	assert.Len(t, f.store.GetLedgerEntry(g).Holdings, 3)
}

// Scenario 2: fixed originator fee of 2 on a batch of 1000 minted to
// B; transfer 750 with fees: the fee-owner gains 2, B loses 752.
func TestOriginatorFeeOnTokenLeg(t *testing.T) {
	f := newFixture(t)
	b, a, feeOwner := uuid.New(), uuid.New(), uuid.New()
	f.dir.SetFeeOwner(b, feeOwner)

	fee := models.ZeroOriginatorSchedule()
	fee.Fixed = d(2)
	f.mint(t, b, 1000, fee)

	res, err := f.engine.SettleTransfer(f.tokenTransfer(b, a, 750), true)
	require.NoError(t, err)

	assert.True(t, f.store.GetLedgerEntry(a).TokenTotals[f.t2].Equal(d(750)))
	assert.True(t, f.store.GetLedgerEntry(feeOwner).TokenTotals[f.t2].Equal(d(2)))
	assert.True(t, f.store.GetLedgerEntry(b).TokenTotals[f.t2].Equal(d(248)), "payer must be debited 752, not 750")

	require.Len(t, res.Fees, 1)
	assert.Equal(t, "originator", res.Fees[0].Label)
	assert.True(t, res.Fees[0].Amount.Equal(d(2)))
}

// Scenario 3: 100 bps on USD, transfer 10000 cents: fee 100, payer
// debited 10100.
func TestPercentageCurrencyFee(t *testing.T) {
	f := newFixture(t)
	p, r, feeOwner := uuid.New(), uuid.New(), uuid.New()
	f.dir.SetFeeOwner(p, feeOwner)
	require.NoError(t, f.store.CreditCurrency(p, f.usd, d(20000)))

	s := models.ZeroFeeSchedule()
	s.PercentBps = d(100)
	f.setGlobalCcySchedule(t, s)

	_, err := f.engine.SettleTransfer(f.ccyTransfer(p, r, 10000), true)
	require.NoError(t, err)

	assert.True(t, f.store.GetBalance(p, f.usd).Equal(d(9900))) // 20000 - 10100
	assert.True(t, f.store.GetBalance(r, f.usd).Equal(d(10000)))
	assert.True(t, f.store.GetBalance(feeOwner, f.usd).Equal(d(100)))
}

// Scenario 4: 1 bp on 100 cents floors to zero; the transfer succeeds
// with no fee credited.
func TestPercentageFeeFloorsToZero(t *testing.T) {
	f := newFixture(t)
	p, r, feeOwner := uuid.New(), uuid.New(), uuid.New()
	f.dir.SetFeeOwner(p, feeOwner)
	require.NoError(t, f.store.CreditCurrency(p, f.usd, d(100)))

	s := models.ZeroFeeSchedule()
	s.PercentBps = d(1)
	f.setGlobalCcySchedule(t, s)

	res, err := f.engine.SettleTransfer(f.ccyTransfer(p, r, 100), true)
	require.NoError(t, err)
	assert.Empty(t, res.Fees)
	assert.True(t, f.store.GetBalance(feeOwner, f.usd).IsZero())
	assert.True(t, f.store.GetBalance(r, f.usd).Equal(d(100)))
}

// Scenario 5 lives in the ledger store tests (SetBatchFee). Scenario 6:
func TestNullTransfer(t *testing.T) {
	f := newFixture(t)
	req := &models.TransferRequest{
		LegA: models.Leg{Account: uuid.New()},
		LegB: models.Leg{Account: uuid.New()},
		Type: models.TransferAdjustment,
	}
	_, err := f.engine.SettleTransfer(req, false)
	require.Error(t, err)
	assert.Equal(t, errors.KindBadNullTransfer, errors.KindOf(err))
	assert.Equal(t, "transfer moves no value", err.(*errors.Error).Reason())
}

func TestNegativeQuantityIsNullTransfer(t *testing.T) {
	f := newFixture(t)
	req := f.tokenTransfer(uuid.New(), uuid.New(), 10)
	req.LegA.TokenQuantity = d(-10)
	_, err := f.engine.SettleTransfer(req, false)
	assert.Equal(t, errors.KindBadNullTransfer, errors.KindOf(err))
}

func TestTypeConsistency(t *testing.T) {
	f := newFixture(t)
	w, g := uuid.New(), uuid.New()

	// amount without a type id
	req := f.ccyTransfer(w, g, 100)
	req.LegA.CcyTypeID = 0
	_, err := f.engine.SettleTransfer(req, false)
	assert.Equal(t, errors.KindBadCcyTypeIdA, errors.KindOf(err))

	// type id without an amount, on leg B
	req = f.tokenTransfer(w, g, 100)
	req.LegB.CcyTypeID = f.usd
	_, err = f.engine.SettleTransfer(req, false)
	assert.Equal(t, errors.KindBadCcyTypeIdB, errors.KindOf(err))

	// unregistered token type
	req = f.tokenTransfer(w, g, 100)
	req.LegA.TokenTypeID = 99
	_, err = f.engine.SettleTransfer(req, false)
	assert.Equal(t, errors.KindBadTokTypeIdA, errors.KindOf(err))
}

func TestUnsupportedCombinations(t *testing.T) {
	f := newFixture(t)
	w, g := uuid.New(), uuid.New()

	// token for token
	req := &models.TransferRequest{
		LegA: models.Leg{Account: w, TokenQuantity: d(10), TokenTypeID: f.t2},
		LegB: models.Leg{Account: g, TokenQuantity: d(10), TokenTypeID: f.t2},
	}
	_, err := f.engine.SettleTransfer(req, false)
	assert.Equal(t, errors.KindBadTransferTypes, errors.KindOf(err))

	// one leg supplying both asset classes
	req = &models.TransferRequest{
		LegA: models.Leg{Account: w, TokenQuantity: d(10), TokenTypeID: f.t2, CcyAmount: d(5), CcyTypeID: f.usd},
		LegB: models.Leg{Account: g},
		Type: models.TransferAdjustment,
	}
	_, err = f.engine.SettleTransfer(req, false)
	assert.Equal(t, errors.KindBadTransferTypes, errors.KindOf(err))
}

func TestOneSidedRequiresTag(t *testing.T) {
	f := newFixture(t)
	w, g := uuid.New(), uuid.New()
	f.mint(t, w, 100, models.ZeroOriginatorSchedule())

	req := f.tokenTransfer(w, g, 100)
	req.Type = models.TransferOther
	_, err := f.engine.SettleTransfer(req, false)
	require.Error(t, err)
	assert.Equal(t, errors.KindBadTransferType, errors.KindOf(err))
	assert.Equal(t, "one-sided transfer requires an explicit transfer type", err.(*errors.Error).Reason())
}

func TestMagnitudeBound(t *testing.T) {
	f := newFixture(t)
	w, g := uuid.New(), uuid.New()

	two64 := decimal.RequireFromString("18446744073709551616") // 2^64
	req := f.tokenTransfer(w, g, 1)
	req.LegA.TokenQuantity = two64
	_, err := f.engine.SettleTransfer(req, false)
	assert.Equal(t, errors.KindBadQtyA, errors.KindOf(err))

	req = &models.TransferRequest{
		LegA: models.Leg{Account: w},
		LegB: models.Leg{Account: g, CcyAmount: two64, CcyTypeID: f.usd},
		Type: models.TransferAdjustment,
	}
	_, err = f.engine.SettleTransfer(req, false)
	assert.Equal(t, errors.KindBadQtyB, errors.KindOf(err))

	// one below the bound passes magnitude validation and fails later
	// on sufficiency instead
	req = f.tokenTransfer(w, g, 1)
	req.LegA.TokenQuantity = two64.Sub(d(1))
	_, err = f.engine.SettleTransfer(req, false)
	assert.Equal(t, errors.KindInsufficientTokensA, errors.KindOf(err))
}

func TestInsufficiency(t *testing.T) {
	f := newFixture(t)
	w, g := uuid.New(), uuid.New()
	f.mint(t, w, 100, models.ZeroOriginatorSchedule())

	_, err := f.engine.SettleTransfer(f.tokenTransfer(w, g, 101), false)
	assert.Equal(t, errors.KindInsufficientTokensA, errors.KindOf(err))

	// currency on leg B
	req := &models.TransferRequest{
		LegA: models.Leg{Account: w},
		LegB: models.Leg{Account: g, CcyAmount: d(50), CcyTypeID: f.usd},
		Type: models.TransferAdjustment,
	}
	_, err = f.engine.SettleTransfer(req, false)
	assert.Equal(t, errors.KindInsufficientCurrencyB, errors.KindOf(err))

	// a failed settlement leaves every balance untouched
	assert.True(t, f.store.GetLedgerEntry(w).TokenTotals[f.t2].Equal(d(100)))
}

func TestFeesCountTowardSufficiency(t *testing.T) {
	f := newFixture(t)
	p, r, feeOwner := uuid.New(), uuid.New(), uuid.New()
	f.dir.SetFeeOwner(p, feeOwner)

	s := models.ZeroFeeSchedule()
	s.PercentBps = d(100)
	f.setGlobalCcySchedule(t, s)

	// exactly the requested amount, but not the fee on top
	require.NoError(t, f.store.CreditCurrency(p, f.usd, d(10000)))
	_, err := f.engine.SettleTransfer(f.ccyTransfer(p, r, 10000), true)
	assert.Equal(t, errors.KindInsufficientCurrencyA, errors.KindOf(err))
	assert.True(t, f.store.GetBalance(p, f.usd).Equal(d(10000)))
}

func TestReadOnlyGate(t *testing.T) {
	f := newFixture(t)
	w, g := uuid.New(), uuid.New()
	f.mint(t, w, 100, models.ZeroOriginatorSchedule())
	require.NoError(t, f.gov.SetReadOnly(true))

	_, err := f.engine.SettleTransfer(f.tokenTransfer(w, g, 50), false)
	require.Error(t, err)
	assert.Equal(t, errors.KindReadOnly, errors.KindOf(err))
	assert.Equal(t, "ledger is read-only", err.(*errors.Error).Reason())

	_, err = f.engine.MintBatch(f.t2, d(10), w, models.ZeroOriginatorSchedule(), decimal.Zero, nil)
	assert.Equal(t, errors.KindReadOnly, errors.KindOf(err))

	require.NoError(t, f.gov.SetReadOnly(false))
	_, err = f.engine.SettleTransfer(f.tokenTransfer(w, g, 50), false)
	assert.NoError(t, err)
}

func TestUnsealedLedgerRejectsTrading(t *testing.T) {
	log := zap.NewNop()
	f := &fixture{
		store: ledger.NewStore(log),
		dir:   directory.NewDirectory(),
		gov:   governance.NewState(log),
		admin: uuid.New(),
	}
	f.resolver = fees.NewResolver(log, []uuid.UUID{f.admin})
	f.registry = registry.NewRegistry(log)
	f.usd, _ = f.registry.RegisterCurrency("USD", "cent", 2)
	f.t2, _ = f.registry.RegisterTokenType("T2", "bar", "spot")
	f.engine = NewEngine(log, f.store, f.resolver, f.registry, f.dir, f.gov, NewMetrics(prometheus.NewRegistry()))

	_, err := f.engine.SettleTransfer(f.tokenTransfer(uuid.New(), uuid.New(), 1), false)
	assert.Equal(t, errors.KindRestricted, errors.KindOf(err))
}

func TestIdempotentRead(t *testing.T) {
	f := newFixture(t)
	w := uuid.New()
	f.mint(t, w, 1000, models.ZeroOriginatorSchedule())
	require.NoError(t, f.store.CreditCurrency(w, f.usd, d(42)))

	first := f.engine.GetLedgerEntry(w)
	second := f.engine.GetLedgerEntry(w)
	assert.Equal(t, first, second)
}

func TestSwapWithMirrorFee(t *testing.T) {
	f := newFixture(t)
	w, g := uuid.New(), uuid.New() // w sells tokens, g pays currency
	ownerW, ownerG := uuid.New(), uuid.New()
	f.dir.SetFeeOwner(w, ownerW)
	f.dir.SetFeeOwner(g, ownerG)

	f.mint(t, w, 3_000_000, models.ZeroOriginatorSchedule())
	require.NoError(t, f.store.CreditCurrency(g, f.usd, d(60000)))
	require.NoError(t, f.store.CreditCurrency(w, f.usd, d(100)))

	s := models.ZeroFeeSchedule()
	s.Mirror = true
	s.PercentBps = d(100)
	s.PerMillion = d(5)
	f.setGlobalCcySchedule(t, s)

	before := f.usdTotal(w, g, ownerW, ownerG)
	res, err := f.engine.SettleTransfer(f.swap(w, g, 2_500_000, 50000), true)
	require.NoError(t, err)

	// currency payer: 50000 + 1% (500) + mirror floor(2.5M/1M)*5 = 10
	assert.True(t, f.store.GetBalance(g, f.usd).Equal(d(9490)))
	assert.True(t, f.store.GetBalance(ownerG, f.usd).Equal(d(510)))

	// token payer is charged the same mirrored 10, to its own owner
	assert.True(t, f.store.GetBalance(w, f.usd).Equal(d(50090)))
	assert.True(t, f.store.GetBalance(ownerW, f.usd).Equal(d(10)))

	// tokens move exactly as requested
	assert.True(t, f.store.GetLedgerEntry(g).TokenTotals[f.t2].Equal(d(2_500_000)))
	assert.True(t, f.store.GetLedgerEntry(w).TokenTotals[f.t2].Equal(d(500_000)))

	// currency conservation across every touched account
	assert.True(t, f.usdTotal(w, g, ownerW, ownerG).Equal(before))
	assert.NotEmpty(t, res.Fees)
}

func TestSwapApportionsFeeAcrossBatches(t *testing.T) {
	f := newFixture(t)
	w, g := uuid.New(), uuid.New()
	ownerG := uuid.New()
	f.dir.SetFeeOwner(g, ownerG)

	orig := models.ZeroOriginatorSchedule()
	orig.PercentBps = d(1000) // 10% of the apportioned fee share
	for i := 0; i < 3; i++ {
		f.mint(t, w, 1000, orig)
	}
	require.NoError(t, f.store.CreditCurrency(g, f.usd, d(40000)))

	s := models.ZeroFeeSchedule()
	s.PercentBps = d(100) // 1%
	f.setGlobalCcySchedule(t, s)

	before := f.usdTotal(w, g, ownerG)
	res, err := f.engine.SettleTransfer(f.swap(w, g, 3000, 30000), true)
	require.NoError(t, err)

	// fee 300 split 100/100/100 across the batches, 10% of each share
	// to the originator (w), remainder to the exchange owner
	assert.True(t, f.store.GetBalance(g, f.usd).Equal(d(9700)))
	assert.True(t, f.store.GetBalance(w, f.usd).Equal(d(30030)))
	assert.True(t, f.store.GetBalance(ownerG, f.usd).Equal(d(270)))

	// no token-unit originator fee in a swap: w parted with exactly 3000
	assert.True(t, f.store.GetLedgerEntry(w).TokenTotals[f.t2].IsZero())
	assert.True(t, f.store.GetLedgerEntry(g).TokenTotals[f.t2].Equal(d(3000)))

	assert.True(t, f.usdTotal(w, g, ownerG).Equal(before))

	// one originator charge per batch touched
	origCharges := 0
	for _, c := range res.Fees {
		if c.Label == "originator" {
			origCharges++
			assert.True(t, c.Amount.Equal(d(10)))
		}
	}
	assert.Equal(t, 3, origCharges)
}

func TestApportionmentRoundingTolerance(t *testing.T) {
	f := newFixture(t)
	w, g := uuid.New(), uuid.New()
	ownerG := uuid.New()
	f.dir.SetFeeOwner(g, ownerG)

	orig := models.ZeroOriginatorSchedule()
	orig.PercentBps = d(1000) // 10%
	f.mint(t, w, 333, orig)
	f.mint(t, w, 333, orig)
	f.mint(t, w, 334, orig)
	require.NoError(t, f.store.CreditCurrency(g, f.usd, d(20000)))

	s := models.ZeroFeeSchedule()
	s.PercentBps = d(100)
	f.setGlobalCcySchedule(t, s)

	before := f.usdTotal(w, g, ownerG)
	res, err := f.engine.SettleTransfer(f.swap(w, g, 1000, 10000), true)
	require.NoError(t, err)

	// nothing is lost to rounding: the full fee lands somewhere
	assert.True(t, f.usdTotal(w, g, ownerG).Equal(before))
	assert.True(t, f.store.GetBalance(g, f.usd).Equal(d(9900))) // 20000 - 10100

	// the originator's take drifts from the ideal 10 by at most one
	// unit per batch touched
	originatorTotal := decimal.Zero
	for _, c := range res.Fees {
		if c.Label == "originator" {
			originatorTotal = originatorTotal.Add(c.Amount)
		}
	}
	ideal := d(10) // 10% of the 100-unit fee
	drift := ideal.Sub(originatorTotal).Abs()
	assert.True(t, drift.LessThanOrEqual(d(3)), "drift %s exceeds one unit per batch", drift)
}

func TestFeeWaivedWithoutFeeOwner(t *testing.T) {
	f := newFixture(t)
	p, r := uuid.New(), uuid.New()
	require.NoError(t, f.store.CreditCurrency(p, f.usd, d(20000)))

	s := models.ZeroFeeSchedule()
	s.PercentBps = d(100)
	f.setGlobalCcySchedule(t, s)

	res, err := f.engine.SettleTransfer(f.ccyTransfer(p, r, 10000), true)
	require.NoError(t, err)
	assert.Empty(t, res.Fees)
	assert.True(t, f.store.GetBalance(p, f.usd).Equal(d(10000)), "waived fee must not be debited")
}

func TestSharedFeeOwnerSumsCredits(t *testing.T) {
	f := newFixture(t)
	w, g := uuid.New(), uuid.New()
	shared := uuid.New()
	f.dir.SetFeeOwner(w, shared)
	f.dir.SetFeeOwner(g, shared)

	f.mint(t, w, 3_000_000, models.ZeroOriginatorSchedule())
	require.NoError(t, f.store.CreditCurrency(g, f.usd, d(60000)))
	require.NoError(t, f.store.CreditCurrency(w, f.usd, d(100)))

	s := models.ZeroFeeSchedule()
	s.Mirror = true
	s.PerMillion = d(5)
	f.setGlobalCcySchedule(t, s)

	_, err := f.engine.SettleTransfer(f.swap(w, g, 2_500_000, 50000), true)
	require.NoError(t, err)

	// both mirrored charges (10 each) land on the one shared owner
	assert.True(t, f.store.GetBalance(shared, f.usd).Equal(d(20)))
}

func TestAccountScopedOverrideAppliesToPayerOnly(t *testing.T) {
	f := newFixture(t)
	p, r, feeOwner := uuid.New(), uuid.New(), uuid.New()
	f.dir.SetFeeOwner(p, feeOwner)
	require.NoError(t, f.store.CreditCurrency(p, f.usd, d(20000)))

	global := models.ZeroFeeSchedule()
	global.PercentBps = d(100)
	f.setGlobalCcySchedule(t, global)

	override := models.ZeroFeeSchedule()
	override.PercentBps = d(10) // 0.1% for this account
	require.NoError(t, f.engine.SetFeeSchedule(models.FeeKindCurrency, f.usd, p, override, f.admin))

	_, err := f.engine.SettleTransfer(f.ccyTransfer(p, r, 10000), true)
	require.NoError(t, err)
	assert.True(t, f.store.GetBalance(feeOwner, f.usd).Equal(d(10)))
}

func TestSettlementResultSnapshots(t *testing.T) {
	f := newFixture(t)
	p, r, feeOwner := uuid.New(), uuid.New(), uuid.New()
	f.dir.SetFeeOwner(p, feeOwner)
	require.NoError(t, f.store.CreditCurrency(p, f.usd, d(20000)))

	s := models.ZeroFeeSchedule()
	s.PercentBps = d(100)
	f.setGlobalCcySchedule(t, s)

	res, err := f.engine.SettleTransfer(f.ccyTransfer(p, r, 10000), true)
	require.NoError(t, err)

	require.Contains(t, res.Before, p)
	require.Contains(t, res.After, p)
	require.Contains(t, res.Before, feeOwner)
	assert.True(t, res.Before[p].Balances[f.usd].Equal(d(20000)))
	assert.True(t, res.After[p].Balances[f.usd].Equal(d(9900)))
	assert.True(t, res.After[feeOwner].Balances[f.usd].Equal(d(100)))
}

func TestBatchConservationAcrossSettlements(t *testing.T) {
	f := newFixture(t)
	w, g, feeOwner := uuid.New(), uuid.New(), uuid.New()
	f.dir.SetFeeOwner(w, feeOwner)

	fee := models.ZeroOriginatorSchedule()
	fee.Fixed = d(1)
	id := f.mint(t, w, 1000, fee)

	for i := 0; i < 4; i++ {
		_, err := f.engine.SettleTransfer(f.tokenTransfer(w, g, 100), true)
		require.NoError(t, err)
	}

	batch, err := f.engine.GetBatch(id)
	require.NoError(t, err)
	held := decimal.Zero
	for _, acc := range []uuid.UUID{w, g, feeOwner} {
		for _, h := range f.store.GetLedgerEntry(acc).Holdings {
			if h.BatchID == id {
				held = held.Add(h.Quantity)
			}
		}
	}
	assert.True(t, held.Equal(batch.Minted), "batch quantity must be conserved across settlements")
}
