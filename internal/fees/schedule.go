// Package fees implements fee schedule validation, the fee-resolution
// lookup and the exact fee arithmetic used by settlement.
//
// All amounts are integral decimals; divisions floor via QuoRem so the
// math is replayable bit-for-bit.
package fees

import (
	"github.com/shopspring/decimal"

	"github.com/oberonmarkets/comex-ledger/pkg/errors"
	"github.com/oberonmarkets/comex-ledger/pkg/models"
)

var (
	bpsDenominator = decimal.NewFromInt(10000)
	perMillionUnit = decimal.NewFromInt(1_000_000)
)

// MaxPercentBps is the 100% ceiling on percentage fees.
var MaxPercentBps = bpsDenominator

// floorDiv returns floor(a/b) for non-negative integral a, b.
func floorDiv(a, b decimal.Decimal) decimal.Decimal {
	q, _ := a.QuoRem(b, 0)
	return q
}

// clamp applies the min/max collar. A maximum of zero means uncapped.
func clamp(fee, minimum, maximum decimal.Decimal) decimal.Decimal {
	if fee.LessThan(minimum) {
		fee = minimum
	}
	if maximum.IsPositive() && fee.GreaterThan(maximum) {
		fee = maximum
	}
	return fee
}

// Charge computes the exchange fee for an amount under a schedule:
//
//	min(max(floor(amount*bps/10000) + fixed, minimum), maximum)
//
// Percentage fees that floor to zero on small amounts are a valid zero
// charge.
func Charge(s models.FeeSchedule, amount decimal.Decimal) decimal.Decimal {
	fee := floorDiv(amount.Mul(s.PercentBps), bpsDenominator).Add(s.Fixed)
	return clamp(fee, s.Minimum, s.Maximum)
}

// MirrorCharge computes the per-million charge for a moved token
// quantity, clamped by the schedule's collar. It is levied on both
// sides of a swap independently when the Mirror flag is set.
func MirrorCharge(s models.FeeSchedule, tokenQty decimal.Decimal) decimal.Decimal {
	fee := floorDiv(tokenQty, perMillionUnit).Mul(s.PerMillion)
	return clamp(fee, s.Minimum, s.Maximum)
}

// OriginatorCharge evaluates a batch-level originator schedule against
// the quantity (or fee portion) sourced from that batch.
func OriginatorCharge(s models.OriginatorSchedule, qty decimal.Decimal) decimal.Decimal {
	fee := floorDiv(qty.Mul(s.PercentBps), bpsDenominator).Add(s.Fixed)
	return clamp(fee, s.Minimum, s.Maximum)
}

// ValidateSchedule enforces the schedule invariants: every field
// non-negative, percentage at most 10000 bps, and when a cap is set it
// must not be below the collar.
func ValidateSchedule(s models.FeeSchedule) error {
	if s.PerMillion.IsNegative() || s.Fixed.IsNegative() || s.PercentBps.IsNegative() ||
		s.Minimum.IsNegative() || s.Maximum.IsNegative() {
		return errors.New(errors.KindBadFeeArgs)
	}
	if s.PercentBps.GreaterThan(MaxPercentBps) {
		return errors.New(errors.KindBadFeeArgs)
	}
	if s.Maximum.IsPositive() && s.Maximum.LessThan(s.Minimum) {
		return errors.New(errors.KindBadFeeArgs)
	}
	return nil
}

// ValidateOriginatorSchedule applies the same invariants to a
// batch-level schedule.
func ValidateOriginatorSchedule(s models.OriginatorSchedule) error {
	if s.Fixed.IsNegative() || s.PercentBps.IsNegative() ||
		s.Minimum.IsNegative() || s.Maximum.IsNegative() {
		return errors.New(errors.KindBadFeeArgs)
	}
	if s.PercentBps.GreaterThan(MaxPercentBps) {
		return errors.New(errors.KindBadFeeArgs)
	}
	if s.Maximum.IsPositive() && s.Maximum.LessThan(s.Minimum) {
		return errors.New(errors.KindBadFeeArgs)
	}
	return nil
}

// ValidateDecrease checks that next does not increase any field of
// current. Each field is independently monotonically non-increasing;
// keeping a field unchanged is permitted.
func ValidateDecrease(current, next models.OriginatorSchedule) error {
	if next.Fixed.GreaterThan(current.Fixed) ||
		next.PercentBps.GreaterThan(current.PercentBps) ||
		next.Minimum.GreaterThan(current.Minimum) ||
		next.Maximum.GreaterThan(current.Maximum) {
		return errors.New(errors.KindBadFeeArgs)
	}
	return nil
}
