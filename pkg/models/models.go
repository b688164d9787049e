// Package models holds the value objects shared between the ledger
// stores, the fee resolver and the settlement engine.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransferType classifies one-sided operations. Bilateral swaps carry
// TransferOther; a one-sided transfer must carry one of the explicit
// tags.
type TransferType string

const (
	TransferOther      TransferType = "other"
	TransferMint       TransferType = "mint"
	TransferBurn       TransferType = "burn"
	TransferAdjustment TransferType = "adjustment"
)

// FeeKind selects the fee table a schedule lives in.
type FeeKind string

const (
	FeeKindCurrency FeeKind = "currency"
	FeeKindToken    FeeKind = "token"
)

// FeeSchedule is the resolved exchange fee configuration for one
// (kind, type id, scope) key.
//
// Mirror marks a currency schedule whose per-million charge is levied
// on both sides of a token-for-currency swap. Maximum of zero means
// uncapped.
type FeeSchedule struct {
	Mirror     bool            `json:"mirror"`
	PerMillion decimal.Decimal `json:"per_million"`
	Fixed      decimal.Decimal `json:"fixed"`
	PercentBps decimal.Decimal `json:"percent_bps"`
	Minimum    decimal.Decimal `json:"minimum"`
	Maximum    decimal.Decimal `json:"maximum"`
}

// ZeroFeeSchedule is the no-op schedule returned when nothing is
// configured.
func ZeroFeeSchedule() FeeSchedule {
	return FeeSchedule{
		PerMillion: decimal.Zero,
		Fixed:      decimal.Zero,
		PercentBps: decimal.Zero,
		Minimum:    decimal.Zero,
		Maximum:    decimal.Zero,
	}
}

// IsZero reports whether the schedule charges nothing.
func (s FeeSchedule) IsZero() bool {
	return !s.Mirror && s.PerMillion.IsZero() && s.Fixed.IsZero() &&
		s.PercentBps.IsZero() && s.Minimum.IsZero() && s.Maximum.IsZero()
}

// OriginatorSchedule is the per-batch fee fixed at mint time. Each
// field may only decrease afterwards.
type OriginatorSchedule struct {
	Fixed      decimal.Decimal `json:"fixed"`
	PercentBps decimal.Decimal `json:"percent_bps"`
	Minimum    decimal.Decimal `json:"minimum"`
	Maximum    decimal.Decimal `json:"maximum"`
}

// ZeroOriginatorSchedule returns an all-zero schedule.
func ZeroOriginatorSchedule() OriginatorSchedule {
	return OriginatorSchedule{
		Fixed:      decimal.Zero,
		PercentBps: decimal.Zero,
		Minimum:    decimal.Zero,
		Maximum:    decimal.Zero,
	}
}

// IsZero reports whether the schedule charges nothing.
func (s OriginatorSchedule) IsZero() bool {
	return s.Fixed.IsZero() && s.PercentBps.IsZero() &&
		s.Minimum.IsZero() && s.Maximum.IsZero()
}

// Leg is one side of a transfer request. Zero type ids mean the leg
// does not move that asset class.
type Leg struct {
	Account       uuid.UUID       `json:"account"`
	TokenQuantity decimal.Decimal `json:"token_quantity"`
	TokenTypeID   uint32          `json:"token_type_id"`
	CcyAmount     decimal.Decimal `json:"ccy_amount"`
	CcyTypeID     uint32          `json:"ccy_type_id"`
}

// MovesTokens reports whether the leg supplies token quantity.
func (l Leg) MovesTokens() bool { return !l.TokenQuantity.IsZero() }

// MovesCurrency reports whether the leg supplies currency.
func (l Leg) MovesCurrency() bool { return !l.CcyAmount.IsZero() }

// TransferRequest is the input to settlement. It is consumed
// atomically and never persisted.
type TransferRequest struct {
	LegA Leg          `json:"leg_a"`
	LegB Leg          `json:"leg_b"`
	Type TransferType `json:"type"`
}

// Holding is one batch position inside a ledger entry view.
type Holding struct {
	BatchID  uint64          `json:"batch_id"`
	Quantity decimal.Decimal `json:"quantity"`
}

// LedgerEntryView is a point-in-time copy of one account's entry.
type LedgerEntryView struct {
	Account     uuid.UUID                  `json:"account"`
	Balances    map[uint32]decimal.Decimal `json:"balances"`
	Holdings    []Holding                  `json:"holdings"`
	TokenTotals map[uint32]decimal.Decimal `json:"token_totals"`
}

// BatchView is a point-in-time copy of a token batch.
type BatchView struct {
	ID         uint64             `json:"id"`
	TokenType  uint32             `json:"token_type"`
	Minted     decimal.Decimal    `json:"minted"`
	Originator uuid.UUID          `json:"originator"`
	MintedAt   time.Time          `json:"minted_at"`
	Fee        OriginatorSchedule `json:"fee"`
	MirrorBps  decimal.Decimal    `json:"mirror_bps"`
	Tags       []string           `json:"tags"`
}

// FeeCharge records one computed fee and where it was routed.
type FeeCharge struct {
	Payer     uuid.UUID       `json:"payer"`
	Recipient uuid.UUID       `json:"recipient"`
	Kind      FeeKind         `json:"kind"`
	TypeID    uint32          `json:"type_id"`
	BatchID   uint64          `json:"batch_id,omitempty"` // 0 for non-batch fees
	Amount    decimal.Decimal `json:"amount"`
	Label     string          `json:"label"` // exchange, mirror, originator
}

// SettlementResult is the audit record returned for a successful
// settlement: before/after entry snapshots for both legs and every
// fee-owner touched, plus the fee breakdown.
type SettlementResult struct {
	Before map[uuid.UUID]LedgerEntryView `json:"before"`
	After  map[uuid.UUID]LedgerEntryView `json:"after"`
	Fees   []FeeCharge                   `json:"fees"`
}
