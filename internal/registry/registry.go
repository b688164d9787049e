// Package registry maps currency and token type ids to their
// metadata. The engine only consults existence and decimals; the CRUD
// surface exists for the administration layer.
package registry

import (
	"sync"

	"go.uber.org/zap"

	"github.com/oberonmarkets/comex-ledger/pkg/errors"
)

// CurrencyInfo describes one registered currency.
type CurrencyInfo struct {
	ID       uint32 `json:"id"`
	Name     string `json:"name"`
	Unit     string `json:"unit"`
	Decimals uint8  `json:"decimals"`
}

// TokenTypeInfo describes one registered token type.
type TokenTypeInfo struct {
	ID             uint32 `json:"id"`
	Name           string `json:"name"`
	Unit           string `json:"unit"`
	SettlementKind string `json:"settlement_kind"` // e.g. "spot"
}

// Registry is the type-id registry. Names are unique within each
// class.
type Registry struct {
	mu         sync.RWMutex
	logger     *zap.Logger
	currencies map[uint32]CurrencyInfo
	tokenTypes map[uint32]TokenTypeInfo
	ccyNames   map[string]uint32
	tokNames   map[string]uint32
	ccySeq     uint32
	tokSeq     uint32
}

// NewRegistry creates an empty registry. Type ids are 1-based.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		logger:     logger,
		currencies: make(map[uint32]CurrencyInfo),
		tokenTypes: make(map[uint32]TokenTypeInfo),
		ccyNames:   make(map[string]uint32),
		tokNames:   make(map[string]uint32),
	}
}

// RegisterCurrency adds a currency and returns its id. Duplicate names
// are rejected.
func (r *Registry) RegisterCurrency(name, unit string, decimals uint8) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.ccyNames[name]; ok {
		return 0, errors.New(errors.KindDuplicateName)
	}
	r.ccySeq++
	id := r.ccySeq
	r.currencies[id] = CurrencyInfo{ID: id, Name: name, Unit: unit, Decimals: decimals}
	r.ccyNames[name] = id
	r.logger.Info("currency registered", zap.Uint32("id", id), zap.String("name", name))
	return id, nil
}

// RegisterTokenType adds a token type and returns its id. Duplicate
// names are rejected.
func (r *Registry) RegisterTokenType(name, unit, settlementKind string) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tokNames[name]; ok {
		return 0, errors.New(errors.KindDuplicateName)
	}
	r.tokSeq++
	id := r.tokSeq
	r.tokenTypes[id] = TokenTypeInfo{ID: id, Name: name, Unit: unit, SettlementKind: settlementKind}
	r.tokNames[name] = id
	r.logger.Info("token type registered", zap.Uint32("id", id), zap.String("name", name))
	return id, nil
}

// CurrencyExists reports whether a currency id is registered.
func (r *Registry) CurrencyExists(id uint32) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.currencies[id]
	return ok
}

// TokenTypeExists reports whether a token type id is registered.
func (r *Registry) TokenTypeExists(id uint32) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tokenTypes[id]
	return ok
}

// Decimals returns the currency's decimal places, failing BadCcyTypeId
// for unknown ids.
func (r *Registry) Decimals(id uint32) (uint8, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.currencies[id]
	if !ok {
		return 0, errors.New(errors.KindBadCcyTypeId)
	}
	return c.Decimals, nil
}

// Currency returns the currency metadata.
func (r *Registry) Currency(id uint32) (CurrencyInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.currencies[id]
	if !ok {
		return CurrencyInfo{}, errors.New(errors.KindBadCcyTypeId)
	}
	return c, nil
}

// TokenType returns the token type metadata.
func (r *Registry) TokenType(id uint32) (TokenTypeInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tokenTypes[id]
	if !ok {
		return TokenTypeInfo{}, errors.New(errors.KindBadTokTypeId)
	}
	return t, nil
}
