// Package directory maps accounts to the entity account that receives
// fees attributable to their trades. The settlement engine uses it as
// a read-only lookup.
package directory

import (
	"sync"

	"github.com/google/uuid"
)

// Directory is the fee-owner lookup table. Two accounts may share one
// fee-owner; their fee credits then land on the same account.
type Directory struct {
	mu     sync.RWMutex
	owners map[uuid.UUID]uuid.UUID
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{owners: make(map[uuid.UUID]uuid.UUID)}
}

// SetFeeOwner binds an account to its fee-owner account.
func (d *Directory) SetFeeOwner(account, owner uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.owners[account] = owner
}

// FeeOwnerOf returns the fee-owner for an account, false when none is
// configured.
func (d *Directory) FeeOwnerOf(account uuid.UUID) (uuid.UUID, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	owner, ok := d.owners[account]
	return owner, ok
}
