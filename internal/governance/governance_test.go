package governance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oberonmarkets/comex-ledger/pkg/errors"
)

func TestLifecycle(t *testing.T) {
	s := NewState(zap.NewNop())

	assert.False(t, s.IsSealed())
	assert.False(t, s.IsReadOnly())

	s.Seal()
	assert.True(t, s.IsSealed())

	// sealing again is a no-op
	s.Seal()
	assert.True(t, s.IsSealed())
}

func TestReadOnlyRequiresSealed(t *testing.T) {
	s := NewState(zap.NewNop())

	err := s.SetReadOnly(true)
	require.Error(t, err)
	assert.Equal(t, errors.KindRestricted, errors.KindOf(err))
	assert.False(t, s.IsReadOnly())

	s.Seal()
	require.NoError(t, s.SetReadOnly(true))
	assert.True(t, s.IsReadOnly())
	require.NoError(t, s.SetReadOnly(false))
	assert.False(t, s.IsReadOnly())
}
