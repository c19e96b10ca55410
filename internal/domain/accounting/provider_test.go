package accounting

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// namedProvider satisfies AccountingProvider through the embedded interface;
// the registry only ever calls Name.
type namedProvider struct {
	AccountingProvider
	name string
}

func (p namedProvider) Name() string { return p.name }

func TestRegistry(t *testing.T) {
	t.Run("resolves a registered adapter by name", func(t *testing.T) {
		reg := NewRegistry()
		xero := namedProvider{name: "xero"}
		reg.Register(xero)

		got, err := reg.Get("xero")
		require.NoError(t, err)
		assert.Equal(t, "xero", got.Name())
	})

	t.Run("unknown name returns ErrProviderNotRegistered", func(t *testing.T) {
		reg := NewRegistry()
		reg.Register(namedProvider{name: "xero"})

		_, err := reg.Get("sage")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrProviderNotRegistered))
		assert.Contains(t, err.Error(), "sage")
	})

	t.Run("empty registry resolves nothing", func(t *testing.T) {
		reg := NewRegistry()

		_, err := reg.Get("xero")
		assert.True(t, errors.Is(err, ErrProviderNotRegistered))
	})

	t.Run("re-registering a name replaces the adapter", func(t *testing.T) {
		reg := NewRegistry()
		first := namedProvider{name: "xero"}
		second := namedProvider{name: "xero"}
		reg.Register(first)
		reg.Register(second)

		got, err := reg.Get("xero")
		require.NoError(t, err)
		assert.Equal(t, second, got)
		assert.Len(t, reg.List(), 1)
	})

	t.Run("List preserves registration order", func(t *testing.T) {
		reg := NewRegistry()
		reg.Register(namedProvider{name: "xero"})
		reg.Register(namedProvider{name: "sage"})

		all := reg.List()
		require.Len(t, all, 2)
		assert.Equal(t, "xero", all[0].Name())
		assert.Equal(t, "sage", all[1].Name())
	})
}
