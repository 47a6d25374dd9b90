package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aretw0/loom/pkg/domain"
)

func TestLoader(t *testing.T) {
	loader := NewLoader(&domain.Machine{ID: "b"})
	loader.Add(&domain.Machine{ID: "a"})

	m, err := loader.LoadMachine(context.Background(), "a")
	require.NoError(t, err)
	require.Equal(t, "a", m.ID)

	_, err = loader.LoadMachine(context.Background(), "ghost")
	require.ErrorIs(t, err, domain.ErrMachineNotFound)

	require.Equal(t, []string{"a", "b"}, loader.IDs())
}

func TestLoaderOverwritesByID(t *testing.T) {
	loader := NewLoader(&domain.Machine{ID: "a"})
	loader.Add(&domain.Machine{ID: "a", Prompts: []string{"v2"}})

	m, err := loader.LoadMachine(context.Background(), "a")
	require.NoError(t, err)
	require.Equal(t, []string{"v2"}, m.Prompts)
	require.Len(t, loader.IDs(), 1)
}
