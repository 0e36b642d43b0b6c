package webauthn

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckSignCount(t *testing.T) {
	require.NoError(t, checkSignCount(0, 0))
	require.NoError(t, checkSignCount(0, 1))
	require.NoError(t, checkSignCount(5, 6))
	require.NoError(t, checkSignCount(5, 1<<31))

	require.ErrorIs(t, checkSignCount(5, 5), ErrCloningDetected)
	require.ErrorIs(t, checkSignCount(5, 3), ErrCloningDetected)
	require.ErrorIs(t, checkSignCount(5, 0), ErrCloningDetected)
	require.ErrorIs(t, checkSignCount(1, 0), ErrCloningDetected)
}
