package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExecutionModeCaseInsensitive(t *testing.T) {
	for _, s := range []string{"paper", "PAPER", "Paper"} {
		mode, ok := ParseExecutionMode(s)
		require.True(t, ok, s)
		assert.Equal(t, ModePaper, mode)
	}

	mode, ok := ParseExecutionMode("live")
	require.True(t, ok)
	assert.Equal(t, ModeLive, mode)
}

func TestParseExecutionModeRejectsUnknown(t *testing.T) {
	for _, s := range []string{"", "dry-run", "backtest"} {
		_, ok := ParseExecutionMode(s)
		assert.False(t, ok, s)
	}
}
