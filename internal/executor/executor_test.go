package executor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/arbot/internal/domain"
)

func TestTradeIDsMonotonicWithinRun(t *testing.T) {
	ids := newTradeIDs(domain.ModePaper)

	first := ids.next()
	second := ids.next()

	assert.True(t, strings.HasPrefix(first, "PAPER_"), first)
	assert.True(t, strings.HasSuffix(first, "_0001"), first)
	assert.True(t, strings.HasSuffix(second, "_0002"), second)
	assert.Greater(t, second, first)
}

func TestTradeIDsUniqueAcrossRuns(t *testing.T) {
	// A restarted process starts its counter over, so the run token in the
	// prefix is what keeps persisted IDs from colliding.
	a := newTradeIDs(domain.ModeLive)
	b := newTradeIDs(domain.ModeLive)

	assert.NotEqual(t, a.next(), b.next())
}
