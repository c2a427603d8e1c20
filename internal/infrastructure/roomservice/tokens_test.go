package roomservice

import (
	"fmt"
	"testing"
	"time"

	"livegrid/internal/core/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTokens struct {
	calls int
}

func (c *countingTokens) IssueServiceToken(grant services.VideoGrant) (string, error) {
	c.calls++
	return fmt.Sprintf("token-%d", c.calls), nil
}

func TestCachedTokenSource_ReusesTokenPerGrant(t *testing.T) {
	src := &countingTokens{}
	tokens := NewCachedTokenSource(src, time.Minute)

	first, err := tokens.IssueServiceToken(services.VideoGrant{RoomList: true})
	require.NoError(t, err)
	second, err := tokens.IssueServiceToken(services.VideoGrant{RoomList: true})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := tokens.IssueServiceToken(services.VideoGrant{RoomCreate: true})
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
	assert.Equal(t, 2, src.calls)
}
