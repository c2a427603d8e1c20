package roomservice

import (
	"encoding/json"
	"fmt"
	"time"

	"livegrid/internal/core/services"
	"livegrid/pkg/cache"
)

// CachedTokenSource reuses a signed admin token per grant for reuse, which
// must be shorter than the lifetime of the tokens src signs.
type CachedTokenSource struct {
	src    TokenSource
	tokens *cache.Cache[string]
}

func NewCachedTokenSource(src TokenSource, reuse time.Duration) *CachedTokenSource {
	return &CachedTokenSource{
		src:    src,
		tokens: cache.New[string](reuse),
	}
}

func (s *CachedTokenSource) IssueServiceToken(grant services.VideoGrant) (string, error) {
	key, err := json.Marshal(grant)
	if err != nil {
		return "", fmt.Errorf("service token cache key: %w", err)
	}
	return s.tokens.GetOrSet(string(key), func() (string, error) {
		return s.src.IssueServiceToken(grant)
	})
}
