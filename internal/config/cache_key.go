package config

import (
	"fmt"
)

type CacheKeyStruct struct {
	// AttemptDeadlines is the sorted set of open attempts scored by their ends_at unix time.
	AttemptDeadlines string
}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{
		AttemptDeadlines: "attempts:deadlines",
	}
}

// ExplorerSummaryKey returns the cache key for a relationship summary of the given top-N size
func (r *CacheKeyStruct) ExplorerSummaryKey(topN int) string {
	return fmt.Sprintf("explorer:summary:%d", topN)
}

// ExplorerSummaryPattern matches every cached relationship summary
func (r *CacheKeyStruct) ExplorerSummaryPattern() string {
	return "explorer:summary:*"
}

var CacheKey = NewCacheKeyStruct()
