// Package history maintains a bounded, most-recent-first mirror of past
// scans. The cache is decorative relative to the analyze flow: refresh
// failures keep the previous contents.
package history

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/example/foodscan/internal/transport"
)

// DefaultPerPage is the number of entries requested per refresh.
const DefaultPerPage = 5

// Warning is the warning view carried by a history entry.
type Warning struct {
	Allergen   string  `json:"allergen"`
	Ingredient string  `json:"ingredient"`
	Severity   string  `json:"severity"`
	Confidence float64 `json:"confidence"`
}

// Entry is a read-only mirror of one past scan as served by the service.
type Entry struct {
	ID           int64     `json:"id"`
	IsSafe       bool      `json:"is_safe"`
	Warnings     []Warning `json:"warnings"`
	Ingredients  []string  `json:"ingredients"`
	CreatedAt    string    `json:"created_at"`
	HasNutrition bool      `json:"has_nutrition"`
}

type historyResponse struct {
	Scans []Entry `json:"scans"`
}

// Cache is the local mirror of recent scans.
type Cache struct {
	client  *transport.Client
	log     *zap.Logger
	perPage int

	mu      sync.RWMutex
	entries []Entry
}

// New creates a history cache. perPage <= 0 falls back to DefaultPerPage.
func New(client *transport.Client, log *zap.Logger, perPage int) *Cache {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	return &Cache{
		client:  client,
		log:     log,
		perPage: perPage,
	}
}

// Refresh fetches the most recent scans and replaces the cache wholesale.
// On failure the previous contents are left untouched and the error is
// returned; callers for whom history is best-effort log it and move on.
func (c *Cache) Refresh(ctx context.Context) error {
	var resp historyResponse
	path := fmt.Sprintf("/scan-history?per_page=%d", c.perPage)
	if err := c.client.GetJSON(ctx, path, &resp); err != nil {
		return err
	}

	c.mu.Lock()
	c.entries = resp.Scans
	c.mu.Unlock()
	c.log.Debug("scan history refreshed", zap.Int("entries", len(resp.Scans)))
	return nil
}

// Entries returns a copy of the cached entries, most recent first.
func (c *Cache) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Entry(nil), c.entries...)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
