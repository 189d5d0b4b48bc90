package parallax

import (
	"log"
	"sync"
	"time"

	"github.com/tmarlen/aurora/pkg/types"
)

// WeightsSource loads the persisted active weight row for a ticker.
type WeightsSource interface {
	GetActiveWeights(ticker string) (*types.WeightSet, error)
}

// DefaultWeightsTTL is how long a loaded weight vector is trusted before the
// cache reloads it. The optimizer relies on this for hot-swap pickup.
const DefaultWeightsTTL = 60 * time.Second

type cachedWeights struct {
	genes       types.Genes
	refreshedAt time.Time
}

// WeightsCache is the ticker-partitioned weights store behind the fuser.
// Values are immutable snapshots; a reader never observes a torn vector.
type WeightsCache struct {
	source WeightsSource
	ttl    time.Duration

	mu      sync.RWMutex
	entries map[string]cachedWeights

	now func() time.Time
}

// NewWeightsCache builds a cache over the given source. ttl <= 0 uses the
// default 60 s.
func NewWeightsCache(source WeightsSource, ttl time.Duration) *WeightsCache {
	if ttl <= 0 {
		ttl = DefaultWeightsTTL
	}
	return &WeightsCache{
		source:  source,
		ttl:     ttl,
		entries: make(map[string]cachedWeights),
		now:     time.Now,
	}
}

// Get returns the active genes for a ticker, loading from the source on a
// miss or an expired entry. Absent or unreadable rows fall back to the
// documented defaults.
func (c *WeightsCache) Get(ticker string) types.Genes {
	c.mu.RLock()
	entry, ok := c.entries[ticker]
	c.mu.RUnlock()
	if ok && c.now().Sub(entry.refreshedAt) < c.ttl {
		return entry.genes
	}

	genes := types.DefaultGenes()
	ws, err := c.source.GetActiveWeights(ticker)
	if err != nil {
		log.Printf("[Parallax] weights load %s: %v", ticker, err)
	} else if ws != nil {
		genes = ws.Genes
	}

	c.mu.Lock()
	c.entries[ticker] = cachedWeights{genes: genes, refreshedAt: c.now()}
	c.mu.Unlock()
	return genes
}

// Invalidate drops the cached entry so the next Get reloads immediately.
// The optimizer calls this after persisting a new active row.
func (c *WeightsCache) Invalidate(ticker string) {
	c.mu.Lock()
	delete(c.entries, ticker)
	c.mu.Unlock()
}
