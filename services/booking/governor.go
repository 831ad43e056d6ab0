package booking

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"reservo/models"
)

// GovernorConfig tunes the two admission checks. The exact numbers are
// deployment policy; the mechanisms are required.
type GovernorConfig struct {
	RateLimit  int           // requests per client per window
	RateWindow time.Duration // sliding window length
}

// clientWindow is the sliding counter of one client's recent requests.
// Windows are evicted once every timestamp ages out.
type clientWindow struct {
	stamps []time.Time
}

// Governor enforces per-provider daily capacity and per-client request
// rates before a request ever reaches the conflict detector. It reads
// ledger projections but never writes to the ledger.
type Governor struct {
	cfg    GovernorConfig
	ledger *Ledger
	logger *zap.Logger

	mu      sync.Mutex
	windows map[string]*clientWindow

	now func() time.Time
}

// NewGovernor builds a governor over the given ledger.
func NewGovernor(cfg GovernorConfig, ledger *Ledger, logger *zap.Logger) *Governor {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 5
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Minute
	}
	return &Governor{
		cfg:     cfg,
		ledger:  ledger,
		logger:  logger,
		windows: make(map[string]*clientWindow),
		now:     time.Now,
	}
}

// AdmitClient counts one request against the client's sliding window and
// rejects with RateLimitExceededError once the limit is reached. The
// window never under-counts within a single process: the count and the
// append happen under one lock.
func (g *Governor) AdmitClient(clientID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	cutoff := now.Add(-g.cfg.RateWindow)

	w, ok := g.windows[clientID]
	if !ok {
		w = &clientWindow{}
		g.windows[clientID] = w
	}

	// Prune timestamps that slid out of the window.
	kept := w.stamps[:0]
	for _, s := range w.stamps {
		if s.After(cutoff) {
			kept = append(kept, s)
		}
	}
	w.stamps = kept

	if len(w.stamps) >= g.cfg.RateLimit {
		retryAfter := w.stamps[0].Add(g.cfg.RateWindow).Sub(now)
		g.logger.Warn("client rate limit exceeded",
			zap.String("client_id", clientID),
			zap.Duration("retry_after", retryAfter),
		)
		return &RateLimitExceededError{
			ClientID:   clientID,
			Limit:      g.cfg.RateLimit,
			Window:     g.cfg.RateWindow,
			RetryAfter: retryAfter,
		}
	}

	w.stamps = append(w.stamps, now)
	return nil
}

// CheckCapacity rejects the request if admitting additional reservations
// on the given day would push the provider's projected count (confirmed
// plus in-flight holds) above its configured daily capacity.
func (g *Governor) CheckCapacity(prov models.Provider, day time.Time, additional int) error {
	if prov.DailyCapacity <= 0 {
		return nil
	}
	total, _ := g.ledger.DayCount(prov, day)
	if total+additional <= prov.DailyCapacity {
		return nil
	}

	loc := prov.Location()
	return &CapacityExceededError{
		ProviderID: prov.ID,
		Date:       day.In(loc).Format(dateLayout),
		Capacity:   prov.DailyCapacity,
		RetryAfter: untilNextDay(day, loc, g.now()),
	}
}

// Evict drops rate windows whose every timestamp expired. Intended for a
// periodic housekeeping call; admission already prunes lazily.
func (g *Governor) Evict() {
	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := g.now().Add(-g.cfg.RateWindow)
	for id, w := range g.windows {
		live := false
		for _, s := range w.stamps {
			if s.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(g.windows, id)
		}
	}
}
