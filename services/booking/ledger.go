package booking

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"reservo/models"
)

const dateLayout = "2006-01-02"

// LedgerObserver receives availability deltas as the ledger commits them.
// Deltas for the same provider are emitted in the order the ledger produced
// them; the observer must not block.
type LedgerObserver interface {
	SlotChanged(delta models.AvailabilityDelta)
}

// LedgerEntry is one occupied interval on a provider's day timeline.
type LedgerEntry struct {
	BookingID string
	Interval  models.Interval
	Confirmed bool
}

type dayKey struct {
	providerID string
	date       string
}

// dayLedger holds the occupied intervals of one provider/day, sorted by
// start time. Its mutex is the single serialization point for that day:
// the conflict check and the insert happen under one critical section.
type dayLedger struct {
	mu      sync.Mutex
	entries []LedgerEntry
}

// Ledger is the authoritative per-provider timeline of reservation state.
// Unrelated providers and days never block each other.
type Ledger struct {
	mu   sync.Mutex
	days map[dayKey]*dayLedger

	indexMu sync.Mutex
	index   map[string]dayKey

	observer LedgerObserver
	logger   *zap.Logger
	now      func() time.Time
}

// NewLedger builds an empty ledger.
func NewLedger(logger *zap.Logger) *Ledger {
	return &Ledger{
		days:   make(map[dayKey]*dayLedger),
		index:  make(map[string]dayKey),
		logger: logger,
		now:    time.Now,
	}
}

// SetObserver attaches the real-time observer. Call before serving traffic.
func (l *Ledger) SetObserver(obs LedgerObserver) {
	l.observer = obs
}

func (l *Ledger) day(providerID string, date string) *dayLedger {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := dayKey{providerID: providerID, date: date}
	d, ok := l.days[key]
	if !ok {
		d = &dayLedger{}
		l.days[key] = d
	}
	return d
}

// overlapping returns the entries intersecting iv. Entries are sorted by
// start and pairwise disjoint, so the scan is bounded by a binary search.
func (d *dayLedger) overlapping(iv models.Interval) []LedgerEntry {
	// First entry that could still overlap: the one before the first entry
	// starting at or after iv.End.
	hi := sort.Search(len(d.entries), func(i int) bool {
		return !d.entries[i].Interval.Start.Before(iv.End)
	})
	lo := sort.Search(len(d.entries), func(i int) bool {
		return d.entries[i].Interval.End.After(iv.Start)
	})
	var out []LedgerEntry
	for i := lo; i < hi; i++ {
		if d.entries[i].Interval.Overlaps(iv) {
			out = append(out, d.entries[i])
		}
	}
	return out
}

func (d *dayLedger) insert(e LedgerEntry) {
	at := sort.Search(len(d.entries), func(i int) bool {
		return d.entries[i].Interval.Start.After(e.Interval.Start)
	})
	d.entries = append(d.entries, LedgerEntry{})
	copy(d.entries[at+1:], d.entries[at:])
	d.entries[at] = e
}

// Reserve occupies iv for bookingID on the day of iv.Start in the
// provider's time zone. The overlap check and the insert run under the
// day lock, so no two concurrent reservations for overlapping intervals
// can both succeed. On conflict it returns a SlotConflictError listing
// the overlapping booking ids; suggested alternatives are filled in by
// the caller.
func (l *Ledger) Reserve(prov models.Provider, iv models.Interval, bookingID string) error {
	date := iv.Start.In(prov.Location()).Format(dateLayout)
	d := l.day(prov.ID, date)

	d.mu.Lock()
	defer d.mu.Unlock()

	// Daily capacity is enforced here, under the day lock, so concurrent
	// non-overlapping reservations cannot jointly exceed it. The governor
	// performs the same check earlier for a friendlier rejection.
	if prov.DailyCapacity > 0 && len(d.entries) >= prov.DailyCapacity {
		return &CapacityExceededError{
			ProviderID: prov.ID,
			Date:       date,
			Capacity:   prov.DailyCapacity,
			RetryAfter: untilNextDay(iv.Start, prov.Location(), l.now()),
		}
	}

	if hits := d.overlapping(iv); len(hits) > 0 {
		ids := make([]string, 0, len(hits))
		for _, h := range hits {
			ids = append(ids, h.BookingID)
		}
		return &SlotConflictError{
			ProviderID:     prov.ID,
			Requested:      iv,
			OverlappingIDs: ids,
		}
	}

	d.insert(LedgerEntry{BookingID: bookingID, Interval: iv})

	l.indexMu.Lock()
	l.index[bookingID] = dayKey{providerID: prov.ID, date: date}
	l.indexMu.Unlock()

	l.emit(prov.ID, date, models.SlotChange{
		BookingID: bookingID,
		Interval:  iv,
		State:     models.SlotReserved,
	})
	return nil
}

// Confirm marks a held reservation as confirmed. Unknown ids are ignored.
func (l *Ledger) Confirm(bookingID string) {
	l.indexMu.Lock()
	key, ok := l.index[bookingID]
	l.indexMu.Unlock()
	if !ok {
		return
	}

	d := l.day(key.providerID, key.date)
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.entries {
		if d.entries[i].BookingID != bookingID {
			continue
		}
		d.entries[i].Confirmed = true
		l.emit(key.providerID, key.date, models.SlotChange{
			BookingID: bookingID,
			Interval:  d.entries[i].Interval,
			State:     models.SlotConfirmed,
		})
		return
	}
}

// Release returns a booking's interval to the free pool. Releasing an
// unknown or already-released booking is a no-op, which keeps cancellation
// idempotent.
func (l *Ledger) Release(bookingID string) {
	l.indexMu.Lock()
	key, ok := l.index[bookingID]
	l.indexMu.Unlock()
	if !ok {
		return
	}

	d := l.day(key.providerID, key.date)
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.entries {
		if d.entries[i].BookingID != bookingID {
			continue
		}
		released := d.entries[i]
		d.entries = append(d.entries[:i], d.entries[i+1:]...)

		l.indexMu.Lock()
		delete(l.index, bookingID)
		l.indexMu.Unlock()

		l.emit(key.providerID, key.date, models.SlotChange{
			BookingID: bookingID,
			Interval:  released.Interval,
			State:     models.SlotReleased,
		})
		return
	}
}

// CheckInterval reports the booking ids overlapping iv without mutating
// the ledger. Used by the series expander's read-only first phase.
func (l *Ledger) CheckInterval(prov models.Provider, iv models.Interval) []string {
	date := iv.Start.In(prov.Location()).Format(dateLayout)
	d := l.day(prov.ID, date)

	d.mu.Lock()
	defer d.mu.Unlock()

	hits := d.overlapping(iv)
	if len(hits) == 0 {
		return nil
	}
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.BookingID)
	}
	return ids
}

// DaySnapshot returns a copy of the occupied intervals for one
// provider/day, sorted by start time.
func (l *Ledger) DaySnapshot(prov models.Provider, day time.Time) []LedgerEntry {
	date := day.In(prov.Location()).Format(dateLayout)
	d := l.day(prov.ID, date)

	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]LedgerEntry, len(d.entries))
	copy(out, d.entries)
	return out
}

// DayCount returns the total and confirmed reservation counts for one
// provider/day. The total includes held (not yet confirmed) intervals and
// is the projected count the capacity governor checks against.
func (l *Ledger) DayCount(prov models.Provider, day time.Time) (total, confirmed int) {
	for _, e := range l.DaySnapshot(prov, day) {
		total++
		if e.Confirmed {
			confirmed++
		}
	}
	return total, confirmed
}

// Query lists the occupied intervals of a provider across a date range.
func (l *Ledger) Query(prov models.Provider, from, to time.Time) []LedgerEntry {
	loc := prov.Location()
	var out []LedgerEntry
	for day := from.In(loc); !day.After(to.In(loc)); day = day.AddDate(0, 0, 1) {
		out = append(out, l.DaySnapshot(prov, day)...)
	}
	return out
}

// untilNextDay returns how long until the provider's next calendar day
// begins, the retry-after window for capacity rejections.
func untilNextDay(day time.Time, loc *time.Location, now time.Time) time.Duration {
	local := day.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
	d := next.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

func (l *Ledger) emit(providerID, date string, change models.SlotChange) {
	if l.observer == nil {
		return
	}
	l.observer.SlotChanged(models.AvailabilityDelta{
		ID:         uuid.New().String(),
		ProviderID: providerID,
		Date:       date,
		Changes:    []models.SlotChange{change},
		ProducedAt: l.now(),
	})
}
