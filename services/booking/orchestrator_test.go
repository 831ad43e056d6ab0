package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	bookingRepo "reservo/database/repository/booking"
	"reservo/models"
)

type stubAuthorizer struct {
	AuthorizeFn func(ctx context.Context, req PaymentRequest) (PaymentOutcome, error)
}

func (s *stubAuthorizer) Authorize(ctx context.Context, req PaymentRequest) (PaymentOutcome, error) {
	if s.AuthorizeFn != nil {
		return s.AuthorizeFn(ctx, req)
	}
	return PaymentApproved, nil
}

type stubScheduler struct {
	mu        sync.Mutex
	scheduled []string
}

func (s *stubScheduler) Schedule(bookingID string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled = append(s.scheduled, bookingID)
	return nil
}

func (s *stubScheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.scheduled)
}

type stubSink struct {
	mu        sync.Mutex
	events    []string
	conflicts []models.ConflictPayload
	waitlists []models.WaitlistPayload
}

func (s *stubSink) BookingEvent(eventType string, _ models.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, eventType)
}

func (s *stubSink) ConflictNotice(_ string, payload models.ConflictPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conflicts = append(s.conflicts, payload)
}

func (s *stubSink) WaitlistNotice(_ string, payload models.WaitlistPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waitlists = append(s.waitlists, payload)
}

type testEnv struct {
	orch      *Orchestrator
	ledger    *Ledger
	repo      *bookingRepo.MemoryBookingRepo
	sink      *stubSink
	scheduler *stubScheduler
	prov      models.Provider
}

func newTestEnv(t *testing.T, payments PaymentAuthorizer, capacity int) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	ledger := NewLedger(logger)
	repo := bookingRepo.NewMemoryBookingRepo()
	sink := &stubSink{}
	scheduler := &stubScheduler{}
	providers := NewMemoryProviderDirectory()

	prov := testProvider(capacity)
	if err := providers.Register(context.Background(), prov); err != nil {
		t.Fatalf("register provider: %v", err)
	}

	orch := &Orchestrator{
		Ledger:    ledger,
		Detector:  NewConflictDetector(ledger, 3, 7),
		Governor:  NewGovernor(GovernorConfig{RateLimit: 5, RateWindow: time.Minute}, ledger, logger),
		Expander:  NewSeriesExpander(ledger, 3, logger),
		Providers: providers,
		Payments:  payments,
		Repo:      repo,
		Events:    sink,
		Retries:   scheduler,
		Logger:    logger,
		Config: OrchestratorConfig{
			PaymentTimeout:    time.Second,
			MaxPaymentRetries: 3,
			RetryBackoff:      time.Minute,
		},
	}
	// Pin "now" well before the fixture day so nothing is in the past.
	orch.now = func() time.Time { return testDay.Add(-24 * time.Hour) }
	return &testEnv{orch: orch, ledger: ledger, repo: repo, sink: sink, scheduler: scheduler, prov: prov}
}

func request(iv models.Interval) models.BookingRequest {
	return models.BookingRequest{
		ClientID:   "client-1",
		ProviderID: "prov-1",
		ServiceID:  "svc-1",
		Start:      iv.Start,
		End:        iv.End,
		Amount:     5000,
		Currency:   "usd",
	}
}

func TestCreateBookingRejectsPastStart(t *testing.T) {
	env := newTestEnv(t, &stubAuthorizer{}, 0)
	env.orch.now = func() time.Time { return testDay.Add(48 * time.Hour) }

	_, err := env.orch.CreateBooking(context.Background(), request(span(testDay, 10, 0, 11, 0)))
	var past *PastDateError
	if !errors.As(err, &past) {
		t.Fatalf("expected PastDateError, got %v", err)
	}
}

func TestCreateBookingApprovedConfirms(t *testing.T) {
	env := newTestEnv(t, &stubAuthorizer{}, 0)

	b, err := env.orch.CreateBooking(context.Background(), request(span(testDay, 10, 0, 11, 0)))
	if err != nil {
		t.Fatalf("CreateBooking failed: %v", err)
	}
	if b.Status != models.StatusConfirmed {
		t.Fatalf("expected CONFIRMED, got %s", b.Status)
	}

	stored, err := env.repo.GetByID(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("booking not persisted: %v", err)
	}
	if stored.Status != models.StatusConfirmed {
		t.Fatalf("persisted status %s", stored.Status)
	}

	_, confirmed := env.ledger.DayCount(env.prov, testDay)
	if confirmed != 1 {
		t.Fatalf("expected 1 confirmed ledger entry, got %d", confirmed)
	}
}

func TestCreateBookingConflictCarriesAlternatives(t *testing.T) {
	env := newTestEnv(t, &stubAuthorizer{}, 0)
	ctx := context.Background()

	if _, err := env.orch.CreateBooking(ctx, request(span(testDay, 14, 0, 14, 30))); err != nil {
		t.Fatalf("first booking failed: %v", err)
	}

	req := request(span(testDay, 14, 15, 14, 45))
	req.ClientID = "client-2"
	_, err := env.orch.CreateBooking(ctx, req)
	var conflict *SlotConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected SlotConflictError, got %v", err)
	}
	if len(conflict.SuggestedAlternatives) == 0 {
		t.Fatal("expected suggested alternatives on the conflict")
	}
	want := span(testDay, 14, 30, 15, 0)
	if !conflict.SuggestedAlternatives[0].Start.Equal(want.Start) {
		t.Fatalf("expected first alternative at %s, got %s", want.Start, conflict.SuggestedAlternatives[0].Start)
	}
	if len(env.sink.conflicts) != 1 {
		t.Fatalf("expected one conflict notice, got %d", len(env.sink.conflicts))
	}
}

func TestCreateBookingDeclineReleasesSlot(t *testing.T) {
	declining := &stubAuthorizer{AuthorizeFn: func(context.Context, PaymentRequest) (PaymentOutcome, error) {
		return PaymentDeclined, nil
	}}
	env := newTestEnv(t, declining, 0)
	ctx := context.Background()

	_, err := env.orch.CreateBooking(ctx, request(span(testDay, 10, 0, 11, 0)))
	var declined *PaymentDeclinedError
	if !errors.As(err, &declined) {
		t.Fatalf("expected PaymentDeclinedError, got %v", err)
	}

	stored, err := env.repo.GetByID(ctx, declined.BookingID)
	if err != nil {
		t.Fatalf("declined booking should still be persisted: %v", err)
	}
	if stored.Status != models.StatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", stored.Status)
	}

	// The slot must be free for the next caller.
	env.orch.Payments = &stubAuthorizer{}
	req := request(span(testDay, 10, 0, 11, 0))
	req.ClientID = "client-2"
	if _, err := env.orch.CreateBooking(ctx, req); err != nil {
		t.Fatalf("slot should be free after decline: %v", err)
	}
}

func TestCreateBookingTimeoutHoldsSlot(t *testing.T) {
	timingOut := &stubAuthorizer{AuthorizeFn: func(context.Context, PaymentRequest) (PaymentOutcome, error) {
		return PaymentTimeout, nil
	}}
	env := newTestEnv(t, timingOut, 0)
	ctx := context.Background()

	b, err := env.orch.CreateBooking(ctx, request(span(testDay, 10, 0, 11, 0)))
	if err != nil {
		t.Fatalf("timeout must not fail the booking: %v", err)
	}
	if b.Status != models.StatusPaymentPending {
		t.Fatalf("expected PAYMENT_PENDING, got %s", b.Status)
	}
	if env.scheduler.count() != 1 {
		t.Fatalf("expected one scheduled retry, got %d", env.scheduler.count())
	}

	// The slot stays held while payment is pending.
	req := request(span(testDay, 10, 30, 11, 30))
	req.ClientID = "client-2"
	_, err = env.orch.CreateBooking(ctx, req)
	var conflict *SlotConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("held slot should conflict, got %v", err)
	}
}

func TestRetryPaymentConfirmsOnApproval(t *testing.T) {
	outcome := PaymentTimeout
	auth := &stubAuthorizer{AuthorizeFn: func(context.Context, PaymentRequest) (PaymentOutcome, error) {
		return outcome, nil
	}}
	env := newTestEnv(t, auth, 0)
	ctx := context.Background()

	b, err := env.orch.CreateBooking(ctx, request(span(testDay, 10, 0, 11, 0)))
	if err != nil {
		t.Fatalf("CreateBooking failed: %v", err)
	}

	outcome = PaymentApproved
	if err := env.orch.RetryPayment(ctx, b.ID); err != nil {
		t.Fatalf("RetryPayment failed: %v", err)
	}
	stored, _ := env.repo.GetByID(ctx, b.ID)
	if stored.Status != models.StatusConfirmed {
		t.Fatalf("expected CONFIRMED after retry, got %s", stored.Status)
	}
}

func TestRetryPaymentExhaustionCancels(t *testing.T) {
	auth := &stubAuthorizer{AuthorizeFn: func(context.Context, PaymentRequest) (PaymentOutcome, error) {
		return PaymentTimeout, nil
	}}
	env := newTestEnv(t, auth, 0)
	env.orch.Config.MaxPaymentRetries = 2
	ctx := context.Background()

	b, err := env.orch.CreateBooking(ctx, request(span(testDay, 10, 0, 11, 0)))
	if err != nil {
		t.Fatalf("CreateBooking failed: %v", err)
	}

	if err := env.orch.RetryPayment(ctx, b.ID); err != nil {
		t.Fatalf("first retry should reschedule, got %v", err)
	}
	err = env.orch.RetryPayment(ctx, b.ID)
	var declined *PaymentDeclinedError
	if !errors.As(err, &declined) {
		t.Fatalf("expected PaymentDeclinedError after exhaustion, got %v", err)
	}

	stored, _ := env.repo.GetByID(ctx, b.ID)
	if stored.Status != models.StatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", stored.Status)
	}
	if ids := env.ledger.CheckInterval(env.prov, b.Interval); len(ids) != 0 {
		t.Fatalf("slot should be released, still held by %v", ids)
	}
}

func TestRetryPaymentUnknownBookingIsNoop(t *testing.T) {
	env := newTestEnv(t, &stubAuthorizer{}, 0)
	if err := env.orch.RetryPayment(context.Background(), "missing"); err != nil {
		t.Fatalf("unknown booking should be a no-op: %v", err)
	}
}

func TestCancelIsIdempotentAndEmitsWaitlist(t *testing.T) {
	env := newTestEnv(t, &stubAuthorizer{}, 0)
	ctx := context.Background()

	b, err := env.orch.CreateBooking(ctx, request(span(testDay, 10, 0, 11, 0)))
	if err != nil {
		t.Fatalf("CreateBooking failed: %v", err)
	}

	if err := env.orch.Cancel(ctx, b.ID, "client-1"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if err := env.orch.Cancel(ctx, b.ID, "client-1"); err != nil {
		t.Fatalf("second cancel must be a no-op: %v", err)
	}
	if len(env.sink.waitlists) != 1 {
		t.Fatalf("expected one waitlist notice, got %d", len(env.sink.waitlists))
	}

	req := request(span(testDay, 10, 0, 11, 0))
	req.ClientID = "client-2"
	if _, err := env.orch.CreateBooking(ctx, req); err != nil {
		t.Fatalf("slot should be free after cancel: %v", err)
	}
}

func TestCreateBookingRateLimited(t *testing.T) {
	env := newTestEnv(t, &stubAuthorizer{}, 0)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		req := request(span(testDay, 9+i, 0, 9+i, 30))
		if _, err := env.orch.CreateBooking(ctx, req); err != nil {
			t.Fatalf("booking %d failed: %v", i, err)
		}
	}

	_, err := env.orch.CreateBooking(ctx, request(span(testDay, 15, 0, 15, 30)))
	var rl *RateLimitExceededError
	if !errors.As(err, &rl) {
		t.Fatalf("expected RateLimitExceededError on sixth request, got %v", err)
	}
	if rl.RetryAfter <= 0 {
		t.Fatalf("expected positive retry-after, got %s", rl.RetryAfter)
	}
}

func TestCreateBookingCapacityExceeded(t *testing.T) {
	env := newTestEnv(t, &stubAuthorizer{}, 2)
	ctx := context.Background()

	if _, err := env.orch.CreateBooking(ctx, request(span(testDay, 9, 0, 10, 0))); err != nil {
		t.Fatalf("booking 1 failed: %v", err)
	}
	if _, err := env.orch.CreateBooking(ctx, request(span(testDay, 10, 0, 11, 0))); err != nil {
		t.Fatalf("booking 2 failed: %v", err)
	}

	_, err := env.orch.CreateBooking(ctx, request(span(testDay, 12, 0, 13, 0)))
	var capErr *CapacityExceededError
	if !errors.As(err, &capErr) {
		t.Fatalf("expected CapacityExceededError, got %v", err)
	}
}

func seriesRequest(iv models.Interval, freq models.Frequency, count int) models.BookingRequest {
	req := request(iv)
	req.Series = &models.SeriesSpec{Frequency: freq, Count: count}
	return req
}

func TestCreateSeriesConfirmsAllOccurrences(t *testing.T) {
	env := newTestEnv(t, &stubAuthorizer{}, 0)
	ctx := context.Background()

	series, bookings, err := env.orch.CreateSeries(ctx, seriesRequest(span(testDay, 10, 0, 11, 0), models.FrequencyWeekly, 3))
	if err != nil {
		t.Fatalf("CreateSeries failed: %v", err)
	}
	if len(bookings) != 3 || len(series.BookingIDs) != 3 {
		t.Fatalf("expected 3 occurrences, got %d", len(bookings))
	}
	for i, b := range bookings {
		if b.SeriesID != series.ID {
			t.Fatalf("booking %d not linked to series", i)
		}
		stored, err := env.repo.GetByID(ctx, b.ID)
		if err != nil {
			t.Fatalf("booking %d not persisted: %v", i, err)
		}
		if stored.Status != models.StatusConfirmed {
			t.Fatalf("booking %d status %s", i, stored.Status)
		}
	}
}

func TestCreateSeriesRejectsOnOccurrenceConflict(t *testing.T) {
	env := newTestEnv(t, &stubAuthorizer{}, 0)
	ctx := context.Background()

	// Occupy the slot of the third weekly occurrence (index 2).
	blockDay := testDay.AddDate(0, 0, 14)
	blockReq := request(span(blockDay, 10, 0, 11, 0))
	blockReq.ClientID = "client-2"
	if _, err := env.orch.CreateBooking(ctx, blockReq); err != nil {
		t.Fatalf("blocker booking failed: %v", err)
	}

	_, _, err := env.orch.CreateSeries(ctx, seriesRequest(span(testDay, 10, 0, 11, 0), models.FrequencyWeekly, 4))
	var sc *SeriesConflictError
	if !errors.As(err, &sc) {
		t.Fatalf("expected SeriesConflictError, got %v", err)
	}
	if len(sc.ConflictingIndices) != 1 || sc.ConflictingIndices[0] != 2 {
		t.Fatalf("expected conflicting index [2], got %v", sc.ConflictingIndices)
	}

	// No occurrence of the rejected series may occupy the ledger.
	for i := 0; i < 4; i++ {
		if i == 2 {
			continue
		}
		occ := span(testDay.AddDate(0, 0, 7*i), 10, 0, 11, 0)
		if ids := env.ledger.CheckInterval(env.prov, occ); len(ids) != 0 {
			t.Fatalf("occurrence %d left residue: %v", i, ids)
		}
	}
}

func TestCreateSeriesDeclineTearsDownWholeSeries(t *testing.T) {
	calls := 0
	auth := &stubAuthorizer{AuthorizeFn: func(context.Context, PaymentRequest) (PaymentOutcome, error) {
		calls++
		if calls >= 2 {
			return PaymentDeclined, nil
		}
		return PaymentApproved, nil
	}}
	env := newTestEnv(t, auth, 0)
	ctx := context.Background()

	_, _, err := env.orch.CreateSeries(ctx, seriesRequest(span(testDay, 10, 0, 11, 0), models.FrequencyDaily, 3))
	var declined *PaymentDeclinedError
	if !errors.As(err, &declined) {
		t.Fatalf("expected PaymentDeclinedError, got %v", err)
	}

	for i := 0; i < 3; i++ {
		occ := span(testDay.AddDate(0, 0, i), 10, 0, 11, 0)
		if ids := env.ledger.CheckInterval(env.prov, occ); len(ids) != 0 {
			t.Fatalf("occurrence %d still held after teardown: %v", i, ids)
		}
	}
}

func TestAvailabilityReflectsLedger(t *testing.T) {
	env := newTestEnv(t, &stubAuthorizer{}, 0)
	ctx := context.Background()

	if _, err := env.orch.CreateBooking(ctx, request(span(testDay, 10, 0, 11, 0))); err != nil {
		t.Fatalf("CreateBooking failed: %v", err)
	}

	result, err := env.orch.Availability(ctx, "prov-1", testDay)
	if err != nil {
		t.Fatalf("Availability failed: %v", err)
	}
	if len(result.Occupied) != 1 {
		t.Fatalf("expected 1 occupied slot, got %d", len(result.Occupied))
	}
	if result.Occupied[0].State != models.SlotConfirmed {
		t.Fatalf("expected confirmed state, got %s", result.Occupied[0].State)
	}
	// 09:00-10:00 and 11:00-17:00 remain free.
	if len(result.FreeSlots) != 2 {
		t.Fatalf("expected 2 free gaps, got %d: %v", len(result.FreeSlots), result.FreeSlots)
	}
}
