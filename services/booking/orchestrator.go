package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	bookingRepo "reservo/database/repository/booking"
	"reservo/models"
	"reservo/services/notification"
)

// OrchestratorConfig bounds the payment step of the booking transaction.
type OrchestratorConfig struct {
	PaymentTimeout    time.Duration
	MaxPaymentRetries int
	RetryBackoff      time.Duration
}

// seriesProgress tracks a series whose occurrences are reserved but not
// yet all confirmed (some are awaiting payment retries).
type seriesProgress struct {
	series    models.BookingSeries
	remaining map[string]struct{}
}

// Orchestrator is the transactional façade over the reservation pipeline:
// validation, governance, conflict detection, ledger mutation, payment,
// and real-time event emission, in that order.
type Orchestrator struct {
	Ledger    *Ledger
	Detector  *ConflictDetector
	Governor  *Governor
	Expander  *SeriesExpander
	Providers ProviderDirectory
	Payments  PaymentAuthorizer
	Repo      bookingRepo.BookingRepository
	Events    EventSink
	Retries   RetryScheduler
	Notifier  notification.Dispatcher
	Logger    *zap.Logger
	Config    OrchestratorConfig

	now func() time.Time

	mu       sync.Mutex
	attempts map[string]int
	payments map[string]PaymentRequest
	series   map[string]*seriesProgress
}

func (o *Orchestrator) clock() time.Time {
	if o.now != nil {
		return o.now()
	}
	return time.Now()
}

func (o *Orchestrator) paymentTimeout() time.Duration {
	if o.Config.PaymentTimeout > 0 {
		return o.Config.PaymentTimeout
	}
	return 30 * time.Second
}

func (o *Orchestrator) maxRetries() int {
	if o.Config.MaxPaymentRetries > 0 {
		return o.Config.MaxPaymentRetries
	}
	return 3
}

func (o *Orchestrator) retryBackoff() time.Duration {
	if o.Config.RetryBackoff > 0 {
		return o.Config.RetryBackoff
	}
	return time.Minute
}

func (o *Orchestrator) ensureState() {
	if o.attempts == nil {
		o.attempts = make(map[string]int)
	}
	if o.payments == nil {
		o.payments = make(map[string]PaymentRequest)
	}
	if o.series == nil {
		o.series = make(map[string]*seriesProgress)
	}
}

// CreateBooking runs the full pipeline for a single (non-series) request.
func (o *Orchestrator) CreateBooking(ctx context.Context, req models.BookingRequest) (*models.Booking, error) {
	prov, err := o.Providers.GetProvider(ctx, req.ProviderID)
	if err != nil {
		return nil, err
	}

	iv := req.Interval()
	if !iv.IsValid() {
		return nil, fmt.Errorf("invalid interval: end must be after start")
	}
	if !iv.Start.After(o.clock()) {
		return nil, &PastDateError{Start: iv.Start}
	}

	if err := o.Governor.AdmitClient(req.ClientID); err != nil {
		return nil, err
	}
	if err := o.Governor.CheckCapacity(prov, iv.Start, 1); err != nil {
		return nil, err
	}

	now := o.clock()
	b := &models.Booking{
		ID:         uuid.New().String(),
		ProviderID: prov.ID,
		ClientID:   req.ClientID,
		ServiceID:  req.ServiceID,
		Interval:   iv,
		Status:     models.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := o.Ledger.Reserve(prov, iv, b.ID); err != nil {
		var conflict *SlotConflictError
		if errors.As(err, &conflict) {
			conflict.SuggestedAlternatives = o.Detector.Suggest(prov, iv)
			o.notifyConflict(req.ClientID, "slot already booked", conflict)
		}
		return nil, err
	}

	if err := o.Repo.Create(ctx, b); err != nil {
		o.Ledger.Release(b.ID)
		return nil, fmt.Errorf("failed to persist booking: %w", err)
	}
	o.emitBookingEvent(models.EventBookingCreated, *b)

	preq := PaymentRequest{
		BookingID: b.ID,
		ClientID:  req.ClientID,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Method:    req.PaymentMethod,
	}
	if err := o.settlePayment(ctx, b, preq); err != nil {
		return nil, err
	}
	return b, nil
}

// CreateSeries validates and reserves a recurring series atomically, then
// settles payment per occurrence. No payment attempt is made before the
// whole series is reserved.
func (o *Orchestrator) CreateSeries(ctx context.Context, req models.BookingRequest) (*models.BookingSeries, []models.Booking, error) {
	if req.Series == nil {
		return nil, nil, fmt.Errorf("series spec is required")
	}
	prov, err := o.Providers.GetProvider(ctx, req.ProviderID)
	if err != nil {
		return nil, nil, err
	}

	iv := req.Interval()
	if !iv.IsValid() {
		return nil, nil, fmt.Errorf("invalid interval: end must be after start")
	}
	if !iv.Start.After(o.clock()) {
		return nil, nil, &PastDateError{Start: iv.Start}
	}
	if err := o.Governor.AdmitClient(req.ClientID); err != nil {
		return nil, nil, err
	}

	rule := models.RecurrenceRule{Frequency: req.Series.Frequency, Count: req.Series.Count}
	occurrences := o.Expander.Expand(rule, iv)

	// Projected capacity: every occurrence of this request counts against
	// its day before anything is reserved.
	loc := prov.Location()
	perDay := make(map[string]int)
	for _, occ := range occurrences {
		perDay[occ.Start.In(loc).Format(dateLayout)]++
	}
	for date, n := range perDay {
		day, err := time.ParseInLocation(dateLayout, date, loc)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse occurrence date %q: %w", date, err)
		}
		if err := o.Governor.CheckCapacity(prov, day, n); err != nil {
			return nil, nil, err
		}
	}

	ids := make([]string, len(occurrences))
	for i := range ids {
		ids[i] = uuid.New().String()
	}

	if err := o.Expander.ReserveAll(prov, occurrences, ids); err != nil {
		var sc *SeriesConflictError
		if errors.As(err, &sc) && len(sc.ConflictingIndices) > 0 {
			first := occurrences[sc.ConflictingIndices[0]]
			o.notifyConflict(req.ClientID, "series occurrence conflicts", &SlotConflictError{
				ProviderID:            prov.ID,
				Requested:             first,
				SuggestedAlternatives: o.Detector.Suggest(prov, first),
			})
		}
		return nil, nil, err
	}

	seriesID := uuid.New().String()
	now := o.clock()
	bookings := make([]models.Booking, len(occurrences))
	for i, occ := range occurrences {
		b := models.Booking{
			ID:         ids[i],
			ProviderID: prov.ID,
			ClientID:   req.ClientID,
			ServiceID:  req.ServiceID,
			Interval:   occ,
			Status:     models.StatusPending,
			SeriesID:   seriesID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := o.Repo.Create(ctx, &b); err != nil {
			o.releaseSeries(ctx, ids[:i+1], prov.ID)
			return nil, nil, fmt.Errorf("failed to persist series booking: %w", err)
		}
		bookings[i] = b
		o.emitBookingEvent(models.EventBookingCreated, b)
	}

	series := models.BookingSeries{
		ID:         seriesID,
		ProviderID: prov.ID,
		ClientID:   req.ClientID,
		Rule:       rule,
		Anchor:     iv,
		BookingIDs: ids,
		CreatedAt:  now,
	}
	o.trackSeries(series)

	for i := range bookings {
		b := &bookings[i]
		preq := PaymentRequest{
			BookingID: b.ID,
			ClientID:  req.ClientID,
			Amount:    req.Amount,
			Currency:  req.Currency,
			Method:    req.PaymentMethod,
		}
		if err := o.settlePayment(ctx, b, preq); err != nil {
			// A hard decline on any occurrence tears down the whole
			// series; no partial series survives.
			o.cancelSeries(ctx, seriesID)
			return nil, nil, err
		}
	}
	return &series, bookings, nil
}

// settlePayment authorizes one booking and applies outcome 6a/6b/6c:
// confirm, hold with retry, or release and cancel.
func (o *Orchestrator) settlePayment(ctx context.Context, b *models.Booking, preq PaymentRequest) error {
	switch o.authorize(ctx, preq) {
	case PaymentApproved:
		o.confirm(ctx, b)
		return nil

	case PaymentTimeout:
		o.holdForRetry(ctx, b, preq)
		return nil

	default:
		o.Ledger.Release(b.ID)
		o.markCancelled(ctx, b)
		return &PaymentDeclinedError{BookingID: b.ID, Reason: "payment authorization declined"}
	}
}

func (o *Orchestrator) authorize(ctx context.Context, preq PaymentRequest) PaymentOutcome {
	ctx, cancel := context.WithTimeout(ctx, o.paymentTimeout())
	defer cancel()

	outcome, err := o.Payments.Authorize(ctx, preq)
	if err != nil {
		if ctx.Err() != nil {
			return PaymentTimeout
		}
		o.Logger.Warn("payment authorization error",
			zap.String("booking_id", preq.BookingID), zap.Error(err))
	}
	if outcome == "" {
		return PaymentDeclined
	}
	return outcome
}

// confirm finalizes an approved booking: ledger confirm (which emits the
// availability delta), durable status, broadcast, and notification.
func (o *Orchestrator) confirm(ctx context.Context, b *models.Booking) {
	o.Ledger.Confirm(b.ID)
	b.Status = models.StatusConfirmed
	b.UpdatedAt = o.clock()
	if err := o.Repo.UpdateStatus(ctx, b.ID, models.StatusConfirmed); err != nil {
		o.Logger.Error("failed to persist confirmed status",
			zap.String("booking_id", b.ID), zap.Error(err))
	}
	o.emitBookingEvent(models.EventBookingUpdated, *b)
	o.dispatch(models.NotifyBookingConfirmed, *b)
	o.markSeriesMemberConfirmed(*b)
	o.clearPending(b.ID)
}

// holdForRetry downgrades a booking to PAYMENT_PENDING. The slot stays
// held so the client does not lose their place while payment retries.
func (o *Orchestrator) holdForRetry(ctx context.Context, b *models.Booking, preq PaymentRequest) {
	b.Status = models.StatusPaymentPending
	b.UpdatedAt = o.clock()
	if err := o.Repo.UpdateStatus(ctx, b.ID, models.StatusPaymentPending); err != nil {
		o.Logger.Error("failed to persist payment-pending status",
			zap.String("booking_id", b.ID), zap.Error(err))
	}

	o.mu.Lock()
	o.ensureState()
	o.payments[b.ID] = preq
	o.mu.Unlock()

	if o.Retries != nil {
		if err := o.Retries.Schedule(b.ID, o.retryBackoff()); err != nil {
			o.Logger.Error("failed to schedule payment retry",
				zap.String("booking_id", b.ID), zap.Error(err))
		}
	}
	o.emitBookingEvent(models.EventBookingUpdated, *b)
}

// RetryPayment re-attempts authorization for a PAYMENT_PENDING booking.
// It is safe to call for bookings that have since moved on. After the
// retry budget is exhausted the failure escalates to a decline and the
// slot is released.
func (o *Orchestrator) RetryPayment(ctx context.Context, bookingID string) error {
	b, err := o.Repo.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, bookingRepo.ErrNotFound) {
			return nil
		}
		return err
	}
	if b.Status != models.StatusPaymentPending {
		return nil
	}

	o.mu.Lock()
	o.ensureState()
	preq, ok := o.payments[bookingID]
	o.attempts[bookingID]++
	attempt := o.attempts[bookingID]
	o.mu.Unlock()
	if !ok {
		preq = PaymentRequest{BookingID: bookingID, ClientID: b.ClientID}
	}

	switch o.authorize(ctx, preq) {
	case PaymentApproved:
		o.confirm(ctx, b)
		return nil

	case PaymentTimeout:
		if attempt < o.maxRetries() {
			if o.Retries != nil {
				if err := o.Retries.Schedule(bookingID, o.retryBackoff()); err != nil {
					o.Logger.Error("failed to reschedule payment retry",
						zap.String("booking_id", bookingID), zap.Error(err))
				}
			}
			return nil
		}
		o.Logger.Warn("payment retries exhausted",
			zap.String("booking_id", bookingID), zap.Int("attempts", attempt))
		fallthrough

	default:
		if b.SeriesID != "" {
			o.cancelSeries(ctx, b.SeriesID)
		} else {
			o.Ledger.Release(b.ID)
			o.markCancelled(ctx, b)
		}
		return &PaymentDeclinedError{BookingID: bookingID, Reason: "payment failed after retries"}
	}
}

// Cancel releases a booking's interval and marks it CANCELLED. Cancelling
// an already-cancelled booking is a no-op returning nil. The freed-slot
// delta is emitted synchronously before this returns.
func (o *Orchestrator) Cancel(ctx context.Context, bookingID, actorID string) error {
	b, err := o.Repo.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}
	if b.Status == models.StatusCancelled {
		return nil
	}

	o.Ledger.Release(bookingID)
	o.markCancelled(ctx, b)
	o.emitWaitlist(b.ProviderID, models.WaitlistPayload{ProviderID: b.ProviderID, Slot: b.Interval})
	o.Logger.Info("booking cancelled",
		zap.String("booking_id", bookingID), zap.String("actor_id", actorID))
	return nil
}

func (o *Orchestrator) markCancelled(ctx context.Context, b *models.Booking) {
	b.Status = models.StatusCancelled
	b.UpdatedAt = o.clock()
	if err := o.Repo.UpdateStatus(ctx, b.ID, models.StatusCancelled); err != nil {
		o.Logger.Error("failed to persist cancelled status",
			zap.String("booking_id", b.ID), zap.Error(err))
	}
	o.emitBookingEvent(models.EventBookingCancelled, *b)
	o.dispatch(models.NotifyBookingCancelled, *b)
	o.clearPending(b.ID)
}

// cancelSeries tears down every member of a series so no partially
// confirmed series is ever left behind.
func (o *Orchestrator) cancelSeries(ctx context.Context, seriesID string) {
	o.mu.Lock()
	o.ensureState()
	progress, ok := o.series[seriesID]
	delete(o.series, seriesID)
	o.mu.Unlock()
	if !ok {
		return
	}
	o.releaseSeries(ctx, progress.series.BookingIDs, progress.series.ProviderID)
}

func (o *Orchestrator) releaseSeries(ctx context.Context, bookingIDs []string, providerID string) {
	for _, id := range bookingIDs {
		o.Ledger.Release(id)
		b, err := o.Repo.GetByID(ctx, id)
		if err != nil {
			continue
		}
		if b.Status != models.StatusCancelled {
			o.markCancelled(ctx, b)
		}
	}
	o.Logger.Warn("series rolled back",
		zap.String("provider_id", providerID), zap.Int("members", len(bookingIDs)))
}

func (o *Orchestrator) trackSeries(series models.BookingSeries) {
	remaining := make(map[string]struct{}, len(series.BookingIDs))
	for _, id := range series.BookingIDs {
		remaining[id] = struct{}{}
	}
	o.mu.Lock()
	o.ensureState()
	o.series[series.ID] = &seriesProgress{series: series, remaining: remaining}
	o.mu.Unlock()
}

func (o *Orchestrator) markSeriesMemberConfirmed(b models.Booking) {
	if b.SeriesID == "" {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ensureState()
	progress, ok := o.series[b.SeriesID]
	if !ok {
		return
	}
	delete(progress.remaining, b.ID)
	if len(progress.remaining) == 0 {
		delete(o.series, b.SeriesID)
		o.Logger.Info("series fully confirmed",
			zap.String("series_id", b.SeriesID),
			zap.Int("occurrences", len(progress.series.BookingIDs)))
	}
}

func (o *Orchestrator) clearPending(bookingID string) {
	o.mu.Lock()
	o.ensureState()
	delete(o.payments, bookingID)
	delete(o.attempts, bookingID)
	o.mu.Unlock()
}

func (o *Orchestrator) emitBookingEvent(eventType string, b models.Booking) {
	if o.Events == nil {
		return
	}
	o.Events.BookingEvent(eventType, b)
}

func (o *Orchestrator) notifyConflict(clientID, reason string, conflict *SlotConflictError) {
	if o.Events == nil {
		return
	}
	o.Events.ConflictNotice(clientID, models.ConflictPayload{
		Reason:         reason,
		OverlappingIDs: conflict.OverlappingIDs,
		SuggestedSlots: conflict.SuggestedAlternatives,
	})
}

func (o *Orchestrator) emitWaitlist(providerID string, payload models.WaitlistPayload) {
	if o.Events == nil {
		return
	}
	o.Events.WaitlistNotice(providerID, payload)
}

// dispatch hands a notification to the collaborator without blocking the
// booking transaction.
func (o *Orchestrator) dispatch(kind models.NotificationKind, b models.Booking) {
	if o.Notifier == nil {
		return
	}
	event := models.NotificationEvent{
		ID:        uuid.New().String(),
		Kind:      kind,
		Recipient: b.ClientID,
		Booking:   b,
		CreatedAt: o.clock(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := o.Notifier.Dispatch(ctx, event); err != nil {
			o.Logger.Warn("notification dispatch failed",
				zap.String("booking_id", b.ID), zap.Error(err))
		}
	}()
}
