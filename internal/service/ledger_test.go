package service

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Leganyst/coaching-platform/internal/model"
	"github.com/Leganyst/coaching-platform/internal/repository"
)

func (f *fixture) pkg(coach uuid.UUID, credits int, unlimited bool, validDays ...int) *model.Package {
	f.t.Helper()
	p, err := f.packages.CreatePackage(f.ctx, PackageRequest{
		CoachID:          coach,
		Name:             "10 sessions",
		CreditsPerPeriod: credits,
		IsUnlimited:      unlimited,
		Price:            decimal.RequireFromString("199.90"),
		Currency:         "EUR",
		PeriodType:       model.PeriodMonthly,
		ValidDays:        validDays,
	})
	if err != nil {
		f.t.Fatalf("create package: %v", err)
	}
	return p
}

func (f *fixture) subscribe(coach, customer uuid.UUID, p *model.Package) *model.PackageSubscription {
	f.t.Helper()
	res, err := f.packages.CreateSubscription(f.ctx, SubscribeRequest{
		CoachID:    coach,
		PackageID:  p.ID,
		CustomerID: customer,
		StartDate:  fixtureNow,
	})
	if err != nil {
		f.t.Fatalf("subscribe: %v", err)
	}
	return res.Subscription
}

func assertConserved(t *testing.T, sub *model.PackageSubscription) {
	t.Helper()
	if sub.CreditsUsed+sub.CreditsRemaining != sub.CreditsAllocated {
		t.Fatalf("credits not conserved: used %d + remaining %d != allocated %d",
			sub.CreditsUsed, sub.CreditsRemaining, sub.CreditsAllocated)
	}
}

func TestLedger_SubscriptionPaysBeforeAccount(t *testing.T) {
	f := newFixture(t)
	coach := uuid.New()
	f.weeklyRules(coach, rule(0, 9, 17))
	customer := f.customer(coach, 3)
	sub := f.subscribe(coach, customer, f.pkg(coach, 1, false))

	first := f.mustBook(coach, customer, at(10, 9, 0), at(10, 10, 0))
	if first.SubscriptionID == nil || *first.SubscriptionID != sub.ID {
		t.Fatalf("expected the subscription to pay the first session")
	}
	second := f.mustBook(coach, customer, at(10, 10, 0), at(10, 11, 0))
	if second.SubscriptionID != nil {
		t.Fatalf("expected the account to pay once the subscription is used up")
	}

	got := f.subscription(sub.ID)
	assertConserved(t, got)
	if got.CreditsRemaining != 0 || f.credits(customer) != 2 {
		t.Fatalf("unexpected balances: sub remaining %d, account %d", got.CreditsRemaining, f.credits(customer))
	}

	// Refund goes back to the ledger that paid.
	if _, err := f.scheduling.CancelBooking(f.ctx, CancelRequest{BookingID: first.ID, ActorID: customer}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	got = f.subscription(sub.ID)
	assertConserved(t, got)
	if got.CreditsRemaining != 1 || f.credits(customer) != 2 {
		t.Fatalf("expected refund to the subscription, sub remaining %d, account %d", got.CreditsRemaining, f.credits(customer))
	}
}

func TestLedger_UnlimitedAndValidDays(t *testing.T) {
	f := newFixture(t)
	coach := uuid.New()
	f.weeklyRules(coach, rule(0, 9, 17), rule(1, 9, 17))
	customer := f.customer(coach, 0)
	// Unlimited, Mondays only.
	sub := f.subscribe(coach, customer, f.pkg(coach, 0, true, 0))
	if sub.CreditsAllocated != model.UnlimitedCredits {
		t.Fatalf("expected sentinel allocation, got %d", sub.CreditsAllocated)
	}

	for h := 9; h < 12; h++ {
		f.mustBook(coach, customer, at(10, h, 0), at(10, h+1, 0))
	}
	got := f.subscription(sub.ID)
	if got.CreditsUsed != 0 || got.CreditsRemaining != model.UnlimitedCredits {
		t.Fatalf("unlimited subscription must not be debited, got used %d", got.CreditsUsed)
	}

	_, err := f.book(coach, customer, at(11, 9, 0), at(11, 10, 0))
	var adm *AdmissionError
	if !errors.As(err, &adm) || adm.Reason != AdmissionInsufficientCredits {
		t.Fatalf("expected InsufficientCredits on a Tuesday, got %v", err)
	}
}

func TestLedger_DebitRefundConservation(t *testing.T) {
	f := newFixture(t)
	coach := uuid.New()
	customer := f.customer(coach, 0)
	sub := f.subscribe(coach, customer, f.pkg(coach, 3, false))

	err := f.deps.Store.Transaction(f.ctx, func(tx *repository.Store) error {
		ledger := NewCreditLedger(tx, DefaultRefundGrace)
		led := subscriptionLedger(sub)
		steps := []struct {
			debit bool
			ok    bool
		}{
			{true, true}, {true, true}, {false, true}, {true, true}, {true, true}, {true, false}, {false, true},
		}
		for i, step := range steps {
			var err error
			if step.debit {
				err = ledger.Debit(f.ctx, led, 1)
			} else {
				err = ledger.Refund(f.ctx, led, 1)
			}
			if (err == nil) != step.ok {
				t.Fatalf("step %d: expected ok=%v, got %v", i, step.ok, err)
			}
			cur, err := tx.Subscriptions.GetByID(f.ctx, sub.ID)
			if err != nil {
				return err
			}
			assertConserved(t, cur)
			if cur.CreditsRemaining < 0 {
				t.Fatalf("step %d: remaining went negative", i)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
}

func TestLedger_RefundEligible(t *testing.T) {
	ledger := NewCreditLedger(nil, 24*time.Hour)
	now := fixtureNow
	if !ledger.RefundEligible(now.Add(25*time.Hour), now) {
		t.Fatalf("25h ahead must be refundable")
	}
	if ledger.RefundEligible(now.Add(24*time.Hour), now) {
		t.Fatalf("exactly 24h ahead is inside the grace window")
	}
	if ledger.RefundEligible(now.Add(23*time.Hour), now) {
		t.Fatalf("23h ahead must not be refundable")
	}
}

func TestPromoteCreditsForCustomer_FIFO(t *testing.T) {
	f := newFixture(t)
	coach := uuid.New()
	customer := f.customer(coach, 0)

	b9 := f.pendingBooking(coach, customer, at(10, 9, 0), at(10, 10, 0), nil)
	b10 := f.pendingBooking(coach, customer, at(10, 10, 0), at(10, 11, 0), nil)
	b11 := f.pendingBooking(coach, customer, at(10, 11, 0), at(10, 12, 0), nil)

	_, promoted, err := f.packages.TopUpCredits(f.ctx, coach, customer, 1)
	if err != nil {
		t.Fatalf("top up: %v", err)
	}
	if promoted != 1 {
		t.Fatalf("expected exactly one promotion, got %d", promoted)
	}
	if got := f.booking(b9.ID).Status; got != model.BookingStatusConfirmed {
		t.Fatalf("expected 09:00 confirmed, got %s", got)
	}
	for _, id := range []uuid.UUID{b10.ID, b11.ID} {
		if got := f.booking(id).Status; got != model.BookingStatusPendingCredits {
			t.Fatalf("expected later bookings to stay pending, got %s", got)
		}
	}
	if got := f.credits(customer); got != 0 {
		t.Fatalf("expected the credit to be spent, got %d", got)
	}

	// Nothing left to spend: a rerun is a no-op.
	n, err := f.scheduling.PromoteCreditsForCustomer(f.ctx, customer)
	if err != nil || n != 0 {
		t.Fatalf("expected no promotion, got %d, %v", n, err)
	}
}

func TestPromoteCreditsForCustomer_SkipsTakenSlots(t *testing.T) {
	f := newFixture(t)
	coach := uuid.New()
	f.weeklyRules(coach, rule(0, 9, 17))
	customer := f.customer(coach, 0)
	other := f.customer(coach, 1)

	taken := f.pendingBooking(coach, customer, at(10, 9, 0), at(10, 10, 0), nil)
	free := f.pendingBooking(coach, customer, at(10, 11, 0), at(10, 12, 0), nil)
	f.mustBook(coach, other, at(10, 9, 0), at(10, 10, 0))

	_, promoted, err := f.packages.TopUpCredits(f.ctx, coach, customer, 1)
	if err != nil {
		t.Fatalf("top up: %v", err)
	}
	if promoted != 1 {
		t.Fatalf("expected one promotion, got %d", promoted)
	}
	if got := f.booking(taken.ID).Status; got != model.BookingStatusPendingCredits {
		t.Fatalf("expected the taken slot to stay pending, got %s", got)
	}
	if got := f.booking(free.ID).Status; got != model.BookingStatusConfirmed {
		t.Fatalf("expected the free slot to be promoted, got %s", got)
	}
}

func TestPromoteCreditsForCustomer_PrefersOwnSubscription(t *testing.T) {
	f := newFixture(t)
	coach := uuid.New()
	customer := f.customer(coach, 0)
	sub := f.subscribe(coach, customer, f.pkg(coach, 1, false))

	// Use up the subscription, then queue a pending session against it.
	err := f.deps.Store.Transaction(f.ctx, func(tx *repository.Store) error {
		return NewCreditLedger(tx, DefaultRefundGrace).Debit(f.ctx, subscriptionLedger(sub), 1)
	})
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	b := f.pendingBooking(coach, customer, at(10, 9, 0), at(10, 10, 0), &sub.ID)

	res, err := f.packages.GrantSubscriptionCredits(f.ctx, sub.ID, 2)
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if res.Promoted != 1 {
		t.Fatalf("expected one promotion, got %d", res.Promoted)
	}
	assertConserved(t, res.Subscription)
	if res.Subscription.CreditsAllocated != 3 || res.Subscription.CreditsRemaining != 1 {
		t.Fatalf("unexpected subscription after grant: %+v", res.Subscription)
	}
	got := f.booking(b.ID)
	if got.Status != model.BookingStatusConfirmed || got.SubscriptionID == nil || *got.SubscriptionID != sub.ID {
		t.Fatalf("expected the booking to be paid by its subscription")
	}
}

func TestPromoteCreditsForCustomer_UsesNewerSubscription(t *testing.T) {
	f := newFixture(t)
	coach := uuid.New()
	customer := f.customer(coach, 0)
	old := f.subscribe(coach, customer, f.pkg(coach, 1, false))

	res, err := f.packages.CreateRecurringSchedule(f.ctx, ScheduleRequest{
		CoachID:         coach,
		SubscriptionID:  old.ID,
		DayOfWeek:       0,
		StartTime:       9 * time.Hour,
		EndTime:         10 * time.Hour,
		AutoBookEnabled: true,
		BookWeeksAhead:  2,
	})
	if err != nil {
		t.Fatalf("create schedule: %v", err)
	}
	if res.AutoBook.Confirmed != 1 || res.AutoBook.PendingCredits != 1 {
		t.Fatalf("expected 1 confirmed and 1 pending, got %+v", res.AutoBook)
	}

	renewed, err := f.packages.CreateSubscription(f.ctx, SubscribeRequest{
		CoachID:    coach,
		PackageID:  f.pkg(coach, 5, false).ID,
		CustomerID: customer,
		StartDate:  fixtureNow,
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if renewed.Promoted != 1 {
		t.Fatalf("expected the queued session to be promoted, got %d", renewed.Promoted)
	}

	page, err := f.scheduling.ListBookings(f.ctx, BookingQuery{
		CoachID: coach,
		From:    at(17, 0, 0),
		To:      at(18, 0, 0),
	})
	if err != nil || page.Total != 1 {
		t.Fatalf("expected the 17th in the listing, got %v", err)
	}
	got := page.Items[0]
	if got.Status != model.BookingStatusConfirmed || got.SubscriptionID == nil || *got.SubscriptionID != renewed.Subscription.ID {
		t.Fatalf("expected the 17th to be confirmed and paid by the new subscription, got %s", got.Status)
	}

	paid := f.subscription(renewed.Subscription.ID)
	if paid.CreditsRemaining != 4 {
		t.Fatalf("expected one credit taken from the new subscription, got %d left", paid.CreditsRemaining)
	}
	assertConserved(t, paid)
	assertConserved(t, f.subscription(old.ID))
}
