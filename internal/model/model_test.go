package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestPackageSubscription_CoversDate(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC) }
	end := DateValue(day(31))
	sub := &PackageSubscription{StartDate: DateValue(day(1)), EndDate: &end}

	cases := []struct {
		at   time.Time
		want bool
	}{
		{day(1), true},
		{day(31).Add(23 * time.Hour), true},
		{time.Date(2025, 2, 28, 23, 59, 0, 0, time.UTC), false},
		{time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), false},
	}
	for _, c := range cases {
		if got := sub.CoversDate(c.at); got != c.want {
			t.Fatalf("CoversDate(%s): expected %v", c.at, c.want)
		}
	}

	sub.EndDate = nil
	if !sub.CoversDate(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected an open subscription to cover any later date")
	}
}

func TestPackageSubscription_IsUnlimited(t *testing.T) {
	if (&PackageSubscription{CreditsAllocated: 10}).IsUnlimited() {
		t.Fatalf("10 credits is not unlimited")
	}
	if !(&PackageSubscription{CreditsAllocated: UnlimitedCredits}).IsUnlimited() {
		t.Fatalf("expected the sentinel allocation to be unlimited")
	}
}

func TestBooking_Flags(t *testing.T) {
	customer := uuid.New()
	session := &Booking{EventType: EventTypeCustomerSession, CustomerID: &customer, Status: BookingStatusPending}
	if !session.IsActive() || !session.IsCustomerSession() || session.IsSeriesParent() {
		t.Fatalf("unexpected flags for a pending session: %+v", session)
	}

	session.Status = BookingStatusPendingCredits
	if session.IsActive() {
		t.Fatalf("a session waiting for credits must not block the coach")
	}

	parent := &Booking{EventType: EventTypePersonalEvent, IsRecurring: true, Status: BookingStatusConfirmed}
	if !parent.IsSeriesParent() || parent.IsCustomerSession() {
		t.Fatalf("expected a series parent")
	}
	instance := &Booking{EventType: EventTypePersonalEvent, IsRecurring: true, ParentEventID: &parent.ID}
	if instance.IsSeriesParent() {
		t.Fatalf("an instance is not a series parent")
	}
}

func TestDateValue_TruncatesToUTCDate(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	got := AsTime(DateValue(time.Date(2025, 3, 10, 1, 30, 0, 0, loc)))
	if want := time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}
