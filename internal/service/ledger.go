package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/coaching-platform/internal/calendar"
	"github.com/Leganyst/coaching-platform/internal/model"
	"github.com/Leganyst/coaching-platform/internal/repository"
)

type LedgerKind string

const (
	LedgerAccount      LedgerKind = "account"
	LedgerSubscription LedgerKind = "subscription"
)

// Ledger names the counter a booking is paid from.
type Ledger struct {
	Kind           LedgerKind `json:"kind"`
	CustomerID     uuid.UUID  `json:"customer_id"`
	SubscriptionID *uuid.UUID `json:"subscription_id,omitempty"`
	Unlimited      bool       `json:"unlimited"`
}

// CreditLedger keeps the account counter and the subscription triples.
// A booking is paid from exactly one of them and refunded to the same one.
type CreditLedger struct {
	store *repository.Store
	grace time.Duration
}

func NewCreditLedger(store *repository.Store, grace time.Duration) *CreditLedger {
	return &CreditLedger{store: store, grace: grace}
}

// RefundEligible reports whether cancelling at now returns the credit:
// the session must start more than the grace window after now.
func (l *CreditLedger) RefundEligible(start, now time.Time) bool {
	return start.After(now.Add(l.grace))
}

// CanAdmit picks the ledger that would pay for a session on day. An active
// subscription with capacity wins over the account counter.
func (l *CreditLedger) CanAdmit(ctx context.Context, customerID uuid.UUID, day time.Time) (*Ledger, error) {
	account, err := l.store.Accounts.GetByCustomerID(ctx, customerID)
	if err != nil {
		return nil, notFound(err, "customer account")
	}
	if !account.IsActive {
		return nil, &AdmissionError{Reason: AdmissionAccountInactive}
	}

	subs, err := l.store.Subscriptions.ListActiveForCustomer(ctx, customerID, day)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	for i := range subs {
		sub := &subs[i]
		if !packageAllowsDay(sub, day) {
			continue
		}
		if sub.IsUnlimited() || sub.CreditsRemaining > 0 {
			return subscriptionLedger(sub), nil
		}
	}

	if account.SessionCredits > 0 {
		return &Ledger{Kind: LedgerAccount, CustomerID: customerID}, nil
	}
	return nil, &AdmissionError{Reason: AdmissionInsufficientCredits}
}

// Admit picks a ledger and debits one credit from it.
func (l *CreditLedger) Admit(ctx context.Context, customerID uuid.UUID, day time.Time) (*Ledger, error) {
	led, err := l.CanAdmit(ctx, customerID, day)
	if err != nil {
		return nil, err
	}
	if err := l.Debit(ctx, led, 1); err != nil {
		return nil, err
	}
	return led, nil
}

// Debit never takes a counter below zero; an insufficient balance is an
// admission failure.
func (l *CreditLedger) Debit(ctx context.Context, led *Ledger, amount int) error {
	if amount <= 0 {
		return invalid("amount", "must be positive")
	}

	var (
		ok  bool
		err error
	)
	switch led.Kind {
	case LedgerSubscription:
		if led.Unlimited {
			return nil
		}
		ok, err = l.store.Subscriptions.Debit(ctx, *led.SubscriptionID, amount)
	default:
		ok, err = l.store.Accounts.Debit(ctx, led.CustomerID, amount)
	}
	if err != nil {
		return fmt.Errorf("debit %s: %w", led.Kind, err)
	}
	if !ok {
		return &AdmissionError{Reason: AdmissionInsufficientCredits}
	}
	return nil
}

// Refund returns amount credits to the ledger.
func (l *CreditLedger) Refund(ctx context.Context, led *Ledger, amount int) error {
	if amount <= 0 {
		return invalid("amount", "must be positive")
	}

	switch led.Kind {
	case LedgerSubscription:
		if led.Unlimited {
			return nil
		}
		ok, err := l.store.Subscriptions.Refund(ctx, *led.SubscriptionID, amount)
		if err != nil {
			return fmt.Errorf("refund subscription: %w", err)
		}
		if !ok {
			return &StateError{Entity: "subscription", Status: "nothing used", Action: "refund"}
		}
		return nil
	default:
		if err := l.store.Accounts.Credit(ctx, led.CustomerID, amount); err != nil {
			return notFound(err, "customer account")
		}
		return nil
	}
}

// LedgerOf returns the ledger a booking was paid from.
func (l *CreditLedger) LedgerOf(ctx context.Context, b *model.Booking) (*Ledger, error) {
	if b.CustomerID == nil {
		return nil, invalid("customer_id", "personal events carry no ledger")
	}
	if b.SubscriptionID == nil {
		return &Ledger{Kind: LedgerAccount, CustomerID: *b.CustomerID}, nil
	}
	sub, err := l.store.Subscriptions.GetByID(ctx, *b.SubscriptionID)
	if err != nil {
		return nil, notFound(err, "subscription")
	}
	return subscriptionLedger(sub), nil
}

// AdmitPending debits one credit for a PendingCredits booking. Its own
// subscription pays when it still can; otherwise the ledger is chosen the
// way CanAdmit chooses it, so credit from a newer subscription or the
// account is used. The returned ledger is the one the booking is rebound to.
func (l *CreditLedger) AdmitPending(ctx context.Context, b *model.Booking) (*Ledger, error) {
	if b.CustomerID == nil {
		return nil, invalid("customer_id", "personal events carry no ledger")
	}

	if b.SubscriptionID != nil {
		sub, err := l.store.Subscriptions.GetByID(ctx, *b.SubscriptionID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("get subscription: %w", err)
		}
		if err == nil && sub.Status == model.SubscriptionActive && sub.CoversDate(b.StartTime) &&
			packageAllowsDay(sub, b.StartTime) && (sub.IsUnlimited() || sub.CreditsRemaining > 0) {
			led := subscriptionLedger(sub)
			if err := l.Debit(ctx, led, 1); err != nil {
				return nil, err
			}
			return led, nil
		}
	}

	return l.Admit(ctx, *b.CustomerID, b.StartTime)
}

func subscriptionLedger(sub *model.PackageSubscription) *Ledger {
	return &Ledger{
		Kind:           LedgerSubscription,
		CustomerID:     sub.CustomerID,
		SubscriptionID: ptr(sub.ID),
		Unlimited:      sub.IsUnlimited(),
	}
}

func packageAllowsDay(sub *model.PackageSubscription, day time.Time) bool {
	if sub.Package == nil || len(sub.Package.ValidDays) == 0 {
		return true
	}
	return slices.Contains([]int(sub.Package.ValidDays), int(calendar.WeekdayOf(day)))
}
