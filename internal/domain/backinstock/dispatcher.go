package backinstock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultDispatchConcurrency = 4

// Dispatcher fans a restock out to its eligible subscribers: per subscriber
// it claims the notified flag, renders the merchant template, sends the
// email and appends one audit record. Subscribers are processed
// independently; one failure never aborts the rest of the batch.
type Dispatcher struct {
	store       SubscriptionStore
	sender      EmailSender
	concurrency int
}

// NewDispatcher creates a new dispatcher with a bounded worker pool.
func NewDispatcher(store SubscriptionStore, sender EmailSender, concurrency int) *Dispatcher {
	if concurrency <= 0 {
		concurrency = defaultDispatchConcurrency
	}
	return &Dispatcher{
		store:       store,
		sender:      sender,
		concurrency: concurrency,
	}
}

// outcomeStatus tags one subscriber's isolated processing result.
type outcomeStatus int

const (
	outcomeSent outcomeStatus = iota
	outcomeFailed
	outcomeSkipped
)

type outcome struct {
	status outcomeStatus
	email  string
	reason string
}

// Dispatch notifies every subscription in the batch and merges the
// per-subscriber outcomes into one report. The caller has already confirmed
// the shop's settings are enabled.
func (d *Dispatcher) Dispatch(ctx context.Context, restock *ResolvedRestock, settings *NotificationSettings, subs []*Subscription) *DispatchReport {
	if len(subs) == 0 {
		return &DispatchReport{}
	}

	start := time.Now()
	outcomes := make([]outcome, len(subs))

	var wg sync.WaitGroup
	sem := make(chan struct{}, d.concurrency)

	for i, sub := range subs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, sub *Subscription) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[i] = d.notifyOne(ctx, restock, settings, sub)
		}(i, sub)
	}
	wg.Wait()

	report := &DispatchReport{}
	for _, o := range outcomes {
		switch o.status {
		case outcomeSent:
			report.SentCount++
		case outcomeFailed:
			report.FailedCount++
			report.Failures = append(report.Failures, DispatchFailure{Email: o.email, Reason: o.reason})
		case outcomeSkipped:
			report.SkippedCount++
		}
	}

	slog.Info("dispatch complete",
		"shop", restock.Shop,
		"product_id", restock.ProductID,
		"variant_id", restock.VariantID,
		"sent", report.SentCount,
		"failed", report.FailedCount,
		"skipped", report.SkippedCount,
		"duration", time.Since(start),
	)

	return report
}

// notifyOne processes a single subscriber. The conditional flag update comes
// before the send: it is the authoritative "has this been sent" gate, so two
// concurrent dispatches for the same subscription cannot both mail. A failed
// send reverts the claim, leaving the subscription eligible for the next
// restock event.
func (d *Dispatcher) notifyOne(ctx context.Context, restock *ResolvedRestock, settings *NotificationSettings, sub *Subscription) outcome {
	now := time.Now().UTC()

	applied, err := d.store.ConditionalMarkNotified(ctx, sub.ID, now)
	if err != nil {
		slog.Error("claiming subscription failed",
			"subscription_id", sub.ID,
			"email", sub.Email,
			"error", err,
		)
		return outcome{status: outcomeFailed, email: sub.Email, reason: fmt.Sprintf("claiming subscription: %s", err)}
	}
	if !applied {
		// A concurrent dispatch owns this row; no mail, no record.
		slog.Info("subscription already claimed, skipping",
			"subscription_id", sub.ID,
			"email", sub.Email,
		)
		return outcome{status: outcomeSkipped, email: sub.Email}
	}

	vars := TemplateVars(restock, sub.Email)
	body := Render(settings.EmailTemplate, vars)
	msg := &Message{
		To:      sub.Email,
		Subject: Render(settings.EmailSubject, vars),
		HTML:    BuildHTMLBody(restock, body),
		Text:    body,
	}

	providerID, sendErr := d.sender.Send(ctx, msg)

	rec := &NotificationRecord{
		ID:             uuid.New().String(),
		SubscriptionID: sub.ID,
		Email:          sub.Email,
		ProductID:      sub.ProductID,
		VariantID:      sub.VariantID,
		Shop:           sub.Shop,
		Status:         RecordSent,
		CreatedAt:      now,
	}
	if sendErr != nil {
		rec.Status = RecordFailed
		rec.ErrorMessage = sendErr.Error()
	}

	// The record is audit-only; a write failure is logged but does not
	// change the subscriber's fate.
	if recErr := d.store.AppendNotificationRecord(ctx, rec); recErr != nil {
		slog.Error("appending notification record failed",
			"subscription_id", sub.ID,
			"email", sub.Email,
			"error", recErr,
		)
	}

	if sendErr != nil {
		if clearErr := d.store.ClearNotified(ctx, sub.ID); clearErr != nil {
			slog.Error("reverting notified flag failed",
				"subscription_id", sub.ID,
				"email", sub.Email,
				"error", clearErr,
			)
		}
		slog.Error("notification delivery failed",
			"subscription_id", sub.ID,
			"email", sub.Email,
			"product_id", sub.ProductID,
			"error", sendErr,
		)
		return outcome{status: outcomeFailed, email: sub.Email, reason: sendErr.Error()}
	}

	slog.Info("notification sent",
		"subscription_id", sub.ID,
		"email", sub.Email,
		"product_id", sub.ProductID,
		"provider_id", providerID,
	)
	return outcome{status: outcomeSent, email: sub.Email}
}
