package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cenkalti/backoff/v4"

	"github.com/dukerupert/chorechart/internal/model"
)

// Sender delivers a single payload to a single subscription.
type Sender interface {
	Send(ctx context.Context, sub *model.PushSubscription, payload Payload) error
}

// Subscriptions is the slice of the push store the notifier needs.
type Subscriptions interface {
	ListByUser(userID int64) ([]model.PushSubscription, error)
	DeleteByEndpoint(endpoint string) error
}

// Notifier fans family events out to the devices of everyone involved.
// Expired subscriptions are pruned; other failures are retried and then logged.
type Notifier struct {
	sender     Sender
	subs       Subscriptions
	maxRetries uint64
	newBackOff func() backoff.BackOff
	logger     *slog.Logger
}

func NewNotifier(sender Sender, subs Subscriptions, logger *slog.Logger) *Notifier {
	return &Notifier{
		sender:     sender,
		subs:       subs,
		maxRetries: 3,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		logger:     logger.With("component", "push"),
	}
}

// BadgeEarned tells the child and their parent about a new badge.
func (n *Notifier) BadgeEarned(ctx context.Context, child model.User, b model.Badge) {
	payload := Payload{
		Title: "New badge!",
		Body:  fmt.Sprintf("%s earned %s %s for %d days of %s", child.Name, b.Icon, b.Name, b.RequiredDays, b.ActivityType),
		URL:   "/badges",
		Tag:   fmt.Sprintf("%s-%d-%d", model.NotifTypeBadgeEarned, child.ID, b.ID),
	}
	n.notify(ctx, recipients(child), payload)
}

// RedemptionDecided tells the child how a parent answered a reward request.
func (n *Notifier) RedemptionDecided(ctx context.Context, child model.User, reward model.Reward, req model.RedemptionRequest) {
	body := fmt.Sprintf("Your request for %s was %s", reward.Name, req.Status)
	if req.Note != "" {
		body += ": " + req.Note
	}
	payload := Payload{
		Title: "Reward request update",
		Body:  body,
		URL:   "/rewards",
		Tag:   fmt.Sprintf("%s-%d", model.NotifTypeRedemptionDecided, req.ID),
	}
	n.notify(ctx, []int64{child.ID}, payload)
}

func recipients(child model.User) []int64 {
	ids := []int64{child.ID}
	if child.ParentID != nil {
		ids = append(ids, *child.ParentID)
	}
	return ids
}

func (n *Notifier) notify(ctx context.Context, userIDs []int64, payload Payload) {
	for _, uid := range userIDs {
		subs, err := n.subs.ListByUser(uid)
		if err != nil {
			n.logger.Error("list subscriptions", "user_id", uid, "error", err)
			continue
		}
		for _, sub := range subs {
			if err := n.deliver(ctx, &sub, payload); err != nil {
				if errors.Is(err, ErrExpired) {
					if err := n.subs.DeleteByEndpoint(sub.Endpoint); err != nil {
						n.logger.Error("delete expired subscription", "user_id", uid, "error", err)
					}
					continue
				}
				n.logger.Warn("push delivery failed", "user_id", uid, "tag", payload.Tag, "error", err)
			}
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, sub *model.PushSubscription, payload Payload) error {
	op := func() error {
		err := n.sender.Send(ctx, sub, payload)
		var se *StatusError
		if errors.Is(err, ErrExpired) || (errors.As(err, &se) && !se.Temporary()) {
			return backoff.Permanent(err)
		}
		return err
	}
	b := backoff.WithContext(backoff.WithMaxRetries(n.newBackOff(), n.maxRetries), ctx)
	return backoff.Retry(op, b)
}
