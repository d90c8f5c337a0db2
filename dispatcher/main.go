// Package dispatcher turns a classified ticket event plus a resolved audience
// into outbound deliveries: one email transport request and one in-app feed
// entry per realtime-eligible recipient.
package dispatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/stagecrew/ticket-notifier/events"
	"github.com/stagecrew/ticket-notifier/mailer"
	"github.com/stagecrew/ticket-notifier/model"
	"github.com/stagecrew/ticket-notifier/resolver"
	"github.com/stagecrew/ticket-notifier/rules"
)

// Emailer sends one rendered email request to the external transport.
type Emailer interface {
	Send(ctx context.Context, request *mailer.Request) error
}

// FeedStore appends a batch of in-app feed entries.
type FeedStore interface {
	SaveNotifications(ctx context.Context, notifications []*model.Notification) error
}

// Dispatcher fans a single event out to both delivery channels.
type Dispatcher struct {
	emailer Emailer
	feed    FeedStore
	appURL  string
	log     *logrus.Entry

	// sendSlots bounds the number of concurrent outbound email calls across
	// all dispatches so a burst of ticket mutations can't overwhelm the
	// transport.
	sendSlots chan struct{}
}

// New returns a dispatcher. maxConcurrentSends bounds simultaneous email
// transport calls; values below one are treated as one.
func New(emailer Emailer, feed FeedStore, appURL string, maxConcurrentSends int, log *logrus.Entry) *Dispatcher {
	if maxConcurrentSends < 1 {
		maxConcurrentSends = 1
	}
	return &Dispatcher{
		emailer:   emailer,
		feed:      feed,
		appURL:    appURL,
		log:       log,
		sendSlots: make(chan struct{}, maxConcurrentSends),
	}
}

// SystemURL returns the deep link into the ticket application for a ticket.
func (d *Dispatcher) SystemURL(ticketID string) string {
	return fmt.Sprintf("%s/chamado/%s", d.appURL, ticketID)
}

// Dispatch delivers one event to its audience. An event type with no
// delivery rule is a no-op. The email send and the feed write run in
// parallel; an error in either is returned to the caller, which treats it as
// non-fatal to the ticket transition.
func (d *Dispatcher) Dispatch(ctx context.Context, evt *events.Event, project *model.Project, audience *resolver.Audience) error {
	rule := rules.For(evt.Type)
	if !rule.Email && !rule.Realtime {
		d.log.Warnf("no delivery rule for event type %s, skipping", evt.Type)
		return nil
	}
	if audience.Empty() {
		d.log.Infof("no recipients resolved for event type %s on ticket %s", evt.Type, evt.After.ID)
		return nil
	}

	subject := rule.Subject(evt.After)
	systemURL := d.SystemURL(evt.After.ID)

	group, gctx := errgroup.WithContext(ctx)

	if rule.Email && len(audience.Emails) > 0 {
		group.Go(func() error {
			d.sendSlots <- struct{}{}
			defer func() { <-d.sendSlots }()

			return d.emailer.Send(gctx, &mailer.Request{
				Recipients: audience.Emails,
				Subject:    subject,
				EventType:  string(evt.Type),
				Ticket:     evt.After,
				Project:    project,
				SystemURL:  systemURL,
				Extra:      rules.Extra(evt),
			})
		})
	}

	if rule.Realtime && len(audience.UserIDs) > 0 {
		group.Go(func() error {
			notifications := make([]*model.Notification, 0, len(audience.UserIDs))
			now := time.Now()
			for _, userID := range audience.UserIDs {
				notifications = append(notifications, &model.Notification{
					UserID:      userID,
					Type:        string(evt.Type),
					Title:       subject,
					Message:     rule.FeedMessage(),
					Link:        systemURL,
					TicketID:    evt.After.ID,
					Read:        false,
					TimeCreated: now,
				})
			}
			return d.feed.SaveNotifications(gctx, notifications)
		})
	}

	return group.Wait()
}
