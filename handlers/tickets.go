package handlers

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"

	"github.com/stagecrew/ticket-notifier/db"
	"github.com/stagecrew/ticket-notifier/events"
	"github.com/stagecrew/ticket-notifier/model"
	"github.com/stagecrew/ticket-notifier/resolver"
)

// TicketUpdateRequest is the message published by the ticket application for
// every ticket mutation: the ticket ID plus full before/after snapshots.
type TicketUpdateRequest struct {
	TicketID string        `json:"ticketId"`
	Before   *model.Ticket `json:"before"`
	After    *model.Ticket `json:"after"`
}

// TicketStore describes the database operations the ticket update handler needs.
type TicketStore interface {
	GetProject(ctx context.Context, projectID string) (*model.Project, error)
	GetUser(ctx context.Context, userID string) (*model.User, error)
	RouteTicketToCreator(ctx context.Context, ticketID, creatorID, area string) error
}

// AudienceResolver resolves the recipients for a classified event.
type AudienceResolver interface {
	Resolve(ctx context.Context, evt *events.Event, project *model.Project) *resolver.Audience
}

// EventDispatcher delivers a classified event to its audience.
type EventDispatcher interface {
	Dispatch(ctx context.Context, evt *events.Event, project *model.Project, audience *resolver.Audience) error
}

// TicketUpdate is the message handler for ticket mutation events. It
// classifies each before/after pair and fans the resulting notification out.
type TicketUpdate struct {
	store      TicketStore
	resolver   AudienceResolver
	dispatcher EventDispatcher
	log        *logrus.Entry
}

// NewTicketUpdate returns a new ticket update handler.
func NewTicketUpdate(store TicketStore, audienceResolver AudienceResolver, eventDispatcher EventDispatcher, log *logrus.Entry) *TicketUpdate {
	return &TicketUpdate{
		store:      store,
		resolver:   audienceResolver,
		dispatcher: eventDispatcher,
		log:        log,
	}
}

// HandleMessage handles a single AMQP delivery. Deliveries are at-least-once,
// so everything here has to tolerate being applied more than once for the
// same transition: classification is pure and the corrective routing update
// writes absolute values.
func (h *TicketUpdate) HandleMessage(ctx context.Context, ticketID string, delivery amqp.Delivery) error {

	// Parse the message body.
	var request TicketUpdateRequest
	err := json.Unmarshal(delivery.Body, &request)
	if err != nil {
		return NewUnrecoverableError("unable to parse message body: %s", err.Error())
	}

	// A delivery without both snapshots (for example a delete event) requires no work.
	if request.Before == nil || request.After == nil {
		h.log.Debugf("ticket update for %s has no before/after snapshots, ignoring", request.TicketID)
		return nil
	}
	request.After.ID = request.TicketID

	// Classify the transition. Most mutations match no rule and are ignored.
	evt, matched := events.Classify(request.Before, request.After)
	if !matched {
		return nil
	}
	log := h.log.WithFields(logrus.Fields{
		"ticket": request.TicketID,
		"event":  string(evt.Type),
	})

	// The project supplies both stakeholders and template data, so nothing
	// can be sent without it. A missing project is logged and dropped; a
	// read failure is worth redelivering.
	project, err := h.store.GetProject(ctx, request.After.ProjectID)
	if err != nil {
		if db.IsProjectNotFound(err) {
			log.Errorf("project %s not found, dropping notification", request.After.ProjectID)
			return nil
		}
		return NewRecoverableError("unable to look up project `%s`: %s", request.After.ProjectID, err.Error())
	}

	// Executed tickets created by area staff are routed back to their
	// creator for validation before anyone is notified.
	if evt.Type == events.TypeExecuted && request.After.CreatedByOperator() {
		evt = h.routeToCreator(ctx, evt, log)
	}

	// Resolve the audience and deliver. Notification failures are logged
	// and swallowed: the ticket mutation is already committed and must not
	// be redelivered just because the transport was down.
	audience := h.resolver.Resolve(ctx, evt, project)
	err = h.dispatcher.Dispatch(ctx, evt, project, audience)
	if err != nil {
		log.WithError(err).Error("notification delivery failed")
	}

	return nil
}

// routeToCreator applies the corrective update that sends an operator-created
// executed ticket back to its creator, returning the operator-validation
// variant of the event. If the update fails the original executed event is
// returned so the standard notification flow runs instead.
func (h *TicketUpdate) routeToCreator(ctx context.Context, evt *events.Event, log *logrus.Entry) *events.Event {
	ticket := evt.After

	// The ticket returns to the creator's home area when it's known, with
	// the stored origin area as the fallback.
	area := ""
	creator, err := h.store.GetUser(ctx, ticket.CreatedBy)
	if err != nil {
		log.WithError(err).Warnf("unable to look up creator %s", ticket.CreatedBy)
	} else if creator.Area != "" {
		area = creator.Area
	}
	if area == "" {
		area = ticket.OriginArea
	}

	err = h.store.RouteTicketToCreator(ctx, ticket.ID, ticket.CreatedBy, area)
	if err != nil {
		log.WithError(err).Error("unable to route the ticket back to its creator, using the standard flow")
		return evt
	}

	return &events.Event{
		Type:   events.TypeExecutedOperatorValidation,
		Before: evt.Before,
		After:  evt.After,
	}
}
