package handlerset

import (
	"context"
	"strings"

	"github.com/cyverse-de/messaging/v9"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"

	"github.com/stagecrew/ticket-notifier/common"
	"github.com/stagecrew/ticket-notifier/handlers"
)

// HandlerSet represents a set of AMQP message handlers keyed by update
// category. Deliveries arrive with routing keys of the form
// `tickets.<category>.<ticketId>`.
type HandlerSet struct {
	amqpClient *messaging.Client
	handlerFor map[string]handlers.MessageHandler
	log        *logrus.Entry
}

// New creates a new handler set.
func New(amqpSettings *common.AMQPSettings, handlerFor map[string]handlers.MessageHandler, log *logrus.Entry) (*HandlerSet, error) {
	wrapMsg := "unable to create the message handler set"

	// Create the AMQP client.
	amqpClient, err := messaging.NewClient(amqpSettings.URI, true)
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	// Build and return the handler set.
	handlerSet := HandlerSet{
		amqpClient: amqpClient,
		handlerFor: handlerFor,
		log:        log,
	}
	return &handlerSet, nil
}

// Listen binds the consumer queue to the ticket routing keys and starts
// consuming. It blocks until the AMQP client shuts down.
func (hs *HandlerSet) Listen(settings *common.AMQPSettings, queueName string) {
	hs.amqpClient.AddConsumer(
		settings.ExchangeName,
		settings.ExchangeType,
		queueName,
		"tickets.#",
		hs.handleDelivery,
		100,
	)
	hs.amqpClient.Listen()
}

// handleDelivery routes one delivery to the handler registered for its update
// category and settles the delivery according to the outcome: recoverable
// errors are requeued once, everything else is acknowledged.
func (hs *HandlerSet) handleDelivery(ctx context.Context, delivery amqp.Delivery) {
	category, ticketID := parseRoutingKey(delivery.RoutingKey)

	handler, known := hs.handlerFor[category]
	if !known {
		hs.log.Warnf("no handler registered for category %s, dropping delivery", category)
		_ = delivery.Ack(false)
		return
	}

	err := handler.HandleMessage(ctx, ticketID, delivery)
	if err != nil {
		if handlers.IsRecoverable(err) && !delivery.Redelivered {
			hs.log.WithError(err).Warn("requeueing delivery after a recoverable error")
			_ = delivery.Nack(false, true)
			return
		}
		hs.log.WithError(err).Error("dropping delivery")
	}
	_ = delivery.Ack(false)
}

// Close closes a message handler set.
func (hs *HandlerSet) Close() {
	hs.amqpClient.Close()
}

// parseRoutingKey splits a routing key of the form `tickets.<category>.<id>`
// into its category and the trailing identifier.
func parseRoutingKey(routingKey string) (string, string) {
	parts := strings.SplitN(routingKey, ".", 3)
	switch len(parts) {
	case 0, 1:
		return "", ""
	case 2:
		return parts[1], ""
	default:
		return parts[1], parts[2]
	}
}
