package handlers

import (
	"context"

	"github.com/streadway/amqp"
)

// MessageHandler describes the interface used to handle AMQP messages.
type MessageHandler interface {
	HandleMessage(ctx context.Context, ticketID string, delivery amqp.Delivery) error
}
