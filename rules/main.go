// Package rules holds the static delivery rule table: for each business
// event, whether to send email, whether to append in-app feed entries, and
// the message templates for both channels.
package rules

import (
	"fmt"
	"strings"

	"github.com/stagecrew/ticket-notifier/events"
	"github.com/stagecrew/ticket-notifier/model"
)

// Rule describes how a single event type is delivered.
type Rule struct {
	Email    bool
	Realtime bool

	// subject renders the outbound email subject for a ticket.
	subject func(t *model.Ticket) string

	// feedMessage is the in-app feed body for the event.
	feedMessage string
}

// Subject renders the email subject line for the event's ticket.
func (r Rule) Subject(t *model.Ticket) string {
	if r.subject == nil {
		return ""
	}
	return r.subject(t)
}

// FeedMessage returns the in-app feed body for the event.
func (r Rule) FeedMessage() string {
	return r.feedMessage
}

// AreaDisplayName renders an area identifier for human consumption, for
// example "almoxarifado_central" becomes "ALMOXARIFADO CENTRAL".
func AreaDisplayName(area string) string {
	return strings.ToUpper(strings.ReplaceAll(area, "_", " "))
}

// ManagerFunctionForArea maps a ticket's owning area to the manager role
// responsible for approvals in that area. Areas absent from the table fall
// back to the generic manager role.
func ManagerFunctionForArea(area string) string {
	switch area {
	case "compras", "locacao", "operacional", "logistica":
		return "gerente_operacional"
	case "comercial":
		return "gerente_comercial"
	case "producao", "almoxarifado":
		return "gerente_producao"
	case "financeiro":
		return "gerente_financeiro"
	default:
		return "gerente"
	}
}

// For returns the delivery rule for an event type. Unknown event types get a
// zero rule, which the dispatcher treats as "deliver nothing".
func For(eventType events.Type) Rule {
	switch eventType {
	case events.TypeStartedTreatment:
		return Rule{
			Email:    true,
			Realtime: true,
			subject: func(t *model.Ticket) string {
				return fmt.Sprintf("Chamado em Andamento: %s", t.Title)
			},
			feedMessage: "Um chamado sob sua responsabilidade entrou em tratativa",
		}
	case events.TypeEscalatedToArea:
		return Rule{
			Email:    true,
			Realtime: true,
			subject: func(t *model.Ticket) string {
				return fmt.Sprintf("Chamado Escalado para %s: %s", AreaDisplayName(t.Area), t.Title)
			},
			feedMessage: "Um chamado foi escalado para sua área",
		}
	case events.TypeEscalatedToManager:
		return Rule{
			Email:    true,
			Realtime: true,
			subject: func(t *model.Ticket) string {
				return fmt.Sprintf("Aprovação Necessária: %s", t.Title)
			},
			feedMessage: "Um chamado foi escalado para sua análise",
		}
	case events.TypeManagerDecision:
		return Rule{
			Email:    true,
			Realtime: true,
			subject: func(t *model.Ticket) string {
				decision := "Rejeitado"
				if t.Status == model.StatusApproved {
					decision = "Aprovado"
				}
				return fmt.Sprintf("Chamado %s: %s", decision, t.Title)
			},
			feedMessage: "Um gerente tomou uma decisão sobre o chamado escalado",
		}
	case events.TypeExecuted:
		return Rule{
			Email:    true,
			Realtime: true,
			subject: func(t *model.Ticket) string {
				return fmt.Sprintf("Chamado Concluído - Aguardando sua Validação: %s", t.Title)
			},
			feedMessage: "Um chamado foi executado e aguarda sua validação",
		}
	case events.TypeExecutedOperatorValidation:
		return Rule{
			Email:    true,
			Realtime: true,
			subject: func(t *model.Ticket) string {
				return fmt.Sprintf("Chamado Concluído - Aguardando sua Validação: %s", t.Title)
			},
			feedMessage: "Um chamado que você criou foi executado e aguarda sua validação",
		}
	}
	return Rule{}
}

// Extra builds the event-specific payload merged into the outbound email
// request body.
func Extra(evt *events.Event) map[string]interface{} {
	switch evt.Type {
	case events.TypeEscalatedToArea:
		return map[string]interface{}{
			"previousArea": evt.Before.Area,
			"newArea":      evt.After.Area,
			"areaName":     AreaDisplayName(evt.After.Area),
		}
	case events.TypeEscalatedToManager:
		return map[string]interface{}{
			"managerFunction": ManagerFunctionForArea(evt.After.Area),
		}
	case events.TypeManagerDecision:
		return map[string]interface{}{
			"decision":       evt.After.Status,
			"previousStatus": evt.Before.Status,
		}
	}
	return nil
}
