package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stagecrew/ticket-notifier/events"
	"github.com/stagecrew/ticket-notifier/model"
)

func TestManagerFunctionForArea(t *testing.T) {
	assert := assert.New(t)

	// Every area in the fixed table resolves to its documented manager role.
	expected := map[string]string{
		"compras":      "gerente_operacional",
		"locacao":      "gerente_operacional",
		"operacional":  "gerente_operacional",
		"logistica":    "gerente_operacional",
		"comercial":    "gerente_comercial",
		"producao":     "gerente_producao",
		"almoxarifado": "gerente_producao",
		"financeiro":   "gerente_financeiro",
	}
	for area, role := range expected {
		assert.Equal(role, ManagerFunctionForArea(area), "area %s", area)
	}

	// Areas absent from the table fall back to the generic manager.
	assert.Equal("gerente", ManagerFunctionForArea("juridico"))
	assert.Equal("gerente", ManagerFunctionForArea(""))
}

func TestAreaDisplayName(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("ALMOXARIFADO CENTRAL", AreaDisplayName("almoxarifado_central"))
	assert.Equal("COMPRAS", AreaDisplayName("compras"))
}

func TestForSubjects(t *testing.T) {
	assert := assert.New(t)
	ticket := &model.Ticket{Title: "trocar refletor", Area: "producao", Status: model.StatusApproved}

	assert.Equal("Chamado em Andamento: trocar refletor",
		For(events.TypeStartedTreatment).Subject(ticket))
	assert.Equal("Chamado Escalado para PRODUCAO: trocar refletor",
		For(events.TypeEscalatedToArea).Subject(ticket))
	assert.Equal("Aprovação Necessária: trocar refletor",
		For(events.TypeEscalatedToManager).Subject(ticket))
	assert.Equal("Chamado Aprovado: trocar refletor",
		For(events.TypeManagerDecision).Subject(ticket))
	assert.Equal("Chamado Concluído - Aguardando sua Validação: trocar refletor",
		For(events.TypeExecuted).Subject(ticket))

	rejected := &model.Ticket{Title: "trocar refletor", Status: model.StatusRejected}
	assert.Equal("Chamado Rejeitado: trocar refletor",
		For(events.TypeManagerDecision).Subject(rejected))
}

func TestForUnknownEventType(t *testing.T) {
	assert := assert.New(t)

	// An unknown event type gets a zero rule: no delivery on any channel.
	rule := For(events.Type("not_a_real_event"))
	assert.False(rule.Email)
	assert.False(rule.Realtime)
	assert.Equal("", rule.Subject(&model.Ticket{Title: "x"}))
}

func TestExtraForAreaEscalation(t *testing.T) {
	assert := assert.New(t)

	evt := &events.Event{
		Type:   events.TypeEscalatedToArea,
		Before: &model.Ticket{Area: "producao"},
		After:  &model.Ticket{Area: "almoxarifado_central"},
	}
	extra := Extra(evt)
	assert.Equal("producao", extra["previousArea"])
	assert.Equal("almoxarifado_central", extra["newArea"])
	assert.Equal("ALMOXARIFADO CENTRAL", extra["areaName"])
}

func TestExtraForManagerEscalation(t *testing.T) {
	assert := assert.New(t)

	evt := &events.Event{
		Type:   events.TypeEscalatedToManager,
		Before: &model.Ticket{Area: "financeiro"},
		After:  &model.Ticket{Area: "financeiro"},
	}
	assert.Equal("gerente_financeiro", Extra(evt)["managerFunction"])
}

func TestExtraForManagerDecision(t *testing.T) {
	assert := assert.New(t)

	evt := &events.Event{
		Type:   events.TypeManagerDecision,
		Before: &model.Ticket{Status: model.StatusAwaitingApproval},
		After:  &model.Ticket{Status: model.StatusRejected},
	}
	extra := Extra(evt)
	assert.Equal(model.StatusRejected, extra["decision"])
	assert.Equal(model.StatusAwaitingApproval, extra["previousStatus"])
}

func TestExtraForPlainEvents(t *testing.T) {
	assert := assert.New(t)

	evt := &events.Event{
		Type:   events.TypeStartedTreatment,
		Before: &model.Ticket{},
		After:  &model.Ticket{},
	}
	assert.Nil(Extra(evt))
}
