package resolver

import (
	"context"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/stagecrew/ticket-notifier/events"
	"github.com/stagecrew/ticket-notifier/model"
)

// fakeLookup is an in-memory Lookup implementation for testing.
type fakeLookup struct {
	users       map[string]*model.User
	byArea      map[string][]*model.User
	byRole      map[string][]*model.User
	failingUser string
}

func (f *fakeLookup) GetUser(_ context.Context, userID string) (*model.User, error) {
	if userID == f.failingUser {
		return nil, fmt.Errorf("simulated lookup failure for %s", userID)
	}
	user, ok := f.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s not found", userID)
	}
	return user, nil
}

func (f *fakeLookup) ListAreaOperators(_ context.Context, area string) ([]*model.User, error) {
	return f.byArea[area], nil
}

func (f *fakeLookup) ListUsersByRole(_ context.Context, role string) ([]*model.User, error) {
	return f.byRole[role], nil
}

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(logger)
}

func testProject() *model.Project {
	return &model.Project{
		ID:           "project-1",
		Name:         "turne 2026",
		ProducerID:   "u1",
		ConsultantID: "u2",
	}
}

func stakeholderLookup() *fakeLookup {
	return &fakeLookup{
		users: map[string]*model.User{
			"u1": {ID: "u1", Name: "Produtor", Email: "a@x.com", Role: "produtor"},
			"u2": {ID: "u2", Name: "Consultor", Email: "b@x.com", Role: "consultor"},
		},
		byArea: map[string][]*model.User{},
		byRole: map[string][]*model.User{},
	}
}

func TestResolveStartedTreatment(t *testing.T) {
	assert := assert.New(t)
	r := New(stakeholderLookup(), testLogger())

	evt := &events.Event{
		Type:   events.TypeStartedTreatment,
		Before: &model.Ticket{Status: "aberto"},
		After:  &model.Ticket{ID: "t1", Status: model.StatusInTreatment},
	}
	audience := r.Resolve(context.Background(), evt, testProject())

	assert.Equal([]string{"a@x.com", "b@x.com"}, audience.Emails)
	assert.Equal([]string{"u1", "u2"}, audience.UserIDs)
}

func TestResolveEscalatedToAreaDeduplicates(t *testing.T) {
	assert := assert.New(t)

	lookup := stakeholderLookup()
	lookup.byArea["compras"] = []*model.User{
		{ID: "op1", Email: "op1@x.com", Role: "operador_compras", Area: "compras"},
		{ID: "op2", Email: "op2@x.com", Role: "operador_compras", Area: "compras"},
		// The producer also works in the destination area; their address
		// must not appear twice.
		{ID: "u1", Email: "a@x.com", Role: "produtor", Area: "compras"},
	}
	r := New(lookup, testLogger())

	evt := &events.Event{
		Type:   events.TypeEscalatedToArea,
		Before: &model.Ticket{Area: "producao"},
		After:  &model.Ticket{ID: "t1", Area: "compras"},
	}
	audience := r.Resolve(context.Background(), evt, testProject())

	assert.ElementsMatch([]string{"op1@x.com", "op2@x.com", "a@x.com", "b@x.com"}, audience.Emails)
	assert.Len(audience.Emails, 4)
	assert.Len(audience.UserIDs, 4)
}

func TestResolveEscalatedToManager(t *testing.T) {
	assert := assert.New(t)

	lookup := stakeholderLookup()
	lookup.byRole["gerente_financeiro"] = []*model.User{
		{ID: "g1", Email: "g1@x.com", Role: "gerente_financeiro"},
	}
	r := New(lookup, testLogger())

	evt := &events.Event{
		Type:   events.TypeEscalatedToManager,
		Before: &model.Ticket{Area: "financeiro", Status: "aberto"},
		After:  &model.Ticket{ID: "t1", Area: "financeiro", Status: model.StatusAwaitingApproval},
	}
	audience := r.Resolve(context.Background(), evt, testProject())

	assert.ElementsMatch([]string{"g1@x.com", "a@x.com", "b@x.com"}, audience.Emails)
}

func TestResolveOperatorValidationNotifiesCreatorOnly(t *testing.T) {
	assert := assert.New(t)

	lookup := stakeholderLookup()
	lookup.users["op9"] = &model.User{ID: "op9", Email: "op9@x.com", Role: "operador_producao", Area: "producao"}
	r := New(lookup, testLogger())

	evt := &events.Event{
		Type:   events.TypeExecutedOperatorValidation,
		Before: &model.Ticket{Status: model.StatusInExecution},
		After: &model.Ticket{
			ID:            "t1",
			Status:        model.StatusExecutedAwaitingValidation,
			CreatedBy:     "op9",
			CreatedByRole: "operador_producao",
		},
	}
	audience := r.Resolve(context.Background(), evt, testProject())

	assert.Equal([]string{"op9@x.com"}, audience.Emails)
	assert.Equal([]string{"op9"}, audience.UserIDs)
}

func TestResolveFailedLookupDoesNotBlockSiblings(t *testing.T) {
	assert := assert.New(t)

	lookup := stakeholderLookup()
	lookup.failingUser = "u1"
	r := New(lookup, testLogger())

	evt := &events.Event{
		Type:   events.TypeManagerDecision,
		Before: &model.Ticket{Status: model.StatusAwaitingApproval},
		After:  &model.Ticket{ID: "t1", Status: model.StatusApproved},
	}
	audience := r.Resolve(context.Background(), evt, testProject())

	// The producer lookup failed; the consultant is still notified.
	assert.Equal([]string{"b@x.com"}, audience.Emails)
}

func TestResolveSkipsUsersWithoutEmail(t *testing.T) {
	assert := assert.New(t)

	lookup := stakeholderLookup()
	lookup.users["u1"] = &model.User{ID: "u1", Name: "Produtor", Role: "produtor"}
	r := New(lookup, testLogger())

	evt := &events.Event{
		Type:   events.TypeExecuted,
		Before: &model.Ticket{Status: model.StatusInExecution},
		After:  &model.Ticket{ID: "t1", Status: model.StatusExecutedAwaitingValidation},
	}
	audience := r.Resolve(context.Background(), evt, testProject())

	assert.Equal([]string{"b@x.com"}, audience.Emails)
}

func TestResolveEmptyAudience(t *testing.T) {
	assert := assert.New(t)
	r := New(&fakeLookup{users: map[string]*model.User{}}, testLogger())

	evt := &events.Event{
		Type:   events.TypeStartedTreatment,
		Before: &model.Ticket{Status: "aberto"},
		After:  &model.Ticket{ID: "t1", Status: model.StatusInTreatment},
	}
	audience := r.Resolve(context.Background(), evt, &model.Project{ID: "project-1", Name: "sem equipe"})

	assert.True(audience.Empty())
}

func TestAudienceRejectsMalformedAddresses(t *testing.T) {
	assert := assert.New(t)

	audience := NewAudience()
	audience.Add(&model.User{ID: "u1", Email: "not-an-address"})
	assert.True(audience.Empty())
}
