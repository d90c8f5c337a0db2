package dispatcher

import (
	"context"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/stagecrew/ticket-notifier/events"
	"github.com/stagecrew/ticket-notifier/mailer"
	"github.com/stagecrew/ticket-notifier/model"
	"github.com/stagecrew/ticket-notifier/resolver"
)

// MockEmailer records the email request it was given.
type MockEmailer struct {
	SentRequest *mailer.Request
	SendError   error
}

func (e *MockEmailer) Send(_ context.Context, request *mailer.Request) error {
	e.SentRequest = request
	return e.SendError
}

// MockFeedStore records the feed entries it was asked to save.
type MockFeedStore struct {
	SavedNotifications []*model.Notification
	SaveError          error
}

func (s *MockFeedStore) SaveNotifications(_ context.Context, notifications []*model.Notification) error {
	s.SavedNotifications = notifications
	return s.SaveError
}

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(logger)
}

func testAudience() *resolver.Audience {
	audience := resolver.NewAudience()
	audience.Add(&model.User{ID: "u1", Email: "a@x.com"})
	audience.Add(&model.User{ID: "u2", Email: "b@x.com"})
	return audience
}

func startedTreatmentEvent() *events.Event {
	return &events.Event{
		Type:   events.TypeStartedTreatment,
		Before: &model.Ticket{ID: "t1", Status: "aberto", ProjectID: "P"},
		After:  &model.Ticket{ID: "t1", Title: "trocar refletor", Status: model.StatusInTreatment, ProjectID: "P"},
	}
}

func TestDispatchDeliversBothChannels(t *testing.T) {
	assert := assert.New(t)

	emailer := &MockEmailer{}
	feed := &MockFeedStore{}
	d := New(emailer, feed, "http://app.example.com", 4, testLogger())

	project := &model.Project{ID: "P", Name: "projeto teste"}
	err := d.Dispatch(context.Background(), startedTreatmentEvent(), project, testAudience())
	assert.NoError(err)

	// One email request to both addresses.
	assert.NotNil(emailer.SentRequest)
	assert.Equal([]string{"a@x.com", "b@x.com"}, emailer.SentRequest.Recipients)
	assert.Equal("ticket_started_treatment", emailer.SentRequest.EventType)
	assert.Equal("Chamado em Andamento: trocar refletor", emailer.SentRequest.Subject)
	assert.Equal("http://app.example.com/chamado/t1", emailer.SentRequest.SystemURL)
	assert.Equal(project, emailer.SentRequest.Project)

	// One feed entry per user, all unread and linked to the ticket.
	assert.Len(feed.SavedNotifications, 2)
	for _, notification := range feed.SavedNotifications {
		assert.False(notification.Read)
		assert.Equal("t1", notification.TicketID)
		assert.Equal("ticket_started_treatment", notification.Type)
		assert.Equal("http://app.example.com/chamado/t1", notification.Link)
	}
}

func TestDispatchEscalationCarriesExtra(t *testing.T) {
	assert := assert.New(t)

	emailer := &MockEmailer{}
	d := New(emailer, &MockFeedStore{}, "http://app.example.com", 4, testLogger())

	evt := &events.Event{
		Type:   events.TypeEscalatedToArea,
		Before: &model.Ticket{ID: "t1", Area: "producao"},
		After:  &model.Ticket{ID: "t1", Title: "trocar refletor", Area: "compras"},
	}
	err := d.Dispatch(context.Background(), evt, &model.Project{ID: "P"}, testAudience())
	assert.NoError(err)
	assert.Equal("compras", emailer.SentRequest.Extra["newArea"])
	assert.Equal("producao", emailer.SentRequest.Extra["previousArea"])
}

func TestDispatchUnknownEventTypeIsNoOp(t *testing.T) {
	assert := assert.New(t)

	emailer := &MockEmailer{}
	feed := &MockFeedStore{}
	d := New(emailer, feed, "http://app.example.com", 4, testLogger())

	evt := &events.Event{
		Type:   events.Type("bogus_event"),
		Before: &model.Ticket{ID: "t1"},
		After:  &model.Ticket{ID: "t1"},
	}
	err := d.Dispatch(context.Background(), evt, &model.Project{ID: "P"}, testAudience())
	assert.NoError(err)
	assert.Nil(emailer.SentRequest)
	assert.Nil(feed.SavedNotifications)
}

func TestDispatchEmptyAudienceIsNoOp(t *testing.T) {
	assert := assert.New(t)

	emailer := &MockEmailer{}
	d := New(emailer, &MockFeedStore{}, "http://app.example.com", 4, testLogger())

	err := d.Dispatch(context.Background(), startedTreatmentEvent(), &model.Project{ID: "P"}, resolver.NewAudience())
	assert.NoError(err)
	assert.Nil(emailer.SentRequest)
}

func TestDispatchSurfacesEmailFailure(t *testing.T) {
	assert := assert.New(t)

	emailer := &MockEmailer{SendError: fmt.Errorf("simulated transport outage")}
	feed := &MockFeedStore{}
	d := New(emailer, feed, "http://app.example.com", 4, testLogger())

	err := d.Dispatch(context.Background(), startedTreatmentEvent(), &model.Project{ID: "P"}, testAudience())
	assert.Error(err)

	// The feed write still happened; the channels are independent.
	assert.Len(feed.SavedNotifications, 2)
}
