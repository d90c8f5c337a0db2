// Package resolver determines the audience of a classified ticket event: the
// email addresses to notify and the user IDs that receive in-app feed
// entries.
package resolver

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/stagecrew/ticket-notifier/common"
	"github.com/stagecrew/ticket-notifier/events"
	"github.com/stagecrew/ticket-notifier/model"
	"github.com/stagecrew/ticket-notifier/rules"
)

// Lookup describes the read-only user queries the resolver needs. The
// database store satisfies it; tests substitute fakes.
type Lookup interface {
	GetUser(ctx context.Context, userID string) (*model.User, error)
	ListAreaOperators(ctx context.Context, area string) ([]*model.User, error)
	ListUsersByRole(ctx context.Context, role string) ([]*model.User, error)
}

// Audience is a deduplicated set of notification targets.
type Audience struct {
	Emails  []string
	UserIDs []string

	seenEmails  map[string]bool
	seenUserIDs map[string]bool
}

// NewAudience returns an empty audience.
func NewAudience() *Audience {
	return &Audience{
		seenEmails:  make(map[string]bool),
		seenUserIDs: make(map[string]bool),
	}
}

// Add registers a user as a notification target. Users without a valid email
// address on file contribute nothing; duplicates are ignored.
func (a *Audience) Add(user *model.User) {
	if user == nil || user.Email == "" {
		return
	}
	if err := common.ValidateEmailAddress(user.Email); err != nil {
		return
	}
	if !a.seenEmails[user.Email] {
		a.seenEmails[user.Email] = true
		a.Emails = append(a.Emails, user.Email)
	}
	if user.ID != "" && !a.seenUserIDs[user.ID] {
		a.seenUserIDs[user.ID] = true
		a.UserIDs = append(a.UserIDs, user.ID)
	}
}

// Empty reports whether the audience contains no targets at all.
func (a *Audience) Empty() bool {
	return len(a.Emails) == 0 && len(a.UserIDs) == 0
}

// Resolver resolves event audiences against the user store.
type Resolver struct {
	lookup Lookup
	log    *logrus.Entry
}

// New returns a resolver backed by the given lookup implementation.
func New(lookup Lookup, log *logrus.Entry) *Resolver {
	return &Resolver{lookup: lookup, log: log}
}

// Resolve returns the audience for a classified event. A failed lookup for
// one stakeholder contributes nothing and never blocks the others; an empty
// audience simply means no notification is sent.
func (r *Resolver) Resolve(ctx context.Context, evt *events.Event, project *model.Project) *Audience {
	audience := NewAudience()

	// Operator-created executed tickets notify only the original creator.
	if evt.Type == events.TypeExecutedOperatorValidation {
		creator, err := r.lookup.GetUser(ctx, evt.After.CreatedBy)
		if err != nil {
			r.log.WithError(err).Errorf("unable to look up the creator of ticket %s", evt.After.ID)
			return audience
		}
		audience.Add(creator)
		return audience
	}

	// The remaining events notify the project's standing stakeholders, some
	// after a group of users determined by the event. All lookups are
	// independent reads and run concurrently.
	var (
		groupUsers []*model.User
		producer   *model.User
		consultant *model.User
	)

	group, gctx := errgroup.WithContext(ctx)

	switch evt.Type {
	case events.TypeEscalatedToArea:
		group.Go(func() error {
			users, err := r.lookup.ListAreaOperators(gctx, evt.After.Area)
			if err != nil {
				r.log.WithError(err).Errorf("unable to list the operators of area %s", evt.After.Area)
				return nil
			}
			groupUsers = users
			return nil
		})
	case events.TypeEscalatedToManager:
		managerRole := rules.ManagerFunctionForArea(evt.After.Area)
		group.Go(func() error {
			users, err := r.lookup.ListUsersByRole(gctx, managerRole)
			if err != nil {
				r.log.WithError(err).Errorf("unable to list users with role %s", managerRole)
				return nil
			}
			groupUsers = users
			return nil
		})
	}

	if project.ProducerID != "" {
		group.Go(func() error {
			user, err := r.lookup.GetUser(gctx, project.ProducerID)
			if err != nil {
				r.log.WithError(err).Errorf("unable to look up producer %s", project.ProducerID)
				return nil
			}
			producer = user
			return nil
		})
	}
	if project.ConsultantID != "" {
		group.Go(func() error {
			user, err := r.lookup.GetUser(gctx, project.ConsultantID)
			if err != nil {
				r.log.WithError(err).Errorf("unable to look up consultant %s", project.ConsultantID)
				return nil
			}
			consultant = user
			return nil
		})
	}

	// The goroutines swallow their own errors, so Wait can't fail.
	_ = group.Wait()

	for _, user := range groupUsers {
		audience.Add(user)
	}
	audience.Add(producer)
	audience.Add(consultant)

	return audience
}
