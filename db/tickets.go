package db

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/stagecrew/ticket-notifier/model"
)

// RouteTicketToCreator applies the corrective update for tickets created by
// area staff: once executed, the ticket goes back to its creator for
// validation. All values written are absolute, so re-applying the update for
// a redelivered event converges to the same row state.
func (s *Store) RouteTicketToCreator(ctx context.Context, ticketID, creatorID, area string) error {
	wrapMsg := fmt.Sprintf("unable to route ticket `%s` back to its creator", ticketID)

	// Build the update statement.
	builder := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Update("tickets").
		Set("status", model.StatusExecutedAwaitingOperatorVal).
		Set("assignee", creatorID).
		Set("time_updated", sq.Expr("now()")).
		Where(sq.Eq{"id": ticketID})

	// The destination area comes from the creator's home area when it's
	// known, falling back to the ticket's stored origin area. If neither is
	// available the area is left alone.
	if area != "" {
		builder = builder.Set("area", area)
	}

	statement, args, err := builder.ToSql()
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	// Execute the update statement and verify that the ticket was found.
	result, err := s.db.ExecContext(ctx, statement, args...)
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}
	if rowsAffected != 1 {
		return fmt.Errorf("%s: unexpected number of rows affected: %d", wrapMsg, rowsAffected)
	}

	return nil
}
