package db

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/stagecrew/ticket-notifier/model"
)

// SaveNotifications stores one feed entry per recipient inside a single
// transaction, so a fan-out to many users is all-or-nothing. The generated
// IDs are scanned back into the notification structures.
func (s *Store) SaveNotifications(ctx context.Context, notifications []*model.Notification) error {
	wrapMsg := "unable to save notifications"

	if len(notifications) == 0 {
		return nil
	}

	// Begin a transaction for the batch.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}
	defer func() { _ = tx.Rollback() }()

	// All entries in a batch share the same notification type.
	notificationTypeID, err := GetNotificationTypeID(ctx, tx, notifications[0].Type)
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	for _, notification := range notifications {
		// Build the statement to insert the notification.
		statement, args, err := sq.StatementBuilder.
			PlaceholderFormat(sq.Dollar).
			Insert("notifications").
			Columns(
				"notification_type_id",
				"user_id",
				"subject",
				"message",
				"link",
				"ticket_id",
				"seen",
				"time_created").
			Values(
				notificationTypeID,
				notification.UserID,
				notification.Title,
				notification.Message,
				notification.Link,
				notification.TicketID,
				notification.Read,
				notification.TimeCreated).
			Suffix("RETURNING id").
			ToSql()
		if err != nil {
			return errors.Wrap(err, wrapMsg)
		}

		// Execute the insert statement, scanning the ID into the notification structure.
		row := tx.QueryRowContext(ctx, statement, args...)
		err = row.Scan(&notification.ID)
		if err != nil {
			return errors.Wrap(err, wrapMsg)
		}
	}

	// Commit the batch.
	err = tx.Commit()
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	return nil
}

// MarkNotificationRead marks a single feed entry as read. Marking an entry
// that is already read is a no-op; a missing entry is reported via
// sql.ErrNoRows so the API can answer with a 404.
func (s *Store) MarkNotificationRead(ctx context.Context, notificationID string) error {
	wrapMsg := fmt.Sprintf("unable to mark notification `%s` as read", notificationID)

	// Build the update statement.
	statement, args, err := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Update("notifications").
		Set("seen", true).
		Where(sq.Eq{"id": notificationID}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	// Execute the update statement.
	result, err := s.db.ExecContext(ctx, statement, args...)
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}
	if rowsAffected == 0 {
		return errors.Wrap(sql.ErrNoRows, wrapMsg)
	}

	return nil
}

// MarkAllNotificationsRead marks every unread feed entry belonging to the
// user as read, returning the number of entries that changed state. Calling
// it when nothing is unread is a no-op.
func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	wrapMsg := fmt.Sprintf("unable to mark the notifications for `%s` as read", userID)

	// Build the update statement.
	statement, args, err := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Update("notifications").
		Set("seen", true).
		Where(sq.Eq{"user_id": userID}).
		Where(sq.Eq{"seen": false}).
		ToSql()
	if err != nil {
		return 0, errors.Wrap(err, wrapMsg)
	}

	// Execute the update statement.
	result, err := s.db.ExecContext(ctx, statement, args...)
	if err != nil {
		return 0, errors.Wrap(err, wrapMsg)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, wrapMsg)
	}

	return rowsAffected, nil
}

// ListNotifications returns the user's feed entries, most recent first.
func (s *Store) ListNotifications(ctx context.Context, userID string, limit uint64) ([]*model.Notification, error) {
	wrapMsg := fmt.Sprintf("unable to list the notifications for `%s`", userID)

	// Build the query.
	statement, args, err := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Select("n.id", "n.user_id", "t.name", "n.subject", "n.message", "n.link", "n.ticket_id", "n.seen", "n.time_created").
		From("notifications n").
		Join("notification_types t ON n.notification_type_id = t.id").
		Where(sq.Eq{"n.user_id": userID}).
		OrderBy("n.time_created DESC").
		Limit(limit).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	// Query the database.
	rows, err := s.db.QueryContext(ctx, statement, args...)
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}
	defer rows.Close()

	var notifications []*model.Notification
	for rows.Next() {
		var n model.Notification
		err = rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Link, &n.TicketID, &n.Read, &n.TimeCreated)
		if err != nil {
			return nil, errors.Wrap(err, wrapMsg)
		}
		notifications = append(notifications, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	return notifications, nil
}

// CountUnreadNotifications counts the feed entries for the user that haven't been marked as read.
func (s *Store) CountUnreadNotifications(ctx context.Context, userID string) (int64, error) {
	wrapMsg := "unable to count unread notifications"

	// Build the statement to count the unread notifications.
	statement, args, err := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Select("count(*)").
		From("notifications").
		Where(sq.Eq{"user_id": userID}).
		Where(sq.Eq{"seen": false}).
		ToSql()
	if err != nil {
		return 0, errors.Wrap(err, wrapMsg)
	}

	// Execute the statement.
	var total int64
	err = s.db.QueryRowContext(ctx, statement, args...).Scan(&total)
	if err != nil {
		return 0, errors.Wrap(err, wrapMsg)
	}

	return total, nil
}

// CountUnreadNotificationsForTicket counts the user's unread feed entries
// that reference a single ticket.
func (s *Store) CountUnreadNotificationsForTicket(ctx context.Context, userID, ticketID string) (int64, error) {
	wrapMsg := "unable to count unread notifications for the ticket"

	// Build the statement to count the unread notifications.
	statement, args, err := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Select("count(*)").
		From("notifications").
		Where(sq.Eq{"user_id": userID}).
		Where(sq.Eq{"ticket_id": ticketID}).
		Where(sq.Eq{"seen": false}).
		ToSql()
	if err != nil {
		return 0, errors.Wrap(err, wrapMsg)
	}

	// Execute the statement.
	var total int64
	err = s.db.QueryRowContext(ctx, statement, args...).Scan(&total)
	if err != nil {
		return 0, errors.Wrap(err, wrapMsg)
	}

	return total, nil
}

// PruneNotificationsOlderThan deletes the user's feed entries older than the
// retention window and returns the number of entries removed. Pruning is the
// only way feed entries are ever deleted.
func (s *Store) PruneNotificationsOlderThan(ctx context.Context, userID string, days int) (int64, error) {
	wrapMsg := fmt.Sprintf("unable to prune the notifications for `%s`", userID)

	// Build the delete statement.
	statement, args, err := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Delete("notifications").
		Where(sq.Eq{"user_id": userID}).
		Where(sq.Expr("time_created < now() - make_interval(days => ?)", days)).
		ToSql()
	if err != nil {
		return 0, errors.Wrap(err, wrapMsg)
	}

	// Execute the delete statement.
	result, err := s.db.ExecContext(ctx, statement, args...)
	if err != nil {
		return 0, errors.Wrap(err, wrapMsg)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, wrapMsg)
	}

	return rowsAffected, nil
}
