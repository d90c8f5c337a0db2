package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"

	sq "github.com/Masterminds/squirrel"
)

// AddNotificationType adds a notification type to the `notification_types`
// table, returning the ID assigned to it.
func AddNotificationType(ctx context.Context, tx *sql.Tx, notificationType string) (string, error) {
	wrapMsg := fmt.Sprintf("unable to add `%s` to the notification types table", notificationType)

	// Build the query.
	statement, args, err := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Insert("notification_types").Columns("name").
		Values(notificationType).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return "", errors.Wrap(err, wrapMsg)
	}

	// Execute the statement.
	var id string
	row := tx.QueryRowContext(ctx, statement, args...)
	err = row.Scan(&id)
	if err != nil {
		return "", errors.Wrap(err, wrapMsg)
	}

	return id, nil
}

// GetNotificationTypeID obtains the ID of the notification type with the given
// name, adding the type to the `notification_types` table if necessary.
func GetNotificationTypeID(ctx context.Context, tx *sql.Tx, notificationType string) (string, error) {
	wrapMsg := fmt.Sprintf("unable to get the notification type ID for `%s`", notificationType)

	// Build the SQL query and arguments.
	query, args, err := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Select("id::text").
		From("notification_types").
		Where(sq.Eq{"name": notificationType}).
		ToSql()
	if err != nil {
		return "", errors.Wrap(err, wrapMsg)
	}

	// Query the database.
	var id string
	row := tx.QueryRowContext(ctx, query, args...)
	err = row.Scan(&id)

	// If the error is nil then we've got the ID already.
	if err == nil {
		return id, nil
	}

	// If the error is ErrNoRows then we need to add the notification type.
	if err == sql.ErrNoRows {
		return AddNotificationType(ctx, tx, notificationType)
	}

	// If we get here then all we can do is return the error.
	return "", errors.Wrap(err, wrapMsg)
}
