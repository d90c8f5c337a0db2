package db

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/stagecrew/ticket-notifier/model"
)

// userColumns are the columns scanned into a model.User.
var userColumns = []string{"id", "name", "email", "role", "area"}

// scanUser scans a single user row.
func scanUser(row sq.RowScanner) (*model.User, error) {
	var user model.User
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.Role, &user.Area)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUser looks up a single user by ID. A missing user is reported as an
// error so that callers can decide whether the lookup was required.
func (s *Store) GetUser(ctx context.Context, userID string) (*model.User, error) {
	wrapMsg := fmt.Sprintf("unable to look up user `%s`", userID)

	// Build the query.
	statement, args, err := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Select(userColumns...).
		From("users").
		Where(sq.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	// Query the database.
	user, err := scanUser(s.db.QueryRowContext(ctx, statement, args...))
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	return user, nil
}

// listUsers runs a user query and collects the rows, skipping users without
// an email address on file.
func (s *Store) listUsers(ctx context.Context, wrapMsg, statement string, args []interface{}) ([]*model.User, error) {
	rows, err := s.db.QueryContext(ctx, statement, args...)
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, errors.Wrap(err, wrapMsg)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	return users, nil
}

// ListAreaOperators returns the area staff of a single area that have an
// email address on file.
func (s *Store) ListAreaOperators(ctx context.Context, area string) ([]*model.User, error) {
	wrapMsg := fmt.Sprintf("unable to list the operators of area `%s`", area)

	// Build the query.
	statement, args, err := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Select(userColumns...).
		From("users").
		Where(sq.Eq{"area": area}).
		Where(sq.Like{"role": model.OperatorRolePrefix + "%"}).
		Where(sq.NotEq{"email": ""}).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	return s.listUsers(ctx, wrapMsg, statement, args)
}

// ListUsersByRole returns all users holding the given role that have an email
// address on file. It's used to find the managers responsible for approvals.
func (s *Store) ListUsersByRole(ctx context.Context, role string) ([]*model.User, error) {
	wrapMsg := fmt.Sprintf("unable to list users with role `%s`", role)

	// Build the query.
	statement, args, err := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Select(userColumns...).
		From("users").
		Where(sq.Eq{"role": role}).
		Where(sq.NotEq{"email": ""}).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	return s.listUsers(ctx, wrapMsg, statement, args)
}

// IsUserNotFound reports whether an error from GetUser indicates that the
// user simply doesn't exist.
func IsUserNotFound(err error) bool {
	return errors.Cause(err) == sql.ErrNoRows
}
