package db

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/stagecrew/ticket-notifier/model"
)

// GetProject looks up a single project by ID. The project supplies the
// standing stakeholders (producer and consultant) plus template data, so a
// missing project aborts notification processing entirely.
func (s *Store) GetProject(ctx context.Context, projectID string) (*model.Project, error) {
	wrapMsg := fmt.Sprintf("unable to look up project `%s`", projectID)

	// Build the query.
	statement, args, err := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Select("id", "name", "producer_id", "consultant_id", "manager_id").
		From("projects").
		Where(sq.Eq{"id": projectID}).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	// Query the database. Nullable stakeholder references scan through
	// sql.NullString so that unset stakeholders come back as empty IDs.
	var project model.Project
	var producerID, consultantID, managerID sql.NullString
	row := s.db.QueryRowContext(ctx, statement, args...)
	err = row.Scan(&project.ID, &project.Name, &producerID, &consultantID, &managerID)
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}
	project.ProducerID = producerID.String
	project.ConsultantID = consultantID.String
	project.ManagerID = managerID.String

	return &project, nil
}

// IsProjectNotFound reports whether an error from GetProject indicates that
// the project doesn't exist.
func IsProjectNotFound(err error) bool {
	return errors.Cause(err) == sql.ErrNoRows
}
