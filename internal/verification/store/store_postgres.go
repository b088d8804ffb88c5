package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"certledger/internal/verification/models"
	"certledger/pkg/platform/sentinel"
)

// PostgresStore persists verification attempts in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const attemptColumns = `
	id, fingerprint, result, ledger_cross_check, local_only, caller_subject,
	source_ip, user_agent, user_agent_family, request_id, checked_at`

func (s *PostgresStore) Append(ctx context.Context, a *models.Attempt) error {
	if a == nil {
		return fmt.Errorf("attempt is required")
	}
	query := `INSERT INTO verification_attempts (` + attemptColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := s.db.ExecContext(ctx, query,
		a.ID,
		a.Fingerprint,
		string(a.Result),
		string(a.CrossCheck),
		a.LocalOnly,
		nullString(a.CallerSubject),
		nullString(a.SourceIP),
		nullString(a.UserAgent),
		nullString(a.UserAgentFamily),
		nullString(a.RequestID),
		a.CheckedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrAlreadyExists
		}
		return fmt.Errorf("append verification attempt: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, filter models.Filter) ([]*models.Attempt, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.Fingerprint != "" {
		add("fingerprint = $%d", filter.Fingerprint)
	}
	if filter.Result != "" {
		add("result = $%d", string(filter.Result))
	}
	if filter.From != nil {
		add("checked_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("checked_at < $%d", *filter.To)
	}

	query := `SELECT ` + attemptColumns + ` FROM verification_attempts`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(` ORDER BY checked_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list verification attempts: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Attempt, 0)
	for rows.Next() {
		var (
			a                                     models.Attempt
			result, crossCheck                    string
			caller, ip, agent, agentFamily, reqID sql.NullString
		)
		if err := rows.Scan(
			&a.ID,
			&a.Fingerprint,
			&result,
			&crossCheck,
			&a.LocalOnly,
			&caller,
			&ip,
			&agent,
			&agentFamily,
			&reqID,
			&a.CheckedAt,
		); err != nil {
			return nil, fmt.Errorf("scan verification attempt: %w", err)
		}
		a.Result = models.Result(result)
		a.CrossCheck = models.CrossCheck(crossCheck)
		a.CallerSubject = caller.String
		a.SourceIP = ip.String
		a.UserAgent = agent.String
		a.UserAgentFamily = agentFamily.String
		a.RequestID = reqID.String
		a.CheckedAt = a.CheckedAt.UTC()
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list verification attempts: %w", err)
	}
	return out, nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
