package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"certledger/internal/credential/models"
	"certledger/pkg/platform/sentinel"
	"certledger/pkg/validation"
)

// PostgresStore persists credentials in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed credential store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const credentialColumns = `
	fingerprint, issuer_id, title, category, issuer_name, issue_date, distinction,
	serial_number, holder_name, holder_birth_date, holder_contact, status,
	tx_reference, anchored_at, pending_since, failure_reason, verification_url, created_at`

func (s *PostgresStore) Create(ctx context.Context, c *models.Credential) error {
	if c == nil {
		return fmt.Errorf("credential is required")
	}
	issued, err := c.Fields.IssueTime()
	if err != nil {
		return fmt.Errorf("create credential: %w", err)
	}
	born, err := c.Fields.HolderBirthTime()
	if err != nil {
		return fmt.Errorf("create credential: %w", err)
	}
	query := `
		INSERT INTO credentials (` + credentialColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err = s.db.ExecContext(ctx, query,
		c.Fingerprint.String(),
		c.Fields.IssuerID,
		c.Fields.Title,
		c.Fields.Category,
		c.Fields.IssuerName,
		issued,
		c.Fields.Distinction,
		c.Fields.SerialNumber,
		c.Fields.HolderName,
		born,
		c.Fields.HolderContact,
		string(c.Status),
		nullString(c.TxReference),
		c.AnchoredAt,
		c.PendingSince,
		nullString(c.FailureReason),
		c.VerificationURL,
		c.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyExists
		}
		return fmt.Errorf("create credential: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, fp models.Fingerprint) (*models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE fingerprint = $1`
	c, err := scanCredential(s.db.QueryRowContext(ctx, query, fp.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find credential: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) MarkPending(ctx context.Context, fp models.Fingerprint, at time.Time) (*models.Credential, error) {
	query := `
		UPDATE credentials
		SET status = 'pending', pending_since = $2, failure_reason = NULL, tx_reference = NULL
		WHERE fingerprint = $1 AND status IN ('unanchored', 'failed')
		RETURNING ` + credentialColumns
	return s.compareAndSet(ctx, fp, models.StatusPending, query, fp.String(), at)
}

func (s *PostgresStore) RecordSubmission(ctx context.Context, fp models.Fingerprint, txRef string) error {
	query := `
		UPDATE credentials
		SET tx_reference = $2
		WHERE fingerprint = $1 AND status = 'pending'
		RETURNING ` + credentialColumns
	_, err := s.compareAndSet(ctx, fp, models.StatusPending, query, fp.String(), txRef)
	return err
}

func (s *PostgresStore) MarkAnchored(ctx context.Context, fp models.Fingerprint, txRef string, at time.Time) (*models.Credential, error) {
	query := `
		UPDATE credentials
		SET status = 'anchored', tx_reference = $2, anchored_at = $3, pending_since = NULL
		WHERE fingerprint = $1 AND status = 'pending'
		RETURNING ` + credentialColumns
	return s.compareAndSet(ctx, fp, models.StatusAnchored, query, fp.String(), txRef, at)
}

func (s *PostgresStore) MarkFailed(ctx context.Context, fp models.Fingerprint, reason string) (*models.Credential, error) {
	query := `
		UPDATE credentials
		SET status = 'failed', failure_reason = $2, pending_since = NULL
		WHERE fingerprint = $1 AND status = 'pending'
		RETURNING ` + credentialColumns
	return s.compareAndSet(ctx, fp, models.StatusFailed, query, fp.String(), reason)
}

func (s *PostgresStore) Delete(ctx context.Context, fp models.Fingerprint) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM credentials WHERE fingerprint = $1 AND status = 'unanchored'`, fp.String())
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete credential rows: %w", err)
	}
	if rows > 0 {
		return nil
	}
	current, err := s.Get(ctx, fp)
	if err != nil {
		return err
	}
	return &TransitionError{From: current.Status}
}

func (s *PostgresStore) ListPending(ctx context.Context, olderThan time.Time, limit int) ([]*models.Credential, error) {
	query := `
		SELECT ` + credentialColumns + `
		FROM credentials
		WHERE status = 'pending' AND pending_since < $1
		ORDER BY pending_since ASC
		LIMIT $2
	`
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, query, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending credentials: %w", err)
	}
	defer rows.Close()

	var out []*models.Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}
	return out, nil
}

// compareAndSet runs a guarded UPDATE ... RETURNING. When no row matches it
// reloads the credential to tell a missing fingerprint from a refused transition.
func (s *PostgresStore) compareAndSet(ctx context.Context, fp models.Fingerprint, next models.Status, query string, args ...any) (*models.Credential, error) {
	c, err := scanCredential(s.db.QueryRowContext(ctx, query, args...))
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update credential status: %w", err)
	}
	current, err := s.Get(ctx, fp)
	if err != nil {
		return nil, err
	}
	return nil, &TransitionError{From: current.Status, To: next}
}

type credentialRow interface {
	Scan(dest ...any) error
}

func scanCredential(row credentialRow) (*models.Credential, error) {
	var (
		c             models.Credential
		fp, status    string
		issued, born  time.Time
		txRef, reason sql.NullString
		anchoredAt    sql.NullTime
		pendingSince  sql.NullTime
	)
	if err := row.Scan(
		&fp,
		&c.Fields.IssuerID,
		&c.Fields.Title,
		&c.Fields.Category,
		&c.Fields.IssuerName,
		&issued,
		&c.Fields.Distinction,
		&c.Fields.SerialNumber,
		&c.Fields.HolderName,
		&born,
		&c.Fields.HolderContact,
		&status,
		&txRef,
		&anchoredAt,
		&pendingSince,
		&reason,
		&c.VerificationURL,
		&c.CreatedAt,
	); err != nil {
		return nil, err
	}
	c.Fingerprint = models.Fingerprint(fp)
	c.Fields.IssueDate = issued.UTC().Format(validation.DateLayout)
	c.Fields.HolderBirthDate = born.UTC().Format(validation.DateLayout)
	c.Status = models.Status(status)
	c.TxReference = txRef.String
	c.FailureReason = reason.String
	if anchoredAt.Valid {
		t := anchoredAt.Time
		c.AnchoredAt = &t
	}
	if pendingSince.Valid {
		t := pendingSince.Time
		c.PendingSince = &t
	}
	return &c, nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
