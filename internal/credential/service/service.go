// Package service orchestrates the issuing side of certledger: it issues
// credentials, anchors their fingerprints on the ledger and reconciles
// anchoring attempts whose outcome was not observed.
//
// The anchoring gate is the store's compare-and-set from unanchored (or
// failed) to pending. No lock is held while the ledger is called; a second
// request for the same fingerprint sees pending and is rejected before any
// remote call.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"certledger/internal/credential/events"
	"certledger/internal/credential/fingerprint"
	"certledger/internal/credential/models"
	"certledger/internal/credential/store"
	"certledger/internal/ledger"
	"certledger/internal/platform/metrics"
	dErrors "certledger/pkg/domain-errors"
	"certledger/pkg/platform/middleware/requesttime"
	"certledger/pkg/platform/sentinel"
	"certledger/pkg/requestcontext"
)

// Store persists credentials and their anchoring state.
// Error contract: see store.Store. The service translates store errors into
// domain errors exactly once.
type Store interface {
	Create(ctx context.Context, credential *models.Credential) error
	Get(ctx context.Context, fp models.Fingerprint) (*models.Credential, error)
	MarkPending(ctx context.Context, fp models.Fingerprint, at time.Time) (*models.Credential, error)
	RecordSubmission(ctx context.Context, fp models.Fingerprint, txRef string) error
	MarkAnchored(ctx context.Context, fp models.Fingerprint, txRef string, at time.Time) (*models.Credential, error)
	MarkFailed(ctx context.Context, fp models.Fingerprint, reason string) (*models.Credential, error)
	Delete(ctx context.Context, fp models.Fingerprint) error
	ListPending(ctx context.Context, olderThan time.Time, limit int) ([]*models.Credential, error)
}

type Option func(*Service)

const (
	defaultLedgerTimeout  = 3 * time.Minute
	defaultPublishTimeout = 5 * time.Second
	defaultAbandonAfter   = 30 * time.Minute
	defaultPublicBaseURL  = "http://localhost:8080"

	reasonSubmissionNotObserved  = "submission not observed"
	reasonTransactionNotObserved = "transaction not observed"
	reasonTransactionReverted    = "transaction reverted"
)

// Service implements credential issuance and anchoring.
type Service struct {
	store          Store
	ledger         ledger.Client
	publisher      events.Publisher
	metrics        *metrics.Metrics
	logger         *slog.Logger
	publicBaseURL  string
	ledgerTimeout  time.Duration
	publishTimeout time.Duration
	abandonAfter   time.Duration
}

// New builds the service. The ledger client is constructed once at startup;
// pass ledger.NewUnavailable when the ledger is not configured.
func New(store Store, ledgerClient ledger.Client, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{
		store:          store,
		ledger:         ledgerClient,
		logger:         logger,
		publicBaseURL:  defaultPublicBaseURL,
		ledgerTimeout:  defaultLedgerTimeout,
		publishTimeout: defaultPublishTimeout,
		abandonAfter:   defaultAbandonAfter,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.publisher == nil {
		svc.publisher = events.NewLogPublisher(logger)
	}
	// An in-flight Anchor call must never look abandoned.
	if svc.abandonAfter <= svc.ledgerTimeout {
		svc.abandonAfter = 2 * svc.ledgerTimeout
	}
	return svc
}

// WithPublisher sets where credential events go. Defaults to the log.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithPublicBaseURL sets the base of verification payload URLs.
func WithPublicBaseURL(base string) Option {
	return func(s *Service) {
		if base = strings.TrimRight(strings.TrimSpace(base), "/"); base != "" {
			s.publicBaseURL = base
		}
	}
}

// WithLedgerTimeout bounds one anchoring call, including the receipt wait.
func WithLedgerTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.ledgerTimeout = d
		}
	}
}

// WithAbandonAfter sets how long a pending credential may go without an
// observable transaction before Reconcile marks it failed.
func WithAbandonAfter(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.abandonAfter = d
		}
	}
}

// VerificationURL is the payload encoded in a credential's QR code.
func (s *Service) VerificationURL(fp models.Fingerprint) string {
	return s.publicBaseURL + "/verify/" + fp.String()
}

// Issue validates and normalizes the fields, derives the fingerprint and
// persists a new unanchored credential.
func (s *Service) Issue(ctx context.Context, req models.IssueRequest) (*models.Credential, error) {
	fields, err := fingerprint.Normalize(req.Fields)
	if err != nil {
		return nil, err
	}
	fp, err := fingerprint.Compute(fields)
	if err != nil {
		return nil, err
	}

	credential := &models.Credential{
		Fingerprint:     fp,
		Fields:          fields,
		Status:          models.StatusUnanchored,
		VerificationURL: s.VerificationURL(fp),
		CreatedAt:       requesttime.Now(ctx),
	}
	if err := s.store.Create(ctx, credential); err != nil {
		return nil, translateStoreErr(err, "create credential")
	}

	s.metrics.IncrementCredentialsIssued()
	s.logger.InfoContext(ctx, "credential issued",
		"fingerprint", fp.Short(),
		"issuer_id", fields.IssuerID,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.publish(ctx, events.New(events.TypeCredentialIssued, *credential, credential.CreatedAt))
	return credential, nil
}

// Get returns the credential with fingerprint fp.
func (s *Service) Get(ctx context.Context, fp models.Fingerprint) (*models.Credential, error) {
	c, err := s.store.Get(ctx, fp)
	if err != nil {
		return nil, translateStoreErr(err, "get credential")
	}
	return c, nil
}

// Delete removes a credential that has never been submitted for anchoring.
func (s *Service) Delete(ctx context.Context, fp models.Fingerprint) error {
	if err := s.store.Delete(ctx, fp); err != nil {
		return translateStoreErr(err, "delete credential")
	}
	s.metrics.IncrementCredentialsDeleted()
	s.logger.InfoContext(ctx, "credential deleted",
		"fingerprint", fp.Short(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

// EstimateAnchorCost prices anchoring fp without submitting anything.
func (s *Service) EstimateAnchorCost(ctx context.Context, fp models.Fingerprint) (*ledger.CostEstimate, error) {
	c, err := s.Get(ctx, fp)
	if err != nil {
		return nil, err
	}
	if c.IsAnchored() {
		return nil, dErrors.New(dErrors.CodeAlreadyAnchored, "credential is already anchored")
	}
	return s.ledger.EstimateAnchorCost(ctx, fp, c.Fields)
}

// ReadTransaction looks up a ledger transaction.
func (s *Service) ReadTransaction(ctx context.Context, txReference string) (ledger.TransactionResult, error) {
	return s.ledger.ReadTransaction(ctx, txReference)
}

// ListPending exposes pending credentials to the reconciler.
func (s *Service) ListPending(ctx context.Context, olderThan time.Time, limit int) ([]*models.Credential, error) {
	pending, err := s.store.ListPending(ctx, olderThan, limit)
	if err != nil {
		return nil, translateStoreErr(err, "list pending credentials")
	}
	return pending, nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	event.RequestID = requestcontext.RequestID(ctx)
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pctx, event); err != nil {
		s.metrics.IncrementEventPublishFailed(string(event.Type))
		s.logger.WarnContext(ctx, "failed to publish credential event",
			"event_type", event.Type,
			"fingerprint", event.Fingerprint.Short(),
			"error", err,
		)
	}
}

// translateStoreErr maps store sentinels onto domain errors.
func translateStoreErr(err error, op string) error {
	var te *store.TransitionError
	if errors.As(err, &te) {
		return translateTransition(te, err)
	}
	switch {
	case errors.Is(err, sentinel.ErrAlreadyExists):
		return dErrors.Wrap(err, dErrors.CodeDuplicateFingerprint, "a credential with these fields already exists")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "credential not found")
	}
	return dErrors.Wrap(err, dErrors.CodePersistence, "failed to "+op)
}

func translateTransition(te *store.TransitionError, err error) error {
	switch {
	case te.To == "":
		return dErrors.Wrap(err, dErrors.CodeCannotDeleteAnchored,
			fmt.Sprintf("credential is %s; only unanchored credentials can be deleted", te.From))
	case te.From == models.StatusAnchored:
		return dErrors.Wrap(err, dErrors.CodeAlreadyAnchored, "credential is already anchored")
	case te.From == models.StatusPending:
		return dErrors.Wrap(err, dErrors.CodeAnchorInProgress, "anchoring is already in progress")
	default:
		return dErrors.Wrap(err, dErrors.CodeConflict,
			fmt.Sprintf("credential is %s and cannot move to %s", te.From, te.To))
	}
}
