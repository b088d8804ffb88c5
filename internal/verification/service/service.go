// Package service answers "is this a credential we issued, and does the
// ledger agree?" and records every question asked.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"certledger/internal/credential/fingerprint"
	credmodels "certledger/internal/credential/models"
	"certledger/internal/ledger"
	"certledger/internal/platform/metrics"
	"certledger/internal/platform/tracer"
	"certledger/internal/verification/models"
	dErrors "certledger/pkg/domain-errors"
	"certledger/pkg/platform/circuit"
	"certledger/pkg/platform/middleware/requesttime"
	"certledger/pkg/platform/privacy"
	"certledger/pkg/platform/sentinel"
	"certledger/pkg/requestcontext"
)

// CredentialReader looks up local credentials. It follows the credential
// store error contract.
type CredentialReader interface {
	Get(ctx context.Context, fp credmodels.Fingerprint) (*credmodels.Credential, error)
}

// RecordReader reads anchor records from the ledger.
type RecordReader interface {
	ReadAnchorRecord(ctx context.Context, fp credmodels.Fingerprint) (ledger.AnchorRecordResult, error)
}

// HistoryStore is the verification attempt log.
type HistoryStore interface {
	Append(ctx context.Context, attempt *models.Attempt) error
	List(ctx context.Context, filter models.Filter) ([]*models.Attempt, error)
}

type Option func(*Service)

// WithBreaker skips ledger reads while the breaker is open.
func WithBreaker(b *circuit.Breaker) Option {
	return func(s *Service) {
		s.breaker = b
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithLedgerTimeout bounds the cross-check read.
func WithLedgerTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.ledgerTimeout = d
		}
	}
}

// Service verifies credentials. It never modifies credentials or the ledger;
// its only write is one history append per Verify call.
type Service struct {
	credentials   CredentialReader
	ledger        RecordReader
	history       HistoryStore
	breaker       *circuit.Breaker
	metrics       *metrics.Metrics
	tracer        tracer.Tracer
	logger        *slog.Logger
	ledgerTimeout time.Duration
}

func New(credentials CredentialReader, ledgerReader RecordReader, history HistoryStore, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		credentials:   credentials,
		ledger:        ledgerReader,
		history:       history,
		tracer:        tracer.NewNoop(),
		logger:        logger,
		ledgerTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Verify checks rawFingerprint against the local record and, for anchored
// credentials, against the ledger. Only a malformed fingerprint (InvalidInput)
// or a failing credential store (PersistenceError) yields an error; a ledger
// outage degrades the answer to local-only. Every call records one attempt.
func (s *Service) Verify(ctx context.Context, rawFingerprint string, caller requestcontext.Caller) (*models.VerificationResult, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveVerificationLatency(time.Since(start).Seconds())
	}()
	checkedAt := requesttime.Now(ctx)

	fp, err := credmodels.ParseFingerprint(rawFingerprint)
	if err != nil {
		s.record(ctx, caller, models.Attempt{
			Fingerprint: storable(rawFingerprint, models.MaxRecordedFingerprintLength),
			Result:      models.ResultInvalidFormat,
			CrossCheck:  models.CrossCheckNotApplicable,
			CheckedAt:   checkedAt,
		})
		return nil, err
	}

	credential, err := s.credentials.Get(ctx, fp)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) && !dErrors.HasCode(err, dErrors.CodeNotFound) {
			s.logger.ErrorContext(ctx, "credential lookup failed during verification",
				"fingerprint", fp.Short(),
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
			s.record(ctx, caller, models.Attempt{
				Fingerprint: fp.String(),
				Result:      models.ResultLookupFailed,
				CrossCheck:  models.CrossCheckNotApplicable,
				CheckedAt:   checkedAt,
			})
			return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to look up credential")
		}
		s.record(ctx, caller, models.Attempt{
			Fingerprint: fp.String(),
			Result:      models.ResultNotFound,
			CrossCheck:  models.CrossCheckNotApplicable,
			CheckedAt:   checkedAt,
		})
		return &models.VerificationResult{
			Status:     models.StatusNotFound,
			CrossCheck: models.CrossCheckNotApplicable,
			CheckedAt:  checkedAt,
		}, nil
	}

	summary := credential.Summary()
	if !credential.IsAnchored() {
		// Known but not anchored: no ledger read. The history row records
		// that no cross-check was possible.
		s.record(ctx, caller, models.Attempt{
			Fingerprint: fp.String(),
			Result:      models.ResultInvalid,
			CrossCheck:  models.CrossCheckUnavailable,
			CheckedAt:   checkedAt,
		})
		return &models.VerificationResult{
			Status:     models.StatusNotAnchored,
			Credential: &summary,
			CrossCheck: models.CrossCheckNotApplicable,
			CheckedAt:  checkedAt,
		}, nil
	}

	result := &models.VerificationResult{Credential: &summary, CheckedAt: checkedAt}
	attempt := models.Attempt{Fingerprint: fp.String(), CheckedAt: checkedAt}

	switch s.crossCheck(ctx, credential) {
	case models.CrossCheckMatched:
		result.Verified, result.Status, result.CrossCheck = true, models.StatusVerified, models.CrossCheckMatched
		attempt.Result, attempt.CrossCheck = models.ResultValid, models.CrossCheckMatched
	case models.CrossCheckMismatched:
		result.Status, result.CrossCheck = models.StatusMismatched, models.CrossCheckMismatched
		attempt.Result, attempt.CrossCheck = models.ResultInvalid, models.CrossCheckMismatched
		s.logger.WarnContext(ctx, "ledger record does not match local credential",
			"fingerprint", fp.Short(),
			"tx_reference", credential.TxReference,
			"request_id", requestcontext.RequestID(ctx),
		)
	default:
		result.Verified, result.Status, result.CrossCheck = true, models.StatusVerifiedLocalOnly, models.CrossCheckUnavailable
		result.LocalOnly = true
		attempt.Result, attempt.CrossCheck, attempt.LocalOnly = models.ResultValid, models.CrossCheckUnavailable, true
	}
	s.record(ctx, caller, attempt)
	return result, nil
}

// crossCheck compares the ledger's copy of an anchored credential with the
// local one by recomputing the fingerprint from the ledger fields. An absent
// record counts as a mismatch.
func (s *Service) crossCheck(ctx context.Context, c *credmodels.Credential) (outcome models.CrossCheck) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanCrossCheck, tracer.String(tracer.AttrFingerprint, c.Fingerprint.String()))
	defer func() {
		span.SetAttributes(tracer.String(tracer.AttrCrossCheck, string(outcome)))
		span.End(nil)
	}()

	if s.breaker != nil && !s.breaker.Allow() {
		span.AddEvent(tracer.EventCircuitOpen)
		return models.CrossCheckUnavailable
	}

	lctx, cancel := context.WithTimeout(ctx, s.ledgerTimeout)
	defer cancel()
	read, err := s.ledger.ReadAnchorRecord(lctx, c.Fingerprint)
	if err != nil {
		s.recordLedgerFailure(ctx)
		s.logger.WarnContext(ctx, "ledger cross-check unavailable, answering from local record",
			"fingerprint", c.Fingerprint.Short(),
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return models.CrossCheckUnavailable
	}
	s.recordLedgerSuccess(ctx)

	record, ok := read.Record()
	if !ok {
		return models.CrossCheckMismatched
	}
	if !fingerprint.Matches(c.Fingerprint, record.Fields(c.Fields.IssuerID)) {
		return models.CrossCheckMismatched
	}
	return models.CrossCheckMatched
}

func (s *Service) recordLedgerFailure(ctx context.Context) {
	if s.breaker == nil {
		return
	}
	if s.breaker.Failure() {
		s.logger.WarnContext(ctx, "ledger circuit opened", "breaker", s.breaker.Name())
	}
}

func (s *Service) recordLedgerSuccess(ctx context.Context) {
	if s.breaker == nil {
		return
	}
	if s.breaker.Success() {
		s.logger.InfoContext(ctx, "ledger circuit closed", "breaker", s.breaker.Name())
	}
}

// record appends the attempt. A failed append is logged and counted; it
// never changes the verification answer.
func (s *Service) record(ctx context.Context, caller requestcontext.Caller, attempt models.Attempt) {
	agent := storable(requestcontext.UserAgent(ctx), maxUserAgentLength)
	attempt.ID = uuid.New()
	attempt.CallerSubject = storable(caller.Subject, maxSubjectLength)
	attempt.SourceIP = privacy.AnonymizeIP(requestcontext.ClientIP(ctx))
	attempt.UserAgent = agent
	attempt.UserAgentFamily = summarizeAgent(agent)
	attempt.RequestID = requestcontext.RequestID(ctx)

	s.metrics.IncrementVerificationAttempt(string(attempt.Result), string(attempt.CrossCheck))
	if err := s.history.Append(context.WithoutCancel(ctx), &attempt); err != nil {
		s.metrics.IncrementAttemptAppendFailures()
		s.logger.ErrorContext(ctx, "failed to append verification attempt",
			"result", attempt.Result,
			"cross_check", attempt.CrossCheck,
			"request_id", attempt.RequestID,
			"error", err,
		)
	}
}

// List returns recorded attempts matching filter, newest first.
func (s *Service) List(ctx context.Context, filter models.Filter) ([]*models.Attempt, error) {
	filter, err := filter.Normalize()
	if err != nil {
		return nil, err
	}
	attempts, err := s.history.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to list verification attempts")
	}
	return attempts, nil
}
