package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	credmodels "certledger/internal/credential/models"
	"certledger/internal/verification/models"
	dErrors "certledger/pkg/domain-errors"
	"certledger/pkg/platform/httputil"
	"certledger/pkg/requestcontext"
	"certledger/pkg/validation"
)

// Service is the verification surface used by the handlers.
type Service interface {
	Verify(ctx context.Context, rawFingerprint string, caller requestcontext.Caller) (*models.VerificationResult, error)
	List(ctx context.Context, filter models.Filter) ([]*models.Attempt, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// RegisterPublic mounts the public verification route.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/verify/{fingerprint}", h.HandleVerify)
}

// RegisterHistory mounts the verification history route.
func (h *Handler) RegisterHistory(r chi.Router) {
	r.Get("/verifications", h.HandleList)
}

type VerifyResponse struct {
	Verified   bool                `json:"verified"`
	Status     string              `json:"status"`
	Credential *credmodels.Summary `json:"credential_summary,omitempty"`
	CrossCheck string              `json:"ledger_cross_check"`
	LocalOnly  bool                `json:"local_only"`
	CheckedAt  time.Time           `json:"checked_at"`
}

type AttemptResponse struct {
	ID              string    `json:"id"`
	Fingerprint     string    `json:"fingerprint"`
	Result          string    `json:"result"`
	CrossCheck      string    `json:"ledger_cross_check"`
	LocalOnly       bool      `json:"local_only"`
	CallerSubject   string    `json:"caller_subject,omitempty"`
	SourceIP        string    `json:"source_ip_prefix,omitempty"`
	UserAgentFamily string    `json:"user_agent_family,omitempty"`
	RequestID       string    `json:"request_id,omitempty"`
	CheckedAt       time.Time `json:"checked_at"`
}

type ListResponse struct {
	Attempts []AttemptResponse `json:"attempts"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

// HandleVerify handles GET /verify/{fingerprint}. The caller is optional.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	raw := chi.URLParam(r, "fingerprint")

	result, err := h.service.Verify(ctx, raw, requestcontext.CallerFrom(ctx))
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeInvalidInput) {
			h.logger.ErrorContext(ctx, "verification failed",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, VerifyResponse{
		Verified:   result.Verified,
		Status:     string(result.Status),
		Credential: result.Credential,
		CrossCheck: string(result.CrossCheck),
		LocalOnly:  result.LocalOnly,
		CheckedAt:  result.CheckedAt,
	})
}

// HandleList handles GET /verifications.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	normalized, err := filter.Normalize()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	attempts, err := h.service.List(ctx, normalized)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list verification attempts",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	res := ListResponse{Attempts: make([]AttemptResponse, 0, len(attempts)), Limit: normalized.Limit, Offset: normalized.Offset}
	for _, a := range attempts {
		res.Attempts = append(res.Attempts, AttemptResponse{
			ID:              a.ID.String(),
			Fingerprint:     a.Fingerprint,
			Result:          string(a.Result),
			CrossCheck:      string(a.CrossCheck),
			LocalOnly:       a.LocalOnly,
			CallerSubject:   a.CallerSubject,
			SourceIP:        a.SourceIP,
			UserAgentFamily: a.UserAgentFamily,
			RequestID:       a.RequestID,
			CheckedAt:       a.CheckedAt,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func parseFilter(q url.Values) (models.Filter, error) {
	f := models.Filter{
		Fingerprint: q.Get("fingerprint"),
		Result:      models.Result(q.Get("result")),
	}
	var err error
	if f.From, err = parseTime(q.Get("from"), "from"); err != nil {
		return f, err
	}
	if f.To, err = parseTime(q.Get("to"), "to"); err != nil {
		return f, err
	}
	if f.Limit, err = parseInt(q.Get("limit"), "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = parseInt(q.Get("offset"), "offset"); err != nil {
		return f, err
	}
	return f, nil
}

// parseTime accepts RFC 3339 timestamps or plain dates (midnight UTC).
func parseTime(value, name string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		t = t.UTC()
		return &t, nil
	}
	if t, err := time.ParseInLocation(validation.DateLayout, value, time.UTC); err == nil {
		return &t, nil
	}
	return nil, dErrors.New(dErrors.CodeBadRequest, name+" must be an RFC 3339 timestamp or a YYYY-MM-DD date")
}

func parseInt(value, name string) (int, error) {
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeBadRequest, name+" must be an integer")
	}
	return n, nil
}
