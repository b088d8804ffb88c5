package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"certledger/internal/credential/models"
	"certledger/internal/credential/service"
	"certledger/internal/ledger"
	dErrors "certledger/pkg/domain-errors"
	"certledger/pkg/platform/httputil"
	"certledger/pkg/platform/middleware/admin"
	"certledger/pkg/requestcontext"
)

// Service is the credential service surface used by the HTTP handlers.
type Service interface {
	Issue(ctx context.Context, req models.IssueRequest) (*models.Credential, error)
	Get(ctx context.Context, fp models.Fingerprint) (*models.Credential, error)
	Delete(ctx context.Context, fp models.Fingerprint) error
	EstimateAnchorCost(ctx context.Context, fp models.Fingerprint) (*ledger.CostEstimate, error)
	Anchor(ctx context.Context, fp models.Fingerprint) (*models.AnchorResult, error)
	Reconcile(ctx context.Context, fp models.Fingerprint) (*models.Credential, service.ReconcileOutcome, error)
}

// Handler serves the issuer-facing credential routes.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// Register mounts the issuer routes. The router must already require an
// authenticated caller.
func (h *Handler) Register(r chi.Router) {
	r.Post("/credentials", h.HandleIssue)
	r.Get("/credentials/{fingerprint}", h.HandleGet)
	r.Delete("/credentials/{fingerprint}", h.HandleDelete)
	r.Get("/credentials/{fingerprint}/anchor/estimate", h.HandleEstimate)
	r.Post("/credentials/{fingerprint}/anchor", h.HandleAnchor)
}

// RegisterAdmin mounts the operator routes behind the admin token.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/credentials/{fingerprint}/reconcile", h.HandleReconcile)
}

// HandleIssue handles POST /credentials.
func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, err := httputil.RequireCaller(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[IssueCredentialRequest](w, r, h.logger)
	if !ok {
		return
	}

	credential, err := h.service.Issue(ctx, req.toModel(caller.Subject))
	if err != nil {
		h.logFailure(ctx, "issue credential", "", err)
		httputil.WriteError(w, err)
		return
	}
	w.Header().Set("Location", "/credentials/"+credential.Fingerprint.String())
	httputil.WriteJSON(w, http.StatusCreated, toCredentialResponse(credential))
}

// HandleGet handles GET /credentials/{fingerprint}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	credential, ok := h.ownedCredential(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCredentialResponse(credential))
}

// HandleDelete handles DELETE /credentials/{fingerprint}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	credential, ok := h.ownedCredential(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), credential.Fingerprint); err != nil {
		h.logFailure(r.Context(), "delete credential", credential.Fingerprint, err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleEstimate handles GET /credentials/{fingerprint}/anchor/estimate.
func (h *Handler) HandleEstimate(w http.ResponseWriter, r *http.Request) {
	credential, ok := h.ownedCredential(w, r)
	if !ok {
		return
	}
	estimate, err := h.service.EstimateAnchorCost(r.Context(), credential.Fingerprint)
	if err != nil {
		h.logFailure(r.Context(), "estimate anchor cost", credential.Fingerprint, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toEstimateResponse(credential.Fingerprint, estimate))
}

// HandleAnchor handles POST /credentials/{fingerprint}/anchor. A submitted
// transaction whose receipt was not observed answers 202.
func (h *Handler) HandleAnchor(w http.ResponseWriter, r *http.Request) {
	credential, ok := h.ownedCredential(w, r)
	if !ok {
		return
	}
	result, err := h.service.Anchor(r.Context(), credential.Fingerprint)
	if err != nil {
		h.logFailure(r.Context(), "anchor credential", credential.Fingerprint, err)
		httputil.WriteError(w, err)
		return
	}

	status := http.StatusOK
	if result.Pending {
		status = http.StatusAccepted
	}
	httputil.WriteJSON(w, status, AnchorResponse{
		Credential:  toCredentialResponse(&result.Credential),
		BlockNumber: result.BlockNumber,
		GasUsed:     result.GasUsed,
		Pending:     result.Pending,
	})
}

// HandleReconcile handles POST /admin/credentials/{fingerprint}/reconcile.
func (h *Handler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fp, err := models.ParseFingerprint(chi.URLParam(r, "fingerprint"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	credential, outcome, err := h.service.Reconcile(ctx, fp)
	if err != nil {
		h.logFailure(ctx, "reconcile credential", fp, err)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "manual reconcile",
		"fingerprint", fp.Short(),
		"outcome", outcome,
		"actor_id", admin.ActorID(ctx),
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteJSON(w, http.StatusOK, ReconcileResponse{
		Outcome:    string(outcome),
		Credential: toCredentialResponse(credential),
	})
}

// ownedCredential resolves the path fingerprint to a credential issued by the
// caller. Credentials of other issuers are reported as not found.
func (h *Handler) ownedCredential(w http.ResponseWriter, r *http.Request) (*models.Credential, bool) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, err := httputil.RequireCaller(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return nil, false
	}
	fp, err := models.ParseFingerprint(chi.URLParam(r, "fingerprint"))
	if err != nil {
		httputil.WriteError(w, err)
		return nil, false
	}
	credential, err := h.service.Get(ctx, fp)
	if err != nil {
		h.logFailure(ctx, "load credential", fp, err)
		httputil.WriteError(w, err)
		return nil, false
	}
	if credential.Fields.IssuerID != caller.Subject {
		h.logger.WarnContext(ctx, "issuer requested a credential it does not own",
			"fingerprint", fp.Short(),
			"caller", caller.Subject,
			"request_id", requestID,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "credential not found"))
		return nil, false
	}
	return credential, true
}

// logFailure logs server-side failures. Client errors are answered without
// an error log.
func (h *Handler) logFailure(ctx context.Context, op string, fp models.Fingerprint, err error) {
	if httputil.StatusOf(dErrors.CodeOf(err)) < http.StatusInternalServerError {
		return
	}
	h.logger.ErrorContext(ctx, op+" failed",
		"fingerprint", fp.Short(),
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
}
