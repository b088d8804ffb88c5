package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"certledger/internal/ledger"
	dErrors "certledger/pkg/domain-errors"
	"certledger/pkg/platform/httputil"
	"certledger/pkg/requestcontext"
)

// TransactionReader looks up ledger transactions by reference.
type TransactionReader interface {
	ReadTransaction(ctx context.Context, txReference string) (ledger.TransactionResult, error)
}

// Handler exposes read-only ledger lookups.
type Handler struct {
	reader TransactionReader
	logger *slog.Logger
}

func New(reader TransactionReader, logger *slog.Logger) *Handler {
	return &Handler{reader: reader, logger: logger}
}

// Register mounts the ledger routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/ledger/transactions/{txReference}", h.HandleGetTransaction)
}

// TransactionResponse renders wei amounts as decimal strings so clients never
// lose precision.
type TransactionResponse struct {
	Reference   string  `json:"tx_reference"`
	Status      string  `json:"status"`
	From        string  `json:"from"`
	To          string  `json:"to,omitempty"`
	Value       string  `json:"value_wei"`
	GasLimit    uint64  `json:"gas_limit"`
	GasPrice    string  `json:"gas_price_wei"`
	GasUsed     uint64  `json:"gas_used,omitempty"`
	BlockNumber uint64  `json:"block_number,omitempty"`
	BlockTime   *string `json:"block_time,omitempty"`
}

func toResponse(d ledger.TransactionDetails) TransactionResponse {
	res := TransactionResponse{
		Reference:   d.Reference,
		Status:      string(d.Status),
		From:        d.From,
		To:          d.To,
		Value:       weiString(d.Value),
		GasLimit:    d.GasLimit,
		GasPrice:    weiString(d.GasPrice),
		GasUsed:     d.GasUsed,
		BlockNumber: d.BlockNumber,
	}
	if d.BlockTime != nil {
		t := d.BlockTime.UTC().Format(time.RFC3339)
		res.BlockTime = &t
	}
	return res
}

func weiString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// HandleGetTransaction handles GET /ledger/transactions/{txReference}.
func (h *Handler) HandleGetTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	ref := chi.URLParam(r, "txReference")

	result, err := h.reader.ReadTransaction(ctx, ref)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeMalformedReference) {
			h.logger.ErrorContext(ctx, "ledger transaction lookup failed",
				"request_id", requestID,
				"tx_reference", ref,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	details, ok := result.Details()
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "transaction not found"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(details))
}
