package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"certledger/internal/ledger"
	"certledger/internal/ledger/mocks"
	dErrors "certledger/pkg/domain-errors"
)

const txRef = "0x8f2a55949038a9610f50fb23b5883af3b4ecb3c3bb792cbcefbd1542c692be63"

type HandlerSuite struct {
	suite.Suite
	ctrl   *gomock.Controller
	client *mocks.MockClient
	router chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.client = mocks.NewMockClient(s.ctrl)
	s.router = chi.NewRouter()
	New(s.client, slog.New(slog.DiscardHandler)).Register(s.router)
}

func (s *HandlerSuite) get(ref string) (*httptest.ResponseRecorder, map[string]any) {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ledger/transactions/"+ref, nil))
	var body map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func (s *HandlerSuite) TestConfirmedTransaction() {
	blockTime := time.Date(2024, 7, 2, 10, 0, 0, 0, time.UTC)
	price, _ := new(big.Int).SetString("2000000000", 10)
	s.client.EXPECT().ReadTransaction(gomock.Any(), txRef).Return(ledger.PresentTransaction(ledger.TransactionDetails{
		Reference:   txRef,
		From:        "0x71C7656EC7ab88b098defB751B7401B5f6d8976F",
		To:          "0x5FbDB2315678afecb367f032d93F642f64180aa3",
		Value:       big.NewInt(0),
		GasLimit:    180000,
		GasPrice:    price,
		GasUsed:     150000,
		BlockNumber: 101,
		BlockTime:   &blockTime,
		Status:      ledger.TxConfirmed,
	}), nil)

	w, body := s.get(txRef)

	s.Equal(http.StatusOK, w.Code)
	s.Equal("confirmed", body["status"])
	s.Equal("2000000000", body["gas_price_wei"])
	s.Equal("0", body["value_wei"])
	s.EqualValues(101, body["block_number"])
	s.Equal("2024-07-02T10:00:00Z", body["block_time"])
}

func (s *HandlerSuite) TestPendingTransactionOmitsBlock() {
	s.client.EXPECT().ReadTransaction(gomock.Any(), txRef).Return(ledger.PresentTransaction(ledger.TransactionDetails{
		Reference: txRef,
		Status:    ledger.TxPending,
	}), nil)

	w, body := s.get(txRef)

	s.Equal(http.StatusOK, w.Code)
	s.Equal("pending", body["status"])
	s.NotContains(body, "block_number")
	s.NotContains(body, "block_time")
	s.Equal("0", body["gas_price_wei"])
}

func (s *HandlerSuite) TestAbsentIsNotFound() {
	s.client.EXPECT().ReadTransaction(gomock.Any(), txRef).Return(ledger.AbsentTransaction(), nil)

	w, body := s.get(txRef)

	s.Equal(http.StatusNotFound, w.Code)
	s.Equal("not_found", body["error"])
}

func (s *HandlerSuite) TestErrors() {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"malformed", dErrors.New(dErrors.CodeMalformedReference, "tx reference must be 0x followed by 64 hex characters"), http.StatusBadRequest, "malformed_reference"},
		{"unavailable", dErrors.New(dErrors.CodeLedgerUnavailable, "node unreachable"), http.StatusServiceUnavailable, "ledger_unavailable"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.client.EXPECT().ReadTransaction(gomock.Any(), "0xabc").
				DoAndReturn(func(context.Context, string) (ledger.TransactionResult, error) {
					return ledger.TransactionResult{}, tc.err
				})

			w, body := s.get("0xabc")

			s.Equal(tc.status, w.Code)
			s.Equal(tc.code, body["error"])
		})
	}
}
