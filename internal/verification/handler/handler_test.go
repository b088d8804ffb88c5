package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	credmodels "certledger/internal/credential/models"
	credstore "certledger/internal/credential/store"
	"certledger/internal/ledger"
	"certledger/internal/ledger/mocks"
	"certledger/internal/verification/models"
	"certledger/internal/verification/service"
	"certledger/internal/verification/store"
	"certledger/pkg/requestcontext"
	"certledger/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	ledger      *mocks.MockClient
	credentials *credstore.InMemoryStore
	history     *store.InMemoryStore
	router      chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ledger = mocks.NewMockClient(gomock.NewController(s.T()))
	s.credentials = credstore.NewInMemory()
	s.history = store.NewInMemory()
	logger := slog.New(slog.DiscardHandler)
	h := New(service.New(s.credentials, s.ledger, s.history, logger), logger)

	s.router = chi.NewRouter()
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sub := r.Header.Get("X-Test-Caller"); sub != "" {
				r = r.WithContext(requestcontext.WithCaller(r.Context(), requestcontext.Caller{Subject: sub}))
			}
			next.ServeHTTP(w, r)
		})
	})
	h.RegisterPublic(s.router)
	h.RegisterHistory(s.router)
}

func (s *HandlerSuite) get(path string, caller string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if caller != "" {
		req.Header.Set("X-Test-Caller", caller)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	var body map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func (s *HandlerSuite) anchored() *credmodels.Credential {
	ctx := context.Background()
	c := testutil.NewTestCredential(testutil.NewTestFields(1))
	s.Require().NoError(s.credentials.Create(ctx, c))
	_, err := s.credentials.MarkPending(ctx, c.Fingerprint, time.Now())
	s.Require().NoError(err)
	anchored, err := s.credentials.MarkAnchored(ctx, c.Fingerprint, testutil.TestTxReference(1), time.Now().UTC())
	s.Require().NoError(err)
	return anchored
}

func (s *HandlerSuite) TestVerifyMatched() {
	c := s.anchored()
	f := c.Fields
	s.ledger.EXPECT().ReadAnchorRecord(gomock.Any(), c.Fingerprint).Return(ledger.PresentRecord(ledger.AnchorRecord{
		Title: f.Title, Category: f.Category, IssuerName: f.IssuerName, IssueDate: f.IssueDate,
		Distinction: f.Distinction, SerialNumber: f.SerialNumber, HolderName: f.HolderName,
		HolderBirthDate: f.HolderBirthDate, HolderContact: f.HolderContact,
	}), nil)

	w, body := s.get("/verify/"+c.Fingerprint.String(), "employer-1")

	s.Equal(http.StatusOK, w.Code)
	s.Equal(true, body["verified"])
	s.Equal("verified", body["status"])
	s.Equal("matched", body["ledger_cross_check"])
	s.Equal(false, body["local_only"])
	summary := body["credential_summary"].(map[string]any)
	s.Equal(f.HolderName, summary["holder_name"])
	s.NotContains(summary, "holder_contact")

	attempts, err := s.history.List(context.Background(), models.Filter{Limit: 10})
	s.Require().NoError(err)
	s.Require().Len(attempts, 1)
	s.Equal("employer-1", attempts[0].CallerSubject)
}

func (s *HandlerSuite) TestVerifyMalformed() {
	w, body := s.get("/verify/not-a-real-hash", "")

	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("bad_request", body["error"])
	s.Equal(1, s.history.Len())
}

func (s *HandlerSuite) TestVerifyUnknown() {
	fp := testutil.NewTestCredential(testutil.NewTestFields(9)).Fingerprint
	w, body := s.get("/verify/"+fp.String(), "")

	s.Equal(http.StatusOK, w.Code)
	s.Equal(false, body["verified"])
	s.Equal("not_found", body["status"])
	s.Equal("not_applicable", body["ledger_cross_check"])
	s.NotContains(body, "credential_summary")
}

func (s *HandlerSuite) TestList() {
	s.get("/verify/bad-one", "")
	s.get("/verify/bad-two", "")

	w, body := s.get("/verifications?result=invalid_format&limit=1", "")

	s.Equal(http.StatusOK, w.Code)
	s.EqualValues(1, body["limit"])
	attempts := body["attempts"].([]any)
	s.Require().Len(attempts, 1)
	s.Equal("bad-two", attempts[0].(map[string]any)["fingerprint"])
}

func (s *HandlerSuite) TestListRejectsBadQuery() {
	tests := map[string]string{
		"bad limit":      "/verifications?limit=ten",
		"bad from":       "/verifications?from=yesterday",
		"unknown result": "/verifications?result=maybe",
		"inverted range": "/verifications?from=2024-07-02&to=2024-07-01",
	}
	for name, path := range tests {
		s.Run(name, func() {
			w, body := s.get(path, "")
			s.Equal(http.StatusBadRequest, w.Code)
			s.Equal("bad_request", body["error"])
		})
	}
}
