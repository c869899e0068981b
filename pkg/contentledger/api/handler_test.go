package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/jwtauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/content-ledger/pkg/contentledger"
	"github.com/tendant/content-ledger/pkg/contentledger/repo/memory"
)

const testSecret = "test-secret"

type testServer struct {
	t       *testing.T
	router  http.Handler
	auth    *jwtauth.JWTAuth
	service contentledger.Service
}

func setupHandlerTest(t *testing.T) *testServer {
	service, err := contentledger.New(context.Background(),
		contentledger.WithRepository(memory.New()),
		contentledger.WithEventSink(contentledger.NewNoopEventSink()),
	)
	require.NoError(t, err)

	auth := NewJWTAuth(testSecret)
	return &testServer{
		t:       t,
		router:  NewHandler(service, auth).Routes(),
		auth:    auth,
		service: service,
	}
}

func (s *testServer) token(caller contentledger.Identity, extra map[string]interface{}) string {
	token, err := IssueToken(s.auth, caller, extra)
	require.NoError(s.t, err)
	return token
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHandler_SongScenario(t *testing.T) {
	s := setupHandlerTest(t)
	creatorToken := s.token("p1", nil)
	buyerToken := s.token("p2", nil)

	w := s.do(http.MethodPost, "/contents", creatorToken, RegisterContentRequest{Title: "Song A", ContentHash: "sha256:a", Price: 500})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	content := decode[contentledger.ContentRegistration](t, w)
	assert.Equal(t, contentledger.Identity("p1"), content.Creator)
	assert.Zero(t, content.TotalSales)

	w = s.do(http.MethodPost, "/contents/"+content.ID+"/payments", buyerToken, RecordPaymentRequest{TransactionHash: "tx-1", Amount: 500})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	payment := decode[contentledger.PaymentRecord](t, w)
	assert.Equal(t, contentledger.Identity("p2"), payment.Buyer)
	assert.Equal(t, contentledger.Identity("p1"), payment.Creator)

	w = s.do(http.MethodGet, "/contents/"+content.ID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	content = decode[contentledger.ContentRegistration](t, w)
	assert.Equal(t, uint64(1), content.TotalSales)
	assert.Equal(t, int64(500), content.TotalRevenue)

	w = s.do(http.MethodGet, "/buyers/p2/purchases/"+content.ID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[PurchaseResponse](t, w).Purchased)

	w = s.do(http.MethodPost, "/contents/"+content.ID+"/payments", buyerToken, RecordPaymentRequest{TransactionHash: "tx-1", Amount: 500})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "duplicate_transaction", decode[ErrorResponse](t, w).Kind)

	w = s.do(http.MethodPost, "/contents/"+content.ID+"/payments", buyerToken, RecordPaymentRequest{TransactionHash: "tx-2", Amount: 400})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "amount_mismatch", decode[ErrorResponse](t, w).Kind)

	w = s.do(http.MethodGet, "/stats", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, contentledger.Stats{ContentCount: 1, TotalRevenue: 500, PaymentCount: 1}, decode[contentledger.Stats](t, w))
}

func TestHandler_WritesRequireToken(t *testing.T) {
	s := setupHandlerTest(t)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
	}{
		{"register without token", http.MethodPost, "/contents", ""},
		{"pay without token", http.MethodPost, "/contents/x/payments", ""},
		{"status without token", http.MethodPut, "/contents/x/status", ""},
		{"bad signature", http.MethodPost, "/contents", func() string {
			tok, _ := IssueToken(NewJWTAuth("other-secret"), "p1", nil)
			return tok
		}()},
		{"no subject", http.MethodPost, "/contents", s.token("", nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(tt.method, tt.path, tt.token, RegisterContentRequest{Title: "x", Price: 1})
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}

	stats, err := s.service.GetStats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.ContentCount)
}

func TestHandler_BuyerComesFromToken(t *testing.T) {
	s := setupHandlerTest(t)
	content, err := s.service.RegisterContent(context.Background(), contentledger.RegisterContentRequest{Creator: "p1", Title: "Song", Price: 5})
	require.NoError(t, err)

	// A buyer field in the body is ignored
	body := map[string]interface{}{"transaction_hash": "tx-1", "amount": 5, "buyer": "p9"}
	w := s.do(http.MethodPost, "/contents/"+content.ID+"/payments", s.token("p2", nil), body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	purchased, err := s.service.HasPurchasedContent(context.Background(), "p2", content.ID)
	require.NoError(t, err)
	assert.True(t, purchased)

	purchased, err = s.service.HasPurchasedContent(context.Background(), "p9", content.ID)
	require.NoError(t, err)
	assert.False(t, purchased)
}

func TestHandler_UpdateContentStatus(t *testing.T) {
	s := setupHandlerTest(t)
	content, err := s.service.RegisterContent(context.Background(), contentledger.RegisterContentRequest{Creator: "p1", Title: "Song", Price: 5})
	require.NoError(t, err)
	path := "/contents/" + content.ID + "/status"
	inactive := false

	w := s.do(http.MethodPut, path, s.token("p2", nil), UpdateContentStatusRequest{IsActive: &inactive})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPut, path, s.token("p1", nil), map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPut, path, s.token("p1", nil), UpdateContentStatusRequest{IsActive: &inactive})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, decode[contentledger.ContentRegistration](t, w).IsActive)

	w = s.do(http.MethodPost, "/contents/"+content.ID+"/payments", s.token("p2", nil), RecordPaymentRequest{TransactionHash: "tx-1", Amount: 5})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "inactive_content", decode[ErrorResponse](t, w).Kind)

	w = s.do(http.MethodPut, "/contents/missing/status", s.token("p1", nil), UpdateContentStatusRequest{IsActive: &inactive})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_Listings(t *testing.T) {
	s := setupHandlerTest(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		c, err := s.service.RegisterContent(ctx, contentledger.RegisterContentRequest{Creator: "p1", Title: fmt.Sprintf("Song %d", i), Price: 1})
		require.NoError(t, err)
		ids = append(ids, c.ID)
		_, err = s.service.RecordPayment(ctx, contentledger.RecordPaymentRequest{ContentID: c.ID, TransactionHash: fmt.Sprintf("tx-%d", i), Amount: 1, Buyer: "p2"})
		require.NoError(t, err)
	}

	w := s.do(http.MethodGet, "/creators/p1/contents", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	contents := decode[[]contentledger.ContentRegistration](t, w)
	require.Len(t, contents, 3)
	for i, c := range contents {
		assert.Equal(t, ids[i], c.ID)
	}

	w = s.do(http.MethodGet, "/creators/nobody/contents", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	w = s.do(http.MethodGet, "/buyers/p2/payments", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]contentledger.PaymentRecord](t, w), 3)

	w = s.do(http.MethodGet, "/contents/"+ids[0]+"/payments", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]contentledger.PaymentRecord](t, w), 1)

	w = s.do(http.MethodGet, "/contents/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_RegisterValidation(t *testing.T) {
	s := setupHandlerTest(t)
	token := s.token("p1", nil)

	w := s.do(http.MethodPost, "/contents", token, RegisterContentRequest{Title: " ", Price: 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/contents", token, RegisterContentRequest{Title: "Song", Price: -5})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/contents", token, RegisterContentRequest{ID: "fixed", Title: "Song", Price: 5})
	require.Equal(t, http.StatusCreated, w.Code)
	w = s.do(http.MethodPost, "/contents", token, RegisterContentRequest{ID: "fixed", Title: "Again", Price: 5})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "already_exists", decode[ErrorResponse](t, w).Kind)

	req := httptest.NewRequest(http.MethodPost, "/contents", bytes.NewBufferString("{not json"))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_Verify(t *testing.T) {
	s := setupHandlerTest(t)

	w := s.do(http.MethodPost, "/admin/verify", s.token("p1", nil), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/admin/verify", s.token("ops", map[string]interface{}{"admin": true}), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"status":"consistent"}`, w.Body.String())
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{contentledger.ErrInvalidArgument, http.StatusBadRequest},
		{contentledger.ErrNotFound, http.StatusNotFound},
		{contentledger.ErrAlreadyExists, http.StatusConflict},
		{contentledger.ErrUnauthorized, http.StatusForbidden},
		{contentledger.ErrInactiveContent, http.StatusConflict},
		{contentledger.ErrAmountMismatch, http.StatusUnprocessableEntity},
		{contentledger.ErrDuplicateTransaction, http.StatusConflict},
		{contentledger.ErrLedgerCorrupted, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), "%v", tt.err)
	}
}
