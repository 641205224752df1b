package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsight/internal/api"
	"finsight/internal/api/apitest"
	"finsight/internal/core"
	"finsight/internal/export"
	"finsight/internal/insights"
	"finsight/internal/localstate"
	"finsight/internal/store"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"backend validation", &api.Error{Kind: api.KindValidation, Status: 422}, http.StatusBadRequest, "validation"},
		{"backend auth", fmt.Errorf("list: %w", &api.Error{Kind: api.KindAuth, Status: 401}), http.StatusUnauthorized, "auth"},
		{"backend not found", &api.Error{Kind: api.KindNotFound, Status: 404}, http.StatusNotFound, "not_found"},
		{"backend conflict", &api.Error{Kind: api.KindClient, Status: 409}, http.StatusBadRequest, "client"},
		{"backend network", &api.Error{Kind: api.KindNetwork}, http.StatusBadGateway, "network"},
		{"backend server", &api.Error{Kind: api.KindServer, Status: 500}, http.StatusBadGateway, "server"},
		{"bad request", fmt.Errorf("%w: empty body", ErrBadRequest), http.StatusBadRequest, "validation"},
		{"invalid transaction", fmt.Errorf("%w: %w", store.ErrInvalid, core.ErrInvalidAmount), http.StatusBadRequest, "validation"},
		{"empty category", core.ErrEmptyCategory, http.StatusBadRequest, "validation"},
		{"invalid theme", localstate.ErrInvalidTheme, http.StatusBadRequest, "validation"},
		{"missing column", fmt.Errorf("%w: amount", export.ErrMissingColumn), http.StatusBadRequest, "validation"},
		{"assistant", fmt.Errorf("%w: model down", insights.ErrAssistant), http.StatusBadGateway, "server"},
		{"not configured", configured(false, "import"), http.StatusServiceUnavailable, ""},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, "network"},
		{"backend deadline", &api.Error{Kind: api.KindNetwork, Err: fmt.Errorf("get: %w", context.DeadlineExceeded)}, http.StatusGatewayTimeout, "network"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, kind := StatusFor(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestFromErrorBackendTimeout(t *testing.T) {
	backend := apitest.New(t)

	t.Run("client timeout", func(t *testing.T) {
		hold := backend.HoldNext(http.MethodGet, "/transactions")
		defer hold.Release()
		client := api.New(backend.URL,
			api.WithTokenSource(api.StaticToken(apitest.DefaultToken)),
			api.WithTimeout(50*time.Millisecond))

		_, err := client.ListTransactions(context.Background())
		require.Error(t, err)

		rec := httptest.NewRecorder()
		FromError(context.Background(), err).Write(rec)
		assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
		assert.JSONEq(t, `{"error":"backend timed out","kind":"network"}`, rec.Body.String())
	})

	t.Run("request deadline", func(t *testing.T) {
		hold := backend.HoldNext(http.MethodGet, "/transactions")
		defer hold.Release()
		client := api.New(backend.URL, api.WithTokenSource(api.StaticToken(apitest.DefaultToken)))

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := client.ListTransactions(ctx)
		require.Error(t, err)

		rec := httptest.NewRecorder()
		FromError(context.Background(), err).Write(rec)
		assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	})
}

func TestFromErrorHidesServerDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	FromError(context.Background(), errors.New("dial tcp 10.0.0.3:5432: secret")).Write(rec)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	FromError(context.Background(), fmt.Errorf("%w: amount must be positive", ErrBadRequest)).Write(rec)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"bad request: amount must be positive","kind":"validation"}`, rec.Body.String())
}

func TestJSONResponseBuilder(t *testing.T) {
	rec := httptest.NewRecorder()
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/goals/1").
		Body(map[string]int{"n": 1}).
		Write(rec)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "/api/goals/1", rec.Header().Get("Location"))
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "{\"n\":1}\n", rec.Body.String())
}

func TestJSONResponseBuilderNoContent(t *testing.T) {
	rec := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Body("ignored").Write(rec)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Empty(t, rec.Header().Get("Content-Type"))
}

func TestJSONResponseBuilderMarshalFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	NewJSONResponse().Body(map[string]any{"ch": make(chan int)}).Write(rec)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
}

func TestTooManyRequestsError(t *testing.T) {
	rec := httptest.NewRecorder()
	TooManyRequestsError().Write(rec)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "rate limit exceeded")
}
