package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/velmie/withdrawal-service/bank"
	"github.com/velmie/withdrawal-service/memory"
	"github.com/velmie/withdrawal-service/outbox"
)

func newTestServer(t *testing.T) (*httptest.Server, *memory.Store, uuid.UUID) {
	t.Helper()

	store := memory.NewStore(nil)
	accountID := uuid.New()
	store.SeedAccount(bank.Account{ID: accountID, Balance: decimal.NewFromInt(500)})

	service := bank.NewService(memory.NewFactory(store), zerolog.Nop(), bank.DefaultLimits(), nil)
	server := httptest.NewServer(NewHandler(service, store, zerolog.Nop()))
	t.Cleanup(server.Close)

	return server, store, accountID
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()

	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func getJSON(t *testing.T, url string) *http.Response {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func TestWithdrawEndpoint(t *testing.T) {
	server, store, accountID := newTestServer(t)

	resp := postJSON(t, server.URL+"/withdrawals",
		`{"accountId":"`+accountID.String()+`","amount":100}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result bank.WithdrawalResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.Equal(t, accountID, result.AccountID)
	require.True(t, result.NewBalance.Equal(decimal.NewFromInt(400)))
	require.Equal(t, bank.EventStatusEnqueued, result.EventStatus)

	pending, err := store.CountPending(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, pending)
}

func TestWithdrawEndpointErrors(t *testing.T) {
	server, _, accountID := newTestServer(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "insufficient funds",
			body:       `{"accountId":"` + accountID.String() + `","amount":5000}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   bank.CodeInsufficientFunds,
		},
		{
			name:       "unknown account",
			body:       `{"accountId":"` + uuid.NewString() + `","amount":10}`,
			wantStatus: http.StatusNotFound,
			wantCode:   bank.CodeAccountNotFound,
		},
		{
			name:       "amount too small",
			body:       `{"accountId":"` + accountID.String() + `","amount":0.001}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   bank.CodeValidationFailed,
		},
		{
			name:       "amount too large",
			body:       `{"accountId":"` + accountID.String() + `","amount":2000000}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   bank.CodeValidationFailed,
		},
		{
			name:       "malformed body",
			body:       `{"accountId":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   bank.CodeValidationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, server.URL+"/withdrawals", tt.body)
			require.Equal(t, tt.wantStatus, resp.StatusCode)

			var body struct {
				Code string `json:"code"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			require.Equal(t, tt.wantCode, body.Code)
		})
	}
}

func TestOutboxStatsEndpoint(t *testing.T) {
	server, store, _ := newTestServer(t)
	ctx := context.Background()

	id1, err := store.Enqueue(ctx, outbox.Entry{EventType: "a.v1", Payload: []byte(`{}`)})
	require.NoError(t, err)
	_, err = store.Enqueue(ctx, outbox.Entry{EventType: "b.v1", Payload: []byte(`{}`)})
	require.NoError(t, err)
	require.NoError(t, store.MarkFailed(ctx, id1, "broker down"))

	resp := getJSON(t, server.URL+"/outbox/stats")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats struct {
		Pending int `json:"pending"`
		Failed  int `json:"failed"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	require.Equal(t, 1, stats.Pending)
	require.Equal(t, 1, stats.Failed)
}

func TestOutboxFailedEndpoint(t *testing.T) {
	server, store, _ := newTestServer(t)
	ctx := context.Background()

	id, err := store.Enqueue(ctx, outbox.Entry{EventType: "a.v1", Payload: []byte(`{"n":1}`)})
	require.NoError(t, err)
	require.NoError(t, store.MarkFailed(ctx, id, "broker down"))

	resp := getJSON(t, server.URL+"/outbox/failed")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var records []struct {
		ID        uuid.UUID `json:"id"`
		Status    string    `json:"status"`
		LastError *string   `json:"lastError"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&records))
	require.Len(t, records, 1)
	require.Equal(t, id, records[0].ID)
	require.Equal(t, "failed", records[0].Status)
	require.NotNil(t, records[0].LastError)
	require.Equal(t, "broker down", *records[0].LastError)

	badLimit := getJSON(t, server.URL+"/outbox/failed?limit=0")
	require.Equal(t, http.StatusBadRequest, badLimit.StatusCode)
}

func TestOutboxProcessedEndpoint(t *testing.T) {
	server, store, _ := newTestServer(t)
	ctx := context.Background()

	early, err := store.Enqueue(ctx, outbox.Entry{EventType: "a.v1", Payload: []byte(`{}`)})
	require.NoError(t, err)
	late, err := store.Enqueue(ctx, outbox.Entry{EventType: "b.v1", Payload: []byte(`{}`)})
	require.NoError(t, err)

	base := time.Date(2025, 6, 3, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.MarkProcessed(ctx, early, base))
	require.NoError(t, store.MarkProcessed(ctx, late, base.Add(time.Hour)))

	resp := getJSON(t, server.URL+"/outbox/processed")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var records []struct {
		ID uuid.UUID `json:"id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&records))
	require.Len(t, records, 2)
	require.Equal(t, late, records[0].ID, "newest first")

	since := base.Add(30 * time.Minute).Format(time.RFC3339)
	filtered := getJSON(t, server.URL+"/outbox/processed?since="+since)
	require.Equal(t, http.StatusOK, filtered.StatusCode)
	records = records[:0]
	require.NoError(t, json.NewDecoder(filtered.Body).Decode(&records))
	require.Len(t, records, 1)
	require.Equal(t, late, records[0].ID)

	badSince := getJSON(t, server.URL+"/outbox/processed?since=yesterday")
	require.Equal(t, http.StatusBadRequest, badSince.StatusCode)
}

func TestOutboxRequeueEndpoint(t *testing.T) {
	server, store, _ := newTestServer(t)
	ctx := context.Background()

	id, err := store.Enqueue(ctx, outbox.Entry{EventType: "a.v1", Payload: []byte(`{}`)})
	require.NoError(t, err)
	require.NoError(t, store.MarkFailed(ctx, id, "broker down"))

	resp := postJSON(t, server.URL+"/outbox/records/"+id.String()+"/requeue", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	pending, err := store.CountPending(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, pending)

	// Requeueing a record that is pending again conflicts.
	conflict := postJSON(t, server.URL+"/outbox/records/"+id.String()+"/requeue", "")
	require.Equal(t, http.StatusConflict, conflict.StatusCode)

	missing := postJSON(t, server.URL+"/outbox/records/"+uuid.NewString()+"/requeue", "")
	require.Equal(t, http.StatusNotFound, missing.StatusCode)

	badID := postJSON(t, server.URL+"/outbox/records/not-a-uuid/requeue", "")
	require.Equal(t, http.StatusBadRequest, badID.StatusCode)
}

func TestHealthz(t *testing.T) {
	server, _, _ := newTestServer(t)

	resp := getJSON(t, server.URL+"/healthz")
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
