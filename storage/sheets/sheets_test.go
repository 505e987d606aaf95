package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/mihaimyh/sheetsync/pkg/sheetsync"
	"github.com/mihaimyh/sheetsync/storage/memory"
)

const testSpreadsheetID = "sheet-123"

// fakeSheetsAPI serves the three Sheets v4 values endpoints over an in-memory store.
type fakeSheetsAPI struct {
	t       *testing.T
	store   *memory.Storage
	options []string
	fail    bool
}

type valueRange struct {
	Range  string     `json:"range,omitempty"`
	Values [][]string `json:"values,omitempty"`
}

func (f *fakeSheetsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.fail {
		http.Error(w, `{"error":{"code":400,"message":"bad request"}}`, http.StatusBadRequest)
		return
	}

	path := r.URL.EscapedPath()
	prefix := "/v4/spreadsheets/" + testSpreadsheetID + "/values/"
	if !strings.HasPrefix(path, prefix) {
		http.NotFound(w, r)
		return
	}
	rng, err := url.PathUnescape(strings.TrimPrefix(path, prefix))
	assert.NoError(f.t, err)
	if opt := r.URL.Query().Get("valueInputOption"); opt != "" {
		f.options = append(f.options, opt)
	}

	ctx := r.Context()
	switch {
	case r.Method == http.MethodGet:
		rows, err := f.store.GetRange(ctx, rng)
		assert.NoError(f.t, err)
		_ = json.NewEncoder(w).Encode(valueRange{Range: rng, Values: rows})
	case r.Method == http.MethodPost && strings.HasSuffix(rng, ":append"):
		var body valueRange
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		assert.NoError(f.t, f.store.AppendRow(ctx, strings.TrimSuffix(rng, ":append"), body.Values[0]))
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodPut:
		var body valueRange
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		assert.NoError(f.t, f.store.UpdateCells(ctx, rng, body.Values))
		_, _ = w.Write([]byte(`{}`))
	default:
		http.Error(w, "unexpected request", http.StatusBadRequest)
	}
}

func setupTestStorage(t *testing.T) (*Storage, *fakeSheetsAPI) {
	t.Helper()

	api := &fakeSheetsAPI{t: t, store: memory.New()}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	storage, err := New(context.Background(), Config{SpreadsheetID: testSpreadsheetID},
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return storage, api
}

func TestNew_NotConfigured(t *testing.T) {
	ctx := context.Background()

	_, err := New(ctx, Config{})
	assert.ErrorIs(t, err, sheetsync.ErrStoreNotConfigured)

	_, err = New(ctx, Config{SpreadsheetID: testSpreadsheetID})
	assert.ErrorIs(t, err, sheetsync.ErrStoreNotConfigured)
}

func TestNew_BadCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{
		SpreadsheetID:   testSpreadsheetID,
		CredentialsJSON: []byte(`{"type":"authorized_user"}`),
	})
	assert.ErrorContains(t, err, "failed to parse service account credentials")
}

func TestStorage_RoundTrip(t *testing.T) {
	storage, api := setupTestStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.AppendRow(ctx, "Sheet1!A:C", []string{"Email", "Status", "Subscription"}))
	require.NoError(t, storage.AppendRow(ctx, "Sheet1!A:C", []string{"a@b.com", "active", "sub_1"}))
	require.NoError(t, storage.UpdateCells(ctx, "Sheet1!B2", [][]string{{"=past_due"}}))

	rows, err := storage.GetRange(ctx, "Sheet1!A:C")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Email", "Status", "Subscription"},
		{"a@b.com", "=past_due", "sub_1"},
	}, rows)
	assert.Equal(t, []string{"RAW", "RAW", "RAW"}, api.options)
}

func TestStorage_QuotedSheetName(t *testing.T) {
	storage, api := setupTestStorage(t)
	ctx := context.Background()
	api.store.Seed("Paid Users", [][]string{{"a@b.com", "active"}})

	rows, err := storage.GetRange(ctx, "'Paid Users'!A:C")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a@b.com", "active"}}, rows)
}

func TestStorage_APIErrors(t *testing.T) {
	storage, api := setupTestStorage(t)
	ctx := context.Background()
	api.fail = true

	_, err := storage.GetRange(ctx, "Sheet1!A:C")
	assert.ErrorContains(t, err, "failed to get Sheet1!A:C")
	assert.Error(t, storage.AppendRow(ctx, "Sheet1!A:C", []string{"a@b.com"}))
	assert.Error(t, storage.UpdateCells(ctx, "Sheet1!B1", [][]string{{"active"}}))
}

func TestStorage_ReconcilerEndToEnd(t *testing.T) {
	storage, api := setupTestStorage(t)
	ctx := context.Background()
	api.store.Seed("Sheet1", [][]string{{"Email", "Status", "Subscription"}})

	reconciler, err := sheetsync.NewReconciler(storage, nil)
	require.NoError(t, err)
	querier, err := sheetsync.NewQuerier(storage, nil)
	require.NoError(t, err)

	outcome, err := reconciler.Apply(ctx, sheetsync.Activate{Email: "User@Example.com", SubscriptionID: "sub_1"})
	require.NoError(t, err)
	assert.Equal(t, sheetsync.OutcomeCreated, outcome)

	_, err = reconciler.Apply(ctx, sheetsync.UpdateStatus{SubscriptionID: "sub_1", Status: "past_due"})
	require.NoError(t, err)

	assert.Equal(t, sheetsync.PaidStatus{Paid: false, Status: "past_due"}, querier.PaidStatus(ctx, "user@example.com"))
	assert.Equal(t, [][]string{
		{"Email", "Status", "Subscription"},
		{"user@example.com", "past_due", "sub_1"},
	}, api.store.Rows("Sheet1"))
}

func TestToStrings(t *testing.T) {
	got := toStrings([][]interface{}{{"a", float64(3), nil, ""}, {}})
	assert.Equal(t, [][]string{{"a", "3"}}, got)
}
