package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/omnichain-configurator/diff"
	"github.com/ruteri/omnichain-configurator/interfaces"
	"github.com/ruteri/omnichain-configurator/reconcile"
	"github.com/ruteri/omnichain-configurator/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockReconciler struct {
	mock.Mock
}

func (m *mockReconciler) Run(ctx context.Context) (*reconcile.Plan, error) {
	args := m.Called(ctx)
	plan, _ := args.Get(0).(*reconcile.Plan)
	return plan, args.Error(1)
}

func (m *mockReconciler) Report(ctx context.Context, mode diff.Mode) (*reconcile.Plan, error) {
	args := m.Called(ctx, mode)
	plan, _ := args.Get(0).(*reconcile.Plan)
	return plan, args.Error(1)
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

var point = interfaces.Point{EID: 30101, Address: common.HexToAddress("0xa1")}

func samplePlan() *reconcile.Plan {
	return &reconcile.Plan{
		RunID: "run-1",
		Mode:  "plan",
		Actions: []interfaces.Action{{
			Point:       point,
			Data:        []byte{0xf2, 0xfd, 0xe3, 0x8b},
			Description: "Transfer ownership",
		}},
		Records: []diff.Record{{Point: point, Chain: "ethereum", Contract: "oft", Diff: "-owner +owner"}},
	}
}

func newTestServer(t *testing.T, reconciler Reconciler, backend interfaces.StorageBackend) http.Handler {
	srv, err := New(&HTTPServerConfig{Log: quiet, DrainDuration: time.Millisecond}, NewHandler(reconciler, backend, quiet))
	require.NoError(t, err)
	return srv.Handler()
}

func TestHandlePlan(t *testing.T) {
	backend, err := storage.NewFileBackend(t.TempDir(), quiet)
	require.NoError(t, err)

	rec := new(mockReconciler)
	rec.On("Run", mock.Anything).Return(samplePlan(), nil)
	router := newTestServer(t, rec, backend)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/plan", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var plan reconcile.Plan
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &plan))
	assert.Equal(t, "run-1", plan.RunID)
	require.Len(t, plan.Actions, 1)
	assert.Equal(t, "Transfer ownership", plan.Actions[0].Description)

	id := w.Header().Get(ContentIDHeader)
	require.Len(t, id, 64)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/plans/"+id, nil))
	require.Equal(t, http.StatusOK, w.Code)
	var archived reconcile.Plan
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &archived))
	assert.Equal(t, plan.RunID, archived.RunID)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/reports/"+id, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/plans/xyz", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	rec.AssertExpectations(t)
}

func TestHandlePlanErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{
			name:   "unreachable endpoint",
			err:    errors.Join(errors.New("oapp"), &interfaces.EndpointUnavailableError{Point: point, Err: errors.New("dial tcp")}),
			status: http.StatusBadGateway,
		},
		{
			name:   "request error",
			err:    &RequestError{StatusCode: http.StatusConflict, Err: errors.New("conflict")},
			status: http.StatusConflict,
		},
		{
			name:   "deadline",
			err:    context.DeadlineExceeded,
			status: http.StatusServiceUnavailable,
		},
		{
			name:   "other",
			err:    errors.New("boom"),
			status: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := new(mockReconciler)
			rec.On("Run", mock.Anything).Return(nil, tt.err)

			w := httptest.NewRecorder()
			newTestServer(t, rec, nil).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/plan", nil))
			assert.Equal(t, tt.status, w.Code)
			assert.Empty(t, w.Header().Get(ContentIDHeader))
		})
	}
}

func TestHandleReport(t *testing.T) {
	rec := new(mockReconciler)
	rec.On("Report", mock.Anything, diff.Full).Return(samplePlan(), nil)
	rec.On("Report", mock.Anything, diff.DiffOnly).Return(&reconcile.Plan{RunID: "run-2", Records: []diff.Record{}}, nil)
	router := newTestServer(t, rec, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/report?mode=full", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/report?format=table", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "No differences\n", w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/report?mode=everything", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/report?format=xml", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	rec.AssertExpectations(t)
}

func TestArchivedReportKeepsErrors(t *testing.T) {
	backend, err := storage.NewFileBackend(t.TempDir(), quiet)
	require.NoError(t, err)

	missing := fmt.Errorf("node %s: %w", point, interfaces.ErrMissingLiveState)
	report := &reconcile.Plan{
		RunID: "run-3",
		Mode:  "report/full",
		Records: []diff.Record{
			{Point: point, Chain: "ethereum", Contract: "oft", Config: "{}", Err: missing},
			{Point: point, Chain: "ethereum", Contract: "usdc", Config: "{}"},
		},
	}
	rec := new(mockReconciler)
	rec.On("Report", mock.Anything, diff.Full).Return(report, nil)
	router := newTestServer(t, rec, backend)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/report?mode=full", nil))
	require.Equal(t, http.StatusOK, w.Code)
	id := w.Header().Get(ContentIDHeader)
	require.NotEmpty(t, id)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/reports/"+id, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), missing.Error())

	var archived reconcile.Plan
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &archived))
	require.Len(t, archived.Records, 2)
	assert.True(t, archived.Records[0].Mismatch())
	assert.ErrorIs(t, archived.Records[0].Err, interfaces.ErrMissingLiveState)
	assert.False(t, archived.Records[1].Mismatch())
	assert.Len(t, diff.Mismatched(archived.Records), 1)
}

func TestConcurrentRunsAreRejected(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	rec := new(mockReconciler)
	rec.On("Run", mock.Anything).Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return(samplePlan(), nil).Once()
	router := newTestServer(t, rec, nil)

	done := make(chan int)
	go func() {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/plan", nil))
		done <- w.Code
	}()
	<-started

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/plan", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	close(release)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestFetchWithoutStorage(t *testing.T) {
	router := newTestServer(t, new(mockReconciler), nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/plans/"+interfaces.ComputeID(nil).String(), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
