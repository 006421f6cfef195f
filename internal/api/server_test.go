package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/taskescrow/internal/escrow"
	"git.home.luguber.info/inful/taskescrow/internal/eventstore"
	"git.home.luguber.info/inful/taskescrow/internal/identity"
	"git.home.luguber.info/inful/taskescrow/internal/metrics"
	"git.home.luguber.info/inful/taskescrow/internal/storage"
)

type testEnv struct {
	srv      *Server
	registry *escrow.Registry
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	events, err := eventstore.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = events.Close() })

	audit := eventstore.NewAuditLog(events, eventstore.NewLedgerProjection(events, 10))
	promReg := prometheus.NewRegistry()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	registry := escrow.NewRegistry(storage.NewMemoryStore(),
		escrow.WithRecorder(metrics.NewPrometheusRecorder(promReg)),
		escrow.WithObserver("audit", audit),
		escrow.WithLogger(logger),
	)
	srv := NewServer(":0", registry,
		WithAuditLog(audit),
		WithMetricsHandler("/metrics", metrics.HTTPHandler(promReg)),
		WithLogger(logger),
	)
	return testEnv{srv: srv, registry: registry}
}

func (e testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, req)
	return w
}

func signedRequest(t *testing.T, program identity.Identity, depositor *identity.Keypair, task, recipient identity.Identity, amount uint64) CreateTaskRequest {
	t.Helper()
	proof := depositor.Prove(escrow.CreateTaskMessage(program, task, recipient, amount))
	return CreateTaskRequest{
		Task:      task.String(),
		Depositor: depositor.Identity().String(),
		Recipient: recipient.String(),
		Amount:    strconv.FormatUint(amount, 10),
		Signature: proof.SignatureBase58(),
	}
}

func decodeData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var resp struct {
		Success bool `json:"success"`
		Data    T    `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.True(t, resp.Success)
	return resp.Data
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp.Code
}

func mustKeypair(t *testing.T) *identity.Keypair {
	t.Helper()
	kp, err := identity.GenerateKeypair()
	require.NoError(t, err)
	return kp
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"status":"healthy"}`, w.Body.String())
}

func TestInitializeEndpoint(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/v1/initialize", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeData[InitializeResponse](t, w)
	assert.Equal(t, escrow.ProgramID().String(), resp.ProgramID)
	assert.Equal(t, "Greetings from: "+escrow.ProgramID().String(), resp.Greeting)
	assert.Len(t, resp.Reference, 36)
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	program := env.registry.Program()
	depositor := mustKeypair(t)
	recipient := mustKeypair(t).Identity()
	task := mustKeypair(t).Identity()
	const amount = uint64(18446744073709551615)

	w := env.do(t, http.MethodPost, "/v1/tasks", signedRequest(t, program, depositor, task, recipient, amount))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeData[TaskResponse](t, w)
	assert.Equal(t, task.String(), created.Slot)
	assert.Equal(t, escrow.StateOpen, created.State)
	assert.Equal(t, amount, created.Record.Amount)
	assert.Equal(t, depositor.Identity(), created.Record.Depositor)

	w = env.do(t, http.MethodPost, "/v1/tasks", signedRequest(t, program, depositor, task, recipient, 1))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "already_exists", errorCode(t, w))

	w = env.do(t, http.MethodGet, "/v1/tasks/"+task.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created, decodeData[TaskResponse](t, w))

	w = env.do(t, http.MethodPost, "/v1/tasks/"+task.String()+"/complete", nil)
	require.Equal(t, http.StatusOK, w.Code)
	completed := decodeData[TaskResponse](t, w)
	assert.Equal(t, escrow.StateCompleted, completed.State)
	assert.True(t, completed.Record.IsCompleted)

	w = env.do(t, http.MethodPost, "/v1/tasks/"+task.String()+"/complete", nil)
	assert.Equal(t, http.StatusOK, w.Code, "completion is idempotent")

	w = env.do(t, http.MethodGet, "/v1/tasks/"+task.String()+"/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := decodeData[[]map[string]any](t, w)
	require.Len(t, history, 3)
	assert.Equal(t, eventstore.TypeTaskCreated, history[0]["type"])

	w = env.do(t, http.MethodGet, "/v1/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decodeData[StatsResponse](t, w)
	assert.Equal(t, escrow.Stats{Completed: 1}, stats.Records)
	require.NotNil(t, stats.Ledger)
	assert.Equal(t, 2, stats.Ledger.CompletionCalls)

	w = env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "taskescrow_operation_results_total")
}

func TestCreateTaskRejections(t *testing.T) {
	env := newTestEnv(t)
	program := env.registry.Program()
	depositor := mustKeypair(t)
	recipient := mustKeypair(t).Identity()
	task := mustKeypair(t).Identity()

	valid := signedRequest(t, program, depositor, task, recipient, 10)

	unsigned := valid
	unsigned.Signature = ""

	tampered := valid
	tampered.Amount = "11"

	badAmount := valid
	badAmount.Amount = "-1"

	badRecipient := valid
	badRecipient.Recipient = "0OIl"

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"missing signature", unsigned, http.StatusUnauthorized, "auth"},
		{"tampered amount", tampered, http.StatusUnauthorized, "auth"},
		{"negative amount", badAmount, http.StatusBadRequest, "validation"},
		{"bad recipient", badRecipient, http.StatusBadRequest, "validation"},
		{"unknown field", map[string]string{"task": task.String(), "extra": "x"}, http.StatusBadRequest, "validation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/v1/tasks", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, errorCode(t, w))
		})
	}

	w := env.do(t, http.MethodGet, "/v1/tasks/"+task.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "rejected creates leave no record")
}

func TestCompleteUnknownTask(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/v1/tasks/"+mustKeypair(t).Identity().String()+"/complete", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", errorCode(t, w))
}

func TestMalformedSlot(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/v1/tasks/not-base58!", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "invalid slot"))
}
