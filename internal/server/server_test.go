package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/budgetly-bot/internal/credential"
	"gitlab.com/yelinaung/budgetly-bot/internal/expense"
	"gitlab.com/yelinaung/budgetly-bot/internal/linking"
	"gitlab.com/yelinaung/budgetly-bot/internal/logger"
	appmodels "gitlab.com/yelinaung/budgetly-bot/internal/models"
	"gitlab.com/yelinaung/budgetly-bot/internal/repository/memory"
)

const (
	testSecret        = "webhook-secret"
	testCredentialKey = "credential-secret-at-least-32-characters"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.InitHashSaltForTesting("test-salt-for-unit-tests-minimum-32-chars")
	os.Exit(m.Run())
}

type recordingHandler struct {
	mu      sync.Mutex
	updates []*models.Update
}

func (h *recordingHandler) HandleUpdate(_ context.Context, update *models.Update) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updates = append(h.updates, update)
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.updates)
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type testEnv struct {
	server   *Server
	updates  *recordingHandler
	accounts *memory.Accounts
	expenses *memory.Expenses
	tokens   *credential.Service
	now      time.Time
}

func newTestEnv(t *testing.T, pinger fakePinger) *testEnv {
	t.Helper()

	env := &testEnv{
		updates:  &recordingHandler{},
		accounts: memory.NewAccounts(),
		expenses: memory.NewExpenses(),
		now:      time.Now(),
	}
	clock := func() time.Time { return env.now }
	env.tokens = credential.NewService(testCredentialKey, clock)

	env.server = New(Options{
		WebhookSecret: testSecret,
		BotUsername:   "BudgetlyBot",
	}, Deps{
		Updates:  env.updates,
		Tokens:   env.tokens,
		Linking:  linking.NewService(env.accounts, 15*time.Minute, linking.WithClock(clock)),
		Expenses: expense.NewService(env.accounts, env.expenses),
		DB:       pinger,
	})
	return env
}

func (env *testEnv) account(t *testing.T) (*appmodels.Account, string) {
	t.Helper()
	a := &appmodels.Account{Name: "Alex", MonthlyBudget: decimal.NewFromInt(100)}
	require.NoError(t, env.accounts.Create(context.Background(), a))
	token, err := env.tokens.Issue(a.ID, time.Hour)
	require.NoError(t, err)
	return a, token
}

func (env *testEnv) do(method, path, token, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestWebhook(t *testing.T) {
	t.Parallel()

	const update = `{"update_id":1,"message":{"message_id":5,"chat":{"id":42,"type":"private"},"text":"/budget"}}`

	tests := []struct {
		name        string
		secret      string
		body        string
		wantStatus  int
		wantHandled int
	}{
		{"valid", testSecret, update, http.StatusOK, 1},
		{"wrong secret", "nope", update, http.StatusUnauthorized, 0},
		{"missing secret", "", update, http.StatusUnauthorized, 0},
		{"secret prefix", testSecret[:3], update, http.StatusUnauthorized, 0},
		{"malformed body", testSecret, "{not json", http.StatusOK, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t, fakePinger{})
			rec := env.do(http.MethodPost, "/telegram/webhook", "", tt.body, map[string]string{SecretTokenHeader: tt.secret})

			require.Equal(t, tt.wantStatus, rec.Code)
			require.Equal(t, tt.wantHandled, env.updates.count())
		})
	}

	t.Run("decodes the update", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, fakePinger{})
		env.do(http.MethodPost, "/telegram/webhook", "", update, map[string]string{SecretTokenHeader: testSecret})

		require.Equal(t, 1, env.updates.count())
		got := env.updates.updates[0]
		require.NotNil(t, got.Message)
		require.Equal(t, int64(42), got.Message.Chat.ID)
		require.Equal(t, "/budget", got.Message.Text)
	})
}

func TestWebhook_DisabledWithoutSecret(t *testing.T) {
	t.Parallel()

	handler := &recordingHandler{}
	s := New(Options{}, Deps{Updates: handler})

	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, 0, handler.count())
}

func TestAPI_RequiresBearerToken(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, fakePinger{})
	a, _ := env.account(t)
	expired, err := credential.NewService(testCredentialKey, func() time.Time { return env.now.Add(-2 * time.Hour) }).
		Issue(a.ID, time.Hour)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"none":    "",
		"garbage": "abc.def",
		"expired": expired,
	} {
		rec := env.do(http.MethodGet, "/api/telegram/status", token, "", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code, name)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/telegram/status", nil)
	req.Header.Set("Authorization", "Basic abc")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_LinkCodeLifecycle(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, fakePinger{})
	a, token := env.account(t)

	rec := env.do(http.MethodGet, "/api/telegram/status", token, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.False(t, status.Linked)
	require.Nil(t, status.CodeExpiry)

	rec = env.do(http.MethodPost, "/api/telegram/link-code", token, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var code linkCodeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &code))
	require.Regexp(t, `^[A-Z0-9]{6}$`, code.Code)
	require.Equal(t, "BudgetlyBot", code.BotUsername)
	require.WithinDuration(t, env.now.Add(15*time.Minute), code.Expiry, time.Second)

	rec = env.do(http.MethodGet, "/api/telegram/status", token, "", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.NotNil(t, status.CodeExpiry)

	chatID := int64(77)
	_, err := env.accounts.BindChat(context.Background(), a.ID, code.Code, chatID, "@alex", env.now)
	require.NoError(t, err)

	rec = env.do(http.MethodGet, "/api/telegram/status", token, "", nil)
	status = statusResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.True(t, status.Linked)
	require.Equal(t, "@alex", status.DisplayName)

	for range 2 {
		rec = env.do(http.MethodDelete, "/api/telegram/link", token, "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.JSONEq(t, `{"message":"Disconnected"}`, rec.Body.String())
	}

	got, err := env.accounts.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	require.False(t, got.IsLinked())
}

func TestAPI_UnknownAccount(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, fakePinger{})
	token, err := env.tokens.Issue(uuid.New(), time.Hour)
	require.NoError(t, err)

	rec := env.do(http.MethodGet, "/api/telegram/status", token, "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodPost, "/api/telegram/link-code", token, "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_DeleteExpense(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, fakePinger{})
	a, token := env.account(t)
	_, otherToken := env.account(t)

	e := &appmodels.Expense{AccountID: a.ID, Amount: decimal.NewFromInt(5), Description: "coffee", Category: appmodels.CategoryFood}
	require.NoError(t, env.expenses.Create(context.Background(), e))

	rec := env.do(http.MethodDelete, "/api/expenses/not-a-uuid", token, "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodDelete, "/api/expenses/"+e.ID.String(), otherToken, "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Len(t, env.expenses.All(), 1)

	rec = env.do(http.MethodDelete, "/api/expenses/"+e.ID.String(), token, "", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Empty(t, env.expenses.All())

	rec = env.do(http.MethodDelete, "/api/expenses/"+e.ID.String(), token, "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	rec := newTestEnv(t, fakePinger{}).do(http.MethodGet, "/healthz", "", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = newTestEnv(t, fakePinger{err: errors.New("db down")}).do(http.MethodGet, "/healthz", "", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()

	rec := newTestEnv(t, fakePinger{}).do(http.MethodGet, "/telegram/webhook", "", "", nil)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPprofRoutes(t *testing.T) {
	t.Parallel()

	withPprof := New(Options{EnablePprof: true}, Deps{})
	var paths []string
	for _, r := range withPprof.engine.Routes() {
		paths = append(paths, r.Path)
	}
	require.Contains(t, paths, "/debug/pprof/")

	for _, r := range New(Options{}, Deps{}).engine.Routes() {
		require.NotContains(t, r.Path, "pprof")
	}
}

func TestCORS(t *testing.T) {
	t.Parallel()

	s := New(Options{CORSAllowOrigins: []string{"https://app.example.com"}}, Deps{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, fakePinger{})
	env.do(http.MethodGet, "/healthz", "", "", nil)
	env.do(http.MethodDelete, "/api/expenses/x", "", "", nil)

	rec := env.do(http.MethodGet, "/metrics", "", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `budgetly_http_requests_total{code="200",method="GET",route="/healthz"} 1`)
	require.Contains(t, body, `route="/api/expenses/:id"`)
	require.Contains(t, body, "go_goroutines")
}
