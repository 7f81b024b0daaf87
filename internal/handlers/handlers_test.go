package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"solana-gif-portal/internal/models"
	"solana-gif-portal/internal/services"
	"solana-gif-portal/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.UseLogger(zap.NewNop())
}

// stubPortal records the arguments it was called with
type stubPortal struct {
	view      models.ViewState
	err       error
	lastLink  string
	lastTip   models.TipRequest
	lastDraft string
	calls     []string
}

func (s *stubPortal) record(name string) { s.calls = append(s.calls, name) }

func (s *stubPortal) View() models.ViewState { s.record("view"); return s.view }

func (s *stubPortal) Probe(context.Context) models.ViewState { s.record("probe"); return s.view }

func (s *stubPortal) Connect(context.Context) (models.ViewState, error) {
	s.record("connect")
	return s.view, s.err
}

func (s *stubPortal) Disconnect() models.ViewState { s.record("disconnect"); return s.view }

func (s *stubPortal) Refresh(context.Context) (models.ListState, error) {
	s.record("refresh")
	return s.view.List, s.err
}

func (s *stubPortal) SetDraft(value string) models.ViewState {
	s.record("draft")
	s.lastDraft = value
	return s.view
}

func (s *stubPortal) InitializeList(context.Context) (models.TxResponse, error) {
	s.record("init")
	return models.TxResponse{Signature: "sig", List: s.view.List}, s.err
}

func (s *stubPortal) SubmitGif(_ context.Context, link string) (models.TxResponse, error) {
	s.record("submit")
	s.lastLink = link
	return models.TxResponse{Signature: "sig", List: s.view.List}, s.err
}

func (s *stubPortal) Upvote(_ context.Context, link string) (models.TxResponse, error) {
	s.record("upvote")
	s.lastLink = link
	return models.TxResponse{Signature: "sig", List: s.view.List}, s.err
}

func (s *stubPortal) Tip(_ context.Context, recipient string, amount uint64) (models.TxResponse, error) {
	s.record("tip")
	s.lastTip = models.TipRequest{Recipient: recipient, Amount: amount}
	return models.TxResponse{Signature: "sig", List: s.view.List}, s.err
}

type stubChecker struct {
	rpc  services.HealthStatus
	list services.HealthStatus
}

func (s stubChecker) CheckRPC(context.Context) *services.HealthCheck {
	return &services.HealthCheck{Service: "solana_rpc", Status: s.rpc}
}

func (s stubChecker) GetDetailedHealth(ctx context.Context) map[string]*services.HealthCheck {
	return map[string]*services.HealthCheck{
		"rpc":          s.CheckRPC(ctx),
		"list_account": {Service: "list_account", Status: s.list},
	}
}

func newTestEngine(portal PortalService, checker HealthChecker, limit gin.HandlerFunc) (*gin.Engine, *EventHub) {
	engine := gin.New()
	engine.Use(logger.LoggingMiddleware())
	hub := NewEventHub(func() Event { return NewEvent("view", portal.View()) })
	router := NewRouter(portal, NewHealthHandler(checker, "test"), hub, limit)
	router.SetupRoutes(engine)
	router.SetupHealthRoutes(engine)
	return engine, hub
}

func serve(engine *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestGifHandlers(t *testing.T) {
	portal := &stubPortal{view: models.ViewState{Screen: models.ScreenGrid, List: models.EmptyState()}}
	engine, _ := newTestEngine(portal, stubChecker{}, nil)

	t.Run("SubmitTrimsLink", func(t *testing.T) {
		w := serve(engine, http.MethodPost, "/api/gifs", `{"gif_link":"  a.gif  "}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "a.gif", portal.lastLink)
	})

	t.Run("SubmitEmptyBodyUsesDraft", func(t *testing.T) {
		w := serve(engine, http.MethodPost, "/api/gifs", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "", portal.lastLink)
	})

	t.Run("SubmitBlankLinkRejected", func(t *testing.T) {
		before := len(portal.calls)
		w := serve(engine, http.MethodPost, "/api/gifs", `{"gif_link":"   "}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), string(models.ErrorCodeInvalidInput))
		assert.Len(t, portal.calls, before)
	})

	t.Run("Upvote", func(t *testing.T) {
		w := serve(engine, http.MethodPost, "/api/gifs/upvote", `{"gif_link":"b.gif"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "b.gif", portal.lastLink)

		var resp models.TxResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "sig", resp.Signature)
	})

	t.Run("Tip", func(t *testing.T) {
		w := serve(engine, http.MethodPost, "/api/gifs/tip", `{"recipient":"X","amount":7}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, models.TipRequest{Recipient: "X", Amount: 7}, portal.lastTip)
	})

	t.Run("TipWithoutRecipient", func(t *testing.T) {
		before := len(portal.calls)
		w := serve(engine, http.MethodPost, "/api/gifs/tip", `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Len(t, portal.calls, before)
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		w := serve(engine, http.MethodPost, "/api/gifs/upvote", `{`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), string(models.ErrorCodeMalformedJSON))
	})

	t.Run("Draft", func(t *testing.T) {
		w := serve(engine, http.MethodPut, "/api/draft", `{"value":"c.gif"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "c.gif", portal.lastDraft)
	})

	t.Run("InitializeAccount", func(t *testing.T) {
		w := serve(engine, http.MethodPost, "/api/account/init", "")
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("ListGifs", func(t *testing.T) {
		w := serve(engine, http.MethodGet, "/api/gifs", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"empty"`)
	})
}

func TestPortalErrorsMapToStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.ErrSessionRequired, http.StatusUnauthorized},
		{models.ErrCapabilityUnavailable, http.StatusServiceUnavailable},
		{models.ErrUserRejected, http.StatusForbidden},
		{models.Wrap(models.ErrSubmissionFailed, "add_gif", assert.AnError), http.StatusBadGateway},
	}

	for _, tt := range tests {
		portal := &stubPortal{err: tt.err}
		engine, _ := newTestEngine(portal, stubChecker{}, nil)

		assert.Equal(t, tt.want, serve(engine, http.MethodPost, "/api/gifs", `{"gif_link":"a.gif"}`).Code, tt.err.Error())
		assert.Equal(t, tt.want, serve(engine, http.MethodPost, "/api/session/connect", "").Code, tt.err.Error())
	}
}

func TestSessionHandlers(t *testing.T) {
	portal := &stubPortal{view: models.ViewState{Screen: models.ScreenConnect}}
	engine, _ := newTestEngine(portal, stubChecker{}, nil)

	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/api/view", "").Code)
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodPost, "/api/session/probe", "").Code)
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodPost, "/api/session/connect", "").Code)
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodDelete, "/api/session", "").Code)
	assert.Equal(t, []string{"view", "probe", "connect", "disconnect"}, portal.calls)
}

func TestWriteLimitOnlyGuardsWrites(t *testing.T) {
	portal := &stubPortal{view: models.ViewState{List: models.EmptyState()}}
	deny := func(c *gin.Context) { c.AbortWithStatus(http.StatusTooManyRequests) }
	engine, _ := newTestEngine(portal, stubChecker{}, deny)

	assert.Equal(t, http.StatusTooManyRequests, serve(engine, http.MethodPost, "/api/gifs", `{"gif_link":"a.gif"}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(engine, http.MethodPost, "/api/gifs/upvote", `{"gif_link":"a.gif"}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(engine, http.MethodPost, "/api/gifs/tip", `{"recipient":"X"}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(engine, http.MethodPost, "/api/account/init", "").Code)
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/api/gifs", "").Code)
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/api/view", "").Code)
}

func TestHealthHandlers(t *testing.T) {
	tests := []struct {
		name      string
		checker   stubChecker
		health    int
		readiness int
	}{
		{"Healthy", stubChecker{rpc: services.HealthStatusHealthy, list: services.HealthStatusHealthy}, http.StatusOK, http.StatusOK},
		{"Degraded", stubChecker{rpc: services.HealthStatusHealthy, list: services.HealthStatusDegraded}, http.StatusOK, http.StatusOK},
		{"Unhealthy", stubChecker{rpc: services.HealthStatusUnhealthy, list: services.HealthStatusUnhealthy}, http.StatusServiceUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, _ := newTestEngine(&stubPortal{}, tt.checker, nil)

			w := serve(engine, http.MethodGet, "/health", "")
			assert.Equal(t, tt.health, w.Code)
			var resp HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "test", resp.Version)
			assert.Len(t, resp.Services, 2)

			assert.Equal(t, tt.readiness, serve(engine, http.MethodGet, "/health/ready", "").Code)
			assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/health/live", "").Code)
		})
	}
}

func TestEventHub(t *testing.T) {
	portal := &stubPortal{view: models.ViewState{Screen: models.ScreenConnect}}
	engine, hub := newTestEngine(portal, stubChecker{}, nil)
	ts := httptest.NewServer(engine)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() Event {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var ev Event
		require.NoError(t, conn.ReadJSON(&ev))
		return ev
	}

	snapshot := read()
	assert.Equal(t, "view", snapshot.Kind)
	assert.NotEmpty(t, snapshot.ID)

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	hub.Publish(services.EventAlert, map[string]string{"message": "install a wallet"})
	ev := read()
	assert.Equal(t, services.EventAlert, ev.Kind)
	assert.Equal(t, map[string]interface{}{"message": "install a wallet"}, ev.Payload)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestEventHubPublishWithoutClients(t *testing.T) {
	hub := NewEventHub(nil)
	assert.NotPanics(t, func() { hub.Publish("view", nil) })
	assert.Zero(t, hub.Clients())
}
