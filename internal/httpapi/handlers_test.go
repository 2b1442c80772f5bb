package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"whatsapp-gateway/internal/auth"
	"whatsapp-gateway/internal/config"
	"whatsapp-gateway/internal/stats"
	"whatsapp-gateway/internal/store"

	"github.com/gin-gonic/gin"
)

type apiFixture struct {
	handlers Handlers
	messages *store.MemoryMessageRepo
	outgoing *store.MemoryOutgoingRepo
	router   *gin.Engine
}

func newAPIFixture(t *testing.T, ops config.OpsConfig) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m, err := auth.NewManager(config.AuthConfig{
		JWTSecret:       "test-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("auth manager: %v", err)
	}

	f := &apiFixture{
		messages: store.NewMemoryMessageRepo(),
		outgoing: store.NewMemoryOutgoingRepo(),
	}
	f.handlers = Handlers{
		Auth:     m,
		Ops:      ops,
		Messages: f.messages,
		Calls:    store.NewMemoryCallRepo(),
		Statuses: store.NewMemoryStatusRepo(),
		Outgoing: f.outgoing,
		Stats:    stats.NewRecorder(nil, nil),
		Now:      func() time.Time { return time.Unix(1700000000, 0).UTC() },
	}

	r := gin.New()
	r.POST("/api/auth/login", f.handlers.Login)
	protected := r.Group("/api", auth.RequireAccessToken(m), auth.RequireRole(auth.RoleOps))
	protected.GET("/messages", f.handlers.ListMessages)
	protected.GET("/calls", f.handlers.ListCalls)
	protected.GET("/statuses", f.handlers.ListStatuses)
	protected.GET("/outgoing", f.handlers.ListOutgoing)
	protected.POST("/messages/:id/processed", f.handlers.MarkProcessed)
	protected.GET("/stats", f.handlers.GetStats)
	f.router = r
	return f
}

func (f *apiFixture) do(method, path, body, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	f.router.ServeHTTP(w, r)
	return w
}

func (f *apiFixture) login(t *testing.T) string {
	t.Helper()
	w := f.do(http.MethodPost, "/api/auth/login", `{"username":"ops","password":"hunter2"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.AccessToken == "" {
		t.Fatalf("login response missing access_token: %s", w.Body.String())
	}
	return resp.AccessToken
}

var opsCreds = config.OpsConfig{Username: "ops", Password: "hunter2"}

func TestLogin_RejectsBadCredentials(t *testing.T) {
	f := newAPIFixture(t, opsCreds)

	w := f.do(http.MethodPost, "/api/auth/login", `{"username":"ops","password":"wrong"}`, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	w = f.do(http.MethodPost, "/api/auth/login", `{"username":"intruder","password":"hunter2"}`, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestLogin_DisabledWithoutOpsCredential(t *testing.T) {
	f := newAPIFixture(t, config.OpsConfig{})

	w := f.do(http.MethodPost, "/api/auth/login", `{"username":"ops","password":"hunter2"}`, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when login disabled, got %d", w.Code)
	}
}

func TestProtectedEndpointsRequireToken(t *testing.T) {
	f := newAPIFixture(t, opsCreds)

	for _, path := range []string{"/api/messages", "/api/calls", "/api/statuses", "/api/outgoing", "/api/stats"} {
		if w := f.do(http.MethodGet, path, "", ""); w.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 without token, got %d", path, w.Code)
		}
		if w := f.do(http.MethodGet, path, "", "garbage"); w.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 with bad token, got %d", path, w.Code)
		}
	}
}

func TestListMessages_Filters(t *testing.T) {
	f := newAPIFixture(t, opsCreds)
	token := f.login(t)

	ctx := context.Background()
	base := time.Unix(1700000000, 0).UTC()
	seed := []store.InboundMessage{
		{ID: "i1", MessageID: "m1", WaID: "111", MessageType: "text", CreatedAt: base},
		{ID: "i2", MessageID: "m2", WaID: "222", MessageType: "image", CreatedAt: base.Add(time.Second)},
		{ID: "i3", MessageID: "m3", WaID: "111", MessageType: "text", Processed: true, CreatedAt: base.Add(2 * time.Second)},
	}
	for i := range seed {
		if _, err := f.messages.Upsert(ctx, &seed[i]); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	w := f.do(http.MethodGet, "/api/messages?wa_id=111&message_type=text", "", token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Count    int                    `json:"count"`
		Messages []store.InboundMessage `json:"messages"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Count != 2 {
		t.Fatalf("expected 2 messages for wa_id=111, got %d", resp.Count)
	}

	w = f.do(http.MethodGet, "/api/messages?processed=false", "", token)
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Count != 2 {
		t.Fatalf("expected 2 unprocessed messages, got %d", resp.Count)
	}

	if w := f.do(http.MethodGet, "/api/messages?processed=banana", "", token); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad processed value, got %d", w.Code)
	}
}

func TestMarkProcessed(t *testing.T) {
	f := newAPIFixture(t, opsCreds)
	token := f.login(t)

	ctx := context.Background()
	msg := store.InboundMessage{ID: "i1", MessageID: "m1", WaID: "111", MessageType: "text"}
	if _, err := f.messages.Upsert(ctx, &msg); err != nil {
		t.Fatalf("seed: %v", err)
	}

	w := f.do(http.MethodPost, "/api/messages/i1/processed", "", token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	processed := true
	got, err := f.messages.List(ctx, store.MessageFilter{Processed: &processed})
	if err != nil || len(got) != 1 {
		t.Fatalf("expected one processed message, got %d (err=%v)", len(got), err)
	}

	if w := f.do(http.MethodPost, "/api/messages/nope/processed", "", token); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown id, got %d", w.Code)
	}
}

func TestGetStats_ZeroesWithoutRedis(t *testing.T) {
	f := newAPIFixture(t, opsCreds)
	token := f.login(t)

	w := f.do(http.MethodGet, "/api/stats", "", token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]int64
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	for _, k := range []string{"messages_received", "calls_received", "statuses_received", "messages_sent", "send_failures"} {
		if v, ok := resp[k]; !ok || v != 0 {
			t.Fatalf("expected zero counter %s, got %v (present=%v)", k, v, ok)
		}
	}
}
