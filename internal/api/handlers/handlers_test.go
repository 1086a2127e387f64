package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"craftbot.io/craftbot/internal/agent"
	"craftbot.io/craftbot/internal/api/middleware"
	"craftbot.io/craftbot/internal/config"
	"craftbot.io/craftbot/internal/domain"
	"craftbot.io/craftbot/internal/pkg/logger"
	"craftbot.io/craftbot/internal/repository"
	"craftbot.io/craftbot/internal/service"
	"craftbot.io/craftbot/internal/telegram"
	"craftbot.io/craftbot/internal/testutil"
	"craftbot.io/craftbot/internal/usecase"
)

func init() {
	gin.SetMode(gin.TestMode)
	_ = logger.Init("error", "json")
}

const (
	botToken      = "123456:TEST-token"
	webhookSecret = "hook-secret"
	instance      = "-8841"
)

var seededAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type testEnv struct {
	server *Server
	router *gin.Engine
	db     *sql.DB
	agent  *agent.StaticAgent
	jwt    middleware.JWTConfig
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.OpenDB(t, t.Name())
	b := testutil.NewBus(t)
	u := testutil.NewUnitOfWork(db)
	ag := agent.NewStaticAgent()
	service.RegisterAll(b,
		service.NewElementService(ag),
		service.NewRecipeService(),
		service.NewProgressService(),
		service.NewUserService(),
		service.NewChatService(),
		service.NewMembershipService(),
		service.NewMessageService(),
		service.NewPollService(),
	)
	busCfg := config.BusConfig{RequestTimeout: 5 * time.Second}
	jwtCfg := middleware.JWTConfig{SigningKey: []byte("test-signing-key-1234567890123456"), Issuer: "craftbot", ExpiresIn: time.Hour}

	s := NewServer(ServerDeps{
		Bus:        b,
		UnitOfWork: u,
		CombineUC:  usecase.NewCombineUseCase(b, u, config.CraftConfig{Seed: 7}, busCfg),
		IngestUC:   usecase.NewIngestUpdateUseCase(b, u),
		JWTCfg:     jwtCfg,
		Telegram:   config.TelegramConfig{BotToken: botToken, WebhookSecret: webhookSecret, InitDataTTL: time.Hour},
		DB:         pingFunc(db.PingContext),
	})
	s.now = func() time.Time { return seededAt }

	router := gin.New()
	router.Use(middleware.RequestID(), middleware.ErrorHandler())
	router.Use(func(c *gin.Context) {
		if raw := c.GetHeader("X-Test-User"); raw != "" {
			uid, _ := strconv.ParseInt(raw, 10, 64)
			c.Request = c.Request.WithContext(middleware.SetIdentity(c.Request.Context(),
				middleware.Identity{UserID: uid, ChatInstance: instance}))
		}
		c.Next()
	})
	RegisterHandlers(router, s)

	return &testEnv{server: s, router: router, db: db, agent: ag, jwt: jwtCfg}
}

func (e *testEnv) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	q := repository.New(e.db)
	for _, el := range []domain.Element{
		{Entity: domain.Entity{ID: 1, CreatedAt: seededAt, UpdatedAt: seededAt}, Name: "Fire", Emoji: "🔥", IsBase: true},
		{Entity: domain.Entity{ID: 2, CreatedAt: seededAt, UpdatedAt: seededAt}, Name: "Water", Emoji: "💧", IsBase: true},
	} {
		_, err := q.CreateElement(ctx, el)
		require.NoError(t, err)
	}
	_, err := q.UpsertUser(ctx, domain.User{
		Entity:     domain.Entity{ID: 7, CreatedAt: seededAt, UpdatedAt: seededAt},
		TelegramID: 5001,
		FirstName:  "Ada",
	})
	require.NoError(t, err)
}

func (e *testEnv) do(t *testing.T, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func asUser(id int64) map[string]string {
	return map[string]string{"X-Test-User": strconv.FormatInt(id, 10)}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestCombine(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t)
	e.agent.Seed("Fire", "Water", agent.Result{Reason: "steam", Result: agent.Element{Name: "Steam", Emoji: "💨"}})
	e.server.combineUC.WithRepeatProbability(0)

	w := e.do(t, http.MethodPost, "/api/v1/craft/combine",
		CombineRequest{ElementAID: 1, ElementBID: 2}, asUser(7))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[domain.ElementResponse](t, w)
	assert.Equal(t, "Steam", resp.Name)
	assert.Equal(t, "💨", resp.Emoji)
	assert.True(t, resp.IsNew)

	list := e.do(t, http.MethodGet, "/api/v1/craft/elements", nil, asUser(7))
	require.Equal(t, http.StatusOK, list.Code)
	assert.Len(t, decode[ElementList](t, list).Items, 3)

	got := e.do(t, http.MethodGet, "/api/v1/craft/elements/"+strconv.FormatInt(resp.ID, 10), nil, asUser(7))
	require.Equal(t, http.StatusOK, got.Code)
	assert.Equal(t, "Steam", decode[domain.Element](t, got).Name)
}

func TestCombine_Errors(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t)

	tests := []struct {
		name   string
		body   any
		user   map[string]string
		status int
		code   string
	}{
		{"missing ids", map[string]any{"element_a_id": 1}, asUser(7), http.StatusBadRequest, "INVALID_COMBINATION"},
		{"negative id", CombineRequest{ElementAID: -1, ElementBID: 2}, asUser(7), http.StatusBadRequest, "INVALID_COMBINATION"},
		{"locked element", CombineRequest{ElementAID: 1, ElementBID: 999}, asUser(7), http.StatusForbidden, "ELEMENT_LOCKED"},
		{"anonymous", CombineRequest{ElementAID: 1, ElementBID: 2}, nil, http.StatusUnauthorized, "AUTH_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := e.do(t, http.MethodPost, "/api/v1/craft/combine", tt.body, tt.user)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, decode[map[string]any](t, w)["code"])
		})
	}
}

func TestGetElement_Errors(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t)

	w := e.do(t, http.MethodGet, "/api/v1/craft/elements/404", nil, asUser(7))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "ENTITY_NOT_FOUND", decode[map[string]any](t, w)["code"])

	w = e.do(t, http.MethodGet, "/api/v1/craft/elements/abc", nil, asUser(7))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthTelegram(t *testing.T) {
	e := newTestEnv(t)

	user, err := json.Marshal(telegram.User{ID: 5001, FirstName: "Ada", Username: "ada"})
	require.NoError(t, err)
	values := url.Values{}
	values.Set("user", string(user))
	values.Set("chat_instance", instance)
	values.Set("auth_date", strconv.FormatInt(seededAt.Add(-time.Minute).Unix(), 10))
	values.Set("hash", telegram.Sign(values, botToken))

	w := e.do(t, http.MethodPost, "/api/v1/auth/telegram", AuthTelegramRequest{InitData: values.Encode()}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[AuthTelegramResponse](t, w)
	assert.Equal(t, int64(5001), resp.User.TelegramID)
	assert.NotZero(t, resp.User.ID)
	assert.Equal(t, instance, resp.ChatInstance)

	claims, err := e.jwt.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID, "token carries the stored user id")
	assert.Equal(t, instance, claims.ChatInstance)

	values.Set("hash", telegram.Sign(values, "other:token"))
	w = e.do(t, http.MethodPost, "/api/v1/auth/telegram", AuthTelegramRequest{InitData: values.Encode()}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, http.MethodPost, "/api/v1/auth/telegram", map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTelegramWebhook(t *testing.T) {
	e := newTestEnv(t)
	secret := map[string]string{WebhookSecretHeader: webhookSecret}

	upd := telegram.Update{UpdateID: 1, Message: &telegram.Message{
		MessageID: 10,
		From:      &telegram.User{ID: 5001, FirstName: "Ada"},
		Chat:      telegram.Chat{ID: -100, Type: "group", Title: "Lab"},
		Date:      seededAt.Unix(),
		Text:      "hello",
	}}

	w := e.do(t, http.MethodPost, "/telegram/webhook", upd, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, http.MethodPost, "/telegram/webhook", upd, secret)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var n int
	require.NoError(t, e.db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&n))
	assert.Equal(t, 1, n)

	// An answer for a poll the bot never saw is acknowledged and dropped.
	vote := telegram.Update{UpdateID: 2, PollAnswer: &telegram.PollAnswer{
		PollID: "unknown", User: &telegram.User{ID: 5001, FirstName: "Ada"}, OptionIDs: []int{0},
	}}
	w = e.do(t, http.MethodPost, "/telegram/webhook", vote, secret)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodGet, "/health/live", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodGet, "/health/ready", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode[Health](t, w).Checks["database"])

	e.server.db = pingFunc(func(context.Context) error { return errors.New("down") })
	w = e.do(t, http.MethodGet, "/health/ready", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, HealthStatusDegraded, decode[Health](t, w).Status)
}
