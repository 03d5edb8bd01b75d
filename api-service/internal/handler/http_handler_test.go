package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-chat/api-service/internal/repository"
	"github.com/weiawesome/wes-io-chat/api-service/internal/service"
	"github.com/weiawesome/wes-io-chat/pkg/jwt"
	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/middleware"
	"github.com/weiawesome/wes-io-chat/pkg/schema"
	"github.com/weiawesome/wes-io-chat/pkg/schema/schematest"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

type joinResult struct {
	AlreadyMember bool `json:"already_member"`
}

type api struct {
	t      *testing.T
	router *gin.Engine
	seed   func(schema.MessageModel)
}

func newAPI(t *testing.T) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := schematest.Open(t)
	tokens, err := jwt.NewManager("test-secret", "test", time.Minute)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	roomRepo := repository.NewGormRoomRepository(db)
	h := NewHandler(
		service.NewUserService(repository.NewGormUserRepository(db), tokens),
		service.NewRoomService(roomRepo),
		service.NewHistoryService(roomRepo, repository.NewGormMessageRepository(db), service.HistoryConfig{}),
		middleware.NewAuthMiddleware(tokens),
	)

	r := gin.New()
	r.Use(log.GinMiddleware(log.Nop()))
	h.RegisterRoutes(r)

	return &api{
		t:      t,
		router: r,
		seed: func(m schema.MessageModel) {
			if err := db.Create(&m).Error; err != nil {
				t.Fatalf("seed: %v", err)
			}
		},
	}
}

func (a *api) do(method, path, token string, body any) (int, envelope) {
	a.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			a.t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec.Code, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return v
}

// login registers username and returns an access token and the user id.
func (a *api) login(username string) (string, string) {
	a.t.Helper()

	code, _ := a.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{"username": username, "password": "secret1"})
	if code != http.StatusCreated {
		a.t.Fatalf("register %s = %d", username, code)
	}
	code, env := a.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": username, "password": "secret1"})
	if code != http.StatusOK {
		a.t.Fatalf("login %s = %d", username, code)
	}
	resp := decode[struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		User        struct {
			ID string `json:"id"`
		} `json:"user"`
	}](a.t, env.Data)
	if resp.TokenType != "bearer" || resp.AccessToken == "" {
		a.t.Fatalf("login response %s", env.Data)
	}
	return resp.AccessToken, resp.User.ID
}

func TestAccountFlow(t *testing.T) {
	a := newAPI(t)
	token, userID := a.login("alice")

	code, _ := a.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{"username": "alice", "password": "secret1"})
	if code != http.StatusConflict {
		t.Fatalf("duplicate register = %d, want 409", code)
	}
	code, _ = a.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{"username": "al", "password": "secret1"})
	if code != http.StatusBadRequest {
		t.Fatalf("short username = %d, want 400", code)
	}
	code, _ = a.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "alice", "password": "wrong!"})
	if code != http.StatusUnauthorized {
		t.Fatalf("bad login = %d, want 401", code)
	}

	code, env := a.do(http.MethodGet, "/api/v1/users/me", token, nil)
	if code != http.StatusOK {
		t.Fatalf("me = %d", code)
	}
	me := decode[struct{ ID, Username string }](t, env.Data)
	if me.ID != userID || me.Username != "alice" {
		t.Fatalf("me = %+v", me)
	}

	if code, _ := a.do(http.MethodGet, "/api/v1/users/me", "", nil); code != http.StatusUnauthorized {
		t.Fatalf("anonymous me = %d", code)
	}
}

func TestRoomFlow(t *testing.T) {
	a := newAPI(t)
	owner, _ := a.login("alice")
	guest, _ := a.login("bob")

	code, _ := a.do(http.MethodPost, "/api/v1/rooms", owner, map[string]any{"name": "vault", "is_private": true})
	if code != http.StatusBadRequest {
		t.Fatalf("private room without password = %d, want 400", code)
	}

	code, env := a.do(http.MethodPost, "/api/v1/rooms", owner, map[string]any{"name": "vault", "is_private": true, "password": "pw"})
	if code != http.StatusCreated {
		t.Fatalf("create = %d", code)
	}
	room := decode[struct{ ID string }](t, env.Data)

	if code, _ := a.do(http.MethodPost, "/api/v1/rooms", owner, map[string]any{"name": "vault"}); code != http.StatusConflict {
		t.Fatalf("duplicate name = %d, want 409", code)
	}
	if code, _ := a.do(http.MethodGet, "/api/v1/rooms/"+room.ID, "", nil); code != http.StatusOK {
		t.Fatalf("get room = %d", code)
	}
	if code, _ := a.do(http.MethodGet, "/api/v1/rooms/missing", "", nil); code != http.StatusNotFound {
		t.Fatalf("get missing = %d", code)
	}

	join := "/api/v1/rooms/" + room.ID + "/join"
	if code, _ := a.do(http.MethodPost, join, guest, nil); code != http.StatusForbidden {
		t.Fatalf("join without password = %d, want 403", code)
	}
	if code, _ := a.do(http.MethodPost, join, guest, map[string]string{"password": "bad"}); code != http.StatusForbidden {
		t.Fatalf("join with wrong password = %d, want 403", code)
	}
	code, env = a.do(http.MethodPost, join, guest, map[string]string{"password": "pw"})
	if code != http.StatusOK {
		t.Fatalf("join = %d", code)
	}
	if decode[joinResult](t, env.Data).AlreadyMember {
		t.Fatal("first join reported already_member")
	}
	code, env = a.do(http.MethodPost, join, guest, nil)
	if code != http.StatusOK {
		t.Fatalf("rejoin = %d", code)
	}
	if !decode[joinResult](t, env.Data).AlreadyMember {
		t.Fatal("rejoin did not report already_member")
	}

	code, env = a.do(http.MethodGet, "/api/v1/rooms?page=1&page_size=10", "", nil)
	if code != http.StatusOK {
		t.Fatalf("list = %d", code)
	}
	list := decode[struct{ Total int }](t, env.Data)
	if list.Total != 1 {
		t.Fatalf("list total = %d", list.Total)
	}
}

func TestHistory(t *testing.T) {
	a := newAPI(t)
	owner, ownerID := a.login("alice")
	stranger, _ := a.login("carol")

	code, env := a.do(http.MethodPost, "/api/v1/rooms", owner, map[string]any{"name": "general"})
	if code != http.StatusCreated {
		t.Fatalf("create = %d", code)
	}
	room := decode[struct{ ID string }](t, env.Data)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range []string{"first", "second", "third"} {
		a.seed(schema.MessageModel{
			MessageID: "m-" + c,
			RoomID:    room.ID,
			UserID:    ownerID,
			Username:  "alice",
			Content:   c,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	path := "/api/v1/rooms/" + room.ID + "/messages"
	if code, _ := a.do(http.MethodGet, path, stranger, nil); code != http.StatusForbidden {
		t.Fatalf("stranger history = %d, want 403", code)
	}
	if code, _ := a.do(http.MethodGet, path, "", nil); code != http.StatusUnauthorized {
		t.Fatalf("anonymous history = %d, want 401", code)
	}

	code, env = a.do(http.MethodGet, path+"?limit=2", owner, nil)
	if code != http.StatusOK {
		t.Fatalf("history = %d", code)
	}
	page := decode[struct {
		Messages []struct {
			MessageID string `json:"message_id"`
			Content   string `json:"content"`
			Username  string `json:"username"`
		} `json:"messages"`
		Limit int `json:"limit"`
	}](t, env.Data)
	if page.Limit != 2 || len(page.Messages) != 2 {
		t.Fatalf("page = %+v", page)
	}
	if page.Messages[0].Content != "third" || page.Messages[1].Content != "second" {
		t.Fatalf("order = %+v", page.Messages)
	}
	if page.Messages[0].MessageID != "m-third" || page.Messages[0].Username != "alice" {
		t.Fatalf("fields = %+v", page.Messages[0])
	}
}

func TestHealthCheck(t *testing.T) {
	a := newAPI(t)
	for _, path := range []string{"/health", "/healthz"} {
		if code, _ := a.do(http.MethodGet, path, "", nil); code != http.StatusOK {
			t.Fatalf("%s = %d", path, code)
		}
	}
}
