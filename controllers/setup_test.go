package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go-farmmarket/controllers"
	"go-farmmarket/models"
	"go-farmmarket/routes"
	"go-farmmarket/store"
	"go-farmmarket/utils"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type emitted struct {
	Room    string
	Type    models.EventType
	Payload interface{}
}

type recordingEvents struct {
	mu     sync.Mutex
	events []emitted
}

func (r *recordingEvents) EmitToUser(id primitive.ObjectID, t models.EventType, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, emitted{Room: "user:" + id.Hex(), Type: t, Payload: payload})
}

func (r *recordingEvents) EmitToChat(id primitive.ObjectID, t models.EventType, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, emitted{Room: "chat:" + id.Hex(), Type: t, Payload: payload})
}

func (r *recordingEvents) to(room string, t models.EventType) []emitted {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []emitted
	for _, e := range r.events {
		if e.Room == room && e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type sentMail struct {
	To, Subject, HTML string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *recordingMailer) SendEmail(to, subject, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, HTML: html})
	return nil
}

// to returns the mails sent to one address so far
func (m *recordingMailer) to(addr string) []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []sentMail
	for _, s := range m.sent {
		if s.To == addr {
			out = append(out, s)
		}
	}
	return out
}

type testEnv struct {
	t      *testing.T
	store  *store.Store
	router *mux.Router
	events *recordingEvents
	mailer *recordingMailer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, nil)
}

// newTestEnvWith lets a test swap parts of the memory store before the
// controllers are built.
func newTestEnvWith(t *testing.T, tweak func(*store.Store)) *testEnv {
	t.Helper()
	utils.JwtKey = []byte("test-secret")
	utils.TokenTTL = time.Hour
	utils.ExposeErrors = true

	env := &testEnv{
		t:      t,
		store:  store.NewMemoryStore(),
		router: mux.NewRouter(),
		events: &recordingEvents{},
		mailer: &recordingMailer{},
	}
	if tweak != nil {
		tweak(env.store)
	}
	routes.RegisterRoutes(env.router,
		controllers.NewUserController(env.store.Users, env.mailer, "http://farm.test"),
		controllers.NewProductController(env.store.Products),
		controllers.NewOrderController(env.store, env.mailer, env.events),
		controllers.NewChatController(env.store.Chats, env.store.Users, env.events),
		controllers.NewFarmerController(env.store.Farmers),
		func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotImplemented) },
	)
	return env
}

func (e *testEnv) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

type account struct {
	Token string
	User  models.User
}

func (e *testEnv) register(name, email string, role models.Role) account {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/auth/register", "", map[string]interface{}{
		"name":     name,
		"email":    email,
		"password": "secret123",
		"role":     role,
	})
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())

	var out struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	decodeJSON(e.t, rec, &out)
	return account{Token: out.Token, User: out.User}
}

func (e *testEnv) seedProduct(farmer primitive.ObjectID, name string, price float64, stock int) models.Product {
	e.t.Helper()
	now := time.Now().UTC()
	p := models.Product{
		FarmerID:  farmer,
		Name:      name,
		Price:     price,
		Unit:      "kg",
		Category:  "vegetables",
		Stock:     stock,
		Images:    []string{},
		Tags:      []string{},
		Ratings:   []models.ProductRating{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(e.t, e.store.Products.CreateProduct(context.Background(), &p))
	return p
}

// admin inserts an admin directly; registration never hands out that role.
func (e *testEnv) admin() account {
	e.t.Helper()
	hash, err := utils.HashPassword("secret123")
	require.NoError(e.t, err)
	u := models.User{Name: "Admin", Email: "admin@farm.test", Password: hash, Role: models.RoleAdmin}
	require.NoError(e.t, e.store.Users.CreateUser(context.Background(), &u))
	token, err := utils.GenerateJWT(u.ID.Hex(), u.Email, string(u.Role))
	require.NoError(e.t, err)
	return account{Token: token, User: u}
}

func messageOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	decodeJSON(t, rec, &body)
	return body["message"]
}
