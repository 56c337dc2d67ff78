package handler_test

// These tests exercise the handlers through a real router wired to real
// services over an in-memory database — the same stack production runs,
// minus SMTP and rate limiting. Each test gets a fresh database.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/study-tracker/internal/auth"
	"github.com/sakif/study-tracker/internal/handler"
	"github.com/sakif/study-tracker/internal/repository/sqlite"
	"github.com/sakif/study-tracker/internal/service"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// captureMailer records outgoing codes and links so tests can redeem them.
type captureMailer struct {
	otps  map[string]string // email → last code
	links map[string]string // email → last reset link
}

func newCaptureMailer() *captureMailer {
	return &captureMailer{otps: map[string]string{}, links: map[string]string{}}
}

func (m *captureMailer) SendOTP(_ context.Context, to, _, code string) error {
	m.otps[to] = code
	return nil
}

func (m *captureMailer) SendPasswordReset(_ context.Context, to, _, link string) error {
	m.links[to] = link
	return nil
}

type env struct {
	router http.Handler
	mailer *captureMailer
}

// newEnv wires the full handler stack over a fresh :memory: database. The
// route table mirrors production; rate limiters are left out so tests can
// hammer endpoints freely.
func newEnv(t *testing.T) *env {
	t.Helper()

	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens, err := auth.NewTokenService(testSecret)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	passwords := auth.NewPasswordServiceForTest(4)
	mailer := newCaptureMailer()

	authService := service.NewAuthService(db, tokens, passwords, mailer, "http://localhost:5173", logger)
	listService := service.NewListService(db, logger)
	progressService := service.NewProgressService(db, db, db, logger)
	publicService := service.NewPublicService(db, db, logger)

	authHandler := handler.NewAuthHandler(authService, logger)
	healthHandler := handler.NewHealthHandler(db)
	listHandler := handler.NewListHandler(listService, logger)
	treeHandler := handler.NewTreeHandler(listService, logger)
	progressHandler := handler.NewProgressHandler(progressService, logger)
	publicHandler := handler.NewPublicHandler(publicService, logger)

	requireAuth := auth.RequireAuth(tokens)
	optionalAuth := auth.OptionalAuth(tokens)

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler.HandleHealth)

		r.Post("/auth/signup", authHandler.HandleSignup)
		r.Post("/auth/login", authHandler.HandleLogin)
		r.Post("/auth/verify-email", authHandler.HandleVerifyEmail)
		r.Post("/auth/resend-otp", authHandler.HandleResendOTP)
		r.Post("/password/forgot", authHandler.HandleForgotPassword)
		r.Post("/password/reset", authHandler.HandleResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(optionalAuth)
			r.Get("/public-lists", publicHandler.HandleSearch)
			r.Get("/public-lists/{listID}", publicHandler.HandleGetTree)
			r.Get("/public-lists/{listID}/lineage", publicHandler.HandleLineage)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/auth/me", authHandler.HandleMe)
			r.Post("/auth/logout", authHandler.HandleLogout)

			r.Post("/custom-lists", listHandler.HandleCreate)
			r.Get("/custom-lists", listHandler.HandleList)
			r.Get("/custom-lists/{listID}", listHandler.HandleGetTree)
			r.Patch("/custom-lists/{listID}", listHandler.HandleUpdate)
			r.Delete("/custom-lists/{listID}", listHandler.HandleDelete)

			r.Post("/custom-lists/{listID}/sections", treeHandler.HandleCreateSection)
			r.Patch("/sections/{sectionID}", treeHandler.HandleUpdateSection)
			r.Delete("/sections/{sectionID}", treeHandler.HandleDeleteSection)
			r.Put("/sections/{sectionID}/reorder", treeHandler.HandleReorderSection)

			r.Post("/sections/{sectionID}/topics", treeHandler.HandleCreateTopic)
			r.Patch("/topics/{topicID}", treeHandler.HandleUpdateTopic)
			r.Delete("/topics/{topicID}", treeHandler.HandleDeleteTopic)
			r.Put("/topics/{topicID}/reorder", treeHandler.HandleReorderTopic)

			r.Post("/topics/{topicID}/resources", treeHandler.HandleCreateResource)
			r.Patch("/resources/{resourceID}", treeHandler.HandleUpdateResource)
			r.Delete("/resources/{resourceID}", treeHandler.HandleDeleteResource)
			r.Put("/resources/{resourceID}/reorder", treeHandler.HandleReorderResource)

			r.Post("/public-lists/{listID}/rate", publicHandler.HandleRate)
			r.Post("/public-lists/{listID}/copy", publicHandler.HandleCopy)

			r.Post("/progress/toggle", progressHandler.HandleToggle)
			r.Post("/progress/complete-topic", progressHandler.HandleCompleteTopic)
			r.Post("/builtin-progress/batch", progressHandler.HandleSaveBuiltin)
			r.Post("/builtin-progress/migrate", progressHandler.HandleMigrateLocal)
			r.Get("/progress/lists/{listID}", progressHandler.HandleListProgress)
			r.Get("/builtin-progress", progressHandler.HandleLoadBuiltin)
		})
	})

	return &env{router: router, mailer: mailer}
}

// do runs one request through the router. body may be a raw string (sent
// as-is, for malformed-JSON tests) or any value to marshal.
func (e *env) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshalling request body: %v", err)
		}
		reader = bytes.NewBuffer(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// decode unmarshals a recorded response body into dst.
func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

const testPassword = "Str0ng!pass"

var userSeq int

// signupUser registers a fresh account and returns its token and email.
func signupUser(t *testing.T, e *env) (token, email string) {
	t.Helper()

	userSeq++
	email = fmt.Sprintf("user%d@example.com", userSeq)
	rec := e.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email":    email,
		"username": fmt.Sprintf("user%d", userSeq),
		"password": testPassword,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup returned %d: %s", rec.Code, rec.Body.String())
	}

	var result struct {
		Token string `json:"token"`
	}
	decode(t, rec, &result)
	return result.Token, email
}

// treeFixture is the minimal list → section → topic → resource chain most
// tests need.
type treeFixture struct {
	listID, sectionID, topicID, resourceID string
}

func buildTree(t *testing.T, e *env, token string) treeFixture {
	t.Helper()
	var f treeFixture

	var created struct {
		ID string `json:"id"`
	}

	rec := e.do(t, http.MethodPost, "/api/custom-lists", token, map[string]string{"title": "DSA Roadmap"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("creating list: %d %s", rec.Code, rec.Body.String())
	}
	decode(t, rec, &created)
	f.listID = created.ID

	rec = e.do(t, http.MethodPost, "/api/custom-lists/"+f.listID+"/sections", token,
		map[string]string{"title": "Arrays"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("creating section: %d %s", rec.Code, rec.Body.String())
	}
	decode(t, rec, &created)
	f.sectionID = created.ID

	rec = e.do(t, http.MethodPost, "/api/sections/"+f.sectionID+"/topics", token,
		map[string]string{"title": "Two Pointers"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("creating topic: %d %s", rec.Code, rec.Body.String())
	}
	decode(t, rec, &created)
	f.topicID = created.ID

	rec = e.do(t, http.MethodPost, "/api/topics/"+f.topicID+"/resources", token,
		map[string]string{
			"type":  "video",
			"title": "Two pointers explained",
			"url":   "https://www.youtube.com/watch?v=abc",
		})
	if rec.Code != http.StatusCreated {
		t.Fatalf("creating resource: %d %s", rec.Code, rec.Body.String())
	}
	decode(t, rec, &created)
	f.resourceID = created.ID

	return f
}
