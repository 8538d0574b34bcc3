package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/brevy/brevy/internal/handler/dto"
	"github.com/brevy/brevy/internal/metrics"
	"github.com/brevy/brevy/internal/model"
	"github.com/brevy/brevy/internal/service"
	"github.com/brevy/brevy/internal/shortcode"
)

func newLinkTestRouter(repo *stubRepo) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gen, err := shortcode.NewGenerator(6, 8, 3)
	if err != nil {
		panic(err)
	}
	svc := service.NewLinkService(repo, newStubCache(), gen, logger, metrics.NewNoop(), "http://localhost:8080", 50*time.Millisecond)
	h := NewLinkHandler(svc, logger)

	r := chi.NewRouter()
	r.Route("/api/v1/links", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Patch("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
	return r
}

func TestUpdateLink_ClearExpiryViaAPI(t *testing.T) {
	t.Parallel()

	link := redirectTestLink("fading", "https://example.com", model.RedirectTemporary)
	future := time.Now().Add(time.Hour)
	link.ExpiresAt = &future
	repo := &stubRepo{links: map[string]*model.Link{"fading": link}}
	router := newLinkTestRouter(repo)

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/links/"+link.ID,
		strings.NewReader(`{"clear_expiry": true}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}

	var resp dto.LinkResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ExpiresAt != nil {
		t.Errorf("response ExpiresAt = %v, want cleared", resp.ExpiresAt)
	}
	if stored := repo.links["fading"]; stored.ExpiresAt != nil {
		t.Errorf("stored ExpiresAt = %v, want cleared", stored.ExpiresAt)
	}
}

func TestUpdateLink_SetExpiryViaAPI(t *testing.T) {
	t.Parallel()

	link := redirectTestLink("dated1", "https://example.com", model.RedirectTemporary)
	repo := &stubRepo{links: map[string]*model.Link{"dated1": link}}
	router := newLinkTestRouter(repo)

	expiry := time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339)
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/links/"+link.ID,
		strings.NewReader(`{"expires_at": "`+expiry+`"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	if stored := repo.links["dated1"]; stored.ExpiresAt == nil {
		t.Error("stored ExpiresAt = nil, want set")
	}
}

func TestUpdateLink_InvalidJSON(t *testing.T) {
	t.Parallel()

	link := redirectTestLink("broken", "https://example.com", model.RedirectTemporary)
	repo := &stubRepo{links: map[string]*model.Link{"broken": link}}
	router := newLinkTestRouter(repo)

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/links/"+link.ID,
		strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCreateLink_ViaAPI(t *testing.T) {
	t.Parallel()

	repo := &stubRepo{links: map[string]*model.Link{}}
	router := newLinkTestRouter(repo)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/links",
		strings.NewReader(`{"destination": "https://example.com/page"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", rec.Code, rec.Body.String())
	}

	var resp dto.LinkResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.ShortCode) != 6 {
		t.Errorf("ShortCode = %q, want 6 chars", resp.ShortCode)
	}
	if resp.ShortURL != "http://localhost:8080/"+resp.ShortCode {
		t.Errorf("ShortURL = %q", resp.ShortURL)
	}
}
