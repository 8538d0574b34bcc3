package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/brevy/brevy/internal/analytics"
	"github.com/brevy/brevy/internal/handler/dto"
	"github.com/brevy/brevy/internal/metrics"
	"github.com/brevy/brevy/internal/middleware"
	"github.com/brevy/brevy/internal/model"
	"github.com/brevy/brevy/internal/service"
)

// ClickEmitter accepts click events for asynchronous delivery.
type ClickEmitter interface {
	Emit(event analytics.ClickEventPayload)
}

// RedirectHandler handles redirect requests.
type RedirectHandler struct {
	svc     *service.LinkService
	emitter ClickEmitter
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewRedirectHandler creates a new RedirectHandler.
// Pass a nil emitter to disable click event emission.
func NewRedirectHandler(svc *service.LinkService, emitter ClickEmitter, logger *slog.Logger, recorder metrics.Recorder) *RedirectHandler {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &RedirectHandler{
		svc:     svc,
		emitter: emitter,
		logger:  logger,
		metrics: recorder,
	}
}

// Redirect handles GET /{shortCode} for URL redirection.
func (h *RedirectHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortCode")
	if shortCode == "" {
		h.metrics.IncRedirect(metrics.OutcomeNotFound)
		h.writeError(w, http.StatusNotFound, "LINK_NOT_FOUND", "Link not found")
		return
	}

	start := time.Now()

	link, cacheHit, err := h.svc.Resolve(r.Context(), shortCode)
	duration := time.Since(start)

	if err != nil {
		h.handleRedirectError(w, shortCode, err, duration)
		return
	}

	// Click accounting is strictly off the request path: the counter bump
	// and the event emission never delay or fail the redirect.
	h.svc.RecordClick(shortCode)

	if h.emitter != nil {
		clickedAt := time.Now()
		event := model.ClickEvent{
			ID:           ulid.Make().String(),
			LinkID:       link.ID,
			ShortCode:    shortCode,
			Referrer:     analytics.SanitizeReferrer(r.Header.Get("Referer")),
			UserAgent:    analytics.TruncateUserAgent(r.Header.Get("User-Agent")),
			SourceIPHash: analytics.HashSourceIP(middleware.ClientIP(r), clickedAt),
			ClickedAt:    clickedAt,
		}
		h.emitter.Emit(analytics.PayloadFromEvent(&event))
	}

	h.metrics.IncRedirect(metrics.OutcomeRedirect)

	h.logger.Info("redirect_success",
		"short_code", shortCode,
		"redirect_type", int(link.RedirectType),
		"cache_hit", cacheHit,
		"duration_ms", float64(duration.Microseconds())/1000,
	)

	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("Cache-Control", "private, max-age=0")

	http.Redirect(w, r, link.Destination, int(link.RedirectType))
}

// handleRedirectError maps resolution errors to HTTP responses.
func (h *RedirectHandler) handleRedirectError(w http.ResponseWriter, shortCode string, err error, duration time.Duration) {
	switch {
	case errors.Is(err, service.ErrLinkNotFound):
		h.metrics.IncRedirect(metrics.OutcomeNotFound)
		h.logger.Info("redirect_not_found",
			"short_code", shortCode,
			"duration_ms", float64(duration.Microseconds())/1000,
		)
		h.writeError(w, http.StatusNotFound, "LINK_NOT_FOUND", "Link not found")

	case errors.Is(err, service.ErrLinkExpired):
		h.metrics.IncRedirect(metrics.OutcomeGone)
		h.logger.Info("redirect_expired",
			"short_code", shortCode,
			"reason", "expired",
			"duration_ms", float64(duration.Microseconds())/1000,
		)
		h.writeError(w, http.StatusGone, "LINK_EXPIRED", "Link has expired")

	case errors.Is(err, service.ErrLinkDisabled):
		h.metrics.IncRedirect(metrics.OutcomeNotFound)
		h.logger.Info("redirect_disabled",
			"short_code", shortCode,
			"reason", "disabled",
			"duration_ms", float64(duration.Microseconds())/1000,
		)
		// Disabled links answer 404 so their existence is not revealed.
		h.writeError(w, http.StatusNotFound, "LINK_NOT_FOUND", "Link not found")

	case errors.Is(err, service.ErrStoreUnavailable):
		h.metrics.IncRedirect(metrics.OutcomeUnavailable)
		h.logger.Error("redirect_store_unavailable",
			"short_code", shortCode,
			"error", err,
			"duration_ms", float64(duration.Microseconds())/1000,
		)
		w.Header().Set("Retry-After", "2")
		h.writeError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Service temporarily unavailable")

	default:
		h.metrics.IncRedirect(metrics.OutcomeUnavailable)
		h.logger.Error("redirect_error",
			"short_code", shortCode,
			"error", err,
			"duration_ms", float64(duration.Microseconds())/1000,
		)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}

// writeError writes a JSON error response for redirect failures.
func (h *RedirectHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "private, max-age=0")

	writeJSON(w, status, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}

