package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"pharmastore/m/domain"
	"pharmastore/m/internal/ai"
	"pharmastore/m/internal/auth"
	"pharmastore/m/internal/cache"
	"pharmastore/m/internal/checkout"
	"pharmastore/m/internal/feed"
	"pharmastore/m/internal/logger"
	"pharmastore/m/internal/loyalty"
	"pharmastore/m/internal/metrics"
	"pharmastore/m/internal/orderstatus"
	"pharmastore/m/internal/stock"
	"pharmastore/m/internal/store"
)

// Deps are the services the HTTP layer is built on.
type Deps struct {
	Store     *store.Store
	Auth      *auth.Service
	Checkout  *checkout.Service
	Assistant *ai.Assistant
	Feed      feed.Broker
	Cache     *cache.Tracked
	Metrics   *metrics.Metrics
	Log       *zap.Logger
}

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	store     *store.Store
	auth      *auth.Service
	checkout  *checkout.Service
	assistant *ai.Assistant
	feed      feed.Broker
	cache     *cache.Tracked
	metrics   *metrics.Metrics
	log       *zap.Logger
}

// New constructs a Handler.
func New(d Deps) *Handler {
	h := &Handler{
		store:     d.Store,
		auth:      d.Auth,
		checkout:  d.Checkout,
		assistant: d.Assistant,
		feed:      d.Feed,
		cache:     d.Cache,
		metrics:   d.Metrics,
		log:       d.Log,
	}
	if h.cache == nil {
		h.cache = cache.NewTracked(cache.Nop{})
	}
	if h.log == nil {
		h.log = zap.NewNop()
	}
	return h
}

var (
	staffRoles = []domain.Role{domain.RoleAdmin, domain.RoleCashier, domain.RoleDriver}
	posRoles   = []domain.Role{domain.RoleAdmin, domain.RoleCashier}
)

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.requestID)
	r.Use(h.requestLogger)
	if h.metrics != nil {
		r.Use(h.metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	r.Get("/health", h.health)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Group(func(protected chi.Router) {
			protected.Use(h.authMiddleware)
			protected.Post("/reset-password", h.resetPassword)
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(h.optionalAuth)

		r.Get("/products", h.listProducts)
		r.Get("/products/{id}", h.getProduct)
		r.Get("/products/barcode/{code}", h.productByBarcode)
		r.Get("/categories", list(h.store.ListCategories))
		r.Get("/banners", h.listBanners)
		r.Post("/cart/quote", h.quote)
		r.Post("/orders", h.placeOrder)
		r.Post("/subscriptions", h.subscribe)
		r.Post("/bookings", h.createBooking)
		r.Post("/stock-alerts", h.createStockAlert)
		r.Post("/ai/chat", h.aiChat)
		r.Post("/ai/interactions", h.aiInteractions)
		r.Get("/stream/{collection}", h.stream)

		r.Group(func(me chi.Router) {
			me.Use(h.requireAuth)
			me.Get("/me", h.me)
			me.Put("/me", h.updateMe)
			me.Get("/me/orders", h.myOrders)
			me.Get("/me/bookings", h.myBookings)
			me.Route("/me/family", func(r chi.Router) {
				r.Get("/", h.listFamily)
				r.Post("/", h.createFamily)
				r.Put("/{id}", h.updateFamily)
				r.Delete("/{id}", h.deleteFamily)
			})
			me.Route("/me/medications", func(r chi.Router) {
				r.Get("/", h.listMedications)
				r.Post("/", h.createMedication)
				r.Put("/{id}", h.updateMedication)
				r.Delete("/{id}", h.deleteMedication)
			})
		})

		r.Group(func(sr chi.Router) {
			sr.Use(h.requireRoles(staffRoles...))
			sr.Get("/orders", h.listOrders)
			sr.Get("/orders/{id}", h.getOrder)
			sr.Post("/orders/{id}/advance", h.advanceOrder)
			sr.Get("/orders/{id}/whatsapp", h.orderWhatsApp)
		})

		r.Group(func(pos chi.Router) {
			pos.Use(h.requireRoles(posRoles...))
			pos.Post("/pos/checkout", h.posCheckout)
			pos.Get("/users/lookup", h.lookupCustomer)
		})

		r.Group(func(ar chi.Router) {
			ar.Use(h.requireRoles(domain.RoleAdmin))
			h.adminRoutes(ar)
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Middleware

func (h *Handler) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := logger.WithContext(r.Context(), h.log.With(zap.String("request_id", requestID)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.FromContext(r.Context()).Info("HTTP Request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", r.RemoteAddr),
		)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return "", false
	}
	return strings.TrimSpace(header[len("Bearer "):]), true
}

func (h *Handler) withClaims(r *http.Request, token string) (*http.Request, error) {
	claims, err := h.auth.Tokens().Parse(token)
	if err != nil {
		return r, err
	}
	ctx := auth.WithClaims(r.Context(), claims)
	ctx = logger.WithContext(ctx, logger.FromContext(ctx).With(zap.String("uid", claims.UID)))
	return r.WithContext(ctx), nil
}

// authMiddleware rejects requests without a valid bearer token.
func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		r, err := h.withClaims(r, token)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// optionalAuth attaches the caller when a token is present. Anonymous
// shoppers can still browse and check out.
func (h *Handler) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token, ok := bearerToken(r); ok {
			withClaims, err := h.withClaims(r, token)
			if err != nil {
				respondError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			r = withClaims
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.FromContext(r.Context()); !ok {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) requireRole(w http.ResponseWriter, r *http.Request, allowed ...domain.Role) bool {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "missing role")
		return false
	}
	if claims.HasRole(allowed...) {
		return true
	}
	respondError(w, http.StatusForbidden, "insufficient permissions")
	return false
}

func (h *Handler) requireRoles(allowed ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if h.requireRole(w, r, allowed...) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

func currentUID(r *http.Request) string {
	if c, ok := auth.FromContext(r.Context()); ok {
		return c.UID
	}
	return ""
}

// Helpers

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondErr maps service errors onto HTTP statuses. Unexpected errors are
// logged and reported without detail.
func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalid),
		errors.Is(err, checkout.ErrValidation),
		errors.Is(err, auth.ErrWeakPassword):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		respondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, stock.ErrInsufficientStock),
		errors.Is(err, loyalty.ErrInsufficientPoints),
		errors.Is(err, orderstatus.ErrInvalidTransition),
		errors.Is(err, orderstatus.ErrTerminal),
		errors.Is(err, orderstatus.ErrUnknownStatus),
		errors.Is(err, store.ErrConflict):
		respondError(w, http.StatusConflict, err.Error())
	default:
		logger.FromContext(r.Context()).Error("request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func nullIfEmpty(val string) *string {
	trimmed := strings.TrimSpace(val)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// Generic handlers for the simple collections.

func list[T any](fn func(ctx context.Context) ([]T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := fn(r.Context())
		if err != nil {
			respondErr(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, nonNil(rows))
	}
}

func create[T any](fn func(ctx context.Context, in T) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in T
		if err := decodeJSON(r, &in); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		out, err := fn(r.Context(), in)
		if err != nil {
			respondErr(w, r, err)
			return
		}
		respondJSON(w, http.StatusCreated, out)
	}
}

// update decodes T, stamps it with the {id} URL parameter and hands it to fn.
func update[T any](fn func(ctx context.Context, in T) (T, error), setID func(*T, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in T
		if err := decodeJSON(r, &in); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		setID(&in, chi.URLParam(r, "id"))
		out, err := fn(r.Context(), in)
		if err != nil {
			respondErr(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, out)
	}
}

func remove(fn func(ctx context.Context, id string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(r.Context(), chi.URLParam(r, "id")); err != nil {
			respondErr(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func nonNil[T any](rows []T) []T {
	if rows == nil {
		return []T{}
	}
	return rows
}
