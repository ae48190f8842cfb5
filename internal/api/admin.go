package api

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"pharmastore/m/domain"
	"pharmastore/m/internal/seed"
)

// adminRoutes mounts back-office endpoints. Callers have already been checked
// for the ADMIN role.
func (h *Handler) adminRoutes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Post("/products", create(h.store.CreateProduct))
		r.Post("/products/import", h.importProducts)
		r.Put("/products/{id}", update(h.store.UpdateProduct, func(p *domain.Product, id string) { p.ID = id }))
		r.Put("/products/{id}/stock", h.setStock)
		r.Delete("/products/{id}", remove(h.store.DeleteProduct))

		r.Post("/categories", create(h.store.CreateCategory))
		r.Put("/categories/{id}", update(h.store.UpdateCategory, func(c *domain.Category, id string) { c.ID = id }))
		r.Delete("/categories/{id}", remove(h.store.DeleteCategory))

		r.Get("/coupons", list(h.store.ListCoupons))
		r.Post("/coupons", create(h.store.CreateCoupon))
		r.Put("/coupons/{id}", update(h.store.UpdateCoupon, func(c *domain.Coupon, id string) { c.ID = id }))
		r.Delete("/coupons/{id}", remove(h.store.DeleteCoupon))

		r.Post("/banners", create(h.store.CreateBanner))
		r.Put("/banners/{id}", update(h.store.UpdateBanner, func(b *domain.Banner, id string) { b.ID = id }))
		r.Delete("/banners/{id}", remove(h.store.DeleteBanner))

		r.Get("/suppliers", list(h.store.ListSuppliers))
		r.Post("/suppliers", create(h.store.CreateSupplier))
		r.Put("/suppliers/{id}", update(h.store.UpdateSupplier, func(s *domain.Supplier, id string) { s.ID = id }))
		r.Delete("/suppliers/{id}", remove(h.store.DeleteSupplier))

		r.Get("/subscriptions", list(h.store.ListSubscriptions))
		r.Delete("/subscriptions/{id}", remove(h.store.DeleteSubscription))

		r.Get("/bookings", h.listBookings)
		r.Put("/bookings/{id}/status", h.setBookingStatus)
		r.Delete("/bookings/{id}", remove(h.store.DeleteBooking))

		r.Get("/stock-alerts", h.listStockAlerts)
		r.Delete("/stock-alerts/{id}", remove(h.store.DeleteStockAlert))

		r.Get("/expenses", h.listExpenses)
		r.Post("/expenses", create(h.store.CreateExpense))
		r.Delete("/expenses/{id}", remove(h.store.DeleteExpense))

		r.Get("/users", h.listUsers)
		r.Put("/users/{id}/role", h.setUserRole)

		r.Get("/searches/top", h.topSearches)

		r.Route("/reports", func(r chi.Router) {
			r.Get("/daily", h.dailyRevenue)
			r.Get("/monthly", h.monthlyRevenue)
			r.Get("/orders", h.listOrders)
			r.Get("/profit", h.profit)
			r.Get("/low-stock", h.lowStock)
			r.Get("/expiring", h.expiryAlerts)
		})

		r.Post("/ai/description", h.aiDescription)
		r.Post("/ai/social", h.aiSocial)
	})
}

// importProducts loads a CSV catalog sent as the request body.
func (h *Handler) importProducts(w http.ResponseWriter, r *http.Request) {
	created, updated, err := seed.ImportProducts(r.Context(), h.store, io.LimitReader(r.Body, 10<<20))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"created": created, "updated": updated})
}

func (h *Handler) listBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.store.ListBookings(r.Context(), "")
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(bookings))
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	role := domain.Role(strings.ToUpper(r.URL.Query().Get("role")))
	if role != "" && !role.Valid() {
		respondError(w, http.StatusBadRequest, "unknown role")
		return
	}
	users, err := h.store.ListUsers(r.Context(), role)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(users))
}

type roleRequest struct {
	Role domain.Role `json:"role"`
}

func (h *Handler) setUserRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	u, err := h.store.SetRole(r.Context(), chi.URLParam(r, "id"), req.Role)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, u)
}

func (h *Handler) topSearches(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	terms, err := h.store.TopSearches(r.Context(), limit)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(terms))
}

func (h *Handler) dailyRevenue(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.dateRange(w, r)
	if !ok {
		return
	}
	points, err := h.store.DailyRevenue(r.Context(), from, to)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(points))
}

func (h *Handler) monthlyRevenue(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.dateRange(w, r)
	if !ok {
		return
	}
	points, err := h.store.MonthlyRevenue(r.Context(), from, to)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(points))
}

func (h *Handler) profit(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.dateRange(w, r)
	if !ok {
		return
	}
	summary, err := h.store.Profit(r.Context(), from, to)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}
