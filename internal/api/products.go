package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"pharmastore/m/domain"
	"pharmastore/m/internal/cache"
	"pharmastore/m/internal/logger"
	"pharmastore/m/internal/store"
)

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ProductFilter{
		Category:    strings.TrimSpace(q.Get("category")),
		Query:       strings.TrimSpace(q.Get("q")),
		InStockOnly: q.Get("in_stock") == "true",
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	log := logger.FromContext(r.Context())
	if filter.Query != "" {
		if err := h.store.RecordSearch(r.Context(), filter.Query); err != nil {
			log.Warn("unable to record search", zap.Error(err))
		}
	}

	key := fmt.Sprintf("products:%s|%s|%t|%d", filter.Category, strings.ToLower(filter.Query), filter.InStockOnly, filter.Limit)
	gen := h.cache.Generation()
	var products []domain.Product
	err := h.cache.Get(r.Context(), key, &products)
	if err == nil {
		respondJSON(w, http.StatusOK, nonNil(products))
		return
	}
	if !errors.Is(err, cache.ErrMiss) {
		log.Warn("product cache unavailable", zap.Error(err))
	}

	products, err = h.store.ListProducts(r.Context(), filter)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if err := h.cache.SetIfCurrent(r.Context(), gen, key, products); err != nil {
		log.Warn("unable to cache products", zap.Error(err))
	}
	respondJSON(w, http.StatusOK, nonNil(products))
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handler) productByBarcode(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.GetProductByBarcode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

type stockRequest struct {
	Stock int `json:"stock"`
}

func (h *Handler) setStock(w http.ResponseWriter, r *http.Request) {
	var req stockRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := h.store.SetStock(r.Context(), chi.URLParam(r, "id"), req.Stock)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	threshold := 5
	if v := r.URL.Query().Get("threshold"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid threshold")
			return
		}
		threshold = n
	}
	products, err := h.store.LowStock(r.Context(), threshold)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(products))
}

func (h *Handler) expiryAlerts(w http.ResponseWriter, r *http.Request) {
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid days")
			return
		}
		days = n
	}
	products, err := h.store.ExpiringProducts(r.Context(), time.Duration(days)*24*time.Hour)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(products))
}

func (h *Handler) listBanners(w http.ResponseWriter, r *http.Request) {
	all := r.URL.Query().Get("all") == "true"
	if all && !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	banners, err := h.store.ListBanners(r.Context(), !all)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(banners))
}
