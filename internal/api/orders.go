package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"pharmastore/m/domain"
	"pharmastore/m/internal/auth"
	"pharmastore/m/internal/checkout"
	"pharmastore/m/internal/notify"
	"pharmastore/m/internal/store"
)

func (h *Handler) quote(w http.ResponseWriter, r *http.Request) {
	var req checkout.QuoteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.UserID = currentUID(r)
	quote, err := h.checkout.Quote(r.Context(), req)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, quote)
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req checkout.Request
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.UserID = currentUID(r)
	res, err := h.checkout.PlaceOnline(r.Context(), req)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

type posRequest struct {
	checkout.Request
	CustomerUID string `json:"customer_uid,omitempty"`
}

func (h *Handler) posCheckout(w http.ResponseWriter, r *http.Request) {
	var req posRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Request.UserID = req.CustomerUID
	res, err := h.checkout.CheckoutPOS(r.Context(), req.Request)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

// lookupCustomer finds a loyalty account at the counter by email.
func (h *Handler) lookupCustomer(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		respondError(w, http.StatusBadRequest, "email is required")
		return
	}
	u, err := h.store.GetUserByEmail(r.Context(), email)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, u)
}

func parseDateParam(r *http.Request, name string) (*time.Time, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// orderFilter reads status, source, start_date and end_date. end_date is
// inclusive.
func orderFilter(w http.ResponseWriter, r *http.Request) (store.OrderFilter, bool) {
	q := r.URL.Query()
	f := store.OrderFilter{
		Status: domain.OrderStatus(strings.ToUpper(q.Get("status"))),
		Source: domain.OrderSource(strings.ToUpper(q.Get("source"))),
	}
	from, err := parseDateParam(r, "start_date")
	if err != nil {
		respondError(w, http.StatusBadRequest, "start_date must be in YYYY-MM-DD format")
		return f, false
	}
	to, err := parseDateParam(r, "end_date")
	if err != nil {
		respondError(w, http.StatusBadRequest, "end_date must be in YYYY-MM-DD format")
		return f, false
	}
	if to != nil {
		next := to.AddDate(0, 0, 1)
		to = &next
	}
	f.From, f.To = from, to
	return f, true
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	f, ok := orderFilter(w, r)
	if !ok {
		return
	}
	// Drivers only work the delivery queue.
	if c, ok := auth.FromContext(r.Context()); ok && c.Role == domain.RoleDriver {
		f.Source = domain.SourceOnline
	}
	orders, err := h.store.ListOrders(r.Context(), f)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(orders))
}

func (h *Handler) myOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.store.ListOrders(r.Context(), store.OrderFilter{UserID: currentUID(r)})
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(orders))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.store.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

type advanceRequest struct {
	Status domain.OrderStatus `json:"status,omitempty"`
}

// advanceOrder moves an order to the requested status, or to the next one
// when no status is given.
func (h *Handler) advanceOrder(w http.ResponseWriter, r *http.Request) {
	var req advanceRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	id := chi.URLParam(r, "id")
	var (
		o   domain.Order
		err error
	)
	if req.Status == "" {
		o, err = h.checkout.AdvanceNext(r.Context(), id)
	} else {
		o, err = h.checkout.Advance(r.Context(), id, req.Status)
	}
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// orderWhatsApp returns a link that opens a chat with the customer carrying
// the order summary.
func (h *Handler) orderWhatsApp(w http.ResponseWriter, r *http.Request) {
	o, err := h.store.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"url": notify.WhatsAppLink(o.CustomerPhone, notify.OrderSummary(o)),
	})
}
