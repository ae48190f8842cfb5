package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"pharmastore/m/domain"
)

type subscribeRequest struct {
	Email string `json:"email"`
}

func (h *Handler) subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	sub, err := h.store.Subscribe(r.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, sub)
}

func (h *Handler) createBooking(w http.ResponseWriter, r *http.Request) {
	var b domain.ServiceBooking
	if err := decodeJSON(r, &b); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	b.UserID = nullIfEmpty(currentUID(r))
	b.Status = ""
	out, err := h.store.CreateBooking(r.Context(), b)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, out)
}

func (h *Handler) myBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.store.ListBookings(r.Context(), currentUID(r))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(bookings))
}

type bookingStatusRequest struct {
	Status domain.BookingStatus `json:"status"`
}

func (h *Handler) setBookingStatus(w http.ResponseWriter, r *http.Request) {
	var req bookingStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	b, err := h.store.SetBookingStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, b)
}

func (h *Handler) createStockAlert(w http.ResponseWriter, r *http.Request) {
	var a domain.StockAlert
	if err := decodeJSON(r, &a); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := h.store.GetProduct(r.Context(), a.ProductID); err != nil {
		respondErr(w, r, err)
		return
	}
	a.UserID = nullIfEmpty(currentUID(r))
	a.Notified = false
	out, err := h.store.CreateStockAlert(r.Context(), a)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, out)
}

func (h *Handler) listStockAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.store.ListStockAlerts(r.Context(), r.URL.Query().Get("pending") == "true")
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(alerts))
}

// Family members and medication schedules belong to the caller. Any user_id
// in the body is replaced.

func (h *Handler) listFamily(w http.ResponseWriter, r *http.Request) {
	members, err := h.store.ListFamilyMembers(r.Context(), currentUID(r))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(members))
}

func (h *Handler) createFamily(w http.ResponseWriter, r *http.Request) {
	var f domain.FamilyMember
	if err := decodeJSON(r, &f); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	f.UserID = currentUID(r)
	out, err := h.store.CreateFamilyMember(r.Context(), f)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, out)
}

func (h *Handler) updateFamily(w http.ResponseWriter, r *http.Request) {
	var f domain.FamilyMember
	if err := decodeJSON(r, &f); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	f.ID = chi.URLParam(r, "id")
	f.UserID = currentUID(r)
	out, err := h.store.UpdateFamilyMember(r.Context(), f)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) deleteFamily(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteFamilyMember(r.Context(), currentUID(r), chi.URLParam(r, "id")); err != nil {
		respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listMedications(w http.ResponseWriter, r *http.Request) {
	meds, err := h.store.ListMedications(r.Context(), currentUID(r))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(meds))
}

func (h *Handler) createMedication(w http.ResponseWriter, r *http.Request) {
	var m domain.MedicationSchedule
	if err := decodeJSON(r, &m); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	m.UserID = currentUID(r)
	if m.StartDate.IsZero() {
		m.StartDate = h.store.Now()
	}
	out, err := h.store.CreateMedication(r.Context(), m)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, out)
}

func (h *Handler) updateMedication(w http.ResponseWriter, r *http.Request) {
	var m domain.MedicationSchedule
	if err := decodeJSON(r, &m); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	m.ID = chi.URLParam(r, "id")
	m.UserID = currentUID(r)
	out, err := h.store.UpdateMedication(r.Context(), m)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) deleteMedication(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteMedication(r.Context(), currentUID(r), chi.URLParam(r, "id")); err != nil {
		respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// dateRange reads start_date and end_date, defaulting to the last 30 days.
// end_date is inclusive.
func (h *Handler) dateRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	from, err := parseDateParam(r, "start_date")
	if err != nil {
		respondError(w, http.StatusBadRequest, "start_date must be in YYYY-MM-DD format")
		return time.Time{}, time.Time{}, false
	}
	to, err := parseDateParam(r, "end_date")
	if err != nil {
		respondError(w, http.StatusBadRequest, "end_date must be in YYYY-MM-DD format")
		return time.Time{}, time.Time{}, false
	}
	end := h.store.Now()
	if to != nil {
		end = to.AddDate(0, 0, 1)
	}
	start := end.AddDate(0, 0, -30)
	if from != nil {
		start = *from
	}
	if end.Before(start) {
		respondError(w, http.StatusBadRequest, "end_date before start_date")
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func (h *Handler) listExpenses(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.dateRange(w, r)
	if !ok {
		return
	}
	expenses, err := h.store.ListExpenses(r.Context(), from, to)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(expenses))
}
