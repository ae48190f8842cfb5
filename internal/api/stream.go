package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"pharmastore/m/domain"
	"pharmastore/m/internal/logger"
	"pharmastore/m/internal/store"
)

const keepAliveInterval = 25 * time.Second

// streamRoles lists who may follow each collection. Collections missing here
// are admin only.
var streamRoles = map[string][]domain.Role{
	store.CollProducts:   nil,
	store.CollCategories: nil,
	store.CollBanners:    nil,
	store.CollOrders:     staffRoles,
}

func streamable(collection string) bool {
	for _, c := range store.Collections {
		if c == collection {
			return true
		}
	}
	return false
}

// stream pushes change events for one collection as server-sent events.
func (h *Handler) stream(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	if !streamable(collection) {
		respondError(w, http.StatusNotFound, "unknown collection")
		return
	}
	roles, known := streamRoles[collection]
	if !known {
		roles = []domain.Role{domain.RoleAdmin}
	}
	if len(roles) > 0 && !h.requireRole(w, r, roles...) {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx := r.Context()
	sub, err := h.feed.Subscribe(ctx, collection)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	defer sub.Close()
	h.metrics.FeedSubscribed(1)
	defer h.metrics.FeedSubscribed(-1)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	log := logger.FromContext(ctx)
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev, ok := <-sub.C():
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				log.Warn("unable to encode event", zap.String("collection", collection), zap.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Op, payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
