package api

import (
	"net/http"
	"strings"

	"pharmastore/m/internal/ai"
)

type chatRequest struct {
	Message string           `json:"message"`
	History []ai.ChatMessage `json:"history,omitempty"`
}

func (h *Handler) aiChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "message is required")
		return
	}
	respondJSON(w, http.StatusOK, h.assistant.Chat(r.Context(), req.History, req.Message))
}

type interactionsRequest struct {
	Medications []string `json:"medications"`
}

func (h *Handler) aiInteractions(w http.ResponseWriter, r *http.Request) {
	var req interactionsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, h.assistant.CheckInteractions(r.Context(), req.Medications))
}

type descriptionRequest struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

func (h *Handler) aiDescription(w http.ResponseWriter, r *http.Request) {
	var req descriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	respondJSON(w, http.StatusOK, h.assistant.ProductDescription(r.Context(), req.Name, req.Category))
}

type socialRequest struct {
	Topic string `json:"topic"`
}

func (h *Handler) aiSocial(w http.ResponseWriter, r *http.Request) {
	var req socialRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Topic) == "" {
		respondError(w, http.StatusBadRequest, "topic is required")
		return
	}
	respondJSON(w, http.StatusOK, h.assistant.SocialPost(r.Context(), req.Topic))
}
