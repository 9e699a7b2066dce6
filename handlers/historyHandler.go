package handlers

import (
	"log"
	"net/http"

	"clinicchat/services"

	"github.com/gorilla/mux"
)

type HistoryHandler struct {
	service *services.HistoryService
}

func NewHistoryHandler(service *services.HistoryService) *HistoryHandler {
	return &HistoryHandler{service: service}
}

func (h *HistoryHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/history/sessions", h.ListSessions).Methods("GET")
	router.HandleFunc("/history/sessions/{id}/messages", h.GetSessionMessages).Methods("GET")
	router.HandleFunc("/history/sessions/{id}", h.DeleteSession).Methods("DELETE")
}

func (h *HistoryHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sortOrder := r.URL.Query().Get("sort")
	search := r.URL.Query().Get("search")

	sessions, err := h.service.SearchSessions(search, sortOrder)
	if err != nil {
		log.Printf("[ERROR] Failed to list sessions: %v", err)
		writeErrorResponse(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	writeJSONResponse(w, http.StatusOK, sessions)
}

func (h *HistoryHandler) GetSessionMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	messages, err := h.service.GetSessionMessages(sessionID)
	if err != nil {
		log.Printf("[ERROR] Failed to get messages for session %s: %v", sessionID, err)
		writeErrorResponse(w, http.StatusInternalServerError, "Failed to get session messages")
		return
	}

	writeJSONResponse(w, http.StatusOK, messages)
}

func (h *HistoryHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	if err := h.service.DeleteSession(sessionID); err != nil {
		log.Printf("[ERROR] Failed to delete session %s: %v", sessionID, err)
		writeErrorResponse(w, http.StatusInternalServerError, "Failed to delete session")
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "deleted"})
}
