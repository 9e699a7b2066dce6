package handlers

import (
	"log"
	"net/http"
	"strconv"

	"clinicchat/services"

	"github.com/gorilla/mux"
)

const defaultTopSessions = 10

type UsageHandler struct {
	service *services.UsageService
}

func NewUsageHandler(service *services.UsageService) *UsageHandler {
	return &UsageHandler{service: service}
}

func (h *UsageHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/usage/stats", h.GetStats).Methods("GET")
	router.HandleFunc("/usage/daily", h.GetDailyUsage).Methods("GET")
	router.HandleFunc("/usage/tools", h.GetToolBreakdown).Methods("GET")
	router.HandleFunc("/usage/sessions", h.GetTopSessions).Methods("GET")
	router.HandleFunc("/usage/sessions/{id}", h.GetSessionCalls).Methods("GET")
}

func (h *UsageHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetStats()
	if err != nil {
		log.Printf("[ERROR] Failed to get usage stats: %v", err)
		writeErrorResponse(w, http.StatusInternalServerError, "Failed to get usage stats")
		return
	}

	writeJSONResponse(w, http.StatusOK, stats)
}

func (h *UsageHandler) GetDailyUsage(w http.ResponseWriter, r *http.Request) {
	daily, err := h.service.GetDailyUsage()
	if err != nil {
		log.Printf("[ERROR] Failed to get daily usage: %v", err)
		writeErrorResponse(w, http.StatusInternalServerError, "Failed to get daily usage")
		return
	}

	writeJSONResponse(w, http.StatusOK, daily)
}

func (h *UsageHandler) GetToolBreakdown(w http.ResponseWriter, r *http.Request) {
	breakdown, err := h.service.GetToolBreakdown()
	if err != nil {
		log.Printf("[ERROR] Failed to get tool breakdown: %v", err)
		writeErrorResponse(w, http.StatusInternalServerError, "Failed to get tool breakdown")
		return
	}

	writeJSONResponse(w, http.StatusOK, breakdown)
}

func (h *UsageHandler) GetTopSessions(w http.ResponseWriter, r *http.Request) {
	limit := defaultTopSessions
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeErrorResponse(w, http.StatusBadRequest, "Invalid limit parameter")
			return
		}
		limit = parsed
	}

	sessions, err := h.service.GetTopSessions(limit)
	if err != nil {
		log.Printf("[ERROR] Failed to get top sessions: %v", err)
		writeErrorResponse(w, http.StatusInternalServerError, "Failed to get top sessions")
		return
	}

	writeJSONResponse(w, http.StatusOK, sessions)
}

func (h *UsageHandler) GetSessionCalls(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	calls, err := h.service.GetSessionCalls(sessionID)
	if err != nil {
		log.Printf("[ERROR] Failed to get api calls for session %s: %v", sessionID, err)
		writeErrorResponse(w, http.StatusInternalServerError, "Failed to get session api calls")
		return
	}

	writeJSONResponse(w, http.StatusOK, calls)
}
