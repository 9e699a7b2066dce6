package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"clinicchat/models"
	"clinicchat/services"
	"clinicchat/services/chat"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type ChatHandler struct {
	service    *chat.Service
	history    *services.HistoryService
	bookingURL string
}

func NewChatHandler(service *chat.Service, history *services.HistoryService, bookingURL string) *ChatHandler {
	return &ChatHandler{service: service, history: history, bookingURL: bookingURL}
}

func (h *ChatHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/chat", h.Chat).Methods("POST")
}

type chatResponse struct {
	models.ChatResult
	SessionID  string `json:"session_id"`
	BookingURL string `json:"booking_url,omitempty"`
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	log.Printf("[INFO] Received chat request")

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[ERROR] Failed to decode chat request JSON: %v", err)
		writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	if len(req.Messages) == 0 {
		writeErrorResponse(w, http.StatusBadRequest, "At least one message is required")
		return
	}

	last := req.Messages[len(req.Messages)-1]
	if last.Role != "user" {
		writeErrorResponse(w, http.StatusBadRequest, "The last message must be a user message")
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
		log.Printf("[INFO] Started new session %s", sessionID)
	}

	result, err := h.service.Respond(r.Context(), req.Messages, sessionID)
	if err != nil {
		if errors.Is(err, chat.ErrGatewayUnavailable) {
			writeErrorResponse(w, http.StatusBadGateway, "Something went wrong. Please try again.")
			return
		}
		log.Printf("[ERROR] Chat turn failed: %v", err)
		writeErrorResponse(w, http.StatusInternalServerError, "Something went wrong. Please try again.")
		return
	}

	// History writes are best effort; a persistence hiccup must not cost
	// the user their reply.
	if err := h.history.SaveMessage(sessionID, "user", last.Content, false); err != nil {
		log.Printf("[WARN] Failed to persist user message: %v", err)
	}
	if err := h.history.SaveMessage(sessionID, "assistant", result.Text, result.ShowBookingLink); err != nil {
		log.Printf("[WARN] Failed to persist assistant message: %v", err)
	}

	response := chatResponse{
		ChatResult: *result,
		SessionID:  sessionID,
	}
	if result.ShowBookingLink {
		response.BookingURL = h.bookingURL
	}

	writeJSONResponse(w, http.StatusOK, response)
}
