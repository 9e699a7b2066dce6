package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"clinicchat/models"
	"clinicchat/services/knowledgebase"

	"github.com/gorilla/mux"
)

type KnowledgeBaseHandler struct {
	service *knowledgebase.Service
}

func NewKnowledgeBaseHandler(service *knowledgebase.Service) *KnowledgeBaseHandler {
	return &KnowledgeBaseHandler{service: service}
}

func (h *KnowledgeBaseHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/kb/documents", h.ListDocuments).Methods("GET")
	router.HandleFunc("/kb/documents", h.AddDocument).Methods("POST")
	router.HandleFunc("/kb/documents/{id}", h.UpdateDocument).Methods("PUT")
	router.HandleFunc("/kb/documents/{id}", h.DeleteDocument).Methods("DELETE")
}

func (h *KnowledgeBaseHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	documents, err := h.service.List(r.Context())
	if err != nil {
		log.Printf("[ERROR] Failed to list knowledge base documents: %v", err)
		writeErrorResponse(w, http.StatusInternalServerError, "Failed to list documents")
		return
	}

	writeJSONResponse(w, http.StatusOK, documents)
}

func (h *KnowledgeBaseHandler) AddDocument(w http.ResponseWriter, r *http.Request) {
	var req models.CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	if req.ID == "" || req.Content == "" {
		writeErrorResponse(w, http.StatusBadRequest, "Both id and content are required")
		return
	}

	if err := h.service.Add(r.Context(), req.ID, req.Content); err != nil {
		log.Printf("[ERROR] Failed to add document %q: %v", req.ID, err)
		writeErrorResponse(w, http.StatusInternalServerError, "Failed to add document")
		return
	}

	writeJSONResponse(w, http.StatusCreated, models.Document{ID: req.ID, Content: req.Content})
}

func (h *KnowledgeBaseHandler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req models.UpdateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	if req.Content == "" {
		writeErrorResponse(w, http.StatusBadRequest, "Content is required")
		return
	}

	if err := h.service.Update(r.Context(), id, req.Content); err != nil {
		log.Printf("[ERROR] Failed to update document %q: %v", id, err)
		writeErrorResponse(w, http.StatusInternalServerError, "Failed to update document")
		return
	}

	writeJSONResponse(w, http.StatusOK, models.Document{ID: id, Content: req.Content})
}

func (h *KnowledgeBaseHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.service.Delete(r.Context(), id); err != nil {
		log.Printf("[ERROR] Failed to delete document %q: %v", id, err)
		writeErrorResponse(w, http.StatusInternalServerError, "Failed to delete document")
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "deleted"})
}
