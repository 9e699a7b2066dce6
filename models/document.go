package models

// Document is one knowledge-base entry, identified by a caller-chosen ID
// (typically the source file name).
type Document struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

type CreateDocumentRequest struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

type UpdateDocumentRequest struct {
	Content string `json:"content"`
}
