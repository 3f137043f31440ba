package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/atenda/kb-rag/internal/core/knowledge"
)

type attachmentPayload struct {
	Name string `json:"name"`
	Mime string `json:"mime"`
	// Data is base64 in JSON.
	Data []byte `json:"data"`
}

type documentRequest struct {
	Title         string                   `json:"title"`
	Body          string                   `json:"body"`
	Status        knowledge.DocumentStatus `json:"status"`
	AuthorID      *uuid.UUID               `json:"author_id,omitempty"`
	SubcategoryID *uuid.UUID               `json:"subcategory_id,omitempty"`
	Keywords      []string                 `json:"keywords"`
	Attachment    *attachmentPayload       `json:"attachment,omitempty"`
}

type documentResponse struct {
	ID             uuid.UUID                `json:"id"`
	Title          string                   `json:"title"`
	Body           string                   `json:"body"`
	Status         knowledge.DocumentStatus `json:"status"`
	AttachmentName string                   `json:"attachment_name,omitempty"`
	AttachmentMime string                   `json:"attachment_mime,omitempty"`
	AuthorID       *uuid.UUID               `json:"author_id,omitempty"`
	SubcategoryID  *uuid.UUID               `json:"subcategory_id,omitempty"`
	Keywords       []string                 `json:"keywords"`
	CreatedAt      string                   `json:"created_at"`
	UpdatedAt      string                   `json:"updated_at"`
}

func toDocumentResponse(doc *knowledge.Document) documentResponse {
	return documentResponse{
		ID:             doc.ID,
		Title:          doc.Title,
		Body:           doc.Body,
		Status:         doc.Status,
		AttachmentName: doc.AttachmentName,
		AttachmentMime: doc.AttachmentMime,
		AuthorID:       doc.AuthorID,
		SubcategoryID:  doc.SubcategoryID,
		Keywords:       doc.Keywords,
		CreatedAt:      doc.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      doc.UpdatedAt.Format(time.RFC3339),
	}
}

func (req documentRequest) toDocument() *knowledge.Document {
	doc := &knowledge.Document{
		Title:         req.Title,
		Body:          req.Body,
		Status:        req.Status,
		AuthorID:      req.AuthorID,
		SubcategoryID: req.SubcategoryID,
		Keywords:      req.Keywords,
	}
	if req.Attachment != nil {
		doc.AttachmentName = req.Attachment.Name
		doc.AttachmentMime = req.Attachment.Mime
		doc.AttachmentData = req.Attachment.Data
	}
	return doc
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Title == "" || req.Body == "" {
		writeError(w, http.StatusBadRequest, "title and body are required")
		return
	}

	doc, err := s.knowledge.CreateDocument(r.Context(), req.toDocument())
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDocumentResponse(doc))
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	filter := knowledge.DocumentFilter{
		Status: knowledge.DocumentStatus(r.URL.Query().Get("status")),
	}
	if raw := r.URL.Query().Get("category_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid category_id")
			return
		}
		filter.CategoryID = &id
	}
	if raw := r.URL.Query().Get("subcategory_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid subcategory_id")
			return
		}
		filter.SubcategoryID = &id
	}

	docs, err := s.knowledge.ListDocuments(r.Context(), filter)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := make([]documentResponse, 0, len(docs))
	for _, doc := range docs {
		resp = append(resp, toDocumentResponse(doc))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	doc, err := s.knowledge.GetDocument(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDocumentResponse(doc))
}

func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req documentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Title == "" || req.Body == "" {
		writeError(w, http.StatusBadRequest, "title and body are required")
		return
	}

	doc := req.toDocument()
	doc.ID = id
	// An update without an attachment payload keeps the stored attachment.
	if req.Attachment == nil {
		prev, err := s.knowledge.GetDocument(r.Context(), id)
		if err != nil {
			respondError(w, err)
			return
		}
		doc.AttachmentName = prev.AttachmentName
		doc.AttachmentMime = prev.AttachmentMime
		doc.AttachmentData = prev.AttachmentData
	}

	updated, err := s.knowledge.UpdateDocument(r.Context(), doc)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDocumentResponse(updated))
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := s.knowledge.DeleteDocument(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleGetAttachment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	name, mime, data, err := s.knowledge.GetAttachment(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleRemoveAttachment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := s.knowledge.RemoveAttachment(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

type categoryRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type subcategoryResponse struct {
	ID         uuid.UUID `json:"id"`
	CategoryID uuid.UUID `json:"category_id"`
	Name       string    `json:"name"`
	Color      string    `json:"color"`
}

type categoryResponse struct {
	ID            uuid.UUID             `json:"id"`
	Name          string                `json:"name"`
	Color         string                `json:"color"`
	Subcategories []subcategoryResponse `json:"subcategories"`
}

func toCategoryResponse(c *knowledge.Category) categoryResponse {
	subs := make([]subcategoryResponse, 0, len(c.Subcategories))
	for _, sub := range c.Subcategories {
		subs = append(subs, subcategoryResponse{
			ID:         sub.ID,
			CategoryID: sub.CategoryID,
			Name:       sub.Name,
			Color:      sub.Color,
		})
	}
	return categoryResponse{ID: c.ID, Name: c.Name, Color: c.Color, Subcategories: subs}
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	category, err := s.knowledge.CreateCategory(r.Context(), &knowledge.Category{Name: req.Name, Color: req.Color})
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryResponse(category))
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.knowledge.ListCategories(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}

	resp := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		resp = append(resp, toCategoryResponse(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req categoryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	category, err := s.knowledge.UpdateCategory(r.Context(), &knowledge.Category{ID: id, Name: req.Name, Color: req.Color})
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryResponse(category))
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := s.knowledge.DeleteCategory(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleCreateSubcategory(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req categoryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	sub, err := s.knowledge.CreateSubcategory(r.Context(), &knowledge.Subcategory{
		CategoryID: categoryID,
		Name:       req.Name,
		Color:      req.Color,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, subcategoryResponse{
		ID:         sub.ID,
		CategoryID: sub.CategoryID,
		Name:       sub.Name,
		Color:      sub.Color,
	})
}

func (s *Server) handleUpdateSubcategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req categoryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	sub, err := s.knowledge.UpdateSubcategory(r.Context(), &knowledge.Subcategory{ID: id, Name: req.Name, Color: req.Color})
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subcategoryResponse{
		ID:         sub.ID,
		CategoryID: sub.CategoryID,
		Name:       sub.Name,
		Color:      sub.Color,
	})
}

func (s *Server) handleDeleteSubcategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := s.knowledge.DeleteSubcategory(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

type statsResponse struct {
	Documents        int `json:"documents"`
	ApprovedDocs     int `json:"approved_documents"`
	PendingDocs      int `json:"pending_documents"`
	Categories       int `json:"categories"`
	Subcategories    int `json:"subcategories"`
	Queries          int `json:"queries"`
	UnsatisfiedCount int `json:"unsatisfied_feedbacks"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.knowledge.Stats(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Documents:        stats.Documents,
		ApprovedDocs:     stats.ApprovedDocs,
		PendingDocs:      stats.PendingDocs,
		Categories:       stats.Categories,
		Subcategories:    stats.Subcategories,
		Queries:          stats.Queries,
		UnsatisfiedCount: stats.UnsatisfiedCount,
	})
}
