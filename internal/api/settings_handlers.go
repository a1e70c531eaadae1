package api

import (
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/contentgen/contentgen-backend/internal/blob"
	"github.com/contentgen/contentgen-backend/internal/records"
)

// Companies

func (h *Handler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	companies, err := h.store.Companies().List(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	out := make([]CompanyDTO, 0, len(companies))
	for _, c := range companies {
		out = append(out, companyDTO(c))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateCompany(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req CompanyRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "company name is required")
		return
	}

	company := &records.Company{
		ID:          uuid.NewString(),
		OwnerID:     userID,
		Name:        req.Name,
		Industry:    req.Industry,
		Description: req.Description,
		Website:     req.Website,
	}
	if err := h.store.Companies().Insert(r.Context(), company); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, companyDTO(company))
}

func (h *Handler) UpdateCompany(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req CompanyRequest
	if !h.decode(w, r, &req) {
		return
	}

	company, err := h.store.Companies().Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if req.Name != "" {
		company.Name = req.Name
	}
	company.Industry = req.Industry
	company.Description = req.Description
	company.Website = req.Website

	if err := h.store.Companies().Update(r.Context(), company); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, companyDTO(company))
}

func (h *Handler) DeleteCompany(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	if err := h.store.Companies().Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func companyDTO(c *records.Company) CompanyDTO {
	return CompanyDTO{
		ID:          c.ID,
		Name:        c.Name,
		Industry:    c.Industry,
		Description: c.Description,
		Website:     c.Website,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

// Competitors

func (h *Handler) ListCompetitors(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	competitors, err := h.store.Competitors().List(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	out := make([]CompetitorDTO, 0, len(competitors))
	for _, c := range competitors {
		out = append(out, competitorDTO(c))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateCompetitor(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req CompetitorRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "competitor name is required")
		return
	}

	competitor := &records.Competitor{
		ID:      uuid.NewString(),
		OwnerID: userID,
		Name:    req.Name,
		Website: req.Website,
		Notes:   req.Notes,
	}
	if err := h.store.Competitors().Insert(r.Context(), competitor); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, competitorDTO(competitor))
}

func (h *Handler) UpdateCompetitor(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req CompetitorRequest
	if !h.decode(w, r, &req) {
		return
	}

	competitor, err := h.store.Competitors().Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if req.Name != "" {
		competitor.Name = req.Name
	}
	competitor.Website = req.Website
	competitor.Notes = req.Notes

	if err := h.store.Competitors().Update(r.Context(), competitor); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, competitorDTO(competitor))
}

func (h *Handler) DeleteCompetitor(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	if err := h.store.Competitors().Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func competitorDTO(c *records.Competitor) CompetitorDTO {
	return CompetitorDTO{
		ID:        c.ID,
		Name:      c.Name,
		Website:   c.Website,
		Notes:     c.Notes,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// Integrations

func (h *Handler) ListIntegrations(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	integrations, err := h.store.Integrations().List(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	out := make([]IntegrationDTO, 0, len(integrations))
	for _, in := range integrations {
		out = append(out, integrationDTO(in))
	}
	h.writeJSON(w, http.StatusOK, out)
}

// UpsertIntegration connects a platform, replacing any existing
// connection for the same platform.
func (h *Handler) UpsertIntegration(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req IntegrationRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Platform == "" || req.AccessToken == "" {
		h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "platform and accessToken are required")
		return
	}

	integration := &records.Integration{
		ID:          uuid.NewString(),
		OwnerID:     userID,
		Platform:    strings.ToLower(req.Platform),
		AccessToken: req.AccessToken,
		Status:      "connected",
	}
	if err := h.store.Integrations().Upsert(r.Context(), integration); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, integrationDTO(integration))
}

func (h *Handler) DeleteIntegration(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	platform := strings.ToLower(chi.URLParam(r, "platform"))
	if err := h.store.Integrations().Delete(r.Context(), userID, platform); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func integrationDTO(in *records.Integration) IntegrationDTO {
	// The access token never leaves the store through the API.
	return IntegrationDTO{
		ID:        in.ID,
		Platform:  in.Platform,
		Status:    in.Status,
		CreatedAt: in.CreatedAt,
		UpdatedAt: in.UpdatedAt,
	}
}

// Profile

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	profile, err := h.store.Profiles().Get(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, profileDTO(profile))
}

func (h *Handler) UpsertProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req ProfileRequest
	if !h.decode(w, r, &req) {
		return
	}

	profile := &records.UserProfile{
		UserID:   userID,
		FullName: req.FullName,
		Headline: req.Headline,
		Company:  req.Company,
		Timezone: req.Timezone,
	}
	if err := h.store.Profiles().Upsert(r.Context(), profile); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, profileDTO(profile))
}

func profileDTO(p *records.UserProfile) ProfileDTO {
	return ProfileDTO{
		UserID:    p.UserID,
		FullName:  p.FullName,
		Headline:  p.Headline,
		Company:   p.Company,
		Timezone:  p.Timezone,
		UpdatedAt: p.UpdatedAt,
	}
}

// Company documents, stored per user in the document bucket.

const maxDocumentBytes = 25 << 20

func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxDocumentBytes); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_MULTIPART", "could not parse multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "MISSING_FILE", "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxDocumentBytes+1))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "UPLOAD_READ_ERROR", err.Error())
		return
	}
	if len(data) > maxDocumentBytes {
		h.writeError(w, http.StatusRequestEntityTooLarge, "DOCUMENT_TOO_LARGE", "document exceeds the maximum allowed size")
		return
	}

	name := sanitizeFilename(header.Filename)
	if name == "" {
		h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid filename")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	obj, err := h.documents.Put(r.Context(), userID+"/"+name, contentType, data)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "DOCUMENT_STORE_ERROR", err.Error())
		return
	}
	h.writeJSON(w, http.StatusCreated, documentDTO(userID, obj))
}

func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	objs, err := h.documents.List(r.Context(), userID+"/")
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "DOCUMENT_STORE_ERROR", err.Error())
		return
	}
	out := make([]DocumentDTO, 0, len(objs))
	for _, obj := range objs {
		out = append(out, documentDTO(userID, obj))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	name := sanitizeFilename(chi.URLParam(r, "name"))
	data, obj, err := h.documents.Get(r.Context(), userID+"/"+name)
	if err != nil {
		if err == blob.ErrNotFound {
			h.writeError(w, http.StatusNotFound, "DOCUMENT_NOT_FOUND", "document not found")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "DOCUMENT_STORE_ERROR", err.Error())
		return
	}

	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Write(data)
}

func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	name := sanitizeFilename(chi.URLParam(r, "name"))
	if err := h.documents.Delete(r.Context(), userID+"/"+name); err != nil {
		h.writeError(w, http.StatusInternalServerError, "DOCUMENT_STORE_ERROR", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func documentDTO(userID string, obj *blob.Object) DocumentDTO {
	return DocumentDTO{
		Name:        strings.TrimPrefix(obj.Path, userID+"/"),
		ContentType: obj.ContentType,
		Size:        obj.Size,
		UploadedAt:  obj.UploadedAt,
	}
}

// sanitizeFilename keeps the base name only, so a crafted name cannot
// escape the caller's prefix.
func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	return name
}
