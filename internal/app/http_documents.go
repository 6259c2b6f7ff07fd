package app

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"doccontrol/api/internal/lifecycle"
	"doccontrol/api/internal/rbac"
	"doccontrol/api/internal/search"
	"doccontrol/api/internal/store"
)

type uploadedFile struct {
	metadata    []byte
	filename    string
	contentType string
	content     []byte
}

// readUpload parses a multipart body with a `file` part and a `metadata`
// JSON field. A missing file is not an error here.
func readUpload(r *http.Request) (uploadedFile, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return uploadedFile{}, validationError("expected multipart/form-data body")
	}
	upload := uploadedFile{metadata: []byte(r.FormValue("metadata"))}
	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return upload, nil
	}
	if err != nil {
		return uploadedFile{}, validationError("could not read file")
	}
	defer file.Close()
	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return uploadedFile{}, validationError("could not read file")
	}
	upload.filename = header.Filename
	upload.contentType = header.Header.Get("Content-Type")
	upload.content = content
	return upload, nil
}

func decodeMetadata(raw []byte, target any) error {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return validationError("metadata must be a JSON object")
	}
	return nil
}

func (s *HTTPServer) handleDocuments(w http.ResponseWriter, r *http.Request, profile lifecycle.Profile, parts []string) {
	switch {
	case r.Method == http.MethodGet && len(parts) == 0:
		if !s.allow(w, r, profile, rbac.ActionRead) {
			return
		}
		page, err := queryInt(r, "page", 1)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		limit, err := queryInt(r, "limit", 20)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		q := r.URL.Query()
		payload, err := s.service.ListDocuments(r.Context(), store.DocumentFilter{
			Status:       lifecycle.DocumentStatus(strings.TrimSpace(q.Get("status"))),
			DocumentType: lifecycle.DocumentType(strings.ToUpper(strings.TrimSpace(q.Get("document_type")))),
			Code:         strings.TrimSpace(q.Get("code")),
			Page:         page,
			Limit:        limit,
		})
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case r.Method == http.MethodPost && len(parts) == 1 && parts[0] == "upload":
		if !s.allow(w, r, profile, rbac.ActionSubmit) {
			return
		}
		upload, err := readUpload(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		var input UploadInput
		if err := decodeMetadata(upload.metadata, &input); err != nil {
			s.fail(w, r, err)
			return
		}
		input.Filename = upload.filename
		input.ContentType = upload.contentType
		input.Content = upload.content
		input.Profile = profile
		payload, err := s.service.Upload(r.Context(), input)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, payload)

	case r.Method == http.MethodGet && len(parts) == 1 && parts[0] == "search":
		if !s.allow(w, r, profile, rbac.ActionRead) {
			return
		}
		limit, err := queryInt(r, "limit", 20)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		offset, err := queryInt(r, "offset", 0)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		q := r.URL.Query()
		payload, err := s.service.SearchDocuments(r.Context(), search.Query{
			Text:         strings.TrimSpace(q.Get("q")),
			DocumentType: strings.ToUpper(strings.TrimSpace(q.Get("document_type"))),
			Status:       strings.TrimSpace(q.Get("status")),
			Limit:        limit,
			Offset:       offset,
		})
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case r.Method == http.MethodGet && len(parts) == 2 && parts[0] == "next-code":
		if !s.allow(w, r, profile, rbac.ActionRead) {
			return
		}
		payload, err := s.service.NextCode(r.Context(), parts[1])
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case r.Method == http.MethodGet && len(parts) == 1:
		if !s.allow(w, r, profile, rbac.ActionRead) {
			return
		}
		payload, err := s.service.GetDocument(r.Context(), parts[0])
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case r.Method == http.MethodGet && len(parts) == 3 && parts[1] == "versions":
		if !s.allow(w, r, profile, rbac.ActionRead) {
			return
		}
		number, err := parseID(parts[2])
		if err != nil {
			s.fail(w, r, err)
			return
		}
		payload, err := s.service.GetVersion(r.Context(), parts[0], int(number))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case r.Method == http.MethodPost && len(parts) == 2 && parts[1] == "resubmit":
		if !s.allow(w, r, profile, rbac.ActionSubmit) {
			return
		}
		upload, err := readUpload(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		var input ResubmitInput
		if err := decodeMetadata(upload.metadata, &input); err != nil {
			s.fail(w, r, err)
			return
		}
		input.Filename = upload.filename
		input.ContentType = upload.contentType
		input.Content = upload.content
		input.Profile = profile
		payload, err := s.service.Resubmit(r.Context(), parts[0], input)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, payload)

	case r.Method == http.MethodPost && len(parts) == 2 && parts[1] == "retry-analysis":
		if !s.allow(w, r, profile, rbac.ActionAnalyze) {
			return
		}
		payload, err := s.service.RetryAnalysis(r.Context(), parts[0])
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, payload)

	case r.Method == http.MethodPost && len(parts) == 2 && parts[1] == "skip-ai":
		if !s.allow(w, r, profile, rbac.ActionAnalyze) {
			return
		}
		payload, err := s.service.SkipAI(r.Context(), parts[0])
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case r.Method == http.MethodPost && len(parts) == 2 && parts[1] == "publish":
		if !s.allow(w, r, profile, rbac.ActionPublish) {
			return
		}
		var versionID *int64
		if raw := strings.TrimSpace(r.URL.Query().Get("version_id")); raw != "" {
			id, err := parseID(raw)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			versionID = &id
		}
		payload, err := s.service.Publish(r.Context(), parts[0], versionID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case r.Method == http.MethodGet && len(parts) == 2 && parts[1] == "distribution":
		if !s.allow(w, r, profile, rbac.ActionRead) {
			return
		}
		items, err := s.service.ListDistribution(r.Context(), parts[0])
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})

	case r.Method == http.MethodPost && len(parts) == 2 && parts[1] == "distribution":
		if !s.allow(w, r, profile, rbac.ActionPublish) {
			return
		}
		var body DistributionInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.AddDistribution(r.Context(), parts[0], body)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, payload)

	case r.Method == http.MethodPost && len(parts) == 4 && parts[1] == "distribution" && parts[3] == "acknowledge":
		if !s.allow(w, r, profile, rbac.ActionRead) {
			return
		}
		id, err := parseID(parts[2])
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if err := s.service.AcknowledgeDistribution(r.Context(), parts[0], id); err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}
