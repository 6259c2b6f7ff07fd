package app

import (
	"net/http"

	"doccontrol/api/internal/lifecycle"
	"doccontrol/api/internal/rbac"
)

// handleAI serves /api/ai/<operation>/<versionID>[/...].
func (s *HTTPServer) handleAI(w http.ResponseWriter, r *http.Request, profile lifecycle.Profile, parts []string) {
	if len(parts) < 2 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	versionID, err := parseID(parts[1])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	op, rest := parts[0], parts[2:]

	if op == "text-review" {
		s.handleTextReview(w, r, profile, versionID, rest)
		return
	}
	if len(rest) != 0 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	var payload any
	switch {
	case r.Method == http.MethodPost && op == "analyze":
		if !s.allow(w, r, profile, rbac.ActionAnalyze) {
			return
		}
		payload, err = s.service.RunAnalysis(r.Context(), versionID)
	case r.Method == http.MethodGet && op == "analysis":
		if !s.allow(w, r, profile, rbac.ActionRead) {
			return
		}
		items, listErr := s.service.ListAnalyses(r.Context(), versionID)
		payload, err = map[string]any{"items": items}, listErr
	case r.Method == http.MethodPost && op == "format":
		if !s.allow(w, r, profile, rbac.ActionAnalyze) {
			return
		}
		payload, err = s.service.Format(r.Context(), versionID)
	case r.Method == http.MethodGet && op == "changelog":
		if !s.allow(w, r, profile, rbac.ActionRead) {
			return
		}
		payload, err = s.service.GetChangelog(r.Context(), versionID)
	case r.Method == http.MethodPost && op == "changelog":
		if !s.allow(w, r, profile, rbac.ActionAnalyze) {
			return
		}
		payload, err = s.service.GenerateChangelog(r.Context(), versionID)
	case r.Method == http.MethodPost && op == "detect-safety":
		if !s.allow(w, r, profile, rbac.ActionAnalyze) {
			return
		}
		payload, err = s.service.DetectSafety(r.Context(), versionID)
	case r.Method == http.MethodPost && op == "crossref":
		if !s.allow(w, r, profile, rbac.ActionAnalyze) {
			return
		}
		payload, err = s.service.ValidateCrossReferences(r.Context(), versionID)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleTextReview(w http.ResponseWriter, r *http.Request, profile lifecycle.Profile, versionID int64, rest []string) {
	var (
		payload any
		err     error
	)
	switch {
	case r.Method == http.MethodGet && len(rest) == 0:
		if !s.allow(w, r, profile, rbac.ActionRead) {
			return
		}
		payload, err = s.service.GetTextReview(r.Context(), versionID)
	case r.Method == http.MethodGet && len(rest) == 1 && rest[0] == "history":
		if !s.allow(w, r, profile, rbac.ActionRead) {
			return
		}
		items, listErr := s.service.TextReviewHistory(r.Context(), versionID)
		payload, err = map[string]any{"items": items}, listErr
	case r.Method == http.MethodPost && len(rest) == 1 && rest[0] == "submit":
		if !s.allow(w, r, profile, rbac.ActionSubmit) {
			return
		}
		var body SubmitTextInput
		if decodeErr := decodeBody(r, &body); decodeErr != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", decodeErr.Error(), nil)
			return
		}
		payload, err = s.service.SubmitText(r.Context(), versionID, body)
	case r.Method == http.MethodPost && len(rest) == 1 && rest[0] == "accept":
		if !s.allow(w, r, profile, rbac.ActionSubmit) {
			return
		}
		payload, err = s.service.AcceptText(r.Context(), versionID)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}
