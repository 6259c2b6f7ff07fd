package app

import (
	"net/http"
	"strings"

	"doccontrol/api/internal/lifecycle"
	"doccontrol/api/internal/rbac"
	"doccontrol/api/internal/store"
)

func (s *HTTPServer) handleMasterList(w http.ResponseWriter, r *http.Request, profile lifecycle.Profile, parts []string) {
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
		payload, err := s.service.ListMasterList(r.Context(), store.MasterListFilter{
			DocumentType: lifecycle.DocumentType(strings.ToUpper(strings.TrimSpace(q.Get("document_type")))),
			Status:       lifecycle.DocumentStatus(strings.TrimSpace(q.Get("status"))),
			Search:       q.Get("search"),
			IncludeAll:   q.Get("include_removed") == "true",
			Page:         page,
			Limit:        limit,
		})
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case r.Method == http.MethodGet && len(parts) == 1 && parts[0] == "stats":
		if !s.allow(w, r, profile, rbac.ActionRead) {
			return
		}
		payload, err := s.service.MasterListStats(r.Context())
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case r.Method == http.MethodPost && len(parts) == 1:
		if !s.allow(w, r, profile, rbac.ActionPublish) {
			return
		}
		documentID, err := parseID(parts[0])
		if err != nil {
			s.fail(w, r, err)
			return
		}
		payload, err := s.service.AddToMasterList(r.Context(), documentID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case r.Method == http.MethodDelete && len(parts) == 1:
		if !s.allow(w, r, profile, rbac.ActionPublish) {
			return
		}
		documentID, err := parseID(parts[0])
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if err := s.service.RemoveFromMasterList(r.Context(), documentID); err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}
