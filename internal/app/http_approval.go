package app

import (
	"net/http"

	"doccontrol/api/internal/lifecycle"
	"doccontrol/api/internal/rbac"
)

func (s *HTTPServer) handleApproval(w http.ResponseWriter, r *http.Request, profile lifecycle.Profile, parts []string) {
	switch {
	case r.Method == http.MethodPost && len(parts) == 1 && parts[0] == "chains":
		if !s.allow(w, r, profile, rbac.ActionApprove) {
			return
		}
		var body CreateChainInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateChain(r.Context(), body)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, payload)

	case r.Method == http.MethodGet && len(parts) == 2 && parts[0] == "chains":
		if !s.allow(w, r, profile, rbac.ActionRead) {
			return
		}
		versionID, err := parseID(parts[1])
		if err != nil {
			s.fail(w, r, err)
			return
		}
		payload, err := s.service.GetActiveChain(r.Context(), versionID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case r.Method == http.MethodPost && len(parts) == 5 && parts[0] == "chains" && parts[2] == "approvers" && parts[4] == "action":
		if !s.allow(w, r, profile, rbac.ActionApprove) {
			return
		}
		chainID, err := parseID(parts[1])
		if err != nil {
			s.fail(w, r, err)
			return
		}
		approverID, err := parseID(parts[3])
		if err != nil {
			s.fail(w, r, err)
			return
		}
		var body ActionInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.RecordAction(r.Context(), chainID, approverID, body)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case r.Method == http.MethodPut && len(parts) == 3 && parts[0] == "chains" && parts[2] == "training":
		if !s.allow(w, r, profile, rbac.ActionApprove) {
			return
		}
		chainID, err := parseID(parts[1])
		if err != nil {
			s.fail(w, r, err)
			return
		}
		var body struct {
			RequiresTraining *bool `json:"requires_training"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.UpdateTraining(r.Context(), chainID, body.RequiresTraining)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case r.Method == http.MethodGet && len(parts) == 1 && parts[0] == "pending":
		if !s.allow(w, r, profile, rbac.ActionRead) {
			return
		}
		items, err := s.service.PendingApprovals(r.Context())
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})

	case r.Method == http.MethodGet && len(parts) == 1 && parts[0] == "defaults":
		if !s.allow(w, r, profile, rbac.ActionRead) {
			return
		}
		items, err := s.service.ListDefaultApprovers(r.Context(), r.URL.Query().Get("document_type"))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})

	case r.Method == http.MethodPost && len(parts) == 1 && parts[0] == "defaults":
		if !s.allow(w, r, profile, rbac.ActionAdmin) {
			return
		}
		var body DefaultApproverInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateDefaultApprover(r.Context(), body)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, payload)

	case r.Method == http.MethodPut && len(parts) == 2 && parts[0] == "defaults":
		if !s.allow(w, r, profile, rbac.ActionAdmin) {
			return
		}
		id, err := parseID(parts[1])
		if err != nil {
			s.fail(w, r, err)
			return
		}
		var body DefaultApproverInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.UpdateDefaultApprover(r.Context(), id, body)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case r.Method == http.MethodDelete && len(parts) == 2 && parts[0] == "defaults":
		if !s.allow(w, r, profile, rbac.ActionAdmin) {
			return
		}
		id, err := parseID(parts[1])
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if err := s.service.DeleteDefaultApprover(r.Context(), id); err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}
