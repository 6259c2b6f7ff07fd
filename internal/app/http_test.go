package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"doccontrol/api/internal/lifecycle"
)

func newTestServer(t *testing.T) (*testEnv, http.Handler) {
	t.Helper()
	env := newTestEnv(t)
	return env, NewHTTPServer(env.svc, "http://localhost:5173", nil).Handler()
}

func doRequest(h http.Handler, method, path string, profile lifecycle.Profile, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if profile != "" {
		req.Header.Set("X-User-Profile", string(profile))
	}
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	return res
}

func uploadRequest(t *testing.T, path string, profile lifecycle.Profile, metadata, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if metadata != "" {
		if err := mw.WriteField("metadata", metadata); err != nil {
			t.Fatalf("write metadata: %v", err)
		}
	}
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("create file part: %v", err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatalf("write file part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-User-Profile", string(profile))
	return req
}

func decodeResponse(t *testing.T, res *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(res.Body.Bytes(), target); err != nil {
		t.Fatalf("decode response %q: %v", res.Body.String(), err)
	}
}

func expectErrorBody(t *testing.T, res *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if res.Code != status {
		t.Fatalf("expected %d, got %d: %s", status, res.Code, res.Body.String())
	}
	var payload map[string]any
	decodeResponse(t, res, &payload)
	if payload["code"] != code {
		t.Fatalf("expected code %s, got %v", code, payload["code"])
	}
	if _, ok := payload["error"].(string); !ok {
		t.Fatalf("expected error message, got %v", payload)
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, h := newTestServer(t)
	res := doRequest(h, http.MethodGet, "/api/health", "", "")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected a generated request id")
	}
	if got := res.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("expected CORS origin header, got %q", got)
	}
}

func TestReadyEndpointReportsDatabase(t *testing.T) {
	env, h := newTestServer(t)

	res := doRequest(h, http.MethodGet, "/api/ready", "", "")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	env.store.pingFn = func(context.Context) error { return errors.New("connection refused") }
	res = doRequest(h, http.MethodGet, "/api/ready", "", "")
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
	var payload struct {
		OK     bool   `json:"ok"`
		Status string `json:"status"`
	}
	decodeResponse(t, res, &payload)
	if payload.OK || payload.Status != "not_ready" {
		t.Fatalf("unexpected readiness payload %+v", payload)
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	_, h := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	if got := res.Header().Get("X-Request-ID"); got != "req-42" {
		t.Fatalf("expected req-42, got %q", got)
	}
}

func TestUploadOverMultipart(t *testing.T) {
	env, h := newTestServer(t)

	req := uploadRequest(t, "/api/documents/upload", lifecycle.ProfileAutor,
		`{"document_type":"it","title":"Lubrificação de prensas","sector":"Manutenção"}`, "prensas.txt", sampleText)
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	var payload SubmissionResult
	decodeResponse(t, res, &payload)
	if payload.Document.Code != "IT-001.00" || payload.Document.Sector != "Manutenção" {
		t.Fatalf("unexpected document %+v", payload.Document)
	}
	if payload.Document.CreatedByProfile != string(lifecycle.ProfileAutor) {
		t.Fatalf("expected profile from header, got %q", payload.Document.CreatedByProfile)
	}
	if payload.Version.OriginalFilename != "prensas.txt" {
		t.Fatalf("expected original filename, got %q", payload.Version.OriginalFilename)
	}
	if len(env.queue.enqueued) != 1 {
		t.Fatalf("expected analysis queued, got %d jobs", len(env.queue.enqueued))
	}
}

func TestUploadProfileCannotBeSetFromMetadata(t *testing.T) {
	_, h := newTestServer(t)
	req := uploadRequest(t, "/api/documents/upload", lifecycle.ProfileAutor,
		`{"document_type":"PQ","title":"Doc","Profile":"admin"}`, "doc.txt", sampleText)
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	var payload SubmissionResult
	decodeResponse(t, res, &payload)
	if payload.Document.CreatedByProfile != string(lifecycle.ProfileAutor) {
		t.Fatalf("expected autor, got %q", payload.Document.CreatedByProfile)
	}
}

func TestUploadValidationOverHTTP(t *testing.T) {
	_, h := newTestServer(t)
	tests := []struct {
		name     string
		metadata string
		filename string
		code     string
	}{
		{name: "bad type", metadata: `{"document_type":"ZZ","title":"Doc"}`, filename: "a.txt", code: "VALIDATION_ERROR"},
		{name: "missing file", metadata: `{"document_type":"PQ","title":"Doc"}`, code: "VALIDATION_ERROR"},
		{name: "bad metadata", metadata: `{not json`, filename: "a.txt", code: "VALIDATION_ERROR"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := uploadRequest(t, "/api/documents/upload", lifecycle.ProfileAutor, tc.metadata, tc.filename, sampleText)
			res := httptest.NewRecorder()
			h.ServeHTTP(res, req)
			expectErrorBody(t, res, http.StatusUnprocessableEntity, tc.code)
		})
	}

	res := doRequest(h, http.MethodPost, "/api/documents/upload", lifecycle.ProfileAutor, `{"title":"x"}`)
	expectErrorBody(t, res, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}

func TestRBACMatrix(t *testing.T) {
	env, h := newTestServer(t)
	doc := env.upload(t, lifecycle.TypePQ, sampleText)
	env.analyze(t, doc.Version.ID)

	tests := []struct {
		name    string
		method  string
		path    string
		body    string
		profile lifecycle.Profile
	}{
		{name: "autor cannot publish", method: http.MethodPost, path: "/api/documents/" + doc.Document.Code + "/publish", profile: lifecycle.ProfileAutor},
		{name: "autor cannot open chains", method: http.MethodPost, path: "/api/approval/chains", body: `{"version_id":1}`, profile: lifecycle.ProfileAutor},
		{name: "autor cannot act", method: http.MethodPost, path: "/api/approval/chains/1/approvers/1/action", body: `{"action":"approve"}`, profile: lifecycle.ProfileAutor},
		{name: "autor cannot retry analysis", method: http.MethodPost, path: "/api/documents/" + doc.Document.Code + "/retry-analysis", profile: lifecycle.ProfileAutor},
		{name: "autor cannot edit master list", method: http.MethodPost, path: fmt.Sprintf("/api/master-list/%d", doc.Document.ID), profile: lifecycle.ProfileAutor},
		{name: "processos cannot manage defaults", method: http.MethodPost, path: "/api/approval/defaults", body: `{"approver_name":"Ana"}`, profile: lifecycle.ProfileProcessos},
		{name: "unknown profile falls back to autor", method: http.MethodDelete, path: "/api/approval/defaults/1", profile: "root"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := doRequest(h, tc.method, tc.path, tc.profile, tc.body)
			expectErrorBody(t, res, http.StatusForbidden, "FORBIDDEN")
		})
	}

	if len(env.store.data.chains) != 0 || len(env.store.data.masterList) != 0 || len(env.store.data.defaults) != 0 {
		t.Fatal("expected forbidden requests to leave the store untouched")
	}

	res := doRequest(h, http.MethodGet, "/api/documents", lifecycle.ProfileAutor, "")
	if res.Code != http.StatusOK {
		t.Fatalf("expected autor to list documents, got %d", res.Code)
	}
	res = doRequest(h, http.MethodPost, "/api/approval/defaults", lifecycle.ProfileAdmin, `{"approver_name":"Ana"}`)
	if res.Code != http.StatusCreated {
		t.Fatalf("expected admin to create defaults, got %d: %s", res.Code, res.Body.String())
	}
}

func TestApprovalFlowOverHTTP(t *testing.T) {
	env, h := newTestServer(t)
	doc := env.upload(t, lifecycle.TypePQ, sampleText)
	env.analyze(t, doc.Version.ID)

	res := doRequest(h, http.MethodPost, "/api/approval/chains", lifecycle.ProfileProcessos,
		fmt.Sprintf(`{"version_id":%d,"approvers":[{"approver_name":"Ana","approver_email":"ana@example.com"}]}`, doc.Version.ID))
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	var chain struct {
		ID        int64 `json:"id"`
		Approvers []struct {
			ID int64 `json:"id"`
		} `json:"approvers"`
	}
	decodeResponse(t, res, &chain)

	res = doRequest(h, http.MethodPost, fmt.Sprintf("/api/approval/chains/%d/approvers/%d/action", chain.ID, chain.Approvers[0].ID),
		lifecycle.ProfileProcessos, `{"action":"approve","comments":"ok"}`)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	res = doRequest(h, http.MethodPost, fmt.Sprintf("/api/approval/chains/%d/approvers/%d/action", chain.ID, chain.Approvers[0].ID),
		lifecycle.ProfileProcessos, `{"action":"reject"}`)
	expectErrorBody(t, res, http.StatusConflict, "INVALID_STATE")

	res = doRequest(h, http.MethodPost, "/api/documents/"+doc.Document.Code+"/publish", lifecycle.ProfileProcessos, "")
	if res.Code != http.StatusOK {
		t.Fatalf("expected publish 200, got %d: %s", res.Code, res.Body.String())
	}
	var published struct {
		MasterList struct {
			MasterListCode string `json:"master_list_code"`
		} `json:"master_list"`
	}
	decodeResponse(t, res, &published)
	if published.MasterList.MasterListCode != "LM-001" {
		t.Fatalf("expected LM-001, got %q", published.MasterList.MasterListCode)
	}

	res = doRequest(h, http.MethodGet, "/api/master-list", lifecycle.ProfileAutor, "")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var page MasterListPage
	decodeResponse(t, res, &page)
	if page.Total != 1 || page.Items[0].DocumentCode != doc.Document.Code {
		t.Fatalf("unexpected master list %+v", page)
	}
}

func TestErrorMapping(t *testing.T) {
	_, h := newTestServer(t)
	tests := []struct {
		name    string
		method  string
		path    string
		body    string
		profile lifecycle.Profile
		status  int
		code    string
	}{
		{name: "unknown route", method: http.MethodGet, path: "/api/unknown", status: http.StatusNotFound, code: "NOT_FOUND"},
		{name: "missing document", method: http.MethodGet, path: "/api/documents/PQ-404.00", status: http.StatusNotFound, code: "NOT_FOUND"},
		{name: "missing version", method: http.MethodGet, path: "/api/ai/analysis/999", status: http.StatusNotFound, code: "NOT_FOUND"},
		{name: "bad id", method: http.MethodGet, path: "/api/approval/chains/abc", status: http.StatusUnprocessableEntity, code: "VALIDATION_ERROR"},
		{name: "bad page", method: http.MethodGet, path: "/api/documents?page=x", status: http.StatusUnprocessableEntity, code: "VALIDATION_ERROR"},
		{name: "bad next code type", method: http.MethodGet, path: "/api/documents/next-code/XX", status: http.StatusUnprocessableEntity, code: "VALIDATION_ERROR"},
		{name: "bad json", method: http.MethodPost, path: "/api/approval/chains", body: `{`, profile: lifecycle.ProfileProcessos, status: http.StatusBadRequest, code: "INVALID_BODY"},
		{name: "empty search", method: http.MethodGet, path: "/api/documents/search?q=", status: http.StatusUnprocessableEntity, code: "VALIDATION_ERROR"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := doRequest(h, tc.method, tc.path, tc.profile, tc.body)
			expectErrorBody(t, res, tc.status, tc.code)
		})
	}
}

func TestMapErrorFallsBackToServerError(t *testing.T) {
	status, code, _, _ := mapError(errors.New("boom"))
	if status != http.StatusInternalServerError || code != "SERVER_ERROR" {
		t.Fatalf("expected 500 SERVER_ERROR, got %d %s", status, code)
	}
}
