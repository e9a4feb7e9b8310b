package httpadapter

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
)

func multipartUpload(t *testing.T, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, data := range files {
		part, err := writer.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func TestUploadDocumentsAcceptedAndQueued(t *testing.T) {
	env := newTestEnv(&stubRouter{}, TrafficLimits{})
	body, contentType := multipartUpload(t, map[string][]byte{
		"runbook.md": []byte("# restart"),
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/kb/documents", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	env.handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if len(env.storage.saved) != 1 || env.storage.saved[0] != "runbook.md" {
		t.Fatalf("unexpected saved files: %v", env.storage.saved)
	}
	if len(env.queue.published) != 1 {
		t.Fatalf("expected one reindex request, got %v", env.queue.published)
	}
}

func TestUploadUnsupportedTypeReturns400(t *testing.T) {
	env := newTestEnv(&stubRouter{}, TrafficLimits{})
	body, contentType := multipartUpload(t, map[string][]byte{
		"payload.exe": {0x4d, 0x5a},
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/kb/documents", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	env.handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if len(env.queue.published) != 0 {
		t.Fatalf("rejected upload must not request reindex")
	}
}

func TestUploadWithoutMultipartReturns400(t *testing.T) {
	env := newTestEnv(&stubRouter{}, TrafficLimits{})
	res := doJSON(t, env.handler, http.MethodPost, "/v1/kb/documents", map[string]string{"x": "y"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestReindexNowReturnsStats(t *testing.T) {
	env := newTestEnv(&stubRouter{}, TrafficLimits{})
	res := doJSON(t, env.handler, http.MethodPost, "/v1/kb/reindex", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var payload map[string]any
	if err := json.Unmarshal(res.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["ok"] != true || payload["docs"] != float64(2) || payload["chunks"] != float64(9) {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestReindexRejectsGet(t *testing.T) {
	env := newTestEnv(&stubRouter{}, TrafficLimits{})
	res := doJSON(t, env.handler, http.MethodGet, "/v1/kb/reindex", nil)
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}
