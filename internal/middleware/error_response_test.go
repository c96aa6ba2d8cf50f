package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/inboxd/internal/model"
)

// --- テスト ---

// TestWriteErrorResponse_Format はエラーレスポンスの形式を検証する。
func TestWriteErrorResponse_Format(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteErrorResponse(rec, http.StatusBadRequest, model.NewInvalidBodyError("typeは必須です"))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] == "" {
		t.Error("error field is empty")
	}
	if len(body) != 1 {
		t.Errorf("body has extra fields: %v", body)
	}
}

// TestStatusForAPIError_CategoryMapping はカテゴリからステータスへの対応を検証する。
func TestStatusForAPIError_CategoryMapping(t *testing.T) {
	cases := []struct {
		category string
		want     int
	}{
		{"auth", http.StatusUnauthorized},
		{"validation", http.StatusBadRequest},
		{"email", http.StatusBadRequest},
		{"system", http.StatusInternalServerError},
		{"unknown", http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.category, func(t *testing.T) {
			got := StatusForAPIError(&model.APIError{Category: tc.category})
			if got != tc.want {
				t.Errorf("StatusForAPIError(%q) = %d, want %d", tc.category, got, tc.want)
			}
		})
	}
}

// TestWriteInternalServerError は内部エラーレスポンスを検証する。
func TestWriteInternalServerError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteInternalServerError(rec)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}

	var body ErrorResponseBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error == "" {
		t.Error("error message is empty")
	}
}
