package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/storegrid/identity-service/internal/apperr"
)

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return out
}

func TestJSONEnvelope(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	JSON(rr, req, http.StatusOK, map[string]string{"status": "ok"})

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := decodeEnvelope(t, rr)
	if body["success"] != true {
		t.Fatalf("success=%v", body["success"])
	}
	data, _ := body["data"].(map[string]any)
	if data["status"] != "ok" {
		t.Fatalf("data=%v", body["data"])
	}
	meta, _ := body["meta"].(map[string]any)
	if meta["request_id"] == "" {
		t.Fatal("meta must carry a request id")
	}
}

func TestAppErrorMapsKnownError(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	AppError(rr, req, fmt.Errorf("verify: %w", apperr.ErrInvalidOtp))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rr.Code)
	}
	body := decodeEnvelope(t, rr)
	errObj, _ := body["error"].(map[string]any)
	if errObj["code"] != "INVALID_OTP" {
		t.Fatalf("code=%v", errObj["code"])
	}
	if body["success"] != false {
		t.Fatalf("success=%v", body["success"])
	}
}

func TestAppErrorCollapsesUnknownError(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	AppError(rr, req, errors.New("pq: connection refused"))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !json.Valid(rr.Body.Bytes()) {
		t.Fatalf("invalid json: %s", body)
	}
	var out struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &out)
	if out.Error.Code != "INTERNAL" {
		t.Fatalf("code=%q", out.Error.Code)
	}
	if out.Error.Message == "pq: connection refused" {
		t.Fatal("internal detail must not leak to callers")
	}
}
