package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"dealflow/internal/apperr"
)

func record(fn func(c *gin.Context)) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	fn(c)
	return w
}

func TestOkEnvelope(t *testing.T) {
	w := record(func(c *gin.Context) {
		Ok(c, gin.H{"id": "d1"}, map[string]any{"limit": 10})
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body apiResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != 0 || body.Message != "ok" {
		t.Fatalf("unexpected envelope %+v", body)
	}
}

func TestFailMapsTaxonomy(t *testing.T) {
	cases := []struct {
		err       error
		status    int
		message   string
		retryable bool
	}{
		{apperr.NotFound("deal", "d1"), http.StatusNotFound, "deal d1 not found", false},
		{apperr.New(apperr.CodeInvalidArgument, "bad index"), http.StatusBadRequest, "bad index", false},
		{apperr.New(apperr.CodeConflict, "concurrent modification"), http.StatusConflict, "concurrent modification", true},
		{apperr.New(apperr.CodePreconditionFailed, "deal is locked"), http.StatusPreconditionFailed, "deal is locked", false},
		// Internal details never leak to the client.
		{errors.New("pq: connection reset"), http.StatusInternalServerError, "internal error", false},
	}
	for _, tc := range cases {
		w := record(func(c *gin.Context) { Fail(c, tc.err) })
		if w.Code != tc.status {
			t.Fatalf("Fail(%v) status = %d, want %d", tc.err, w.Code, tc.status)
		}
		var body apiResponse
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Message != tc.message {
			t.Fatalf("message = %q, want %q", body.Message, tc.message)
		}
		if tc.retryable {
			if v, ok := body.Meta["retryable"].(bool); !ok || !v {
				t.Fatalf("conflict response missing retryable meta: %+v", body.Meta)
			}
		}
	}
}
