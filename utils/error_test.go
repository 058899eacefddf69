package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zapcore"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestErrorHandlerRecoversPanic(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(nil))
	r.GET("/boom", func(c *gin.Context) { panic("meter lookup failed") })
	r.GET("/ok", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	var body ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %s: %v", w.Body, err)
	}
	if body.Success || body.Error == "" || body.Message != body.Error {
		t.Fatalf("body = %+v", body)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("after panic status = %d", w.Code)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"DEBUG", zapcore.DebugLevel},
		{"chatty", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in, zapcore.InfoLevel); got != tt.want {
			t.Errorf("parseLevel(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
	if _, err := NewLogger(true, "error"); err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
}
