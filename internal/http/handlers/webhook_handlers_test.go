package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/jomaguevco/chatdex-sub001/internal/mocks"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandleMessageRejectsBadPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewWebhookHandler(nil, nil, nil, testLogger())
	r := gin.New()
	r.POST("/webhook/message", h.HandleMessage)

	tests := []struct {
		name string
		body string
	}{
		{"empty body", ``},
		{"missing text", `{"phone":"+51987654321"}`},
		{"missing phone", `{"text":"hola"}`},
		{"not json", `hola`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/webhook/message", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestHandleAudioRejectsBadBase64(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewWebhookHandler(nil, nil, nil, testLogger())
	r := gin.New()
	r.POST("/webhook/audio", h.HandleAudio)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook/audio",
		strings.NewReader(`{"phone":"+51987654321","audio":"%%not-base64%%"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleAudioTranscriptionFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	transcriber := &mocks.MockTranscriber{
		TranscribeFunc: func(ctx context.Context, audio []byte, mimeType string) (string, error) {
			return "", errors.New("stt unavailable")
		},
	}
	h := NewWebhookHandler(nil, transcriber, nil, testLogger())
	r := gin.New()
	r.POST("/webhook/audio", h.HandleAudio)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook/audio",
		strings.NewReader(`{"phone":"+51987654321","audio":"aG9sYQ=="}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code, "a failed transcription still answers the user")
	assert.Contains(t, w.Body.String(), "mensaje de voz")
}

func TestPhoneLockIsPerPhone(t *testing.T) {
	h := NewWebhookHandler(nil, nil, nil, testLogger())

	a := h.phoneLock("+51911111111")
	b := h.phoneLock("+51922222222")
	assert.NotSame(t, a, b)
	assert.Same(t, a, h.phoneLock("+51911111111"))
}
