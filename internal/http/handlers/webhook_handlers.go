package handlers

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/jomaguevco/chatdex-sub001/domain"
	"github.com/jomaguevco/chatdex-sub001/internal/services"
)

// WebhookHandler receives inbound WhatsApp messages and runs them through
// the sales flow. Turns for the same phone are serialized; turns for
// different phones run concurrently.
type WebhookHandler struct {
	flow        *services.SalesFlowEngine
	transcriber domain.Transcriber
	messenger   domain.Messenger
	logger      *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewWebhookHandler creates the webhook handler.
func NewWebhookHandler(flow *services.SalesFlowEngine, transcriber domain.Transcriber, messenger domain.Messenger, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		flow:        flow,
		transcriber: transcriber,
		messenger:   messenger,
		logger:      logger.With(slog.String("component", "webhook")),
		locks:       map[string]*sync.Mutex{},
	}
}

// phoneLock returns the per-phone mutex, creating it on first use. Locks are
// never removed; the set of phones is small and bounded by the client base.
func (h *WebhookHandler) phoneLock(phone string) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()
	lock, ok := h.locks[phone]
	if !ok {
		lock = &sync.Mutex{}
		h.locks[phone] = lock
	}
	return lock
}

type messageRequest struct {
	Phone string `json:"phone" binding:"required"`
	Text  string `json:"text" binding:"required"`
}

// HandleMessage processes one inbound text message.
func (h *WebhookHandler) HandleMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phone and text are required"})
		return
	}
	h.respond(c, req.Phone, req.Text)
}

type audioRequest struct {
	Phone    string `json:"phone" binding:"required"`
	Audio    string `json:"audio" binding:"required"`
	MimeType string `json:"mime_type"`
}

// HandleAudio transcribes a voice note and processes the transcript as a
// regular message.
func (h *WebhookHandler) HandleAudio(c *gin.Context) {
	var req audioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phone and audio are required"})
		return
	}
	audio, err := base64.StdEncoding.DecodeString(req.Audio)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "audio must be base64 encoded"})
		return
	}
	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = "audio/ogg"
	}

	text, err := h.transcriber.Transcribe(c.Request.Context(), audio, mimeType)
	if err != nil {
		h.logger.Warn("transcription failed", slog.String("phone", req.Phone), slog.String("error", err.Error()))
		c.JSON(http.StatusOK, gin.H{"reply": "No pude escuchar tu mensaje de voz 😔 ¿Puedes escribirlo?"})
		return
	}
	h.respond(c, req.Phone, text)
}

func (h *WebhookHandler) respond(c *gin.Context, phone, text string) {
	lock := h.phoneLock(phone)
	lock.Lock()
	reply := h.flow.Process(c.Request.Context(), phone, text)
	lock.Unlock()

	if err := h.messenger.SendMessage(c.Request.Context(), phone, reply); err != nil {
		h.logger.Error("outbound delivery failed",
			slog.String("phone", phone), slog.String("error", err.Error()))
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}
