package handlers

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jomaguevco/chatdex-sub001/domain"
	"github.com/jomaguevco/chatdex-sub001/internal/services"
)

// PromotionStore is the subset of the catalog repository the admin API needs.
type PromotionStore interface {
	AddPromotion(ctx context.Context, p *domain.Promotion) error
	RemovePromotion(ctx context.Context, id uint) error
}

// AdminHandler serves the operational API: login, catalog reindex, error
// diagnostics, promotion management and session inspection.
type AdminHandler struct {
	tokens     domain.TokenService
	resolver   domain.ProductResolver
	recovery   *services.ErrorRecovery
	sessions   domain.SessionRepository
	policies   domain.PolicyService
	promotions PromotionStore
	user       string
	password   string
	tokenTTL   time.Duration
	logger     *slog.Logger
}

// NewAdminHandler creates the admin handler.
func NewAdminHandler(
	tokens domain.TokenService,
	resolver domain.ProductResolver,
	recovery *services.ErrorRecovery,
	sessions domain.SessionRepository,
	policies domain.PolicyService,
	promotions PromotionStore,
	user, password string,
	tokenTTL time.Duration,
	logger *slog.Logger,
) *AdminHandler {
	return &AdminHandler{
		tokens:     tokens,
		resolver:   resolver,
		recovery:   recovery,
		sessions:   sessions,
		policies:   policies,
		promotions: promotions,
		user:       user,
		password:   password,
		tokenTTL:   tokenTTL,
		logger:     logger.With(slog.String("component", "admin")),
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login issues an admin token for the configured operator credentials.
func (h *AdminHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}
	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.user)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.password)) == 1
	if h.user == "" || !userOK || !passOK {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	token, err := h.tokens.Generate(req.Username, "role_admin", h.tokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "Bearer"})
}

// Reindex rebuilds the catalog match index from the backend.
func (h *AdminHandler) Reindex(c *gin.Context) {
	if err := h.resolver.Reindex(c.Request.Context()); err != nil {
		h.logger.Error("reindex failed", slog.String("error", err.Error()))
		c.JSON(http.StatusBadGateway, gin.H{"error": "catalog backend unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reindexed"})
}

// RecentErrors returns the bounded diagnostic log.
func (h *AdminHandler) RecentErrors(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"errors": h.recovery.RecentErrors()})
}

// ActiveSessions lists phones with a stored conversation session.
func (h *AdminHandler) ActiveSessions(c *gin.Context) {
	phones, err := h.sessions.ActivePhones(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list sessions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"phones": phones})
}

// ResetSession forces one conversation back to idle.
func (h *AdminHandler) ResetSession(c *gin.Context) {
	phone := c.Param("phone")
	if err := h.sessions.Clear(c.Request.Context(), phone); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not reset session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reset", "phone": phone})
}

type promotionRequest struct {
	ProductID   uint    `json:"product_id" binding:"required"`
	Type        string  `json:"type" binding:"required"`
	Value       float64 `json:"value" binding:"required"`
	MinQuantity int     `json:"min_quantity"`
	ExpiresAt   string  `json:"expires_at" binding:"required"`
}

// AddPromotion creates an active promotion.
func (h *AdminHandler) AddPromotion(c *gin.Context) {
	var req promotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid promotion payload"})
		return
	}
	if req.Type != string(domain.PromotionPercentage) && req.Type != string(domain.PromotionFixed) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be percentage or fixed"})
		return
	}
	expiresAt, err := time.Parse(time.RFC3339, req.ExpiresAt)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expires_at must be RFC3339"})
		return
	}
	if req.MinQuantity < 1 {
		req.MinQuantity = 1
	}
	promo := &domain.Promotion{
		ProductID:   req.ProductID,
		Type:        domain.PromotionType(req.Type),
		Value:       req.Value,
		MinQuantity: req.MinQuantity,
		Active:      true,
		ExpiresAt:   expiresAt,
	}
	if err := h.promotions.AddPromotion(c.Request.Context(), promo); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create promotion"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": promo.ID})
}

// RemovePromotion deactivates a promotion.
func (h *AdminHandler) RemovePromotion(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid promotion id"})
		return
	}
	if err := h.promotions.RemovePromotion(c.Request.Context(), uint(id)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not remove promotion"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

// Policies lists the authorization rules in effect.
func (h *AdminHandler) Policies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"policies": h.policies.GetPolicies()})
}
