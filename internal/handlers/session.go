package handlers

import (
	"context"
	"net/http"

	"solana-gif-portal/internal/models"
	"solana-gif-portal/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PortalService is what the HTTP layer drives. services.Portal implements it.
type PortalService interface {
	View() models.ViewState
	Probe(ctx context.Context) models.ViewState
	Connect(ctx context.Context) (models.ViewState, error)
	Disconnect() models.ViewState
	Refresh(ctx context.Context) (models.ListState, error)
	SetDraft(value string) models.ViewState
	InitializeList(ctx context.Context) (models.TxResponse, error)
	SubmitGif(ctx context.Context, link string) (models.TxResponse, error)
	Upvote(ctx context.Context, link string) (models.TxResponse, error)
	Tip(ctx context.Context, recipient string, amount uint64) (models.TxResponse, error)
}

// SessionHandler handles the wallet session endpoints
type SessionHandler struct {
	portal PortalService
}

// NewSessionHandler creates a SessionHandler
func NewSessionHandler(portal PortalService) *SessionHandler {
	return &SessionHandler{portal: portal}
}

// GetView handles GET /api/view
func (h *SessionHandler) GetView(c *gin.Context) {
	c.JSON(http.StatusOK, h.portal.View())
}

// Probe handles POST /api/session/probe. It never fails; an absent session
// is reported in the view.
func (h *SessionHandler) Probe(c *gin.Context) {
	c.JSON(http.StatusOK, h.portal.Probe(c.Request.Context()))
}

// Connect handles POST /api/session/connect
func (h *SessionHandler) Connect(c *gin.Context) {
	log := logger.GetLogger().WithContext(c.Request.Context())

	view, err := h.portal.Connect(c.Request.Context())
	if err != nil {
		models.HandleError(c, err, log)
		return
	}

	log.Info("Session connected", zap.String("address", view.Session.Address))
	c.JSON(http.StatusOK, view)
}

// Disconnect handles DELETE /api/session
func (h *SessionHandler) Disconnect(c *gin.Context) {
	c.JSON(http.StatusOK, h.portal.Disconnect())
}
