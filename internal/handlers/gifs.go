package handlers

import (
	"net/http"
	"strings"

	"solana-gif-portal/internal/models"
	"solana-gif-portal/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GifHandler handles the list and the program write endpoints
type GifHandler struct {
	portal PortalService
}

// NewGifHandler creates a GifHandler
func NewGifHandler(portal PortalService) *GifHandler {
	return &GifHandler{portal: portal}
}

// ListGifs handles GET /api/gifs by re-reading the list
func (h *GifHandler) ListGifs(c *gin.Context) {
	log := logger.GetLogger().WithContext(c.Request.Context())

	list, err := h.portal.Refresh(c.Request.Context())
	if err != nil {
		models.HandleError(c, err, log)
		return
	}
	c.JSON(http.StatusOK, list)
}

// SubmitGif handles POST /api/gifs. An empty body submits the pending draft.
func (h *GifHandler) SubmitGif(c *gin.Context) {
	log := logger.GetLogger().WithContext(c.Request.Context())

	var req models.SubmitGifRequest
	if !bindOptionalJSON(c, &req, log) {
		return
	}

	link := strings.TrimSpace(req.GifLink)
	if req.GifLink != "" && link == "" {
		models.HandleError(c, models.NewValidationError("GIF link is required", "the link is blank"), log)
		return
	}

	log.Info("Processing GIF submission", zap.Bool("from_draft", link == ""))
	h.respond(c, log, func() (models.TxResponse, error) {
		return h.portal.SubmitGif(c.Request.Context(), link)
	})
}

// Upvote handles POST /api/gifs/upvote
func (h *GifHandler) Upvote(c *gin.Context) {
	log := logger.GetLogger().WithContext(c.Request.Context())

	var req models.UpvoteRequest
	if !bindJSON(c, &req, log) {
		return
	}

	h.respond(c, log, func() (models.TxResponse, error) {
		return h.portal.Upvote(c.Request.Context(), req.GifLink)
	})
}

// Tip handles POST /api/gifs/tip
func (h *GifHandler) Tip(c *gin.Context) {
	log := logger.GetLogger().WithContext(c.Request.Context())

	var req models.TipRequest
	if !bindJSON(c, &req, log) {
		return
	}
	if req.Recipient == "" {
		models.HandleError(c, models.NewValidationError("Recipient is required", "tip needs a recipient address"), log)
		return
	}

	h.respond(c, log, func() (models.TxResponse, error) {
		return h.portal.Tip(c.Request.Context(), req.Recipient, req.Amount)
	})
}

// InitializeAccount handles POST /api/account/init
func (h *GifHandler) InitializeAccount(c *gin.Context) {
	log := logger.GetLogger().WithContext(c.Request.Context())
	h.respond(c, log, func() (models.TxResponse, error) {
		return h.portal.InitializeList(c.Request.Context())
	})
}

// SetDraft handles PUT /api/draft
func (h *GifHandler) SetDraft(c *gin.Context) {
	log := logger.GetLogger().WithContext(c.Request.Context())

	var req models.DraftRequest
	if !bindJSON(c, &req, log) {
		return
	}
	c.JSON(http.StatusOK, h.portal.SetDraft(req.Value))
}

func (h *GifHandler) respond(c *gin.Context, log *logger.Logger, call func() (models.TxResponse, error)) {
	resp, err := call()
	if err != nil {
		models.HandleError(c, err, log)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func bindJSON(c *gin.Context, dst interface{}, log *logger.Logger) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		log.Warn("Invalid JSON in request",
			zap.Error(err),
			zap.String("content_type", c.GetHeader("Content-Type")),
		)
		models.HandleError(c, models.NewAppErrorWithDetails(
			models.ErrorCodeMalformedJSON,
			"Invalid JSON format",
			err.Error(),
		), log)
		return false
	}
	return true
}

// bindOptionalJSON accepts an empty body
func bindOptionalJSON(c *gin.Context, dst interface{}, log *logger.Logger) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return bindJSON(c, dst, log)
}
