package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sritampatnaik/Magic-Canvas/internal/imagegen"
	"github.com/sritampatnaik/Magic-Canvas/internal/service"
	"github.com/sritampatnaik/Magic-Canvas/internal/storage"
)

type MediaController struct {
	media service.MediaInteractor
}

func NewMediaController(media service.MediaInteractor) *MediaController {
	return &MediaController{media: media}
}

func (c *MediaController) Upload(ctx *gin.Context) {
	type UploadRequest struct {
		DataURL     string `json:"dataUrl"`
		ContentType string `json:"contentType"`
	}
	var req UploadRequest
	if err := ctx.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.DataURL) == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Missing dataUrl"})
		return
	}

	url, err := c.media.Upload(ctx.Request.Context(), req.DataURL, req.ContentType)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrMissingDataURL):
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Missing dataUrl"})
		case errors.Is(err, storage.ErrInvalidDataURL):
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrStorageDisabled):
			ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		default:
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Upload failed"})
		}
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"url": url})
}

func (c *MediaController) Generate(ctx *gin.Context) {
	type GenerateRequest struct {
		Prompt   string `json:"prompt"`
		ImageURL string `json:"imageUrl"`
	}
	if !c.media.GenerationEnabled() {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": service.ErrGenerationDisabled.Error()})
		return
	}

	var req GenerateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Prompt) == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "prompt is required"})
		return
	}

	url, err := c.media.Generate(ctx.Request.Context(), req.Prompt, req.ImageURL)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrGenerationDisabled):
			ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		case errors.Is(err, imagegen.ErrEmptyPrompt):
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			ctx.JSON(http.StatusBadGateway, gin.H{"error": "Generation failed"})
		}
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"url": url})
}
