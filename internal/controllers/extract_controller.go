package controllers

import (
	"net/http"

	"docharvest/internal/services"
	"docharvest/pkg/domain"

	"github.com/gin-gonic/gin"
)

type extractController struct{ svc services.ExtractionService }

func NewExtractController(svc services.ExtractionService) *extractController {
	return &extractController{svc}
}

type extractReq struct {
	URL      string `json:"url" binding:"required"`
	S3Bucket string `json:"s3_bucket" binding:"required"`
	S3Prefix string `json:"s3_prefix,omitempty"`
	Webhook  string `json:"webhook,omitempty"`
}

type extractResp struct {
	Status        string              `json:"status"`
	Message       string              `json:"message"`
	FilesUploaded int                 `json:"files_uploaded"`
	S3URIs        []string            `json:"s3_uris"`
	FailedFiles   []domain.FailedFile `json:"failed_files,omitempty"`
}

func (h *extractController) Handle(c *gin.Context) {
	var req extractReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	extraction, err := domain.NewExtractionRequest(req.URL, req.S3Bucket, req.S3Prefix, req.Webhook)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.svc.Extract(c.Request.Context(), extraction)
	if err != nil {
		if domain.KindOf(err) == domain.KindValidation {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	uris := result.UploadedURIs
	if uris == nil {
		uris = []string{}
	}

	// NoArtifacts and Success are both 200: callers distinguish "ran fine,
	// nothing found" from "found N" via files_uploaded, never the status code.
	c.JSON(http.StatusOK, extractResp{
		Status:        string(result.Status),
		Message:       result.Message,
		FilesUploaded: result.UploadedCount,
		S3URIs:        uris,
		FailedFiles:   result.FailedFiles,
	})
}
