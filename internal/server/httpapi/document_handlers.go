package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type uploadURLRequest struct {
	FileName string `json:"file_name" binding:"required"`
}

type downloadURLRequest struct {
	Key string `json:"key" binding:"required"`
}

func (h *handlers) uploadURL(c *gin.Context) {
	var req uploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "file_name is required")
		return
	}

	id, _ := identityFrom(c)
	u, err := h.Documents.PresignUpload(c.Request.Context(), id.UserID, req.FileName)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *handlers) downloadURL(c *gin.Context) {
	var req downloadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "key is required")
		return
	}

	id, _ := identityFrom(c)
	u, err := h.Documents.PresignDownload(c.Request.Context(), id.UserID, req.Key)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}
