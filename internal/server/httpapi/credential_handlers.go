package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/profolio/profolio/internal/server/services"
)

type saveCredentialRequest struct {
	Provider string `json:"provider" binding:"required"`
	Label    string `json:"label"`
	Secret   string `json:"secret" binding:"required"`
}

func (h *handlers) saveCredential(c *gin.Context) {
	var req saveCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "provider and secret are required")
		return
	}

	id, _ := identityFrom(c)
	v, err := h.Credentials.Save(c.Request.Context(), id.UserID, req.Provider, req.Label, req.Secret)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

func (h *handlers) listCredentials(c *gin.Context) {
	id, _ := identityFrom(c)
	if isDemo(c) {
		c.JSON(http.StatusOK, gin.H{"credentials": []services.CredentialView{}})
		return
	}
	list, err := h.Credentials.List(c.Request.Context(), id.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"credentials": list})
}

func (h *handlers) revealCredential(c *gin.Context) {
	id, _ := identityFrom(c)
	provider := c.Param("provider")

	secret, err := h.Credentials.Reveal(c.Request.Context(), id.UserID, provider)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, gin.H{"provider": provider, "secret": secret})
}

func (h *handlers) deleteCredential(c *gin.Context) {
	id, _ := identityFrom(c)
	if err := h.Credentials.Delete(c.Request.Context(), id.UserID, c.Param("provider")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
