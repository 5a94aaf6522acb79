package handler

import (
	"net/http"

	"github.com/aman-churiwal/portfolio-api/internal/middleware"
	"github.com/aman-churiwal/portfolio-api/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type PortfolioHandler struct {
	service *service.PortfolioService
}

func NewPortfolioHandler(service *service.PortfolioService) *PortfolioHandler {
	return &PortfolioHandler{service: service}
}

type portfolioRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=200"`
	Description *string `json:"description" binding:"omitempty,max=2000"`
}

func (h *PortfolioHandler) Create(c *gin.Context) {
	var req portfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Name == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	var description string
	if req.Description != nil {
		description = *req.Description
	}

	portfolio, err := h.service.Create(c.Request.Context(), c.GetString(middleware.ContextUserID), *req.Name, description)
	if err != nil {
		writeError(c, err, http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusCreated, portfolio)
}

func (h *PortfolioHandler) List(c *gin.Context) {
	portfolios, err := h.service.List(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		writeError(c, err, http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{"portfolios": portfolios})
}

func (h *PortfolioHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	portfolio, err := h.service.Get(c.Request.Context(), c.GetString(middleware.ContextUserID), id)
	if err != nil {
		writeError(c, err, http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, portfolio)
}

func (h *PortfolioHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req portfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Name == nil && req.Description == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No fields to update"})
		return
	}

	portfolio, err := h.service.Update(c.Request.Context(), c.GetString(middleware.ContextUserID), id, req.Name, req.Description)
	if err != nil {
		writeError(c, err, http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, portfolio)
}

func (h *PortfolioHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), c.GetString(middleware.ContextUserID), id); err != nil {
		writeError(c, err, http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Portfolio deleted successfully"})
}

func (h *PortfolioHandler) ListProperties(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	properties, err := h.service.ListProperties(c.Request.Context(), c.GetString(middleware.ContextUserID), id)
	if err != nil {
		writeError(c, err, http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{"properties": properties})
}

func (h *PortfolioHandler) DeleteProperty(c *gin.Context) {
	portfolioID, ok := parseID(c, "id")
	if !ok {
		return
	}
	propertyID, ok := parseID(c, "propertyId")
	if !ok {
		return
	}

	err := h.service.DeleteProperty(c.Request.Context(), c.GetString(middleware.ContextUserID), portfolioID, propertyID)
	if err != nil {
		writeError(c, err, http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Property deleted successfully"})
}

func parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + param})
		return uuid.Nil, false
	}
	return id, true
}
