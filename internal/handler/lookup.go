package handler

import (
	"context"
	"net/http"

	"github.com/aman-churiwal/portfolio-api/internal/middleware"
	"github.com/aman-churiwal/portfolio-api/internal/parcel"
	"github.com/aman-churiwal/portfolio-api/internal/places"
	"github.com/aman-churiwal/portfolio-api/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type Autocompleter interface {
	Autocomplete(ctx context.Context, input string) ([]places.Suggestion, error)
}

type LookupHandler struct {
	lookup *service.LookupService
	places Autocompleter
	logger zerolog.Logger
}

func NewLookupHandler(lookup *service.LookupService, places Autocompleter, logger zerolog.Logger) *LookupHandler {
	return &LookupHandler{
		lookup: lookup,
		places: places,
		logger: logger.With().Str("component", "lookup_handler").Logger(),
	}
}

// Search previews parcels for one APN or address without saving them.
func (h *LookupHandler) Search(c *gin.Context) {
	req := service.LookupRequest{Address: c.Query("address")}
	if apn := c.Query("apn"); apn != "" {
		req.APNs = []parcel.APNQuery{{
			APN:    apn,
			County: c.Query("county"),
			State:  c.Query("state"),
		}}
	}

	userID := c.GetString(middleware.ContextUserID)
	result, err := h.lookup.Search(c.Request.Context(), userID, req)
	if err != nil {
		h.logger.Debug().Err(err).Str("user_id", userID).Msg("Parcel search failed")
		writeError(c, err, http.StatusBadGateway)
		return
	}

	c.JSON(http.StatusOK, result)
}

type importRequest struct {
	APNs []struct {
		APN    string `json:"apn" binding:"required"`
		County string `json:"county"`
		State  string `json:"state" binding:"omitempty,len=2"`
	} `json:"apns" binding:"omitempty,dive"`
	Address string `json:"address"`
}

// Import charges the quota for the request, then looks up and saves the
// parcels into the portfolio.
func (h *LookupHandler) Import(c *gin.Context) {
	portfolioID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var body importRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req := service.LookupRequest{Address: body.Address}
	for _, a := range body.APNs {
		req.APNs = append(req.APNs, parcel.APNQuery{APN: a.APN, County: a.County, State: a.State})
	}

	userID := c.GetString(middleware.ContextUserID)
	result, err := h.lookup.Import(c.Request.Context(), userID, portfolioID, req)
	if err != nil {
		h.logger.Warn().Err(err).Str("user_id", userID).Str("portfolio_id", portfolioID.String()).Msg("Import failed")
		writeError(c, err, http.StatusBadGateway)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h *LookupHandler) Autocomplete(c *gin.Context) {
	suggestions, err := h.places.Autocomplete(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.logger.Error().Err(err).Msg("Autocomplete failed")
		writeError(c, err, http.StatusBadGateway)
		return
	}

	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}
