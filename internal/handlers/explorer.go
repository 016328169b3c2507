package handlers

import (
	"errors"
	"net/http"

	"street_trees/internal/models"
	"street_trees/internal/pipeline"

	"github.com/gin-gonic/gin"
)

const (
	statusOK = "ok"

	errInvalidBodyPref = "invalid body: "
	errLoadSpecies     = "failed to load species"
	errRegionBody      = "either ring or center with radius_km is required"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// explorerErrorStatus maps pipeline errors to HTTP codes.
func explorerErrorStatus(err error) int {
	var rangeErr *pipeline.InvalidRangeError
	var queryErr *pipeline.QueryError
	switch {
	case errors.As(err, &rangeErr),
		errors.Is(err, pipeline.ErrInvalidRadius),
		errors.Is(err, models.ErrInvalidPolygon):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrCategoryLocked),
		errors.Is(err, pipeline.ErrAnimationPlaying),
		errors.Is(err, pipeline.ErrNoSearchCenter):
		return http.StatusConflict
	case errors.As(err, &queryErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondExplorerError writes err with its mapped status. Only server-side
// failures are logged as errors.
func (h *Handler) respondExplorerError(c *gin.Context, logKey string, err error) {
	code := explorerErrorStatus(err)
	if code >= http.StatusInternalServerError {
		h.logAndJSONError(c, code, err.Error(), logKey, err)
		return
	}
	if h.log != nil {
		h.log.Infow(logKey, "err", err, "status", code)
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

// respondWithFilters answers a filter mutation with the resulting snapshot.
func (h *Handler) respondWithFilters(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  statusOK,
		"filters": h.services.Filters(),
	})
}

type categoryRequest struct {
	Name string `json:"name" binding:"required"`
}

type rangeRequest struct {
	Min *float64 `json:"min" binding:"required"`
	Max *float64 `json:"max" binding:"required"`
}

type regionRequest struct {
	Ring     []models.Point `json:"ring,omitempty"`
	Center   *models.Point  `json:"center,omitempty"`
	RadiusKm float64        `json:"radius_km,omitempty"`
}

type distanceRequest struct {
	RadiusKm float64 `json:"radius_km" binding:"required"`
}

// ExtremeTree is the largest matching tree with its display address.
type ExtremeTree struct {
	models.TreeFeature
	Address string `json:"address"`
}

// SummaryResponse is the JSON shape of a summary record.
type SummaryResponse struct {
	Extreme *ExtremeTree          `json:"extreme,omitempty"`
	Modal   *models.CategoryCount `json:"modal,omitempty"`
	Average *float64              `json:"average,omitempty"`
}

func newSummaryResponse(rec models.SummaryRecord) SummaryResponse {
	out := SummaryResponse{Modal: rec.Modal, Average: rec.Average}
	if rec.Extreme != nil {
		out.Extreme = &ExtremeTree{TreeFeature: *rec.Extreme, Address: rec.Extreme.Address()}
	}
	return out
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Current filters
// @Tags         filters
// @Produce      json
// @Success      200  {object}  models.FilterSnapshot
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/filters [get]
// @Security     BearerAuth
func (h *Handler) getFilters(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Filters())
}

// @Summary      Select species
// @Description  Rejected with 409 while the animation plays
// @Tags         filters
// @Accept       json
// @Produce      json
// @Param        body  body      categoryRequest  true  "Species name"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/v1/filters/category [put]
// @Security     BearerAuth
func (h *Handler) selectCategory(c *gin.Context) {
	var req categoryRequest
	if !h.bindJSONOrBadRequest(c, &req) {
		return
	}
	err := h.asViewer(c, func() error { return h.services.SelectCategory(req.Name) })
	if err != nil {
		h.respondExplorerError(c, "category_select_failed", err)
		return
	}
	h.respondWithFilters(c)
}

// @Summary      Clear species selection
// @Tags         filters
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/filters/category [delete]
// @Security     BearerAuth
func (h *Handler) clearCategory(c *gin.Context) {
	if err := h.asViewer(c, h.services.ClearCategory); err != nil {
		h.respondExplorerError(c, "category_clear_failed", err)
		return
	}
	h.respondWithFilters(c)
}

// @Summary      Set diameter range
// @Description  Values are clamped to the dataset bounds; min > max is rejected
// @Tags         filters
// @Accept       json
// @Produce      json
// @Param        body  body      rangeRequest  true  "Range"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Router       /api/v1/filters/range [put]
// @Security     BearerAuth
func (h *Handler) changeRange(c *gin.Context) {
	var req rangeRequest
	if !h.bindJSONOrBadRequest(c, &req) {
		return
	}
	err := h.asViewer(c, func() error { return h.services.ChangeNumericRange(*req.Min, *req.Max) })
	if err != nil {
		h.respondExplorerError(c, "range_change_failed", err)
		return
	}
	h.respondWithFilters(c)
}

// @Summary      Set region
// @Description  Either a drawn ring or a search location with a radius in km
// @Tags         filters
// @Accept       json
// @Produce      json
// @Param        body  body      regionRequest  true  "Region"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Router       /api/v1/filters/region [put]
// @Security     BearerAuth
func (h *Handler) drawRegion(c *gin.Context) {
	var req regionRequest
	if !h.bindJSONOrBadRequest(c, &req) {
		return
	}
	var draw func() error
	switch {
	case req.Center != nil:
		draw = func() error { return h.services.DrawRegionAround(*req.Center, req.RadiusKm) }
	case len(req.Ring) > 0:
		draw = func() error { return h.services.DrawRegion(models.Polygon{Ring: req.Ring}) }
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": errRegionBody})
		return
	}
	if err := h.asViewer(c, draw); err != nil {
		h.respondExplorerError(c, "region_draw_failed", err)
		return
	}
	h.respondWithFilters(c)
}

// @Summary      Clear region
// @Tags         filters
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/filters/region [delete]
// @Security     BearerAuth
func (h *Handler) clearRegion(c *gin.Context) {
	if err := h.asViewer(c, h.services.ClearRegion); err != nil {
		h.respondExplorerError(c, "region_clear_failed", err)
		return
	}
	h.respondWithFilters(c)
}

// @Summary      Change search distance
// @Description  Re-buffers the region around the last search location
// @Tags         filters
// @Accept       json
// @Produce      json
// @Param        body  body      distanceRequest  true  "Radius in km"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/v1/filters/region/distance [put]
// @Security     BearerAuth
func (h *Handler) setSearchDistance(c *gin.Context) {
	var req distanceRequest
	if !h.bindJSONOrBadRequest(c, &req) {
		return
	}
	err := h.asViewer(c, func() error { return h.services.SetSearchDistance(req.RadiusKm) })
	if err != nil {
		h.respondExplorerError(c, "search_distance_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    statusOK,
		"radius_km": h.services.SearchDistance(),
		"filters":   h.services.Filters(),
	})
}

// @Summary      Summary of the active filters
// @Tags         results
// @Produce      json
// @Success      200  {object}  SummaryResponse
// @Router       /api/v1/summary [get]
// @Security     BearerAuth
func (h *Handler) getSummary(c *gin.Context) {
	c.JSON(http.StatusOK, newSummaryResponse(h.services.Summary()))
}

// @Summary      Diameter histogram
// @Tags         results
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, bins"
// @Router       /api/v1/histogram [get]
// @Security     BearerAuth
func (h *Handler) getHistogram(c *gin.Context) {
	bins := h.services.Histogram()
	c.JSON(http.StatusOK, gin.H{
		"count": len(bins),
		"bins":  bins,
	})
}

// @Summary      Most frequent species
// @Tags         results
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, species"
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/species [get]
// @Security     BearerAuth
func (h *Handler) getSpecies(c *gin.Context) {
	species, err := h.services.TopSpecies(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, explorerErrorStatus(err), errLoadSpecies, "species_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":   len(species),
		"species": species,
	})
}

// @Summary      Map and widget state
// @Tags         results
// @Produce      json
// @Success      200  {object}  models.ViewState
// @Router       /api/v1/view [get]
// @Security     BearerAuth
func (h *Handler) getView(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Current())
}
