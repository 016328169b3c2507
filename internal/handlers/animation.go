package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"street_trees/internal/models"

	"github.com/gin-gonic/gin"
)

const (
	statusPlaying = "playing"
	statusStopped = "stopped"
	statusReset   = "reset"

	errDirection = "direction must be forward or reverse"
)

type playRequest struct {
	Direction string `json:"direction"`
}

// respondWithAnimation includes the animation and filter state after a command.
func (h *Handler) respondWithAnimation(c *gin.Context, status string) {
	c.JSON(http.StatusOK, gin.H{
		"status":    status,
		"animation": h.services.Animation(),
		"filters":   h.services.Filters(),
	})
}

// @Summary      Animation state
// @Tags         animation
// @Produce      json
// @Success      200  {object}  models.AnimationState
// @Router       /api/v1/animation [get]
// @Security     BearerAuth
func (h *Handler) getAnimation(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Animation())
}

// @Summary      Play the diameter sweep
// @Description  Playing the other direction restarts the sweep from that end
// @Tags         animation
// @Accept       json
// @Produce      json
// @Param        body  body      playRequest  false  "Direction, forward by default"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Router       /api/v1/animation/play [post]
// @Security     BearerAuth
func (h *Handler) playAnimation(c *gin.Context) {
	var req playRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	dir := models.DirectionForward
	if s := strings.ToLower(strings.TrimSpace(req.Direction)); s != "" {
		d, ok := models.ParseDirection(s)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": errDirection})
			return
		}
		dir = d
	}
	_ = h.asViewer(c, func() error {
		h.services.Play(dir)
		return nil
	})
	h.respondWithAnimation(c, statusPlaying)
}

// @Summary      Stop the sweep
// @Tags         animation
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/animation/stop [post]
// @Security     BearerAuth
func (h *Handler) stopAnimation(c *gin.Context) {
	_ = h.asViewer(c, func() error {
		h.services.Stop()
		return nil
	})
	h.respondWithAnimation(c, statusStopped)
}

// @Summary      Reset the sweep
// @Description  Restores the full diameter range; rejected with 409 while playing
// @Tags         animation
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/animation/reset [post]
// @Security     BearerAuth
func (h *Handler) resetAnimation(c *gin.Context) {
	if err := h.asViewer(c, h.services.ResetAnimation); err != nil {
		h.respondExplorerError(c, "animation_reset_failed", err)
		return
	}
	h.respondWithAnimation(c, statusReset)
}
