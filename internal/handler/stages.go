package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"dealflow/internal/auth"
	"dealflow/internal/service"
)

type StageHandler struct {
	Stages *service.StageService
	Board  *service.BoardService
}

func (h *StageHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/stages")
	g.POST("", h.create)
	g.PUT("/order", h.reorder)
	g.PATCH("/:id", h.update)
	g.DELETE("/:id", h.remove)
	g.GET("/:id/metrics", h.metrics)
}

type createStageRequest struct {
	PipelineID  string `json:"pipeline_id" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Color       string `json:"color"`
	Probability int    `json:"probability"`
	RottenDays  int    `json:"rotten_days"`
	IsWon       bool   `json:"is_won"`
	IsLost      bool   `json:"is_lost"`
}

// @Summary Create a stage at the tail of the pipeline order
// @Tags stages
// @Param request body createStageRequest true "stage"
// @Success 200 {object} models.Stage
// @Router /api/v1/stages [post]
func (h *StageHandler) create(c *gin.Context) {
	var req createStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	stage, err := h.Stages.CreateStage(c.Request.Context(), service.CreateStageRequest{
		PipelineID:  req.PipelineID,
		Name:        req.Name,
		Color:       req.Color,
		Probability: req.Probability,
		RottenDays:  req.RottenDays,
		IsWon:       req.IsWon,
		IsLost:      req.IsLost,
		ActorID:     auth.ActorFrom(c),
	})
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, stage, nil)
}

type updateStageRequest struct {
	Name        *string `json:"name"`
	Color       *string `json:"color"`
	Probability *int    `json:"probability"`
	RottenDays  *int    `json:"rotten_days"`
	IsWon       *bool   `json:"is_won"`
	IsLost      *bool   `json:"is_lost"`
}

// @Summary Patch stage fields
// @Tags stages
// @Param id path string true "stage id"
// @Param request body updateStageRequest true "patch"
// @Success 200 {object} models.Stage
// @Router /api/v1/stages/{id} [patch]
func (h *StageHandler) update(c *gin.Context) {
	var req updateStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	stage, err := h.Stages.UpdateStage(c.Request.Context(), c.Param("id"), service.StagePatch{
		Name:        req.Name,
		Color:       req.Color,
		Probability: req.Probability,
		RottenDays:  req.RottenDays,
		IsWon:       req.IsWon,
		IsLost:      req.IsLost,
	}, auth.ActorFrom(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, stage, nil)
}

type reorderStagesRequest struct {
	PipelineID string   `json:"pipeline_id" binding:"required"`
	StageIDs   []string `json:"stage_ids" binding:"required"`
}

// @Summary Re-rank all stages of a pipeline, all-or-nothing
// @Tags stages
// @Param request body reorderStagesRequest true "order"
// @Success 200 {array} models.Stage
// @Router /api/v1/stages/order [put]
func (h *StageHandler) reorder(c *gin.Context) {
	var req reorderStagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	stages, err := h.Stages.ReorderStages(c.Request.Context(), req.PipelineID, req.StageIDs, auth.ActorFrom(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, stages, nil)
}

// @Summary Delete a stage, reassigning its deals when non-empty
// @Tags stages
// @Param id path string true "stage id"
// @Param reassign_to query string false "stage to receive remaining deals"
// @Success 200 {object} map[string]string
// @Router /api/v1/stages/{id} [delete]
func (h *StageHandler) remove(c *gin.Context) {
	reassignTo := strings.TrimSpace(c.Query("reassign_to"))
	if err := h.Stages.DeleteStage(c.Request.Context(), c.Param("id"), reassignTo, auth.ActorFrom(c)); err != nil {
		Fail(c, err)
		return
	}
	Ok(c, gin.H{"deleted": c.Param("id")}, nil)
}

// @Summary Stage metrics: count, total and probability-weighted value
// @Tags stages
// @Param id path string true "stage id"
// @Success 200 {object} metrics.StageMetrics
// @Router /api/v1/stages/{id}/metrics [get]
func (h *StageHandler) metrics(c *gin.Context) {
	m, err := h.Board.GetStageMetrics(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, m, nil)
}
