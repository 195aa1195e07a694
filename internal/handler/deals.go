package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"dealflow/internal/auth"
	"dealflow/internal/repository"
	"dealflow/internal/service"
)

type DealHandler struct {
	Deals *service.DealService
	Moves *service.MoveService
	Repo  repository.Repository
}

func (h *DealHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/deals")
	g.POST("", h.create)
	g.GET("/:id", h.get)
	g.PATCH("/:id", h.update)
	g.DELETE("/:id", h.remove)
	g.POST("/:id/move", h.move)
	g.POST("/:id/reopen", h.reopen)
	g.GET("/:id/moves", h.history)
}

type createDealRequest struct {
	PipelineID        string           `json:"pipeline_id"`
	StageID           string           `json:"stage_id" binding:"required"`
	Title             string           `json:"title" binding:"required"`
	Value             *decimal.Decimal `json:"value"`
	Currency          string           `json:"currency"`
	Probability       *int             `json:"probability"`
	ExpectedCloseDate *time.Time       `json:"expected_close_date"`
	PersonID          *string          `json:"person_id"`
	OrganizationID    *string          `json:"organization_id"`
	VisibleTo         string           `json:"visible_to"`
	CustomFields      map[string]any   `json:"custom_fields"`
}

// @Summary Create a deal at the tail of its stage
// @Tags deals
// @Param request body createDealRequest true "deal"
// @Success 200 {object} models.Deal
// @Router /api/v1/deals [post]
func (h *DealHandler) create(c *gin.Context) {
	var req createDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	actor := auth.ActorFrom(c)
	deal, err := h.Deals.CreateDeal(c.Request.Context(), service.CreateDealRequest{
		PipelineID:        req.PipelineID,
		StageID:           req.StageID,
		Title:             req.Title,
		Value:             req.Value,
		Currency:          req.Currency,
		Probability:       req.Probability,
		ExpectedCloseDate: req.ExpectedCloseDate,
		PersonID:          req.PersonID,
		OrganizationID:    req.OrganizationID,
		OwnerID:           actor,
		VisibleTo:         req.VisibleTo,
		CustomFields:      req.CustomFields,
		ActorID:           actor,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, deal, nil)
}

// @Summary Get one deal
// @Tags deals
// @Param id path string true "deal id"
// @Success 200 {object} models.Deal
// @Router /api/v1/deals/{id} [get]
func (h *DealHandler) get(c *gin.Context) {
	deal, err := h.Deals.GetDeal(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, deal, nil)
}

type updateDealRequest struct {
	Title             *string          `json:"title"`
	Value             *decimal.Decimal `json:"value"`
	Currency          *string          `json:"currency"`
	Probability       *int             `json:"probability"`
	ExpectedCloseDate *time.Time       `json:"expected_close_date"`
	LostReason        *string          `json:"lost_reason"`
	PersonID          *string          `json:"person_id"`
	OrganizationID    *string          `json:"organization_id"`
	OwnerID           *string          `json:"owner_id"`
	VisibleTo         *string          `json:"visible_to"`
	CustomFields      map[string]any   `json:"custom_fields"`
}

// @Summary Patch deal fields; stage and rank are only reachable via move
// @Tags deals
// @Param id path string true "deal id"
// @Param request body updateDealRequest true "patch"
// @Success 200 {object} models.Deal
// @Router /api/v1/deals/{id} [patch]
func (h *DealHandler) update(c *gin.Context) {
	var req updateDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	deal, err := h.Deals.UpdateDeal(c.Request.Context(), c.Param("id"), service.DealPatch{
		Title:             req.Title,
		Value:             req.Value,
		Currency:          req.Currency,
		Probability:       req.Probability,
		ExpectedCloseDate: req.ExpectedCloseDate,
		LostReason:        req.LostReason,
		PersonID:          req.PersonID,
		OrganizationID:    req.OrganizationID,
		OwnerID:           req.OwnerID,
		VisibleTo:         req.VisibleTo,
		CustomFields:      req.CustomFields,
	}, auth.ActorFrom(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, deal, nil)
}

// @Summary Soft-delete a deal, compacting its stage ordering
// @Tags deals
// @Param id path string true "deal id"
// @Success 200 {object} map[string]string
// @Router /api/v1/deals/{id} [delete]
func (h *DealHandler) remove(c *gin.Context) {
	if err := h.Deals.DeleteDeal(c.Request.Context(), c.Param("id"), auth.ActorFrom(c)); err != nil {
		Fail(c, err)
		return
	}
	Ok(c, gin.H{"deleted": c.Param("id")}, nil)
}

type moveDealRequest struct {
	StageID    string `json:"stage_id" binding:"required"`
	Index      int    `json:"index"`
	LostReason string `json:"lost_reason"`
}

// @Summary Move a deal to a stage and index, atomically
// @Tags deals
// @Param id path string true "deal id"
// @Param request body moveDealRequest true "destination"
// @Success 200 {object} service.MoveResult
// @Router /api/v1/deals/{id}/move [post]
func (h *DealHandler) move(c *gin.Context) {
	var req moveDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	res, err := h.Moves.MoveDeal(c.Request.Context(), service.MoveRequest{
		DealID:        c.Param("id"),
		TargetStageID: req.StageID,
		TargetIndex:   req.Index,
		ActorID:       auth.ActorFrom(c),
		LostReason:    req.LostReason,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, res, nil)
}

type reopenDealRequest struct {
	StageID string `json:"stage_id" binding:"required"`
}

// @Summary Reopen a closed deal into a non-terminal stage
// @Tags deals
// @Param id path string true "deal id"
// @Param request body reopenDealRequest true "destination"
// @Success 200 {object} service.MoveResult
// @Router /api/v1/deals/{id}/reopen [post]
func (h *DealHandler) reopen(c *gin.Context) {
	var req reopenDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	res, err := h.Moves.ReopenDeal(c.Request.Context(), c.Param("id"), req.StageID, auth.ActorFrom(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, res, nil)
}

// @Summary Move history for one deal, newest first
// @Tags deals
// @Param id path string true "deal id"
// @Success 200 {array} models.DealMove
// @Router /api/v1/deals/{id}/moves [get]
func (h *DealHandler) history(c *gin.Context) {
	limit := intQuery(c, "limit", 100)
	offset := intQuery(c, "offset", 0)
	items, err := h.Repo.ListDealMoves(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, len(items)))
}
