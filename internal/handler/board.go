package handler

import (
	"github.com/gin-gonic/gin"

	"dealflow/internal/service"
)

type BoardHandler struct {
	Board *service.BoardService
}

func (h *BoardHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/board", h.board)
}

// @Summary Board read model: ordered stages with ordered deals and health
// @Tags board
// @Param pipeline_id query string false "pipeline"
// @Param status query string false "open|won|lost"
// @Param owner_id query string false "owner filter"
// @Success 200 {object} service.Board
// @Router /api/v1/board [get]
func (h *BoardHandler) board(c *gin.Context) {
	board, err := h.Board.GetBoard(c.Request.Context(), service.BoardParams{
		PipelineID: c.Query("pipeline_id"),
		Status:     strQueryPtr(c, "status"),
		OwnerID:    strQueryPtr(c, "owner_id"),
	})
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, board, nil)
}
