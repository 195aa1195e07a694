package handler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"dealflow/internal/feed"
)

type FeedHandler struct {
	Hub          *feed.Hub
	Logger       *zap.Logger
	ReplayLimit  int
	WriteTimeout time.Duration
}

func (h *FeedHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/feed/ws", h.ws)
}

// @Summary Change feed: replay from after_seq, then live events
// @Tags feed
// @Param partition query string false "stage id, 'stages', or '*'"
// @Param after_seq query int false "resume after this sequence"
// @Router /api/v1/feed/ws [get]
func (h *FeedHandler) ws(c *gin.Context) {
	partition := c.DefaultQuery("partition", feed.PartitionAll)
	lastSeq := uint64Query(c, "after_seq", 0)

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream aborted")

	// The client never sends application frames; CloseRead watches for
	// the close handshake and cancels the context.
	ctx := conn.CloseRead(c.Request.Context())

	// Subscribe before replaying so nothing committed in between is
	// lost; the sequence check below drops the overlap.
	events, cancel := h.Hub.Subscribe(partition)
	defer cancel()

	limit := h.ReplayLimit
	if limit <= 0 {
		limit = 500
	}
	for {
		batch, err := h.Hub.Replay(ctx, partition, lastSeq, limit)
		if err != nil {
			if h.Logger != nil {
				h.Logger.Warn("feed replay failed", zap.Error(err))
			}
			conn.Close(websocket.StatusInternalError, "replay failed")
			return
		}
		for _, ev := range batch {
			if err := h.write(ctx, conn, ev); err != nil {
				return
			}
			lastSeq = ev.Seq
		}
		if len(batch) < limit {
			break
		}
	}

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case ev := <-events:
			if ev.Seq <= lastSeq {
				continue
			}
			if err := h.write(ctx, conn, ev); err != nil {
				return
			}
			lastSeq = ev.Seq
		}
	}
}

func (h *FeedHandler) write(ctx context.Context, conn *websocket.Conn, ev feed.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	timeout := h.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, payload)
}
