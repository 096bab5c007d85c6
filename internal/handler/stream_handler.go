package handler

import (
	"bufio"
	"context"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ggp-deploy/internal/model"
	"ggp-deploy/pkg/utils"
)

// Stream runs a deployment over a websocket. The client sends one
// DeployRequest; the server answers with an "output" frame per non-empty
// line of ggp output (progress redraws included) and a final "result" or
// "error" frame. Closing the socket cancels the deployment.
func (h *DeployHandler) Stream(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer ws.Close()

	taskID := uuid.New().String()

	var req model.DeployRequest
	if err := ws.ReadJSON(&req); err != nil {
		h.logger.Warn("Invalid WebSocket deploy request", zap.Error(err))
		h.writeError(ws, taskID, utils.NewValidationError("request", err.Error()))
		return
	}
	if apiErr := validateDeployRequest(&req); apiErr != nil {
		h.writeError(ws, taskID, apiErr)
		return
	}
	if !h.mu.TryLock() {
		busy := busyResponse()
		_ = ws.WriteJSON(model.StreamMessage{Type: "error", TaskID: taskID, Error: &busy})
		return
	}
	defer h.mu.Unlock()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Any read error means the client is gone.
	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	pr, pw := io.Pipe()
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		writable := true
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 0, 64*1024), maxOutputLine)
		scanner.Split(scanOutputLines)
		for scanner.Scan() {
			if !writable || len(scanner.Bytes()) == 0 {
				continue
			}
			msg := model.StreamMessage{Type: "output", TaskID: taskID, Line: scanner.Text()}
			if err := ws.WriteJSON(msg); err != nil {
				h.logger.Warn("WebSocket write error", zap.String("task_id", taskID), zap.Error(err))
				writable = false
			}
		}
		if err := scanner.Err(); err != nil {
			h.logger.Warn("ggp output dropped", zap.String("task_id", taskID), zap.Error(err))
		}
		_, _ = io.Copy(io.Discard, pr)
	}()

	resp, apiErr := h.deploy(ctx, taskID, &req, pw)
	pw.Close()
	<-drained

	if apiErr != nil {
		h.writeError(ws, taskID, apiErr)
		return
	}
	if err := ws.WriteJSON(model.StreamMessage{Type: "result", TaskID: taskID, Result: resp}); err != nil {
		h.logger.Warn("WebSocket write error", zap.String("task_id", taskID), zap.Error(err))
		return
	}
	_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *DeployHandler) writeError(ws *websocket.Conn, taskID string, apiErr *utils.APIError) {
	e := errorResponse(apiErr)
	if err := ws.WriteJSON(model.StreamMessage{Type: "error", TaskID: taskID, Error: &e}); err != nil {
		h.logger.Warn("WebSocket write error", zap.String("task_id", taskID), zap.Error(err))
	}
}
