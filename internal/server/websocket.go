package server

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/luislascano01/Stratvithor/core/publisher"
)

// invalidTaskFrame is sent to clients that open a stream for an unknown task.
var invalidTaskFrame = errorResponse{Error: "Invalid task_id"}

// streamTask upgrades to a WebSocket and writes the task's events as JSON
// frames: the init event, then updates until the task finishes.
func (server *Server) streamTask(c *gin.Context) {
	taskID := c.Param("task_id")

	conn, err := server.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		server.logger.Warn("websocket upgrade failed", "task_id", taskID, "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	subscription, err := server.service.Subscribe(ctx, taskID)
	if err != nil {
		_ = server.writeFrame(conn, invalidTaskFrame)
		server.closeStream(conn, websocket.ClosePolicyViolation, "invalid task_id")
		return
	}
	defer subscription.Close()

	go server.drain(conn, cancel)

	err = server.service.Hub().Deliver(ctx, subscription, func(event publisher.Event) error {
		return server.writeFrame(conn, event)
	})

	var deliveryErr *publisher.SubscriptionDeliveryError
	switch {
	case err == nil:
		server.closeStream(conn, websocket.CloseNormalClosure, "task finished")
	case errors.As(err, &deliveryErr), errors.Is(err, context.Canceled):
		server.logger.Debug("websocket client gone", "task_id", taskID, "error", err)
	default:
		server.logger.Warn("websocket stream failed", "task_id", taskID, "error", err)
	}
}

func (server *Server) writeFrame(conn *websocket.Conn, frame any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(server.writeTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(frame)
}

func (server *Server) closeStream(conn *websocket.Conn, code int, text string) {
	message := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(server.writeTimeout))
}

// drain reads until the client goes away. Clients never send data frames;
// reading is what surfaces their close and keeps control frames flowing.
func (server *Server) drain(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}
