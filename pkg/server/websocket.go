package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/nstogner/listingwriter/pkg/domain"
	"github.com/nstogner/listingwriter/pkg/post"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// jobRequest is the single message a client sends on the post socket.
type jobRequest struct {
	domain.Listing
	Images []struct {
		Name string `json:"name"`
		Data []byte `json:"data"` // base64 in JSON
	} `json:"images"`
}

// jobMessage wraps every message the server sends on the post socket.
type jobMessage struct {
	JobID string      `json:"job_id"`
	Event *post.Event `json:"event,omitempty"`
	Error string      `json:"error,omitempty"`
}

func (s *Server) handlePostWebSocket(w http.ResponseWriter, r *http.Request) {
	if _, err := s.session(); err != nil {
		http.Error(w, err.Error(), http.StatusPreconditionRequired)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade websocket", "error", err)
		return
	}
	defer ws.Close()

	jobID := uuid.New().String()

	var req jobRequest
	if err := ws.ReadJSON(&req); err != nil {
		slog.Error("WebSocket read error", "error", err)
		ws.WriteJSON(jobMessage{JobID: jobID, Error: "invalid job: " + err.Error()})
		return
	}
	if len(req.Images) == 0 {
		ws.WriteJSON(jobMessage{JobID: jobID, Error: "at least one image is required"})
		return
	}

	if !s.busy.TryLock() {
		ws.WriteJSON(jobMessage{JobID: jobID, Error: ErrBusy.Error()})
		return
	}
	defer s.busy.Unlock()

	// Re-read under busy: the session may have been replaced since the upgrade.
	sess, err := s.session()
	if err != nil {
		ws.WriteJSON(jobMessage{JobID: jobID, Error: err.Error()})
		return
	}

	images := make([]domain.Image, 0, len(req.Images))
	for _, img := range req.Images {
		images = append(images, domain.NewImage(img.Name, img.Data))
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reader goroutine: the client sends nothing after the job, so a read
	// error means it went away.
	go func() {
		defer cancel()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !errors.Is(err, net.ErrClosed) {
					slog.Debug("WebSocket reader stopped", "jobID", jobID, "error", err)
				}
				return
			}
		}
	}()

	slog.Info("Post job started", "jobID", jobID, "images", len(images))
	sess.Write(ctx, req.Listing, images, func(e post.Event) {
		if ctx.Err() != nil {
			return
		}
		if err := ws.WriteJSON(jobMessage{JobID: jobID, Event: &e}); err != nil {
			slog.Error("Failed to send event", "jobID", jobID, "error", err)
			cancel()
		}
	})
	slog.Info("Post job finished", "jobID", jobID)

	ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
}
