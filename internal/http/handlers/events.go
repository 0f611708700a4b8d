package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"novelforge/internal/checkpoint"
	"novelforge/internal/domain"
)

const eventWriteWait = 10 * time.Second

// NovelEvents upgrades to a websocket and pushes a progress snapshot every
// time it changes. The stream closes once the novel completes or fails.
func (a *App) NovelEvents(w http.ResponseWriter, r *http.Request) {
	n, ok := a.loadOwned(w, r)
	if !ok {
		return
	}
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the request.
		a.Logger.Debug().Err(err).Str("novel_id", n.ID).Msg("http: websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(a.EventInterval)
	defer ticker.Stop()

	var last domain.Progress
	sent := false
	for {
		progress, err := a.Progress.Progress(ctx, n.ID)
		if err != nil {
			if ctx.Err() == nil {
				a.Logger.Error().Err(err).Str("novel_id", n.ID).Msg("http: read progress for stream")
				closeStream(conn, websocket.CloseInternalServerErr, "progress unavailable")
			}
			return
		}
		if progress.Status == checkpoint.StatusPending {
			closeStream(conn, websocket.CloseGoingAway, "novel deleted")
			return
		}
		if !sent || progressChanged(last, progress) {
			_ = conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
			if err := conn.WriteJSON(progress); err != nil {
				return
			}
			last, sent = progress, true
		}
		if progress.Status.Terminal() {
			closeStream(conn, websocket.CloseNormalClosure, string(progress.Status))
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func progressChanged(a, b domain.Progress) bool {
	if a.Status != b.Status || a.Stage != b.Stage || a.LastError != b.LastError {
		return true
	}
	if a.UpdatedAt == nil || b.UpdatedAt == nil {
		return a.UpdatedAt != b.UpdatedAt
	}
	return !a.UpdatedAt.Equal(*b.UpdatedAt)
}

func closeStream(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(eventWriteWait))
}
