package api

import (
	"net/http"
	"time"

	"github.com/bobarin/montage/internal/progress"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS and API key layers.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// JobEvents handles GET /v1/jobs/{id}/events. It sends the current state,
// then every update until the job reaches a terminal status or the client
// goes away.
func (h *Handler) JobEvents(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid job ID")
		return
	}

	// Subscribe before reading the record so no transition is missed.
	updates, unsubscribe := h.hub.Subscribe(jobID)
	defer unsubscribe()

	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	logger := log.With().Str("component", "events").Str("job_id", job.ID.String()).Logger()

	current := progress.Update{JobID: job.ID, Status: job.Status, Stage: job.Stage, Time: job.UpdatedAt}
	if job.ErrorMessage != nil {
		current.Reason = *job.ErrorMessage
	}
	if job.OutputURL != nil {
		current.OutputURL = *job.OutputURL
	}
	if !send(conn, current) || job.Status.Terminal() {
		closeNormal(conn)
		return
	}

	// Reader loop only notices the client closing.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Debug().Err(err).Msg("websocket read failed")
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case u, ok := <-updates:
			if !ok {
				closeNormal(conn)
				return
			}
			if !send(conn, u) {
				return
			}
			if u.Status.Terminal() {
				closeNormal(conn)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}

type eventMessage struct {
	progress.Update
	StatusText string `json:"status_text"`
}

func send(conn *websocket.Conn, u progress.Update) bool {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(eventMessage{Update: u, StatusText: u.Text()}) == nil
}

func closeNormal(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

