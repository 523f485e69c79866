package dashboard

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	docsync "github.com/varubogu/flequit-sub003/internal/sync"
)

// SyncData describes one sync in a dashboard message.
type SyncData struct {
	// Document is empty for a full sync.
	Document        string `json:"document,omitempty"`
	Documents       int    `json:"documents"`
	FailedDocuments int    `json:"failed_documents"`
	Entities        int    `json:"entities"`
	Failed          int    `json:"failed"`
	Pruned          int    `json:"pruned"`
	DurationMS      int64  `json:"duration_ms"`
	Error           string `json:"error,omitempty"`
}

// Handler turns daemon events into dashboard messages.
type Handler struct {
	server *Server
}

// NewHandler creates a handler that broadcasts through server.
func NewHandler(server *Server) *Handler {
	return &Handler{server: server}
}

// OnSync is a sync.DaemonConfig.OnSync callback.
func (h *Handler) OnSync(ev docsync.Event) {
	data := SyncData{
		Documents:       ev.Stats.Documents,
		FailedDocuments: ev.Stats.FailedDocuments,
		Entities:        ev.Stats.Entities,
		Failed:          ev.Stats.Failed,
		Pruned:          ev.Stats.Pruned,
		DurationMS:      ev.Stats.Duration.Milliseconds(),
	}
	typ := MessageTypeSyncComplete
	if ev.Document != nil {
		data.Document = ev.Document.String()
		typ = MessageTypeDocumentSynced
	}
	if ev.Err != nil {
		data.Error = ev.Err.Error()
		typ = MessageTypeSyncError
	}

	raw, err := json.Marshal(data)
	if err != nil {
		h.server.log.Errorf("failed to marshal sync data: %v", err)
		return
	}
	h.server.Broadcast(Message{Type: typ, Timestamp: time.Now(), Data: raw})

	if ev.Err == nil {
		if msg, ok := h.server.statsMessage(context.Background()); ok {
			h.server.Broadcast(msg)
		}
	}
}
