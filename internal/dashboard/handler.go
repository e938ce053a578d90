package dashboard

import (
	"encoding/json"
	"log"
	"time"

	"github.com/luisk202009/kuppel-dine-ease-sub002/internal/offline/model"
	"github.com/luisk202009/kuppel-dine-ease-sub002/internal/offline/syncer"
)

// SyncCompleteData is the payload for a sync_complete message.
type SyncCompleteData struct {
	Synced   int           `json:"synced"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// ConnectivityData is the payload for a connectivity message.
type ConnectivityData struct {
	Online bool `json:"online"`
}

// Handler bridges offline-service events to dashboard broadcasts. It
// implements the service's EventSink.
type Handler struct {
	server *Server
	logger *log.Logger
}

// NewHandler creates a Handler connected to a dashboard server.
func NewHandler(server *Server, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{server: server, logger: logger}
}

// OnStats broadcasts refreshed storage counts.
func (h *Handler) OnStats(stats model.StorageStats) {
	h.send(MessageTypeStats, stats)
}

// OnSyncComplete broadcasts the summary of a finished drain pass.
func (h *Handler) OnSyncComplete(summary syncer.Summary, elapsed time.Duration) {
	h.logger.Printf("Sync complete: synced=%d failed=%d in %v",
		summary.Synced, summary.Failed, elapsed)

	h.send(MessageTypeSyncComplete, SyncCompleteData{
		Synced:   summary.Synced,
		Failed:   summary.Failed,
		Duration: elapsed,
	})
}

// OnConnectivity broadcasts an online/offline transition.
func (h *Handler) OnConnectivity(online bool) {
	h.send(MessageTypeConnectivity, ConnectivityData{Online: online})
}

func (h *Handler) send(typ MessageType, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Printf("Failed to marshal %s payload: %v", typ, err)
		return
	}

	h.server.Broadcast(Message{
		Type:      typ,
		Timestamp: time.Now(),
		Data:      data,
	})
}
