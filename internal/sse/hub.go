// Package sse fans run lifecycle events out to monitoring clients over
// Server-Sent Events. The hub is the live end of the progress pipeline:
// services publish through ports.ProgressPort and browsers subscribe per run.
package sse

import (
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"mlhmc/adapters/api"
	"mlhmc/ports"
)

// Client represents a connected SSE client
type Client struct {
	RunID   string
	Channel chan *api.RunEvent
}

// Hub manages Server-Sent Events for real-time run monitoring
type Hub struct {
	clients    map[string]map[chan *api.RunEvent]bool
	clientsMu  sync.RWMutex
	register   chan Client
	unregister chan Client
	broadcast  chan *api.RunEvent
}

var _ ports.ProgressPort = (*Hub)(nil)

// NewHub creates a new SSE hub
func NewHub() *Hub {
	hub := &Hub{
		clients:    make(map[string]map[chan *api.RunEvent]bool),
		register:   make(chan Client, 10),
		unregister: make(chan Client, 10),
		broadcast:  make(chan *api.RunEvent, 100),
	}

	go hub.run()
	return hub
}

// run processes hub operations
func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.clientsMu.Lock()
			if h.clients[client.RunID] == nil {
				h.clients[client.RunID] = make(map[chan *api.RunEvent]bool)
			}
			h.clients[client.RunID][client.Channel] = true
			log.Printf("[SSE] Client registered for run %s (total clients: %d)",
				client.RunID, len(h.clients[client.RunID]))
			h.clientsMu.Unlock()

		case client := <-h.unregister:
			h.clientsMu.Lock()
			if clients, exists := h.clients[client.RunID]; exists {
				delete(clients, client.Channel)
				close(client.Channel)
				log.Printf("[SSE] Client unregistered from run %s (remaining clients: %d)",
					client.RunID, len(clients))
				if len(clients) == 0 {
					delete(h.clients, client.RunID)
				}
			}
			h.clientsMu.Unlock()

		case event := <-h.broadcast:
			h.clientsMu.RLock()
			if clients, exists := h.clients[event.RunID]; exists {
				for clientChan := range clients {
					select {
					case clientChan <- event:
						// Event sent successfully
					default:
						// Client channel is full, skip
						log.Printf("[SSE] Client channel full for run %s, skipping event",
							event.RunID)
					}
				}
			}
			h.clientsMu.RUnlock()
		}
	}
}

// Broadcast sends an event to all clients listening to its run
func (h *Hub) Broadcast(event *api.RunEvent) {
	select {
	case h.broadcast <- event:
	default:
		log.Printf("[SSE] Broadcast channel full, dropping event: %s", event.EventType)
	}
}

// Publish implements ports.ProgressPort. It never blocks the sampling loop;
// events are dropped when the broadcast channel is full.
func (h *Hub) Publish(event ports.ProgressEvent) {
	h.Broadcast(api.FromProgress(event))
}

// HandleSSE handles the Server-Sent Events endpoint
func (h *Hub) HandleSSE(c *gin.Context) {
	runID := c.Query("run_id")
	if runID == "" {
		c.JSON(400, gin.H{"error": "run_id parameter required"})
		return
	}

	// Set SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Headers", "Cache-Control")

	// Create client channel
	clientChan := make(chan *api.RunEvent, 10)

	// Register client
	select {
	case h.register <- Client{RunID: runID, Channel: clientChan}:
	default:
		c.JSON(500, gin.H{"error": "SSE hub registration failed"})
		return
	}

	defer func() {
		select {
		case h.unregister <- Client{RunID: runID, Channel: clientChan}:
		default:
			// Hub might be overloaded, just close channel
		}
	}()

	// Keep connection alive and stream events
	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-clientChan:
			if !ok {
				return false
			}
			fmt.Fprint(w, event.ToSSEFormat())
			return true

		case <-time.After(30 * time.Second):
			// Send ping to keep connection alive
			c.SSEvent("ping", `{"status": "alive", "timestamp": "`+time.Now().Format(time.RFC3339)+`"}`)
			return true

		case <-ctx.Done():
			// Client disconnected
			return false
		}
	})
}

// ActiveRuns returns runs with active SSE clients
func (h *Hub) ActiveRuns() []string {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	runs := make([]string, 0, len(h.clients))
	for runID := range h.clients {
		runs = append(runs, runID)
	}
	return runs
}

// ClientCount returns the number of active clients for a run
func (h *Hub) ClientCount(runID string) int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	if clients, exists := h.clients[runID]; exists {
		return len(clients)
	}
	return 0
}
