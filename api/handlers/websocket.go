package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/chronoeffector/orchestrator/communication"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// HandleWebSocket streams the core's lifecycle and consensus events to a
// websocket client until it disconnects.
func (e *Env) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}
	defer conn.Close()
	log.Printf("New WebSocket subscriber: %s", conn.RemoteAddr())

	// Concurrent subscription callbacks share the connection.
	var writeMu sync.Mutex
	forward := func(eventType string) func(data []byte) {
		return func(data []byte) {
			frame := struct {
				Type    string          `json:"type"`
				Payload json.RawMessage `json:"payload"`
			}{
				Type:    eventType,
				Payload: data,
			}
			writeMu.Lock()
			defer writeMu.Unlock()
			if err := conn.WriteJSON(frame); err != nil {
				log.Printf("Error writing to websocket: %v", err)
			}
		}
	}

	subjects := []string{
		communication.SubjectAgentLifecycle,
		communication.SubjectTaskLifecycle,
		communication.SubjectConsensus,
	}
	unsubs := make([]communication.Unsubscribe, 0, len(subjects))
	defer func() {
		for _, unsub := range unsubs {
			_ = unsub()
		}
	}()
	for _, subject := range subjects {
		unsub, err := e.Bus.Subscribe(subject, forward(subject))
		if err != nil {
			log.Printf("Failed to subscribe to %s: %v", subject, err)
			return
		}
		unsubs = append(unsubs, unsub)
	}

	// Keep connection alive and handle disconnection
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			log.Printf("WebSocket connection closed: %v", err)
			return
		}
	}
}
