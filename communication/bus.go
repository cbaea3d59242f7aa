package communication

import (
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/chronoeffector/orchestrator/core"
)

// Bus is the event surface the core publishes observability events on.
// Collaborators (websocket streams, metrics, external consumers) subscribe;
// the core never depends on anyone listening.
type Bus interface {
	Publish(subject string, payload any) error
	Subscribe(subject string, handler func(data []byte)) (Unsubscribe, error)
}

// Unsubscribe tears down a subscription created by Subscribe.
type Unsubscribe func() error

// NATSBus carries events over a NATS connection.
type NATSBus struct {
	conn *nats.Conn
}

// NewNATSBus connects to the given NATS URL.
func NewNATSBus(url string) (*NATSBus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return &NATSBus{conn: conn}, nil
}

func (b *NATSBus) Publish(subject string, payload any) error {
	data := core.EncodeJSON(payload)
	if data == nil {
		return fmt.Errorf("failed to encode event payload for %s", subject)
	}
	return b.conn.Publish(subject, data)
}

func (b *NATSBus) Subscribe(subject string, handler func(data []byte)) (Unsubscribe, error) {
	sub, err := b.conn.Subscribe(subject, func(m *nats.Msg) {
		handler(m.Data)
	})
	if err != nil {
		return nil, err
	}
	return sub.Unsubscribe, nil
}

// Close drains and closes the underlying connection.
func (b *NATSBus) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}

// StartEmbeddedServer runs an in-process NATS server on a random port and
// returns it together with its client URL. Single-process deployments use
// this instead of pointing at an external broker.
func StartEmbeddedServer() (*server.Server, string, error) {
	opts := &server.Options{
		Host: "127.0.0.1",
		Port: server.RANDOM_PORT,
	}
	srv, err := server.NewServer(opts)
	if err != nil {
		return nil, "", err
	}
	go srv.Start()
	if !srv.ReadyForConnections(5 * time.Second) {
		srv.Shutdown()
		return nil, "", fmt.Errorf("embedded NATS server did not become ready")
	}
	log.Printf("Embedded NATS server listening on %s", srv.ClientURL())
	return srv, srv.ClientURL(), nil
}

// NopBus drops every event. It keeps publishing paths nil-safe when no
// broker is configured (tests, library embedding).
type NopBus struct{}

func (NopBus) Publish(string, any) error { return nil }

func (NopBus) Subscribe(string, func([]byte)) (Unsubscribe, error) {
	return func() error { return nil }, nil
}
