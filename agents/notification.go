package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/chronoeffector/orchestrator/communication"
	"github.com/chronoeffector/orchestrator/core"
)

// SubjectNotifications is the bus subject notification deliveries go out on.
const SubjectNotifications = "NOTIFICATIONS"

// Notification is the payload published for each delivery.
type Notification struct {
	Channel   string    `json:"channel"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// NotificationAgent delivers messages over its configured channels by
// publishing them on the event bus; downstream transports (mail, SMS, push
// gateways) subscribe there.
type NotificationAgent struct {
	id       string
	channels map[string]bool
	bus      communication.Bus
}

func NewNotificationAgent(id string, channels []string, bus communication.Bus) *NotificationAgent {
	configured := make(map[string]bool, len(channels))
	for _, ch := range channels {
		configured[ch] = true
	}
	return &NotificationAgent{id: id, channels: configured, bus: bus}
}

// Execute sends the "message" entry of the context over the requested
// "channel".
func (a *NotificationAgent) Execute(ctx context.Context, ec core.Context) (any, error) {
	message, ok := ec["message"].(string)
	if !ok || message == "" {
		return nil, fmt.Errorf("context must include 'message'")
	}
	channel, ok := ec["channel"].(string)
	if !ok || channel == "" {
		return nil, fmt.Errorf("context must include 'channel'")
	}
	if !a.channels[channel] {
		return nil, fmt.Errorf("channel %q not configured", channel)
	}

	notification := Notification{
		Channel:   channel,
		Message:   message,
		Timestamp: time.Now(),
	}
	if a.bus != nil {
		if err := a.bus.Publish(SubjectNotifications, notification); err != nil {
			return nil, fmt.Errorf("failed to publish notification: %w", err)
		}
	}

	return map[string]any{
		"channel":   channel,
		"message":   message,
		"status":    "sent",
		"timestamp": notification.Timestamp.Format(time.RFC3339),
	}, nil
}

// Validate requires at least one configured channel.
func (a *NotificationAgent) Validate() bool {
	return a.id != "" && len(a.channels) > 0
}

func (a *NotificationAgent) Describe() []string {
	return []string{"send_notification"}
}
