package agents

import (
	"github.com/chronoeffector/orchestrator/ai"
	"github.com/chronoeffector/orchestrator/communication"
	"github.com/chronoeffector/orchestrator/core"
	"github.com/chronoeffector/orchestrator/loader"
)

// DefaultTable returns the predefined-agent-type table handed to the
// loader at startup. The client and bus are shared across constructed
// agents; either may be nil.
func DefaultTable(client *ai.Client, bus communication.Bus) map[string]loader.Constructor {
	return map[string]loader.Constructor{
		"sentiment": func(id string, _ map[string]any) (core.Agent, error) {
			return NewSentimentAgent(id, client), nil
		},
		"weather": func(id string, config map[string]any) (core.Agent, error) {
			apiKey, _ := config["api_key"].(string)
			return NewWeatherAgent(id, apiKey), nil
		},
		"data_processor": func(id string, config map[string]any) (core.Agent, error) {
			transforms := make(map[string]string)
			if raw, ok := config["transform"].(map[string]any); ok {
				for field, rule := range raw {
					if s, ok := rule.(string); ok {
						transforms[field] = s
					}
				}
			}
			var filters []string
			if raw, ok := config["filter"].([]any); ok {
				for _, f := range raw {
					if s, ok := f.(string); ok {
						filters = append(filters, s)
					}
				}
			}
			return NewDataProcessingAgent(id, transforms, filters), nil
		},
		"notification": func(id string, config map[string]any) (core.Agent, error) {
			var channels []string
			if raw, ok := config["channels"].([]any); ok {
				for _, ch := range raw {
					if s, ok := ch.(string); ok {
						channels = append(channels, s)
					}
				}
			}
			return NewNotificationAgent(id, channels, bus), nil
		},
	}
}
