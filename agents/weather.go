package agents

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/chronoeffector/orchestrator/core"
)

// WeatherAgent reports weather for a location. The fetch is simulated; a
// production build would swap in a real provider behind the same contract.
type WeatherAgent struct {
	id     string
	apiKey string
}

func NewWeatherAgent(id, apiKey string) *WeatherAgent {
	return &WeatherAgent{id: id, apiKey: apiKey}
}

var weatherConditions = []string{"Sunny", "Cloudy", "Rainy", "Snowy"}

// Execute looks up weather for the "location" entry of the context.
func (a *WeatherAgent) Execute(ctx context.Context, ec core.Context) (any, error) {
	location, ok := ec["location"].(string)
	if !ok || location == "" {
		return nil, fmt.Errorf("context must include 'location'")
	}

	return map[string]any{
		"location":    location,
		"temperature": rand.Intn(36),
		"condition":   weatherConditions[rand.Intn(len(weatherConditions))],
		"humidity":    30 + rand.Intn(61),
		"timestamp":   time.Now().Format(time.RFC3339),
	}, nil
}

// Validate requires an API key, matching what a real provider would need.
func (a *WeatherAgent) Validate() bool {
	return a.id != "" && a.apiKey != ""
}

func (a *WeatherAgent) Describe() []string {
	return []string{"weather_lookup"}
}
