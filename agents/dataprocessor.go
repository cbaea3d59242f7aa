package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chronoeffector/orchestrator/core"
)

// DataProcessingAgent applies declarative transform and filter rules to a
// data map. Rules come from deploy-time config:
//
//	transform: {field: "uppercase" | "lowercase" | "double"}
//	filter:    [field, ...]
type DataProcessingAgent struct {
	id         string
	transforms map[string]string
	filters    map[string]bool
}

func NewDataProcessingAgent(id string, transforms map[string]string, filters []string) *DataProcessingAgent {
	filterSet := make(map[string]bool, len(filters))
	for _, f := range filters {
		filterSet[f] = true
	}
	return &DataProcessingAgent{id: id, transforms: transforms, filters: filterSet}
}

// Execute processes the "data" entry of the context.
func (a *DataProcessingAgent) Execute(ctx context.Context, ec core.Context) (any, error) {
	data, ok := ec["data"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("context must include 'data'")
	}

	processed := make(map[string]any, len(data))
	for key, value := range data {
		if a.filters[key] {
			continue
		}
		processed[key] = a.transform(key, value)
	}

	rules := make([]string, 0, 2)
	if len(a.transforms) > 0 {
		rules = append(rules, "transform")
	}
	if len(a.filters) > 0 {
		rules = append(rules, "filter")
	}

	return map[string]any{
		"original_data":  data,
		"processed_data": processed,
		"rules_applied":  rules,
		"timestamp":      time.Now().Format(time.RFC3339),
	}, nil
}

func (a *DataProcessingAgent) transform(key string, value any) any {
	switch a.transforms[key] {
	case "uppercase":
		if s, ok := value.(string); ok {
			return strings.ToUpper(s)
		}
	case "lowercase":
		if s, ok := value.(string); ok {
			return strings.ToLower(s)
		}
	case "double":
		switch n := value.(type) {
		case int:
			return n * 2
		case float64:
			return n * 2
		}
	}
	return value
}

func (a *DataProcessingAgent) Validate() bool {
	return a.id != ""
}

func (a *DataProcessingAgent) Describe() []string {
	return []string{"data_processing"}
}
