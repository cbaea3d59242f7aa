package agents

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/chronoeffector/orchestrator/ai"
	"github.com/chronoeffector/orchestrator/core"
)

// SentimentResult is the structured output of a sentiment analysis run.
type SentimentResult struct {
	Text      string    `json:"text"`
	Sentiment string    `json:"sentiment"`
	Score     float64   `json:"score"`
	Timestamp time.Time `json:"timestamp"`
}

// SentimentAgent classifies the emotional tone of a piece of text. With an
// LLM client it asks the model; without one it falls back to a small
// lexicon so the agent stays usable offline.
type SentimentAgent struct {
	id     string
	client *ai.Client
}

func NewSentimentAgent(id string, client *ai.Client) *SentimentAgent {
	return &SentimentAgent{id: id, client: client}
}

var positiveWords = []string{"love", "great", "good", "excellent", "happy", "amazing", "wonderful", "like"}
var negativeWords = []string{"hate", "bad", "terrible", "awful", "sad", "angry", "broken", "worst"}

// Execute analyses the "text" entry of the context.
func (a *SentimentAgent) Execute(ctx context.Context, ec core.Context) (any, error) {
	text, ok := ec["text"].(string)
	if !ok || text == "" {
		return nil, fmt.Errorf("context must include 'text'")
	}

	sentiment, score := a.classify(ctx, text)
	return SentimentResult{
		Text:      text,
		Sentiment: sentiment,
		Score:     score,
		Timestamp: time.Now(),
	}, nil
}

func (a *SentimentAgent) classify(ctx context.Context, text string) (string, float64) {
	if a.client != nil {
		prompt := fmt.Sprintf(
			"Classify the sentiment of the following text as exactly one word, "+
				"POSITIVE, NEGATIVE or NEUTRAL:\n\n%s", text)
		response, err := a.client.GenerateResponse(ctx, prompt)
		if err == nil {
			upper := strings.ToUpper(response)
			switch {
			case strings.Contains(upper, "POSITIVE"):
				return "Positive", 0.9
			case strings.Contains(upper, "NEGATIVE"):
				return "Negative", 0.9
			default:
				return "Neutral", 0.5
			}
		}
		log.Printf("Sentiment LLM call failed, using lexicon fallback: %v", err)
	}

	lower := strings.ToLower(text)
	balance := 0
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			balance++
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			balance--
		}
	}
	switch {
	case balance > 0:
		return "Positive", 0.7
	case balance < 0:
		return "Negative", 0.7
	default:
		return "Neutral", 0.5
	}
}

func (a *SentimentAgent) Validate() bool {
	return a.id != ""
}

func (a *SentimentAgent) Describe() []string {
	return []string{"sentiment_analysis"}
}
