package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"

	"transcript-stack/internal/models"
)

// MetadataInputLimit is how many characters of a transcript are sent for analysis
const MetadataInputLimit = 8000

const metadataPrompt = `You are an AI assistant that analyzes transcripts and extracts structured metadata.

Analyze the transcript provided by the user and respond with ONLY a JSON object in the following format:
{
  "topics": ["up to 5 main topics, most important first"],
  "keywords": ["up to 10 keywords or key phrases"],
  "sentiment": {
    "classification": "positive" | "negative" | "neutral",
    "confidence": number (0.0-1.0)
  },
  "tags": ["up to 8 short lowercase tags suitable for categorization"]
}`

// MetadataAnalyzer extracts topics, keywords, sentiment and tags from a transcript
type MetadataAnalyzer struct {
	invoker *Invoker
}

func NewMetadataAnalyzer(inv *Invoker) *MetadataAnalyzer {
	return &MetadataAnalyzer{invoker: inv}
}

// Analyze always returns a usable record. Remote or parse failures yield DefaultMetadata.
func (a *MetadataAnalyzer) Analyze(ctx context.Context, text string) models.TranscriptMetadata {
	if strings.TrimSpace(text) == "" {
		return models.DefaultMetadata()
	}

	response, err := a.invoker.Invoke(ctx, Request{
		Instructions: []string{metadataPrompt},
		Text:         truncateRunes(text, MetadataInputLimit),
		Temperature:  TemperatureMetadata,
		JSON:         true,
	})
	if err != nil {
		log.Printf("Warning: metadata analysis failed, using defaults: %v", err)
		return models.DefaultMetadata()
	}

	metadata, err := parseMetadataResponse(response)
	if err != nil {
		log.Printf("Warning: could not parse metadata response, using defaults: %v", err)
		return models.DefaultMetadata()
	}

	return metadata
}

func parseMetadataResponse(response string) (models.TranscriptMetadata, error) {
	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")

	if startIdx == -1 || endIdx == -1 || endIdx < startIdx {
		return models.TranscriptMetadata{}, fmt.Errorf("no JSON found in response: %s", truncateRunes(response, 200))
	}

	jsonStr := response[startIdx : endIdx+1]

	var result struct {
		Topics    []string `json:"topics"`
		Keywords  []string `json:"keywords"`
		Sentiment struct {
			Classification string  `json:"classification"`
			Confidence     float64 `json:"confidence"`
		} `json:"sentiment"`
		Tags []string `json:"tags"`
	}

	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		sanitized := sanitizeJSON(jsonStr)
		if sanitizedErr := json.Unmarshal([]byte(sanitized), &result); sanitizedErr != nil {
			return models.TranscriptMetadata{}, fmt.Errorf("failed to unmarshal JSON: %w (sanitized version also failed: %v)", err, sanitizedErr)
		}
		log.Printf("Warning: Had to sanitize malformed metadata JSON")
	}

	confidence := result.Sentiment.Confidence
	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}

	return models.TranscriptMetadata{
		Topics:   cleanList(result.Topics, models.MaxTopics),
		Keywords: cleanList(result.Keywords, models.MaxKeywords),
		Sentiment: models.Sentiment{
			Classification: normalizeSentiment(result.Sentiment.Classification),
			Confidence:     confidence,
		},
		Tags: cleanList(result.Tags, models.MaxTags),
	}, nil
}

func normalizeSentiment(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case models.SentimentPositive:
		return models.SentimentPositive
	case models.SentimentNegative:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}

// cleanList trims entries, drops blanks and caps the length
func cleanList(items []string, limit int) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
		if len(out) == limit {
			break
		}
	}
	return out
}

var reKeyPrefix = regexp.MustCompile(`^"[A-Za-z_]+"\s*:\s*`)

// sanitizeJSON escapes stray quotes inside single-line string values, both
// after a key and as one-per-line array elements.
func sanitizeJSON(jsonStr string) string {
	var out []string
	for _, line := range strings.Split(jsonStr, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		prefix := reKeyPrefix.FindString(line)
		out = append(out, prefix+escapeStringValue(line[len(prefix):]))
	}
	return strings.Join(out, "\n")
}

// escapeStringValue re-escapes the quotes of a lone string such as `"a "b" c",`.
// Values that are not a single string are returned unchanged.
func escapeStringValue(value string) string {
	last := strings.LastIndex(value, `"`)
	if !strings.HasPrefix(value, `"`) || last <= 0 {
		return value
	}
	tail := value[last+1:]
	if strings.Trim(tail, ",]} ") != "" {
		return value
	}

	content := strings.ReplaceAll(value[1:last], `\"`, `"`)
	content = strings.ReplaceAll(content, `"`, `\"`)
	return `"` + content + `"` + tail
}

func truncateRunes(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	return string(runes[:maxLength])
}
