package models

const (
	MaxTopics   = 5
	MaxKeywords = 10
	MaxTags     = 8
)

// Sentiment classifications
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

type Sentiment struct {
	Classification string  `json:"classification"`
	Confidence     float64 `json:"confidence"`
}

// TranscriptMetadata is the model-derived summary of a transcript
type TranscriptMetadata struct {
	Topics    []string  `json:"topics"`
	Keywords  []string  `json:"keywords"`
	Sentiment Sentiment `json:"sentiment"`
	Tags      []string  `json:"tags"`
}

// DefaultMetadata is returned whenever analysis cannot produce a usable record.
func DefaultMetadata() TranscriptMetadata {
	return TranscriptMetadata{
		Topics:   []string{},
		Keywords: []string{},
		Sentiment: Sentiment{
			Classification: SentimentNeutral,
			Confidence:     0.5,
		},
		Tags: []string{},
	}
}

// Normalized replaces nil lists with empty ones so the record never encodes nulls
func (m TranscriptMetadata) Normalized() TranscriptMetadata {
	if m.Topics == nil {
		m.Topics = []string{}
	}
	if m.Keywords == nil {
		m.Keywords = []string{}
	}
	if m.Tags == nil {
		m.Tags = []string{}
	}
	return m
}
