package ai

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"transcript-stack/internal/models"
)

func analyzerReturning(response string, err error) *MetadataAnalyzer {
	return NewMetadataAnalyzer(NewInvoker(BackendFunc(func(context.Context, []Message, Params) (string, error) {
		return response, err
	}), 0))
}

func TestAnalyzeDefaults(t *testing.T) {
	tests := []struct {
		name     string
		response string
		err      error
	}{
		{"remote failure", "", errors.New("connection refused")},
		{"not json", "I cannot help with that.", nil},
		{"broken json", `{"topics": [`, nil},
		{"wrong types", `{"topics": "one", "sentiment": 3}`, nil},
	}

	want := models.DefaultMetadata()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := analyzerReturning(tt.response, tt.err).Analyze(context.Background(), "some transcript")
			if !reflect.DeepEqual(got, want) {
				t.Errorf("Analyze() = %+v, want %+v", got, want)
			}
		})
	}
}

func TestAnalyzeBlankInputSkipsModel(t *testing.T) {
	called := false
	a := NewMetadataAnalyzer(NewInvoker(BackendFunc(func(context.Context, []Message, Params) (string, error) {
		called = true
		return "{}", nil
	}), 0))

	got := a.Analyze(context.Background(), "   ")
	if called {
		t.Error("backend called for blank input")
	}
	if !reflect.DeepEqual(got, models.DefaultMetadata()) {
		t.Errorf("Analyze() = %+v", got)
	}
}

func TestAnalyzeParsesAndClamps(t *testing.T) {
	response := "Here you go:\n```json\n" + `{
  "topics": ["go", " testing ", "", "a", "b", "c", "d"],
  "keywords": ["k1","k2","k3","k4","k5","k6","k7","k8","k9","k10","k11"],
  "sentiment": {"classification": "Positive", "confidence": 1.7},
  "tags": ["t1","t2","t3","t4","t5","t6","t7","t8","t9"]
}` + "\n```"

	got := analyzerReturning(response, nil).Analyze(context.Background(), "talk about go")

	if want := []string{"go", "testing", "a", "b", "c"}; !reflect.DeepEqual(got.Topics, want) {
		t.Errorf("Topics = %q, want %q", got.Topics, want)
	}
	if len(got.Keywords) != models.MaxKeywords {
		t.Errorf("len(Keywords) = %d", len(got.Keywords))
	}
	if len(got.Tags) != models.MaxTags {
		t.Errorf("len(Tags) = %d", len(got.Tags))
	}
	if got.Sentiment.Classification != models.SentimentPositive || got.Sentiment.Confidence != 1 {
		t.Errorf("Sentiment = %+v", got.Sentiment)
	}
}

func TestAnalyzeUnknownSentiment(t *testing.T) {
	response := `{"topics": [], "keywords": [], "sentiment": {"classification": "mixed", "confidence": -2}, "tags": null}`
	got := analyzerReturning(response, nil).Analyze(context.Background(), "x")

	if got.Sentiment.Classification != models.SentimentNeutral || got.Sentiment.Confidence != 0 {
		t.Errorf("Sentiment = %+v", got.Sentiment)
	}
	if got.Tags == nil {
		t.Error("Tags is nil, want empty list")
	}
}

func TestAnalyzeSanitizesQuotes(t *testing.T) {
	response := `{
"topics": ["speech"],
"keywords": [],
"sentiment": {
"classification": "the "best" one",
"confidence": 0.9
},
"tags": []
}`
	got := analyzerReturning(response, nil).Analyze(context.Background(), "x")
	if !reflect.DeepEqual(got.Topics, []string{"speech"}) {
		t.Errorf("Topics = %q", got.Topics)
	}
	if got.Sentiment.Confidence != 0.9 {
		t.Errorf("Confidence = %v", got.Sentiment.Confidence)
	}
}

func TestAnalyzeSanitizesArrayElements(t *testing.T) {
	response := `{
"topics": [
"the "gopher" way",
"concurrency"
],
"keywords": ["go"],
"sentiment": {"classification": "positive", "confidence": 0.7},
"tags": []
}`
	got := analyzerReturning(response, nil).Analyze(context.Background(), "x")
	if want := []string{`the "gopher" way`, "concurrency"}; !reflect.DeepEqual(got.Topics, want) {
		t.Errorf("Topics = %q, want %q", got.Topics, want)
	}
	if !reflect.DeepEqual(got.Keywords, []string{"go"}) || got.Sentiment.Classification != models.SentimentPositive {
		t.Errorf("Analyze() = %+v", got)
	}
}

func TestSanitizeJSONLines(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"keyed value", `"classification": "the "best" one",`, `"classification": "the \"best\" one",`},
		{"array element", `"say "hi"",`, `"say \"hi\"",`},
		{"already escaped", `"a \"b\" c"`, `"a \"b\" c"`},
		{"closing brace", `"confidence_note": "x "y""}`, `"confidence_note": "x \"y\""}`},
		{"inline array untouched", `"topics": ["a", "b"],`, `"topics": ["a", "b"],`},
		{"number untouched", `"confidence": 0.9`, `"confidence": 0.9`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeJSON(tt.in); got != tt.want {
				t.Errorf("sanitizeJSON(%s) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestAnalyzeTruncatesInput(t *testing.T) {
	var sent string
	a := NewMetadataAnalyzer(NewInvoker(BackendFunc(func(_ context.Context, messages []Message, params Params) (string, error) {
		sent = messages[1].Text
		if !params.JSON || params.Temperature != TemperatureMetadata {
			t.Errorf("params = %+v", params)
		}
		return "{}", nil
	}), 0))

	a.Analyze(context.Background(), strings.Repeat("é", MetadataInputLimit+50))

	if n := utf8.RuneCountInString(sent); n != MetadataInputLimit {
		t.Errorf("sent %d runes, want %d", n, MetadataInputLimit)
	}
	if !utf8.ValidString(sent) {
		t.Error("truncated input is not valid UTF-8")
	}
}
