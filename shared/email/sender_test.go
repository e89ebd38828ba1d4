package email

import (
	"net/smtp"
	"strings"
	"testing"
	"time"

	"transcript-stack/internal/models"
	"transcript-stack/shared/config"
)

func sampleReport() *models.DigestReport {
	return &models.DigestReport{
		Date:             time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
		TotalTranscripts: 12,
		NewTranscripts: []models.Transcript{
			{ID: 11, Filename: "standup.srt", FormatStyle: models.StyleMeetingNotes, SourceKind: models.SourceInbox},
			{ID: 12, Filename: "<script>.txt", FormatStyle: models.StyleArticle, SourceKind: models.SourceUpload},
		},
		Backfilled:     3,
		BackfillFailed: 1,
		Summary: models.AnalyticsSummary{
			PopularOptions: []models.CountedValue{{Value: "clear_simple,youtube_script", Count: 4}},
			PopularFormats: []models.CountedValue{{Value: "article", Count: 9}},
			ActionCounts:   []models.CountedValue{{Value: "format", Count: 12}},
		},
	}
}

func TestRenderDigest(t *testing.T) {
	body, err := RenderDigest(sampleReport())
	if err != nil {
		t.Fatalf("RenderDigest() error: %v", err)
	}

	for _, want := range []string{
		"Monday, Mar 2, 2026",
		"standup.srt",
		"Meeting Notes",
		"3 analyzed, 1 failed",
		"Clear &amp; Simple, YouTube Script",
		"&lt;script&gt;.txt",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("digest body missing %q", want)
		}
	}
}

func TestSendDigest(t *testing.T) {
	cfg := &config.EmailConfig{
		SMTPServer: "smtp.example.com",
		SMTPPort:   587,
		Username:   "user",
		Password:   "pass",
		FromEmail:  "bot@example.com",
		ToEmail:    "team@example.com",
	}
	s := NewSender(cfg)

	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)
	s.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	if err := s.SendDigest(sampleReport()); err != nil {
		t.Fatalf("SendDigest() error: %v", err)
	}
	if gotAddr != "smtp.example.com:587" {
		t.Errorf("addr = %q", gotAddr)
	}
	if len(gotTo) != 1 || gotTo[0] != "team@example.com" {
		t.Errorf("to = %q", gotTo)
	}
	if !strings.Contains(gotMsg, "Subject: Transcript Digest - 2 new transcripts (Mar 2, 2026)") {
		t.Errorf("message headers = %q", gotMsg[:200])
	}
	if !strings.Contains(gotMsg, "Content-Type: text/html") {
		t.Error("missing HTML content type")
	}

	if err := s.SendDigest(nil); err == nil {
		t.Error("SendDigest(nil) should fail")
	}
}
