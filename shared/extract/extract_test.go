package extract

import (
	"strings"
	"testing"
)

const sampleSRT = `1
00:00:00,000 --> 00:00:01,830
I'm happy to
have you here today.

2
00:00:01,910 --> 00:00:03,610
<i>As I'm sure</i> you're all

3
00:00:03,700 --> 00:00:05,000
{\an8}aware, there's going
`

func TestParseSRT(t *testing.T) {
	got, err := ParseSRT(sampleSRT)
	if err != nil {
		t.Fatalf("ParseSRT() error: %v", err)
	}
	want := "I'm happy to have you here today. As I'm sure you're all aware, there's going"
	if got != want {
		t.Errorf("ParseSRT() = %q, want %q", got, want)
	}
}

func TestParseSRTWindowsLineEndings(t *testing.T) {
	content := strings.ReplaceAll(sampleSRT, "\n", "\r\n")
	got, err := ParseSRT(content)
	if err != nil {
		t.Fatalf("ParseSRT() error: %v", err)
	}
	if !strings.HasPrefix(got, "I'm happy to have you") {
		t.Errorf("ParseSRT() = %q", got)
	}
}

func TestParseSRTErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"plain prose", "This is just a paragraph of text.\nNothing timed here."},
		{"bad timing", "1\n00:00 to 00:01\nHello\n"},
		{"index only", "1\n\n2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseSRT(tt.content); err == nil {
				t.Errorf("ParseSRT(%q) expected error", tt.content)
			}
		})
	}
}

func TestParseVTT(t *testing.T) {
	content := `WEBVTT - sample

NOTE this block is ignored

intro
00:00.000 --> 00:02.000 align:start
<v Speaker>Welcome back</v> everyone.

00:00:02.500 --> 00:00:04.000
Let's begin.
`
	got, err := ParseVTT(content)
	if err != nil {
		t.Fatalf("ParseVTT() error: %v", err)
	}
	if want := "Welcome back everyone. Let's begin."; got != want {
		t.Errorf("ParseVTT() = %q, want %q", got, want)
	}

	if _, err := ParseVTT("00:00.000 --> 00:02.000\nno header"); err == nil {
		t.Error("ParseVTT() expected error without header")
	}
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name         string
		filename     string
		data         string
		wantText     string
		wantFormat   Format
		wantFallback bool
	}{
		{
			name:       "srt",
			filename:   "talk.SRT",
			data:       "1\n00:00:00,000 --> 00:00:01,000\nHello <b>world</b>\n",
			wantText:   "Hello world",
			wantFormat: FormatSubRip,
		},
		{
			name:         "unparsable srt falls back to raw text",
			filename:     "broken.srt",
			data:         "1\nnot a timestamp\nHello\n",
			wantText:     "1\nnot a timestamp\nHello\n",
			wantFormat:   FormatSubRip,
			wantFallback: true,
		},
		{
			name:       "plain text passes through",
			filename:   "notes.txt",
			data:       "  keep   me\nexactly <b>as is</b>\n",
			wantText:   "  keep   me\nexactly <b>as is</b>\n",
			wantFormat: FormatText,
		},
		{
			name:       "unknown extension is text",
			filename:   "clip.transcript",
			data:       "raw",
			wantText:   "raw",
			wantFormat: FormatText,
		},
		{
			name:       "html",
			filename:   "page.html",
			data:       "<html><head><style>p{}</style></head><body><h1>Title</h1><p>Some   text</p><script>x()</script></body></html>",
			wantText:   "Title Some text",
			wantFormat: FormatHTML,
		},
		{
			name:         "invalid pdf falls back",
			filename:     "doc.pdf",
			data:         "definitely not a pdf",
			wantText:     "definitely not a pdf",
			wantFormat:   FormatPDF,
			wantFallback: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.filename, []byte(tt.data))
			if got.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", got.Text, tt.wantText)
			}
			if got.Format != tt.wantFormat {
				t.Errorf("Format = %q, want %q", got.Format, tt.wantFormat)
			}
			if got.Fallback != tt.wantFallback {
				t.Errorf("Fallback = %v, want %v", got.Fallback, tt.wantFallback)
			}
		})
	}
}

func TestSupported(t *testing.T) {
	for name, want := range map[string]bool{
		"a.srt":   true,
		"a.VTT":   true,
		"a.pdf":   true,
		"a.txt":   true,
		"a.htm":   true,
		"a.mp4":   false,
		"a":       false,
		".hidden": false,
	} {
		if got := Supported(name); got != want {
			t.Errorf("Supported(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestPDFTextEmpty(t *testing.T) {
	if _, err := PDFText(nil); err == nil {
		t.Error("PDFText(nil) expected error")
	}
}
