package extract

import (
	"log"
	"path/filepath"
	"strings"
)

// Format identifies which extraction path produced the text
type Format string

const (
	FormatSubRip Format = "srt"
	FormatWebVTT Format = "vtt"
	FormatPDF    Format = "pdf"
	FormatHTML   Format = "html"
	FormatText   Format = "text"
)

// Result is the plain text of an input artifact. Fallback is set when the
// format-specific parser failed and the raw content was used as text instead.
type Result struct {
	Text     string
	Format   Format
	Fallback bool
}

var supportedExtensions = map[string]Format{
	".srt":  FormatSubRip,
	".vtt":  FormatWebVTT,
	".pdf":  FormatPDF,
	".html": FormatHTML,
	".htm":  FormatHTML,
	".txt":  FormatText,
	".md":   FormatText,
}

// DetectFormat picks the extraction path from the filename extension
func DetectFormat(filename string) Format {
	if f, ok := supportedExtensions[strings.ToLower(filepath.Ext(filename))]; ok {
		return f
	}
	return FormatText
}

// Supported reports whether the inbox should pick up a file with this name
func Supported(filename string) bool {
	_, ok := supportedExtensions[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// Extract converts raw content into plain text. It never fails: parser errors
// fall back to treating the content as plain text.
func Extract(filename string, data []byte) Result {
	format := DetectFormat(filename)

	switch format {
	case FormatSubRip, FormatWebVTT:
		var (
			text string
			err  error
		)
		if format == FormatSubRip {
			text, err = ParseSRT(string(data))
		} else {
			text, err = ParseVTT(string(data))
		}
		if err != nil {
			log.Printf("Warning: %s parsing failed for %s, treating as plain text: %v", format, filename, err)
			return Result{Text: string(data), Format: format, Fallback: true}
		}
		return Result{Text: text, Format: format}

	case FormatPDF:
		text, err := PDFText(data)
		if err != nil {
			log.Printf("Warning: PDF extraction failed for %s, treating as plain text: %v", filename, err)
			return Result{Text: string(data), Format: format, Fallback: true}
		}
		return Result{Text: text, Format: format}

	case FormatHTML:
		text, err := HTMLText(string(data))
		if err != nil {
			log.Printf("Warning: HTML extraction failed for %s, treating as plain text: %v", filename, err)
			return Result{Text: string(data), Format: format, Fallback: true}
		}
		return Result{Text: text, Format: format}
	}

	return Result{Text: string(data), Format: FormatText}
}
