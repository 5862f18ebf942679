// Package render turns assistant replies into terminal text.
package render

import (
	"regexp"
	"strings"
)

var (
	boldListItem  = regexp.MustCompile(`(\d+)\.\s+(\*\*[^*]+\*\*:?)`)
	listItem      = regexp.MustCompile(`(\d+\.\s+[^\n]+)`)
	boldSpan      = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	blankLines    = regexp.MustCompile(`\n{3,}`)
	storageLink   = regexp.MustCompile(`(?i)(https?://[^\s)]+\.supabase\.co[^\s)]+)`)
	downloadLabel = regexp.MustCompile(`\[Download[^\]]*\]\([^)]+\)`)
)

// FormatAssistant puts numbered items on their own lines, drops bold markers
// and collapses runs of blank lines.
func FormatAssistant(text string) string {
	text = boldListItem.ReplaceAllString(text, "\n$1. $2")
	text = listItem.ReplaceAllString(text, "\n$1")
	text = boldSpan.ReplaceAllString(text, "$1")
	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// Attachment is a generated file the assistant linked to.
type Attachment struct {
	URL      string
	Filename string
}

// DownloadLink finds a storage link in text. rest is text with the link and
// any [Download ...](...) markup removed.
func DownloadLink(text string) (att Attachment, rest string, ok bool) {
	m := storageLink.FindStringSubmatch(text)
	if m == nil {
		return Attachment{}, text, false
	}
	link := m[1]

	rest = downloadLabel.ReplaceAllString(text, "")
	rest = strings.Replace(rest, link, "", 1)
	return Attachment{URL: link, Filename: filename(link)}, strings.TrimSpace(rest), true
}

// filename is the last path segment as it appears in the link, still
// percent-encoded.
func filename(link string) string {
	name := link[strings.LastIndex(link, "/")+1:]
	if i := strings.Index(name, "?"); i >= 0 {
		name = name[:i]
	}
	return name
}

// Message prepares one message for display. Assistant text is formatted;
// user text is shown as typed.
func Message(role, text string) (body string, att *Attachment) {
	assistant := role == "assistant"
	if a, rest, ok := DownloadLink(text); ok {
		att = &a
		text = rest
	}
	if assistant {
		text = FormatAssistant(text)
	}
	return text, att
}
