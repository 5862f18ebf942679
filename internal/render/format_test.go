package render

import (
	"strings"
	"testing"
)

func TestFormatAssistant(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain",
			in:   "  hello world  ",
			want: "hello world",
		},
		{
			name: "bold removed",
			in:   "this is **important** text",
			want: "this is important text",
		},
		{
			name: "list item moved to its own line",
			in:   "Steps: 1. install and run",
			want: "Steps: \n1. install and run",
		},
		{
			name: "bold list headings",
			in:   "Options: 1. **Fast**: quick",
			want: "Options: \n\n1. Fast: quick",
		},
		{
			name: "blank runs collapsed",
			in:   "a\n\n\n\n\nb",
			want: "a\n\nb",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatAssistant(tt.in); got != tt.want {
				t.Errorf("FormatAssistant(%q)\n got: %q\nwant: %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDownloadLink(t *testing.T) {
	link := "https://abc.supabase.co/storage/v1/object/public/files/report.pdf?token=x"
	text := "Here you go. [Download report](" + link + ")\n" + link

	att, rest, ok := DownloadLink(text)
	if !ok {
		t.Fatal("expected a link")
	}
	if att.URL != link {
		t.Errorf("URL: got %q", att.URL)
	}
	if att.Filename != "report.pdf" {
		t.Errorf("Filename: got %q", att.Filename)
	}
	if rest != "Here you go." {
		t.Errorf("rest: got %q", rest)
	}
}

func TestDownloadLinkKeepsEncodedFilename(t *testing.T) {
	tests := []struct {
		link string
		want string
	}{
		{"https://abc.supabase.co/storage/v1/object/public/files/my%20report.pdf", "my%20report.pdf"},
		{"https://abc.supabase.co/storage/v1/object/sign/files/a%2Fb.txt?token=x", "a%2Fb.txt"},
		{"https://abc.supabase.co/storage/v1/object/public/files/plain.docx?download=", "plain.docx"},
	}
	for _, tt := range tests {
		att, _, ok := DownloadLink("file: " + tt.link)
		if !ok {
			t.Fatalf("no link found in %q", tt.link)
		}
		if att.Filename != tt.want {
			t.Errorf("Filename(%q): got %q, want %q", tt.link, att.Filename, tt.want)
		}
	}
}

func TestDownloadLinkAbsent(t *testing.T) {
	text := "see https://example.com/file.pdf"
	if _, rest, ok := DownloadLink(text); ok || rest != text {
		t.Errorf("unexpected match: ok=%v rest=%q", ok, rest)
	}
}

func TestMessage(t *testing.T) {
	body, att := Message("user", "**keep** me")
	if body != "**keep** me" || att != nil {
		t.Errorf("user message changed: %q %v", body, att)
	}

	body, att = Message("assistant", "**Done** https://x.supabase.co/b/out.csv")
	if att == nil || att.Filename != "out.csv" {
		t.Fatalf("attachment: %+v", att)
	}
	if body != "Done" {
		t.Errorf("body: got %q", body)
	}
}

func TestMarkdownRender(t *testing.T) {
	md, err := NewMarkdown("notty", 60)
	if err != nil {
		t.Fatal(err)
	}
	out := md.Render("# Title\n\nsome *text*")
	if !strings.Contains(out, "Title") || !strings.Contains(out, "text") {
		t.Errorf("render output missing content: %q", out)
	}
	if err := md.SetWidth(5); err != nil {
		t.Fatal(err)
	}
	if md.width != 20 {
		t.Errorf("width clamped to %d, want 20", md.width)
	}
}
