package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToTelegramHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain text", "hello world", "hello world"},
		{"bold", "**bold** text", "<b>bold</b> text"},
		{"italic", "some *italic* text", "some <i>italic</i> text"},
		{"inline code", "use `go test` here", "use <code>go test</code> here"},
		{"heading becomes bold", "# Title\n\nbody", "<b>Title</b>\nbody"},
		{"list becomes bullets", "- one\n- two", "• one\n• two"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToTelegramHTML(tt.in))
		})
	}
}

func TestToTelegramHTMLStripsUnsupportedTags(t *testing.T) {
	out := ToTelegramHTML("text with <div>markup</div> inside")
	assert.NotContains(t, out, "<div>")
	assert.Contains(t, out, "markup")
}

func TestToTelegramHTMLKeepsCodeBlocks(t *testing.T) {
	out := ToTelegramHTML("```\nfmt.Println(1)\n```")
	assert.Contains(t, out, "<pre>")
	assert.Contains(t, out, "fmt.Println(1)")
	assert.Contains(t, out, "</pre>")
}

func TestToTelegramHTMLCollapsesNewlines(t *testing.T) {
	out := ToTelegramHTML("a\n\n\n\n\nb")
	assert.NotContains(t, out, "\n\n\n")
}
