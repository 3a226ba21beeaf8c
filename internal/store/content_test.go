package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeContent(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"two paragraphs", "Hello\n\nWorld", "<p>Hello</p>\n<p>World</p>"},
		{"single paragraph", "Just one line", "<p>Just one line</p>"},
		{"line break inside paragraph", "line one\nline two", "<p>line one\nline two</p>"},
		{"extra blank lines and padding", "  a  \n\n\n\n b \r\n \r\nc", "<p>a</p>\n<p>b</p>\n<p>c</p>"},
		{"already markup", "<p>Hello</p>", "<p>Hello</p>"},
		{"markup with attributes", "Intro\n\n<img src=\"x.png\" />", "Intro\n\n<img src=\"x.png\" />"},
		{"closing tag only", "text</div>", "text</div>"},
		{"angle brackets but no tag", "1 < 2 and 3 > 2", "<p>1 < 2 and 3 > 2</p>"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeContent(tt.in))
		})
	}
}

func TestNormalizeContent_Idempotent(t *testing.T) {
	for _, in := range []string{"Hello\n\nWorld", "<p>Hello</p>", "plain"} {
		once := NormalizeContent(in)
		assert.Equal(t, once, NormalizeContent(once), "input %q", in)
	}
}
