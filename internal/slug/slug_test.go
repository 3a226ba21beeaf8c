package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Tech", "tech"},
		{"Tech News", "tech-news"},
		{"Life   Hacks\tDaily", "life-hacks-daily"},
		{"C++ & Go", "c++-&-go"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FromName(tt.in), "FromName(%q)", tt.in)
	}
}

func TestFromTitle(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Hello, World! 2026", "hello-world-2026"},
		{"  Why Go?  ", "why-go"},
		{"Ünïcode Title", "n-code-title"},
		{"---", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FromTitle(tt.in), "FromTitle(%q)", tt.in)
	}
}
