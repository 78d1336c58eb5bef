package workspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Intake Bot", "intake-bot"},
		{"  Ventas  2024  ", "ventas-2024"},
		{"Café & Pastelería", "caf-pasteler-a"},
		{"---", "program"},
		{"", "program"},
		{"already-slugged", "already-slugged"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.in), "input %q", tt.in)
	}
}
