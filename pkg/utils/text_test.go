package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Open shift", "Open shift"},
		{"null and bell", "ab\x00c\x07d", "abcd"},
		{"keeps newline and tab", "line1\nline2\tx", "line1\nline2\tx"},
		{"delete char", "x\x7fy", "xy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeString(tt.in))
		})
	}
}

func TestCleanMessageText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"mention prefix", "@_user_1 /open_shift", "/open_shift"},
		{"mention in the middle", "scratch on @_user_2  door", "scratch on door"},
		{"surrounding space", "  12400 \r", "12400"},
		{"emoji kept", "🚗 Open shift", "🚗 Open shift"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanMessageText(tt.in))
		})
	}
}
