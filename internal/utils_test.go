package utils

import "testing"

func TestCleanKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"clip.mp4", "clip.mp4"},
		{"/cams/front/", "cams/front"},
		{"  spaced  ", "spaced"},
		{"../../etc/passwd", "etc/passwd"},
		{"a/../b", "a//b"},
		{" / ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := CleanKey(tt.in); got != tt.want {
				t.Errorf("CleanKey(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
