package platform

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "youtube"},
		{"https://youtu.be/dQw4w9WgXcQ", "youtube"},
		{"https://m.YouTube.com/shorts/abc", "youtube"},
		{"https://www.instagram.com/reel/C0abc/", "instagram"},
		{"https://instagr.am/p/xyz", "instagram"},
		{"https://www.tiktok.com/@user/video/123", "tiktok"},
		{"https://vm.tiktok.com/ZMabc/", "tiktok"},
		{"https://twitter.com/user/status/1", "twitter"},
		{"https://x.com/user/status/1", "twitter"},
		{"https://t.co/abc", "twitter"},
		{"https://www.facebook.com/watch/?v=1", "facebook"},
		{"https://fb.watch/abc/", "facebook"},
		{"https://vimeo.com/123", Unknown},
		{"https://box.com/file", Unknown},
		{"https://example.com/?u=youtube.com", Unknown},
		{"not a url", Unknown},
		{"", Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := Classify(tt.url); got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestSupported(t *testing.T) {
	if !Supported("https://youtu.be/abc") {
		t.Error("youtu.be should be supported")
	}
	if Supported("https://vimeo.com/1") {
		t.Error("vimeo should not be supported")
	}
}

func TestNames(t *testing.T) {
	names := Names()
	if len(names) != 5 || names[0] != "youtube" {
		t.Errorf("unexpected platform list: %v", names)
	}
}
