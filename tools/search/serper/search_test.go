package serper

import "testing"

func TestCanonicalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://www.instagram.com/reel/ABC123/?igsh=xyz", "https://www.instagram.com/reel/ABC123/"},
		{"https://www.instagram.com/reel/ABC123", "https://www.instagram.com/reel/ABC123/"},
		{"https://www.instagram.com/reel/ABC123/#frag", "https://www.instagram.com/reel/ABC123/"},
		{"https://www.instagram.com/p/regular-post/", ""},
		{"https://example.com/", ""},
		{"://bad", ""},
	}
	for _, c := range cases {
		if got := Canonicalize(c.in); got != c.want {
			t.Errorf("Canonicalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
