package parse

import (
	"net/url"
	"testing"
)

func TestNormalizeURL_NilInput(t *testing.T) {
	if result := NormalizeURL(nil); result != "" {
		t.Errorf("NormalizeURL(nil) = %q, want empty string", result)
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"LowercaseSchemeHost", "HTTPS://CDN.Example.COM/Logo.PNG", "https://cdn.example.com/Logo.PNG"},
		{"DefaultHTTPPort", "http://example.com:80/logo.png", "http://example.com/logo.png"},
		{"DefaultHTTPSPort", "https://example.com:443/logo.png", "https://example.com/logo.png"},
		{"NonDefaultPortKept", "https://example.com:8443/logo.png", "https://example.com:8443/logo.png"},
		{"EmptyPath", "https://example.com", "https://example.com/"},
		{"FragmentDropped", "https://example.com/logo.png#top", "https://example.com/logo.png"},
		{"QueryKept", "https://img.example.com/render?id=42&w=400", "https://img.example.com/render?id=42&w=400"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := url.Parse(tt.input)
			if err != nil {
				t.Fatal(err)
			}
			if result := NormalizeURL(parsed); result != tt.expected {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNormalizeURL_DoesNotModifyInput(t *testing.T) {
	parsed, _ := url.Parse("HTTPS://Example.com:443/a#frag")
	_ = NormalizeURL(parsed)
	if parsed.Host != "Example.com:443" || parsed.Fragment != "frag" {
		t.Errorf("input was modified: %+v", parsed)
	}
}

func TestParseAndNormalize(t *testing.T) {
	norm, parsed, err := ParseAndNormalize("  https://Example.com/logo.png  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if norm != "https://example.com/logo.png" || parsed == nil {
		t.Errorf("got %q, %v", norm, parsed)
	}

	if _, _, err := ParseAndNormalize("logo.png"); err == nil {
		t.Error("expected error for relative URL")
	}
}

func TestIsCandidateURL(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"https://acme.com/logo.png", true},
		{"http://cdn.acme.com/a.svg", true},
		{"ftp://acme.com/logo.png", false},
		{"/relative/logo.png", false},
		{"data:image/png;base64,AAAA", false},
		{"https://www.facebook.com/acme/photos/1", false},
		{"https://scontent.fbcdn.net/v/logo.jpg", false},
		{"https://i.pinimg.com/logo.png", false},
		{"https://notfacebook.com/logo.png", true},
	}
	for _, tt := range tests {
		if got := IsCandidateURL(tt.input); got != tt.want {
			t.Errorf("IsCandidateURL(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestUnescapeEmbedded(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{`https:\/\/acme.com\/logo.png`, "https://acme.com/logo.png"},
		{`https://acme.com/l.png?a=1\u0026b=2`, "https://acme.com/l.png?a=1&b=2"},
		{`https://acme.com/l.png?a=1&amp;b=2`, "https://acme.com/l.png?a=1&b=2"},
	}
	for _, tt := range tests {
		if got := UnescapeEmbedded(tt.input); got != tt.expected {
			t.Errorf("UnescapeEmbedded(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestResolveReference(t *testing.T) {
	base, _ := url.Parse("https://www.acme.com/about/")
	tests := []struct {
		ref      string
		expected string
	}{
		{"/img/logo.png", "https://www.acme.com/img/logo.png"},
		{"logo.svg", "https://www.acme.com/about/logo.svg"},
		{"//cdn.acme.com/logo.png", "https://cdn.acme.com/logo.png"},
		{"https://other.com/x.png", "https://other.com/x.png"},
	}
	for _, tt := range tests {
		got, err := ResolveReference(base, tt.ref)
		if err != nil {
			t.Fatalf("ResolveReference(%q): %v", tt.ref, err)
		}
		if got.String() != tt.expected {
			t.Errorf("ResolveReference(%q) = %q, want %q", tt.ref, got, tt.expected)
		}
	}
}
