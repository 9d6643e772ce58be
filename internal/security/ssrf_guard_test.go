package security

import (
	"testing"
	"time"
)

func TestSSRFGuard_ImplementsInterface(t *testing.T) {
	var _ SSRFGuardService = (*ssrfGuard)(nil)
}

func TestValidateURL_AllowsPublicURLs(t *testing.T) {
	g := NewSSRFGuard()

	tests := []string{
		"https://example.com/sample.png",
		"http://example.com/images/scan.jpg",
		"https://8.8.8.8/image.png",
	}

	for _, rawURL := range tests {
		if err := g.ValidateURL(rawURL); err != nil {
			t.Errorf("ValidateURL(%q) = %v, want nil", rawURL, err)
		}
	}
}

func TestValidateURL_BlocksDangerousURLs(t *testing.T) {
	g := NewSSRFGuard()

	tests := []struct {
		name   string
		rawURL string
	}{
		{"空URL", ""},
		{"file スキーム", "file:///etc/passwd"},
		{"ftp スキーム", "ftp://example.com/x.png"},
		{"ループバックIP", "http://127.0.0.1/x.png"},
		{"プライベートIP 10系", "http://10.0.0.5/x.png"},
		{"プライベートIP 192.168系", "http://192.168.1.1/x.png"},
		{"メタデータIP", "http://169.254.169.254/latest/meta-data"},
		{"localhost", "http://localhost:8080/x.png"},
		{"IPv6ループバック", "http://[::1]/x.png"},
		{"ホストなし", "https:///x.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := g.ValidateURL(tt.rawURL); err == nil {
				t.Errorf("ValidateURL(%q) = nil, want error", tt.rawURL)
			}
		})
	}
}

func TestNewSafeClient_ReturnsClient(t *testing.T) {
	g := NewSSRFGuard()

	client := g.NewSafeClient(5 * time.Second)
	if client == nil {
		t.Fatal("expected non-nil client")
	}
}
