package matrix

import "testing"

func TestConfigValidateRequiresFields(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing homeserver", Config{UserID: "@a:b", AccessToken: "t"}},
		{"missing user_id", Config{Homeserver: "https://b", AccessToken: "t"}},
		{"missing access_token", Config{Homeserver: "https://b", UserID: "@a:b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); err == nil {
				t.Fatal("expected Validate() to reject an incomplete config")
			}
		})
	}
}

func TestConfigValidateAppliesDefaults(t *testing.T) {
	cfg := Config{Homeserver: "https://example.org", UserID: "@bot:example.org", AccessToken: "t"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.StoreDir == "" || cfg.PickleKey == "" {
		t.Fatal("expected StoreDir and PickleKey to be defaulted")
	}
}

func TestIsEncryptedRoom(t *testing.T) {
	cfg := Config{EncryptedRooms: []string{"!abc:example.org"}}
	if !cfg.isEncryptedRoom("!abc:example.org") {
		t.Fatal("expected configured room to report encrypted")
	}
	if cfg.isEncryptedRoom("!other:example.org") {
		t.Fatal("expected unconfigured room to report not encrypted")
	}
}

func TestParseAuthCommand(t *testing.T) {
	tests := []struct {
		body string
		want string
		ok   bool
	}{
		{"/auth ABCD1234", "ABCD1234", true},
		{"/AUTH abcd1234", "abcd1234", true},
		{"hello", "", false},
		{"/auth", "", false},
		{"/auth ABCD EFGH", "", false},
	}
	for _, tt := range tests {
		code, ok := parseAuthCommand(tt.body)
		if ok != tt.ok || code != tt.want {
			t.Errorf("parseAuthCommand(%q) = (%q, %v), want (%q, %v)", tt.body, code, ok, tt.want, tt.ok)
		}
	}
}

func TestMarkdownToHTML(t *testing.T) {
	html, ok := markdownToHTML("plain text")
	if ok || html != "" {
		t.Fatalf("expected no formatted body for plain text, got (%q, %v)", html, ok)
	}

	html, ok = markdownToHTML("this is **bold** text")
	if !ok {
		t.Fatal("expected a formatted body for markdown text")
	}
	if want := "this is <strong>bold</strong> text"; html != want {
		t.Fatalf("markdownToHTML() = %q, want %q", html, want)
	}
}
