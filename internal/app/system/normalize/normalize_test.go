package normalize

import "testing"

func TestEmail(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"user@example.com", "user@example.com"},
		{"USER@EXAMPLE.COM", "user@example.com"},
		{"  user@example.com  ", "user@example.com"},
		{"\tuser@example.com\n", "user@example.com"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Email(tt.input); got != tt.want {
				t.Errorf("Email(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestUserIdentity(t *testing.T) {
	if got := UserIdentity("  Alice "); got != "Alice" {
		t.Errorf("UserIdentity() = %q, want %q", got, "Alice")
	}
	if UserIdentityKey("Alice") != UserIdentityKey(" alice") {
		t.Error("UserIdentityKey should ignore case and surrounding space")
	}
	if UserIdentityKey("José") != UserIdentityKey("jose") {
		t.Error("UserIdentityKey should ignore diacritics")
	}
}

func TestDeviceID(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"A4-55-90-55-CC-03", "a4:55:90:55:cc:03"},
		{"a4:55:90:55:cc:03", "a4:55:90:55:cc:03"},
		{" AA:bb-CC:dd-EE:ff ", "aa:bb:cc:dd:ee:ff"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := DeviceID(tt.input); got != tt.want {
				t.Errorf("DeviceID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestQueryParam(t *testing.T) {
	if got := QueryParam("  7 "); got != "7" {
		t.Errorf("QueryParam() = %q", got)
	}
}
