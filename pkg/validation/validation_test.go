package validation

import (
	"strings"
	"testing"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{"valid email", "user@example.com", false},
		{"valid with plus", "user+tag@example.com", false},
		{"empty email", "", true},
		{"missing @", "userexample.com", true},
		{"too long", strings.Repeat("a", 250) + "@example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEmail() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateMeetingID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"valid", "mtg_42", false},
		{"uuid", "7d444840-9dc0-11d1-b245-5ffdce74fad2", false},
		{"empty", "", true},
		{"slash", "a/b", true},
		{"too long", strings.Repeat("m", 101), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMeetingID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateMeetingID() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateChannelName(t *testing.T) {
	if err := ValidateChannelName("meeting-42"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateChannelName("room 1"); err == nil {
		t.Error("expected error for channel with space")
	}
	if err := ValidateChannelName(strings.Repeat("c", 65)); err == nil {
		t.Error("expected error for long channel")
	}
}

func TestValidateCredentialToken(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"jwt-like", "eyJhbGciOi.eyJzdWIiOi.sig", false},
		{"empty", "", true},
		{"blank", "   ", true},
		{"inner space", "abc def", true},
		{"newline", "abc\n", true},
		{"too long", strings.Repeat("t", MaxCredentialLength+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCredentialToken(tt.token)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCredentialToken() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateTTLMinutes(t *testing.T) {
	for _, ok := range []int{0, 1, 60, MaxTTLMinutes} {
		if err := ValidateTTLMinutes(ok); err != nil {
			t.Errorf("ValidateTTLMinutes(%d) = %v", ok, err)
		}
	}
	for _, bad := range []int{-1, MaxTTLMinutes + 1} {
		if err := ValidateTTLMinutes(bad); err == nil {
			t.Errorf("ValidateTTLMinutes(%d) expected error", bad)
		}
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://api.example.com", false},
		{"ws://localhost:7880/signal", false},
		{"", true},
		{"ftp://example.com", true},
		{"http://", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateStringHelpers(t *testing.T) {
	if err := ValidateNonEmptyString("  ", "title"); err == nil {
		t.Error("expected error for blank title")
	}
	if err := ValidateStringLength("héllo", 1, 5, "name"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateStringLength("toolong", 1, 3, "name"); err == nil {
		t.Error("expected length error")
	}
}
