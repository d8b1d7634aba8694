package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	EmailRegex     = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	MeetingIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	ChannelRegex   = regexp.MustCompile(`^[a-zA-Z0-9_\-.:]+$`)
)

const (
	MaxCredentialLength = 4096
	MaxTTLMinutes       = 24 * 60
)

func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if len(email) > 254 {
		return fmt.Errorf("email is too long (max 254 characters)")
	}
	if !EmailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

func ValidateMeetingID(id string) error {
	if id == "" {
		return fmt.Errorf("meeting ID is required")
	}
	if len(id) > 100 {
		return fmt.Errorf("meeting ID is too long (max 100 characters)")
	}
	if !MeetingIDRegex.MatchString(id) {
		return fmt.Errorf("invalid meeting ID format")
	}
	return nil
}

// ValidateChannelName checks the transport channel name. Channels are opaque to the
// coordinator but must stay printable and short enough for the signaling server.
func ValidateChannelName(channel string) error {
	if channel == "" {
		return fmt.Errorf("channel name is required")
	}
	if len(channel) > 64 {
		return fmt.Errorf("channel name is too long (max 64 characters)")
	}
	if !ChannelRegex.MatchString(channel) {
		return fmt.Errorf("invalid channel name format")
	}
	return nil
}

// ValidateCredentialToken checks an admission credential pasted by the user.
func ValidateCredentialToken(token string) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("credential is required")
	}
	if len(token) > MaxCredentialLength {
		return fmt.Errorf("credential is too long (max %d characters)", MaxCredentialLength)
	}
	if !utf8.ValidString(token) {
		return fmt.Errorf("credential contains invalid characters")
	}
	for _, r := range token {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("credential must not contain whitespace")
		}
	}
	return nil
}

func ValidateTTLMinutes(minutes int) error {
	if minutes < 0 {
		return fmt.Errorf("ttl must not be negative")
	}
	if minutes > MaxTTLMinutes {
		return fmt.Errorf("ttl is too long (max %d minutes)", MaxTTLMinutes)
	}
	return nil
}

func ValidateURL(urlStr string) error {
	if urlStr == "" {
		return fmt.Errorf("URL is required")
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("invalid URL scheme (must be http, https, ws, or wss)")
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}

func ValidateNonEmptyString(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

func ValidateStringLength(s string, min, max int, fieldName string) error {
	length := utf8.RuneCountInString(s)
	if length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}
	if length > max {
		return fmt.Errorf("%s is too long (max %d characters)", fieldName, max)
	}
	return nil
}
