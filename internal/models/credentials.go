package models

import (
	"fmt"
	"strings"
)

// Credentials authenticate against one Zendesk account. They are supplied
// per call and never persisted.
type Credentials struct {
	BaseURL  string `json:"base_url" validate:"required"`
	Email    string `json:"email" validate:"required"`
	APIToken string `json:"-" validate:"required"`
}

// NewCredentials normalizes the subdomain value Telex sends into a base URL.
func NewCredentials(subdomain, email, apiToken string) Credentials {
	return Credentials{
		BaseURL:  NormalizeBaseURL(subdomain),
		Email:    strings.TrimSpace(email),
		APIToken: strings.TrimSpace(apiToken),
	}
}

// Login is the basic-auth user name for API token authentication.
func (c Credentials) Login() string {
	return c.Email + "/token"
}

// NormalizeBaseURL accepts a full URL, a host name or a bare subdomain.
//
//	https://acme.zendesk.com/ -> https://acme.zendesk.com
//	acme.zendesk.com          -> https://acme.zendesk.com
//	acme                      -> https://acme.zendesk.com
func NormalizeBaseURL(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	value = strings.TrimRight(value, "/")

	switch {
	case strings.Contains(value, "://"):
		return value
	case strings.Contains(value, "."), strings.Contains(value, ":"):
		return "https://" + value
	default:
		return fmt.Sprintf("https://%s.zendesk.com", value)
	}
}
