package models

import "strings"

const (
	SettingSubdomain = "zendesk_subdomain"
	SettingEmail     = "zendesk_email"
	SettingAPIToken  = "zendesk_api_token"
	SettingInterval  = "interval"
)

// RelayPayload is the body posted to a Telex return URL
type RelayPayload struct {
	EventName string `json:"event_name"`
	Message   string `json:"message"`
	Status    string `json:"status"`
	Username  string `json:"username"`
}

// Setting is one integration setting as Telex echoes it back on a tick
type Setting struct {
	Label    string      `json:"label"`
	Type     string      `json:"type,omitempty"`
	Required bool        `json:"required,omitempty"`
	Default  interface{} `json:"default"`
}

// TickRequest is the trigger payload Telex posts to /tick. Credentials
// arrive either in Settings or as flat fields; flat fields win.
type TickRequest struct {
	ReturnURL        string    `json:"return_url"`
	ChannelID        string    `json:"channel_id,omitempty"`
	Settings         []Setting `json:"settings,omitempty"`
	ZendeskSubdomain string    `json:"zendesk_subdomain,omitempty"`
	ZendeskEmail     string    `json:"zendesk_email,omitempty"`
	ZendeskAPIToken  string    `json:"zendesk_api_token,omitempty"`
}

// SettingValue returns the string default of the named setting.
func (t *TickRequest) SettingValue(label string) string {
	for _, setting := range t.Settings {
		if setting.Label != label {
			continue
		}
		if value, ok := setting.Default.(string); ok {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// Credentials merges settings and flat fields into one credential set.
// Missing values stay empty so the caller can validate them.
func (t *TickRequest) Credentials() Credentials {
	subdomain := firstNonEmpty(t.ZendeskSubdomain, t.SettingValue(SettingSubdomain))
	email := firstNonEmpty(t.ZendeskEmail, t.SettingValue(SettingEmail))
	token := firstNonEmpty(t.ZendeskAPIToken, t.SettingValue(SettingAPIToken))
	return NewCredentials(subdomain, email, token)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if v := strings.TrimSpace(value); v != "" {
			return v
		}
	}
	return ""
}
