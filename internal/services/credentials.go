package services

import (
	"sync"

	"zendesk-feedback-monitor/internal/common"
	"zendesk-feedback-monitor/internal/interfaces"
	"zendesk-feedback-monitor/internal/models"
)

// credentialSource picks the credentials used by scheduled refreshes.
//
// In "startup" mode they come from configuration and never change. In
// "trigger" mode the most recent accepted /tick request supplies them.
type credentialSource struct {
	mode    string
	mu      sync.RWMutex
	current *models.Credentials
}

func NewCredentialSource(config *common.Config) interfaces.CredentialSource {
	source := &credentialSource{mode: config.Zendesk.Credentials}
	if source.mode == "" {
		source.mode = common.CredentialsStartup
	}

	if source.mode == common.CredentialsStartup && config.HasStartupCredentials() {
		creds := models.NewCredentials(config.Zendesk.BaseURL, config.Zendesk.Email, config.Zendesk.APIToken)
		source.current = &creds
	}
	return source
}

func (s *credentialSource) Credentials() (models.Credentials, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return models.Credentials{}, false
	}
	return *s.current, true
}

// Remember records credentials from an accepted tick. Startup credentials
// are never replaced.
func (s *credentialSource) Remember(creds models.Credentials) {
	if s.mode != common.CredentialsTrigger {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &creds
}

func (s *credentialSource) Mode() string {
	return s.mode
}
