package services

import (
	"time"

	"github.com/ternarybob/arbor"
	"github.com/thejerf/suture/v4"
)

// NewSupervisor returns the root supervisor that restarts failed services
// with backoff and reports its events through arbor.
func NewSupervisor(logger arbor.ILogger) *suture.Supervisor {
	return suture.New("zendesk-feedback-monitor", suture.Spec{
		EventHook: func(event suture.Event) {
			logger.Warn().Str("event", event.String()).Msg("Supervisor event")
		},
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          10 * time.Second,
	})
}
