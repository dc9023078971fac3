package pubsub

import (
	"encoding/json"

	"github.com/pkg/errors"

	"tenantauth/internal/domain/service"
)

const eventTypePasswordReset = "password_reset.requested"

// encodeResetEvent returns the JSON body and the attributes every channel attaches to a reset event.
// Attributes never carry the token itself.
func encodeResetEvent(event *service.PasswordResetEvent) ([]byte, map[string]string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}

	attributes := map[string]string{
		"event_type": eventTypePasswordReset,
		"account_id": event.AccountID,
	}
	if event.RequestID != "" {
		attributes["request_id"] = event.RequestID
	}

	return data, attributes, nil
}
