package audit

import (
	"time"

	id "eventpass/pkg/domain"
)

// Action names what happened to a registration.
type Action string

const (
	ActionDraftSaved      Action = "draft_saved"
	ActionPhotoUploaded   Action = "photo_uploaded"
	ActionSubmitDeclined  Action = "submit_declined"
	ActionProfileLocked   Action = "profile_locked"
	ActionPassRendered    Action = "pass_rendered"
	ActionCredentialCheck Action = "credential_verified"
)

// Event is emitted from the registration workflow. It is transport
// agnostic so sinks can fan out.
type Event struct {
	Action       Action        `json:"action"`
	IdentityID   id.IdentityID `json:"identity_id"`
	CredentialID string        `json:"credential_id,omitempty"`
	RequestID    string        `json:"request_id,omitempty"`
	Detail       string        `json:"detail,omitempty"`
	Timestamp    time.Time     `json:"timestamp"`
}
