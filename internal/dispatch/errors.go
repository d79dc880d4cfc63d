package dispatch

import "errors"

// Precondition failures. Each is fatal for the whole run, reported before
// any send is attempted, and leaves the campaign status untouched.
var (
	ErrCampaignNotFound   = errors.New("dispatch: campaign not found")
	ErrNoRecipients       = errors.New("dispatch: no valid recipients")
	ErrNoCredential       = errors.New("dispatch: no usable sending identity")
	ErrDecryptionFailed   = errors.New("dispatch: credential secret cannot be decrypted")
	ErrUnsupportedChannel = errors.New("dispatch: unsupported campaign channel")
)

// ErrLogWrite reports that a run completed but one or more delivery log
// entries could not be persisted. The campaign is still finalized; the audit
// trail is incomplete.
var ErrLogWrite = errors.New("dispatch: delivery log writes failed")
