package escrow

import "git.home.luguber.info/inful/taskescrow/internal/identity"

// CreateTaskAccounts lists what create_task touches.
//
//   - Task: the slot to allocate; must be empty.
//   - Depositor: must carry a valid proof over CreateTaskMessage.
//   - Recipient: referenced only, no proof required.
type CreateTaskAccounts struct {
	Task      identity.Identity
	Depositor identity.Proof
	Recipient identity.Identity
}

// CompleteTaskAccounts lists what complete_task touches. No signer is required.
type CompleteTaskAccounts struct {
	Task identity.Identity
}

// InitializeAccounts is empty: the handshake touches no records.
type InitializeAccounts struct{}
