package settlement

import "context"

// TransferRequest asks the banking rail to move funds to a partner account.
type TransferRequest struct {
	Reference   string // payout reference, echoed back on the webhook
	Amount      string // decimal string, 2 places
	Currency    string
	BankName    string
	BankAccount string
	BankIFSC    string
	Narration   string
	CallbackURL string
}

// TransferResponse is the rail's acknowledgement of an initiated transfer.
// Final success/failure arrives later on the settlement webhook.
type TransferResponse struct {
	ProviderRef string
	Status      string
}

// Provider initiates bank transfers for approved payouts.
type Provider interface {
	InitiateTransfer(ctx context.Context, req TransferRequest) (*TransferResponse, error)
}
