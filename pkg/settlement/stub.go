package settlement

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// StubProvider is a no-op provider for development; replace with a real
// banking rail in production.
type StubProvider struct{}

func (s *StubProvider) InitiateTransfer(ctx context.Context, req TransferRequest) (*TransferResponse, error) {
	return &TransferResponse{
		ProviderRef: fmt.Sprintf("stub_%d_%s", time.Now().UnixNano(), req.Reference),
		Status:      "PENDING",
	}, nil
}

// IsStubRef reports whether a provider reference came from the stub.
func IsStubRef(ref string) bool {
	return strings.HasPrefix(ref, "stub_")
}
