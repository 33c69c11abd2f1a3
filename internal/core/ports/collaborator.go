package ports

import (
	"context"

	"github.com/DanielPopoola/payment-ledger/internal/core/domain"
)

// BalanceCollaborator debits and credits accounts it owns. A nil error
// means the movement was applied. Refusals are returned as DomainErrors,
// failures to reach the collaborator as *domain.TransportError.
type BalanceCollaborator interface {
	Debit(ctx context.Context, req domain.BalanceRequest) error
	Credit(ctx context.Context, req domain.BalanceRequest) error
}
