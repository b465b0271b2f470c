package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrDeclined is returned when the processor refuses the charge. Finalization
// treats it as a clean failure: nothing has been captured.
var ErrDeclined = errors.New("payment declined")

// Authorization is the processor's receipt for a successful charge.
type Authorization struct {
	Reference    string    `json:"reference"`
	Amount       float64   `json:"amount"`
	Currency     string    `json:"currency"`
	AuthorizedAt time.Time `json:"authorized_at"`
}

// Gateway authorizes charges against an external processor. Implementations
// must not retry internally; the caller owns compensation on failure.
type Gateway interface {
	Authorize(ctx context.Context, amount float64, currency, reference, method string) (*Authorization, error)
}

// MockGateway approves every charge except amounts it is told to decline.
// Used by local deployments and tests until a real processor is wired.
type MockGateway struct {
	DeclineAmounts map[float64]bool
}

func NewMockGateway() *MockGateway {
	return &MockGateway{DeclineAmounts: make(map[float64]bool)}
}

func (g *MockGateway) Authorize(ctx context.Context, amount float64, currency, reference, method string) (*Authorization, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("invalid charge amount %.2f", amount)
	}
	if g.DeclineAmounts[amount] {
		return nil, ErrDeclined
	}

	txnID := fmt.Sprintf("TXN_%d_%s", time.Now().Unix(),
		strings.ToUpper(uuid.New().String()[:8]))

	return &Authorization{
		Reference:    txnID,
		Amount:       amount,
		Currency:     currency,
		AuthorizedAt: time.Now().UTC(),
	}, nil
}
