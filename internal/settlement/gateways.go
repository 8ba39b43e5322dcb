package settlement

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fernandolim41/picopro-clt/internal/model"
	"github.com/fernandolim41/picopro-clt/internal/payment"
)

// PayrollRegistrationService registers the work period with the government
// payroll system (eSocial). Submit must be idempotent on convocationID.
type PayrollRegistrationService interface {
	Submit(ctx context.Context, convocationID string, breakdown model.PaymentBreakdown, taxes payment.TaxEstimate) (protocolID string, err error)
}

// InstantPaymentService transfers the payment to the worker over the
// instant-payment rail (PIX). Transfer must be idempotent on convocationID.
type InstantPaymentService interface {
	Transfer(ctx context.Context, convocationID string, amount decimal.Decimal, recipientID string) (transactionID string, err error)
}

// DocumentService generates one legal document for a settled convocation.
type DocumentService interface {
	Generate(ctx context.Context, convocationID string, kind model.DocumentKind) (documentRef string, err error)
}

// LocalGateway is a deterministic in-process implementation of all three
// settlement services, used in development and tests. References are pure
// functions of the convocation id, so replays produce identical refs.
type LocalGateway struct{}

// Submit implements PayrollRegistrationService.
func (LocalGateway) Submit(_ context.Context, convocationID string, _ model.PaymentBreakdown, _ payment.TaxEstimate) (string, error) {
	return "ESOC-" + convocationID, nil
}

// Transfer implements InstantPaymentService.
func (LocalGateway) Transfer(_ context.Context, convocationID string, _ decimal.Decimal, _ string) (string, error) {
	return "PIX-" + convocationID, nil
}

// Generate implements DocumentService.
func (LocalGateway) Generate(_ context.Context, convocationID string, kind model.DocumentKind) (string, error) {
	return fmt.Sprintf("documents/%s/%s.pdf", convocationID, kind), nil
}
