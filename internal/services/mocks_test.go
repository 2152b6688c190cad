package services

import (
	"context"

	"github.com/learnpay/backend/internal/gateway"
	"github.com/stretchr/testify/mock"
)

type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(ctx context.Context, transactionRef string) (*gateway.VerificationResult, error) {
	args := m.Called(ctx, transactionRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.VerificationResult), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(recipient, templateKind string, data map[string]any) error {
	args := m.Called(recipient, templateKind, data)
	return args.Error(0)
}
