// Package mocks provides mock implementations for testing the receipt
// lifecycle service.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks
// for the repository ports. The mocks are generated using go:generate
// directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockRepo := mocks.NewMockReceiptRepository(ctrl)
//	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(receipt, nil)
package mocks

// Generate mock for ReceiptRepository interface from internal/core package.
// This creates MockReceiptRepository with methods for all ReceiptRepository
// interface methods: Create, FindByID, Update
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=receipt_repository_mock.go github.com/ark074/SecureWipe3/internal/core ReceiptRepository
