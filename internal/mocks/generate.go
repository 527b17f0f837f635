// Package mocks provides generated mock implementations for testing.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks.
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	mockProvider := mocks.NewMockClient(ctrl)
//	mockProvider.EXPECT().RetrieveJob(gomock.Any(), "job_1").Return(artifact, nil)
package mocks

// Generate mock for the provider Client interface.
// This creates MockClient with RetrieveJob and CancelJob.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=provider_client_mock.go github.com/assistly/llm-jobs/internal/provider Client
