//go:build tools

package tools

// mockery is used as an installed binary, so no import is needed.
// Run: mockery (from the module root) to regenerate the mocks/ packages
// listed in .mockery.yaml.
