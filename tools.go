//go:build tools

package tools

import (
	_ "github.com/vektra/mockery/v2"
)

// Run: go run github.com/vektra/mockery/v2 (from the module root) to
// regenerate mocks from .mockery.yaml.
