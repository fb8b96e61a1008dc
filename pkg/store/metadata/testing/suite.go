package testing

import (
	"testing"

	"github.com/marmos91/nsfs/pkg/store/metadata"
)

// StoreTestSuite is a comprehensive test suite for MetadataStore implementations.
// It tests the interface contract, not implementation details, making it reusable
// across different implementations (memory, badger, etc.).
type StoreTestSuite struct {
	// NewStore is a factory function that creates a fresh, empty MetadataStore
	// instance for each test. This ensures test isolation.
	NewStore func() metadata.MetadataStore
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(test *testing.T) {
	test.Run("Node", suite.RunNodeTests)
	test.Run("Directory", suite.RunDirectoryTests)
	test.Run("Remove", suite.RunRemoveTests)
	test.Run("Filesystem", suite.RunFilesystemTests)
	test.Run("Healthcheck", suite.RunHealthcheckTests)
}
