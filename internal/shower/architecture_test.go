package shower

import (
	"testing"

	"eventmix/testutil"
)

func TestShowerDoesNotImportBackends(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.BackendImportForbidden, "the retry loop sees the engine and sink through interfaces only")
}

func TestShowerHasNoTransitiveBackendDependency(t *testing.T) {
	testutil.AssertNoTransitiveDependency(t, ".", testutil.BackendImportForbidden, "storage and metrics stay behind the command layer")
}
