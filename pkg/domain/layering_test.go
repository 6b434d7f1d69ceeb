package domain

import (
	"testing"

	"sampleregistry/testutil"
)

func TestDomainHasNoDrivers(t *testing.T) {
	forbidden := testutil.AnyOf(testutil.InternalImportForbidden, testutil.DriverImportForbidden)
	testutil.AssertNoDirectImports(t, ".", forbidden, "storage drivers live under internal/infra")
	testutil.AssertNoTransitiveDependency(t, ".", forbidden, "storage drivers live under internal/infra")
}
