package app

import (
	"os"
	"sync"
	"sync/atomic"
)

// Setting NUSANTARA_TEST_MODE=1 makes the binaries skip side effects such as
// scheduler registration so integration tests stay hermetic.
const testModeEnv = "NUSANTARA_TEST_MODE"

var (
	testMode     atomic.Bool
	testModeInit sync.Once
)

// InTestMode reports whether the process runs under the test harness.
func InTestMode() bool {
	testModeInit.Do(RefreshTestMode)
	return testMode.Load()
}

// RefreshTestMode re-reads the environment flag. Tests call it after
// mutating the variable.
func RefreshTestMode() {
	testMode.Store(os.Getenv(testModeEnv) == "1")
}
