package executor

import (
	"sync"

	"github.com/caffeineduck/modhost/hostfunc"
)

// Shared executor for tests and benchmarks in other packages. Compiled
// modules are cached by content, so reusing one executor skips recompiling
// the same guests.
var (
	testExecutor     *Executor
	testExecutorOnce sync.Once
	testExecutorErr  error
)

// GetTestExecutor returns a shared executor with the default host surface.
// Hosts created on it must use distinct extension names.
func GetTestExecutor() (*Executor, error) {
	testExecutorOnce.Do(func() {
		testExecutor, testExecutorErr = New(hostfunc.NewRegistry())
	})
	return testExecutor, testExecutorErr
}

// CloseTestExecutor closes the shared test executor.
func CloseTestExecutor() {
	if testExecutor != nil {
		testExecutor.Close()
		testExecutor = nil
		testExecutorOnce = sync.Once{}
	}
}
