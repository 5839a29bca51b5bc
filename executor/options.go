package executor

import (
	"io"
	"time"
)

// ExecutorOption configures the Executor at creation time.
type ExecutorOption func(*executorConfig)

type executorConfig struct {
	diskCache        bool
	cacheDir         string
	precompile       []Source // Sources to compile at startup
	memoryLimitPages uint32   // Max memory pages (each page = 64KB), 0 = default (4GB)
}

func defaultExecutorConfig() executorConfig {
	return executorConfig{
		diskCache:        false,
		memoryLimitPages: 0, // 0 means use wazero default (65536 pages = 4GB)
	}
}

// WithDiskCache enables a persistent compilation cache for faster startup.
// Optionally provide a custom directory; otherwise uses ~/.cache/modhost or XDG_CACHE_HOME/modhost.
//
// Examples:
//
//	executor.New(registry, executor.WithDiskCache())             // default dir
//	executor.New(registry, executor.WithDiskCache("/tmp/cache")) // custom dir
func WithDiskCache(dir ...string) ExecutorOption {
	return func(c *executorConfig) {
		c.diskCache = true
		if len(dir) > 0 && dir[0] != "" {
			c.cacheDir = dir[0]
		}
	}
}

// WithPrecompile compiles the given sources at Executor creation time.
// This moves the compilation cost to startup rather than first load.
func WithPrecompile(sources ...Source) ExecutorOption {
	return func(c *executorConfig) {
		c.precompile = sources
	}
}

// WithMemoryLimit sets the maximum memory available to each extension.
// Each page is 64KB. Examples:
//   - WithMemoryLimit(16) = 1MB max
//   - WithMemoryLimit(256) = 16MB max
//   - WithMemoryLimit(1024) = 64MB max
//
// Default is 0 (no limit, up to 4GB).
func WithMemoryLimit(pages uint32) ExecutorOption {
	return func(c *executorConfig) {
		c.memoryLimitPages = pages
	}
}

// Memory limit constants for convenience.
const (
	MemoryLimit1MB   uint32 = 16    // 1 MB
	MemoryLimit16MB  uint32 = 256   // 16 MB
	MemoryLimit64MB  uint32 = 1024  // 64 MB
	MemoryLimit256MB uint32 = 4096  // 256 MB
	MemoryLimit1GB   uint32 = 16384 // 1 GB
)

// HostOption configures a Host.
type HostOption func(*hostConfig)

type hostConfig struct {
	callTimeout time.Duration
}

func defaultHostConfig() hostConfig {
	return hostConfig{}
}

// WithCallTimeout bounds each entry point call. An extension whose call
// times out is closed and skipped on later ticks.
// Default is 0: a guest that never returns blocks the tick.
func WithCallTimeout(d time.Duration) HostOption {
	return func(c *hostConfig) {
		c.callTimeout = d
	}
}

// ExtensionOption configures a single extension at load time.
type ExtensionOption func(*extensionConfig)

type extensionConfig struct {
	schedule Schedule
	env      map[string]string
	stdout   io.Writer
	stderr   io.Writer
}

func defaultExtensionConfig() extensionConfig {
	return extensionConfig{
		schedule: ScheduleUpdate,
		env:      make(map[string]string),
	}
}

// WithSchedule sets when the extension is invoked.
func WithSchedule(s Schedule) ExtensionOption {
	return func(c *extensionConfig) {
		c.schedule = s
	}
}

// WithEnv sets an environment variable visible to the guest through WASI.
func WithEnv(key, value string) ExtensionOption {
	return func(c *extensionConfig) {
		c.env[key] = value
	}
}

// WithOutput copies the guest's stdout and stderr to the given writers in
// addition to the log. Either may be nil.
func WithOutput(stdout, stderr io.Writer) ExtensionOption {
	return func(c *extensionConfig) {
		c.stdout = stdout
		c.stderr = stderr
	}
}
