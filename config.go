package dsvm

import (
	"io"
	"os"

	units "github.com/docker/go-units"
	"github.com/sirupsen/logrus"
	env "github.com/xyproto/env/v2"
)

// RuntimeConfig controls how programs execute. The zero value is not
// usable; start from NewRuntimeConfig, which folds in the environment, and
// derive variants through the With methods.
type RuntimeConfig struct {
	stdout io.Writer
	stderr io.Writer

	memUnitSize int64
	memUnits    int64
	chunkUnits  int64
	blockMax    int32

	lockMemory bool
	trace      bool
	logLevel   logrus.Level
	dynLibPath string
	tmpLibPath string
}

// Environment variables consulted by NewRuntimeConfig.
const (
	envMemUnitSize = "DS_MEMORY_UNIT_SIZE"
	envMemUnits    = "DS_MEMORY_UNITS"
	envChunkUnits  = "DS_CHUNK_UNITS"
	envBlockMax    = "DS_BLOCK_MAX"
	envLockMemory  = "DS_LOCK_MEMORY"
	envLogLevel    = "DS_LOG_LEVEL"
	envDynLibPath  = "DS_DYNLIB_PATH"
	envTmpLibPath  = "DS_TEMPLIB_PATH"
)

// NewRuntimeConfig builds the default configuration. Memory sizes accept
// human form ("512", "64KiB").
func NewRuntimeConfig() RuntimeConfig {
	cfg := RuntimeConfig{
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		lockMemory: env.Bool(envLockMemory),
		logLevel:   logrus.WarnLevel,
		dynLibPath: env.Str(envDynLibPath, "."),
		tmpLibPath: env.Str(envTmpLibPath, os.TempDir()),
	}
	if lvl, err := logrus.ParseLevel(env.Str(envLogLevel, "warning")); err == nil {
		cfg.logLevel = lvl
	}
	cfg.memUnitSize = sizeEnv(envMemUnitSize, 0)
	cfg.memUnits = sizeEnv(envMemUnits, 0)
	cfg.chunkUnits = sizeEnv(envChunkUnits, 0)
	cfg.blockMax = int32(env.Int64(envBlockMax, 0))
	return cfg
}

func sizeEnv(key string, def int64) int64 {
	s := env.Str(key, "")
	if s == "" {
		return def
	}
	v, err := units.RAMInBytes(s)
	if err != nil {
		logrus.Warnf("ignoring %s=%q: %v", key, s, err)
		return def
	}
	return v
}

// WithStdout redirects program console output.
func (c RuntimeConfig) WithStdout(w io.Writer) RuntimeConfig {
	c.stdout = w
	return c
}

// WithStderr redirects program error output.
func (c RuntimeConfig) WithStderr(w io.Writer) RuntimeConfig {
	c.stderr = w
	return c
}

// WithMemoryConfig overrides the executable's memory parameters: the
// assignment unit size and the starting and chunk unit counts.
func (c RuntimeConfig) WithMemoryConfig(unitSize, units, chunkUnits int64) RuntimeConfig {
	c.memUnitSize = unitSize
	c.memUnits = units
	c.chunkUnits = chunkUnits
	return c
}

// WithBlockMax overrides the starting handle table size.
func (c RuntimeConfig) WithBlockMax(n int32) RuntimeConfig {
	c.blockMax = n
	return c
}

// WithMemoryLock pins pages on program start.
func (c RuntimeConfig) WithMemoryLock(lock bool) RuntimeConfig {
	c.lockMemory = lock
	return c
}

// WithTrace enables per-instruction trace logging.
func (c RuntimeConfig) WithTrace(trace bool) RuntimeConfig {
	c.trace = trace
	return c
}

// WithLogLevel sets the runtime log level.
func (c RuntimeConfig) WithLogLevel(lvl logrus.Level) RuntimeConfig {
	c.logLevel = lvl
	return c
}

// WithLibPaths sets the dynamic-library search path and the temp path for
// private user-library copies.
func (c RuntimeConfig) WithLibPaths(dynLibPath, tmpLibPath string) RuntimeConfig {
	c.dynLibPath = dynLibPath
	c.tmpLibPath = tmpLibPath
	return c
}
