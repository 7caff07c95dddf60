package runtime

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/hostkit/wasm-host/engine"
	"github.com/hostkit/wasm-host/errors"
)

// Config holds configuration for runtime creation
type Config struct {
	// Engine passes low-level engine options through (memory limit,
	// compilation cache, context cancellation).
	Engine *engine.Config

	// Logger receives debug logging. Nil means silent.
	Logger *zap.Logger
}

// Runtime owns the engine state modules are compiled into and instances
// execute against. It must outlive every instance created from its modules.
type Runtime struct {
	engine *engine.Engine
	logger *zap.Logger
}

func New(ctx context.Context) (*Runtime, error) {
	return NewWithConfig(ctx, nil)
}

func NewWithConfig(ctx context.Context, cfg *Config) (*Runtime, error) {
	var engCfg *engine.Config
	logger := zap.NewNop()
	if cfg != nil {
		engCfg = cfg.Engine
		if cfg.Logger != nil {
			logger = cfg.Logger
		}
	}

	eng, err := engine.NewWithConfig(ctx, engCfg)
	if err != nil {
		return nil, err
	}

	return &Runtime{engine: eng, logger: logger}, nil
}

// Close releases all runtime resources.
// All instances must be closed before calling this.
func (r *Runtime) Close(ctx context.Context) error {
	return r.engine.Close(ctx)
}

// Load reads and compiles the module at path. The path being unreadable
// and the bytes being rejected by the compiler are distinct failures: the
// former is a load error, the latter a compile error.
func (r *Runtime) Load(ctx context.Context, path string) (*Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Load(path, err)
	}

	r.logger.Debug("module read", zap.String("path", path), zap.Int("size", len(data)))
	return r.LoadBytes(ctx, data)
}

// LoadBytes compiles a module from bytes already in memory.
func (r *Runtime) LoadBytes(ctx context.Context, wasm []byte) (*Module, error) {
	engineModule, err := r.engine.Compile(ctx, wasm)
	if err != nil {
		return nil, err
	}

	return &Module{runtime: r, engineModule: engineModule}, nil
}
