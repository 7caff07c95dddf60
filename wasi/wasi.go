package wasi

import (
	"bytes"
	"io"
	"sort"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/sys"
)

type mount struct {
	host  string
	guest string
}

// Environment configures a WASI preview1 environment: program name,
// argument vector, environment variables, standard streams, preopened
// directories. Use builder methods to set up.
//
// It is a capability object: a module only observes what the environment
// grants. A fresh Environment grants nothing beyond captured stdio.
type Environment struct {
	programName string
	args        []string
	env         map[string]string
	stdin       io.Reader
	stdout      io.Writer
	stderr      io.Writer
	stdoutBuf   *bytes.Buffer
	stderrBuf   *bytes.Buffer
	mounts      []mount
	randSource  io.Reader
	walltime    func() time.Time
	wallRes     time.Duration
}

// New creates a new environment. Stdout and stderr are captured into
// buffers readable via Stdout and Stderr; stdin is empty.
func New() *Environment {
	stdoutBuf := &bytes.Buffer{}
	stderrBuf := &bytes.Buffer{}
	return &Environment{
		programName: "wasm",
		env:         make(map[string]string),
		stdout:      stdoutBuf,
		stderr:      stderrBuf,
		stdoutBuf:   stdoutBuf,
		stderrBuf:   stderrBuf,
	}
}

// WithProgramName sets argv[0] as seen by the module.
func (e *Environment) WithProgramName(name string) *Environment {
	e.programName = name
	return e
}

// WithArgs sets command-line arguments (argv[1:]).
func (e *Environment) WithArgs(args []string) *Environment {
	e.args = args
	return e
}

// WithEnv sets environment variables
func (e *Environment) WithEnv(env map[string]string) *Environment {
	e.env = env
	return e
}

// WithStdin sets stdin data
func (e *Environment) WithStdin(data []byte) *Environment {
	e.stdin = bytes.NewReader(data)
	return e
}

// WithStdinReader streams stdin from a reader.
func (e *Environment) WithStdinReader(r io.Reader) *Environment {
	e.stdin = r
	return e
}

// WithStdoutWriter streams stdout to w instead of capturing it.
// Stdout returns nil afterwards.
func (e *Environment) WithStdoutWriter(w io.Writer) *Environment {
	e.stdout = w
	e.stdoutBuf = nil
	return e
}

// WithStderrWriter streams stderr to w instead of capturing it.
// Stderr returns nil afterwards.
func (e *Environment) WithStderrWriter(w io.Writer) *Environment {
	e.stderr = w
	e.stderrBuf = nil
	return e
}

// WithDir preopens the host directory at the guest path.
func (e *Environment) WithDir(hostDir, guestPath string) *Environment {
	e.mounts = append(e.mounts, mount{host: hostDir, guest: guestPath})
	return e
}

// WithRandSource replaces the random source the module observes.
// Useful for deterministic tests.
func (e *Environment) WithRandSource(r io.Reader) *Environment {
	e.randSource = r
	return e
}

// WithWallClock replaces the wall clock the module observes.
func (e *Environment) WithWallClock(now func() time.Time, resolution time.Duration) *Environment {
	e.walltime = now
	e.wallRes = resolution
	return e
}

// Stdout returns captured stdout contents, or nil once a custom writer
// replaced the capture buffer.
func (e *Environment) Stdout() []byte {
	if e.stdoutBuf == nil {
		return nil
	}
	return e.stdoutBuf.Bytes()
}

// Stderr returns captured stderr contents, or nil once a custom writer
// replaced the capture buffer.
func (e *Environment) Stderr() []byte {
	if e.stderrBuf == nil {
		return nil
	}
	return e.stderrBuf.Bytes()
}

// ProgramName returns argv[0].
func (e *Environment) ProgramName() string {
	return e.programName
}

// Args returns command-line arguments (argv[1:]).
func (e *Environment) Args() []string {
	return e.args
}

// Env returns environment variables
func (e *Environment) Env() map[string]string {
	return e.env
}

// ModuleConfig lowers the environment onto a wazero module configuration.
// Consumed by the runtime package at instantiation.
func (e *Environment) ModuleConfig() wazero.ModuleConfig {
	cfg := wazero.NewModuleConfig()

	argv := append([]string{e.programName}, e.args...)
	cfg = cfg.WithArgs(argv...)

	// Map order is unspecified; sort for a stable environ layout.
	keys := make([]string, 0, len(e.env))
	for k := range e.env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cfg = cfg.WithEnv(k, e.env[k])
	}

	if e.stdin != nil {
		cfg = cfg.WithStdin(e.stdin)
	}
	cfg = cfg.WithStdout(e.stdout).WithStderr(e.stderr)

	if len(e.mounts) > 0 {
		fsCfg := wazero.NewFSConfig()
		for _, m := range e.mounts {
			fsCfg = fsCfg.WithDirMount(m.host, m.guest)
		}
		cfg = cfg.WithFSConfig(fsCfg)
	}

	if e.randSource != nil {
		cfg = cfg.WithRandSource(e.randSource)
	}

	if e.walltime != nil {
		res := sys.ClockResolution(e.wallRes.Nanoseconds())
		if res == 0 {
			res = 1
		}
		cfg = cfg.WithWalltime(func() (int64, int32) {
			t := e.walltime()
			return t.Unix(), int32(t.Nanosecond())
		}, res)
	}

	return cfg
}
