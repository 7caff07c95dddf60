package wasi

import (
	"bytes"
	"testing"
	"time"
)

func TestEnvironment_Defaults(t *testing.T) {
	env := New()

	if env.ProgramName() != "wasm" {
		t.Errorf("default program name = %q, want %q", env.ProgramName(), "wasm")
	}
	if len(env.Args()) != 0 {
		t.Errorf("default args = %v, want none", env.Args())
	}
	if len(env.Stdout()) != 0 || len(env.Stderr()) != 0 {
		t.Error("fresh environment already captured output")
	}
}

func TestEnvironment_Builders(t *testing.T) {
	env := New().
		WithProgramName("prog").
		WithArgs([]string{"a", "b"}).
		WithEnv(map[string]string{"K": "V"})

	if env.ProgramName() != "prog" {
		t.Errorf("program name = %q", env.ProgramName())
	}
	if len(env.Args()) != 2 || env.Args()[0] != "a" {
		t.Errorf("args = %v", env.Args())
	}
	if env.Env()["K"] != "V" {
		t.Errorf("env = %v", env.Env())
	}
}

func TestEnvironment_CustomWriterDisablesCapture(t *testing.T) {
	var sink bytes.Buffer
	env := New().WithStdoutWriter(&sink)

	if env.Stdout() != nil {
		t.Error("Stdout should return nil once a custom writer is set")
	}
	if len(env.Stderr()) != 0 {
		t.Error("Stderr capture should be unaffected")
	}
}

func TestEnvironment_ModuleConfig(t *testing.T) {
	// The lowering itself is exercised end to end in the runtime tests;
	// here we only check it tolerates every option at once.
	env := New().
		WithProgramName("prog").
		WithArgs([]string{"x"}).
		WithEnv(map[string]string{"A": "1", "B": "2"}).
		WithStdin([]byte("in")).
		WithDir(t.TempDir(), "/data").
		WithRandSource(bytes.NewReader([]byte{1, 2, 3, 4})).
		WithWallClock(func() time.Time { return time.Unix(0, 0) }, time.Microsecond)

	if cfg := env.ModuleConfig(); cfg == nil {
		t.Fatal("ModuleConfig returned nil")
	}
}
