package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	wasmhost "github.com/hostkit/wasm-host"
	"github.com/hostkit/wasm-host/engine"
	"github.com/hostkit/wasm-host/errors"
	"github.com/hostkit/wasm-host/runtime"
	"github.com/hostkit/wasm-host/wasi"
)

func main() {
	var (
		funcName    = flag.String("func", "_start", "Exported function to call")
		funcArgs    = flag.String("args", "", "Function arguments, comma-separated, parsed against the declared signature")
		envVars     = flag.String("env", "", "Environment variables (KEY=VAL,KEY2=VAL2)")
		cliArgs     = flag.String("argv", "", "Guest argv (comma-separated)")
		dirs        = flag.String("dir", "", "Preopened directories (/host:/guest,/host2:/guest2)")
		stdinData   = flag.String("stdin", "", "Stdin data (default: the process stdin)")
		list        = flag.Bool("list", false, "List exported functions and exit")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		verbose     = flag.Bool("v", false, "Debug logging")
	)
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: run [flags] <module.wasm>")
		fmt.Fprintln(os.Stderr, "       run <module.wasm> -list")
		fmt.Fprintln(os.Stderr, "       run <module.wasm> -i  (interactive mode)")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	wasmFile := flag.Arg(0)

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode requires a terminal")
			os.Exit(1)
		}
		if err := runInteractive(wasmFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(wasmFile, *funcName, *funcArgs, *envVars, *cliArgs, *dirs, *stdinData, *verbose, *list); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		// A guest exit code becomes the process exit code.
		var typed *errors.Error
		if stderrors.As(err, &typed) && typed.Exited && typed.ExitCode != 0 {
			os.Exit(int(typed.ExitCode))
		}
		os.Exit(1)
	}
}

func run(wasmFile, funcName, argsStr, envStr, argvStr, dirsStr, stdinStr string, verbose, listOnly bool) error {
	ctx := context.Background()

	var cfg *runtime.Config
	if verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		engine.SetLogger(logger)
		cfg = &runtime.Config{Logger: logger}
	}

	rt, err := runtime.NewWithConfig(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	mod, err := rt.Load(ctx, wasmFile)
	if err != nil {
		return err
	}

	exports := mod.Exports()
	if listOnly {
		fmt.Printf("Module: %s\n", wasmFile)
		fmt.Printf("\nExported functions:\n")
		for _, e := range exports {
			fmt.Printf("  %s\n", formatExport(e))
		}
		return nil
	}

	// Build the WASI environment, streaming stdio to the process.
	env := wasi.New().
		WithProgramName(filepath.Base(wasmFile)).
		WithStdoutWriter(os.Stdout).
		WithStderrWriter(os.Stderr)

	if stdinStr != "" {
		env.WithStdin([]byte(stdinStr))
	} else {
		env.WithStdinReader(os.Stdin)
	}

	if envStr != "" {
		vars := make(map[string]string)
		for _, kv := range strings.Split(envStr, ",") {
			parts := strings.SplitN(kv, "=", 2)
			if len(parts) == 2 {
				vars[parts[0]] = parts[1]
			}
		}
		env.WithEnv(vars)
	}

	if argvStr != "" {
		env.WithArgs(strings.Split(argvStr, ","))
	}

	if dirsStr != "" {
		for _, mapping := range strings.Split(dirsStr, ",") {
			parts := strings.SplitN(mapping, ":", 2)
			if len(parts) == 2 {
				env.WithDir(parts[0], parts[1])
			}
		}
	}

	instance, err := mod.Instantiate(ctx, env)
	if err != nil {
		return err
	}
	defer instance.Close(ctx)

	args, err := parseArgs(exports, funcName, argsStr)
	if err != nil {
		return err
	}

	results, err := instance.Invoke(ctx, funcName, args)
	if err != nil {
		return err
	}

	for _, r := range results {
		fmt.Printf("%s (%s)\n", r, r.Kind())
	}
	return nil
}

// parseArgs parses comma-separated argument text against the declared
// parameter kinds of funcName.
func parseArgs(exports []runtime.Export, funcName, argsStr string) ([]wasmhost.Value, error) {
	if argsStr == "" {
		return nil, nil
	}

	var params []wasmhost.ValueKind
	found := false
	for _, e := range exports {
		if e.Name == funcName {
			params = e.Params
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("function %q not exported; use -list to see exports", funcName)
	}

	tokens := strings.Split(argsStr, ",")
	if len(tokens) != len(params) {
		return nil, fmt.Errorf("%s takes %d argument(s), got %d", funcName, len(params), len(tokens))
	}

	args := make([]wasmhost.Value, len(tokens))
	for i, tok := range tokens {
		v, err := wasmhost.ParseValue(params[i], strings.TrimSpace(tok))
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

func formatExport(e runtime.Export) string {
	params := make([]string, len(e.Params))
	for i, k := range e.Params {
		params[i] = k.String()
	}
	out := e.Name + "(" + strings.Join(params, ", ") + ")"
	if len(e.Results) > 0 {
		results := make([]string, len(e.Results))
		for i, k := range e.Results {
			results[i] = k.String()
		}
		out += " -> " + strings.Join(results, ", ")
	}
	return out
}
