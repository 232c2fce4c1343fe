// Command wasm2go translates a WebAssembly binary module into Go source
// that preserves the module's execution semantics against the wasmrt
// runtime package.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	werrors "github.com/wippyai/wasm2go/errors"
	"github.com/wippyai/wasm2go/translate"
	"github.com/wippyai/wasm2go/wasm"
)

func main() {
	if err := newRootCmd(afero.NewOsFs()).Execute(); err != nil {
		os.Exit(1)
	}
}

type config struct {
	output      string
	pkgName     string
	structName  string
	verbose     bool
	interactive bool
	rejectSat   bool
	skipVerify  bool
}

func newRootCmd(fs afero.Fs) *cobra.Command {
	var cfg config

	cmd := &cobra.Command{
		Use:   "wasm2go <input.wasm>",
		Short: "Translate a WebAssembly module to Go source",
		Long: `wasm2go is an ahead-of-time translator from WebAssembly binaries to Go
source code. The generated file depends only on the wasmrt runtime package
and preserves wasm semantics: wrapping arithmetic, trapping operators
surfaced as errors, bounds-checked memory, and checked indirect calls.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.interactive {
				return runInteractive(fs, args[0], cfg)
			}
			return run(fs, args[0], cfg)
		},
	}

	cmd.Flags().StringVarP(&cfg.output, "output", "o", "", "output Go file (defaults to stdout)")
	cmd.Flags().StringVar(&cfg.pkgName, "package", "wasmmod", "package name of the generated file")
	cmd.Flags().StringVar(&cfg.structName, "struct", "Module", "module struct name")
	cmd.Flags().BoolVarP(&cfg.verbose, "verbose", "v", false, "log per-stage progress")
	cmd.Flags().BoolVarP(&cfg.interactive, "interactive", "i", false, "explore the module in a TUI")
	cmd.Flags().BoolVar(&cfg.rejectSat, "reject-sat-trunc", false, "reject non-trapping float-to-int conversions")
	cmd.Flags().BoolVar(&cfg.skipVerify, "skip-verify", false, "skip the wazero pre-validation pass")
	return cmd
}

func newLogger(verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// load reads, pre-validates, and decodes a module. The translator trusts
// its input to be valid, so unless disabled the binary is first compiled
// by wazero's validator (interpreter config, nothing executes).
func load(fs afero.Fs, path string, skipVerify bool, logger *zap.Logger) (*wasm.Module, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, werrors.Wrap(werrors.PhaseLoad, werrors.KindIO, err, "read input")
	}
	logger.Debug("input read", zap.String("path", path), zap.Int("bytes", len(data)))

	if !skipVerify {
		ctx := context.Background()
		rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
		defer rt.Close(ctx)
		compiled, err := rt.CompileModule(ctx, data)
		if err != nil {
			return nil, werrors.Load("module failed validation", err)
		}
		_ = compiled.Close(ctx)
		logger.Debug("module validated")
	}

	m, err := wasm.ParseModule(data)
	if err != nil {
		return nil, werrors.Load("decode module", err)
	}
	return m, nil
}

func run(fs afero.Fs, input string, cfg config) error {
	logger := newLogger(cfg.verbose)
	defer logger.Sync() //nolint:errcheck

	m, err := load(fs, input, cfg.skipVerify, logger)
	if err != nil {
		return err
	}

	src, err := translate.Translate(m, translate.Options{
		Logger:         logger,
		Package:        cfg.pkgName,
		Struct:         cfg.structName,
		RejectSatTrunc: cfg.rejectSat,
	})
	if err != nil {
		return err
	}

	if cfg.output == "" {
		fmt.Print(src)
		return nil
	}
	if err := afero.WriteFile(fs, cfg.output, []byte(src), 0o644); err != nil {
		return werrors.Wrap(werrors.PhaseEmit, werrors.KindIO, err, "write output")
	}
	fmt.Fprintf(os.Stderr, "wrote %s (%d bytes, %d lines)\n",
		cfg.output, len(src), strings.Count(src, "\n"))
	return nil
}
