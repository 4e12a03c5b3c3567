package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bamsammich/bcp/internal/config"
	"github.com/bamsammich/bcp/internal/engine"
	"github.com/bamsammich/bcp/internal/progress"
	"github.com/bamsammich/bcp/internal/validate"
)

var version = "dev"

func main() {
	os.Exit(run())
}

// offsetValue is a pflag.Value for byte offsets: parsed as unsigned but
// kept within int64 range, since that is what the file APIs speak.
type offsetValue struct {
	v *int64
}

func (o *offsetValue) String() string {
	if o.v == nil {
		return "0"
	}
	return strconv.FormatInt(*o.v, 10)
}

func (o *offsetValue) Type() string { return "uint" }

func (o *offsetValue) Set(val string) error {
	n, err := strconv.ParseUint(val, 10, 63)
	if err != nil {
		return fmt.Errorf("invalid byte offset %q", val)
	}
	*o.v = int64(n)
	return nil
}

// countValue is like offsetValue but records whether the flag was given
// at all: a nil target means "through end of source".
type countValue struct {
	v **int64
}

func (c *countValue) String() string {
	if c.v == nil || *c.v == nil {
		return ""
	}
	return strconv.FormatInt(**c.v, 10)
}

func (c *countValue) Type() string { return "uint" }

func (c *countValue) Set(val string) error {
	n, err := strconv.ParseUint(val, 10, 63)
	if err != nil {
		return fmt.Errorf("invalid count %q", val)
	}
	count := int64(n)
	*c.v = &count
	return nil
}

// transferError marks failures that happened after validation, once the
// destination may already hold partial data.
type transferError struct {
	err error
}

func (e *transferError) Error() string { return e.err.Error() }
func (e *transferError) Unwrap() error { return e.err }

func run() int {
	var (
		srcOffset   int64
		dstOffset   int64
		count       *int64
		bufSizeStr  string
		verbose     bool
		showVersion bool
	)

	rootCmd := &cobra.Command{
		Use:   "bcp [flags] SRC DST",
		Short: "Copy a byte range from one file into another at an offset",
		Long: `bcp copies a contiguous byte range from SRC into DST, creating DST
if it does not exist. Existing destination bytes outside the written
range are preserved; the destination is never truncated.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				return nil
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Fprintf(os.Stdout, "bcp %s\n", version)
				return nil
			}

			// Optional config file supplies defaults for flags the user
			// did not set on the CLI.
			fileCfg, err := config.Load()
			if err != nil {
				slog.Warn("failed to load config", "error", err)
			}
			applyFileDefaults(cmd, fileCfg.Defaults, &bufSizeStr, &verbose)

			logLevel := slog.LevelWarn
			if verbose {
				logLevel = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: logLevel,
			}))
			slog.SetDefault(logger)

			bufSize, err := config.ParseSize(bufSizeStr)
			if err != nil {
				return fmt.Errorf("invalid --buffer-size: %w", err)
			}
			if bufSize > 1<<30 {
				return fmt.Errorf("--buffer-size %s exceeds the 1G limit", bufSizeStr)
			}

			cfg := &config.Config{
				Src:        args[0],
				Dst:        args[1],
				SrcOffset:  srcOffset,
				DstOffset:  dstOffset,
				Count:      count,
				BufferSize: int(bufSize),
				Verbose:    verbose,
			}

			srcLen, err := validate.Check(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sink := progress.New(progress.Options{
				Out:     os.Stderr,
				Verbose: verbose,
				IsTTY:   progress.IsTTY(os.Stderr.Fd()),
				Width:   progress.TermWidth(os.Stderr.Fd()),
			})

			written, err := engine.Copy(ctx, cfg, srcLen, sink)
			if err != nil {
				slog.Debug("copy aborted", "written", written)
				return &transferError{err: err}
			}

			slog.Debug("copy complete", "written", written)
			return nil
		},
	}

	flags := rootCmd.Flags()
	flags.VarP(&offsetValue{v: &srcOffset}, "src-offset", "s", "byte offset in SRC to start reading from")
	flags.VarP(&offsetValue{v: &dstOffset}, "dst-offset", "d", "byte offset in DST to start writing to")
	flags.VarP(&countValue{v: &count}, "count", "c", "number of bytes to copy (default: through end of SRC)")
	flags.StringVarP(&bufSizeStr, "buffer-size", "b", "1M", "read/write buffer size (accepts K/M/G suffixes, max 1G)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output with a progress bar")
	flags.BoolVar(&showVersion, "version", false, "print version and exit")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var terr *transferError
		if errors.As(err, &terr) {
			return 2 // transfer failure: destination may be partially written
		}
		return 1 // usage or validation failure: nothing was written
	}

	return 0
}

// applyFileDefaults applies config file defaults for flags not
// explicitly set on the CLI.
func applyFileDefaults(cmd *cobra.Command, d config.Defaults, bufSizeStr *string, verbose *bool) {
	if !cmd.Flags().Changed("buffer-size") && d.BufferSize != nil {
		*bufSizeStr = *d.BufferSize
	}
	if !cmd.Flags().Changed("verbose") && d.Verbose != nil {
		*verbose = *d.Verbose
	}
}
