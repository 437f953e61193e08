// Package cli implements the httpcall command: one MakeCall from the command
// line, printed like curl -i.
package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kroma-labs/runtimehttp/httpclient"
	"github.com/kroma-labs/runtimehttp/httpclient/otelcall"
	"github.com/kroma-labs/runtimehttp/internal/config"
	"github.com/kroma-labs/runtimehttp/internal/telemetry"
)

// app is one invocation of the command.
type app struct {
	flags  flags
	stdout io.Writer
	stderr io.Writer

	// roundTripper replaces the network when set.
	roundTripper http.RoundTripper

	exitCode int
}

// Execute runs httpcall with args and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return (&app{stdout: stdout, stderr: stderr}).execute(ctx, args)
}

func (a *app) execute(ctx context.Context, args []string) int {
	cmd := a.command()
	cmd.SetArgs(args)
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(a.stderr, "Error:", err)
		return ExitUsage
	}
	return a.exitCode
}

func (a *app) command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "httpcall [flags] URL",
		Short: "Make one HTTP call with the runtime's client",
		Long: `Make an HTTP call exactly as the runtime would and print the result.

Redirects are not followed and every response status is a result. Calls that
produce no response exit with status 1.

Examples:
  httpcall https://api.example.com/users -q page=2
  httpcall -X PUT https://api.example.com/users/1 --data 'hello' -H 'X-Api-Key: k'
  httpcall https://api.example.com/users --select '0.name'
  httpcall https://api.example.com --repeat 0 --metrics-addr :2112`,
		Version:       telemetry.Version,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, args[0])
		},
	}
	a.flags.register(cmd)
	return cmd
}

func (a *app) run(cmd *cobra.Command, rawURL string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(a.flags.configPath)
	if err != nil {
		return err
	}
	a.flags.apply(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	call, err := a.flags.call(cmd, rawURL)
	if err != nil {
		return err
	}

	logger := newLogger(a.stderr, cfg.Debug)

	tel, err := telemetry.Setup(ctx, cfg.ServiceName, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		if err := tel.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	if addr := cfg.Telemetry.MetricsAddr; addr != "" {
		srv, err := telemetry.Serve(addr, tel.Handler(), logger)
		if err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}
		defer srv.Shutdown(ctx) //nolint:errcheck
	}

	client, cleanup, err := newClient(cfg, tel, logger, a.roundTripper)
	if err != nil {
		return err
	}
	defer cleanup()

	mws := []httpclient.Middleware{
		otelcall.Middleware(
			otelcall.WithTracerProvider(tel.TracerProvider),
			otelcall.WithPropagator(tel.Propagator),
			otelcall.WithServiceName(cfg.ServiceName),
		),
		httpclient.DefaultHeaders(cfg.DefaultHeaders()),
	}
	if cfg.UserAgent != "" {
		mws = append(mws, httpclient.UserAgent(cfg.UserAgent))
	}
	if cfg.CorrelationHeader != "" {
		mws = append(mws, httpclient.CorrelationID(cfg.CorrelationHeader))
	}
	makeCall := httpclient.Chain(client.CallFunc(), mws...)

	out := newPrinter(a.stdout, a.stderr, &a.flags)
	return a.loop(ctx, makeCall, call, out)
}

// loop makes the call --repeat times, pausing --interval in between. The
// exit code follows the last call.
func (a *app) loop(ctx context.Context, makeCall httpclient.CallFunc, call httpclient.Call, out *printer) error {
	var ticker *time.Ticker
	for i := 0; a.flags.repeat <= 0 || i < a.flags.repeat; i++ {
		if i > 0 {
			if ticker == nil {
				ticker = time.NewTicker(a.flags.interval)
				defer ticker.Stop()
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return nil
			}
		}

		res, err := makeCall(ctx, call)
		if err != nil && i > 0 && ctx.Err() != nil {
			// Interrupted between repeats; the last completed call decides.
			return nil
		}
		if err != nil {
			out.failure(err)
			a.exitCode = ExitCallFailed
			continue
		}

		a.exitCode = ExitSuccess
		if err := out.result(res); err != nil {
			return err
		}
	}
	return nil
}

func newLogger(w io.Writer, debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}).
		Level(level).
		With().
		Timestamp().
		Logger()
}
