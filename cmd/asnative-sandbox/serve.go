package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Ratio1/aerospike_native_go/internal/devseed"
	"github.com/Ratio1/aerospike_native_go/pkg/driver/mock"
	"github.com/Ratio1/aerospike_native_go/pkg/driver/restgw"
	"github.com/Ratio1/aerospike_native_go/pkg/logger"
)

func newServeCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the sandbox gateway",
		Long: `Start an HTTP gateway backed by the in-memory mock store.

Usage examples:

1. Serve an empty store:

	asnative-sandbox serve

2. Preload records and indexes, and fail one request in ten with a
   record-busy error:

	asnative-sandbox serve --seed seed.yaml --fail rate=0.1,code=14
`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, v)
		},
	}
	flags := cmd.Flags()
	flags.String("addr", ":8787", "listen address")
	flags.String("seed", "", "path to a JSON or YAML seed file for the mock store")
	flags.Duration("latency", 0, "artificial latency to inject per request")
	flags.String("fail", "", "failure injection (rate=<float>,code=<result code>)")
	flags.String("log-level", "info", "log level (error, warn, info, debug, trace)")
	_ = v.BindPFlags(flags)
	return cmd
}

func runServe(cmd *cobra.Command, v *viper.Viper) error {
	level, err := logger.ParseLevel(v.GetString("log-level"))
	if err != nil {
		return err
	}
	logger.SetLevel(level)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := mock.New()
	if path := strings.TrimSpace(v.GetString("seed")); path != "" {
		seed, err := devseed.Load(path)
		if err != nil {
			return fmt.Errorf("load seed: %w", err)
		}
		if err := store.Seed(ctx, seed); err != nil {
			return fmt.Errorf("apply seed: %w", err)
		}
	}

	failCfg, err := parseFailConfig(v.GetString("fail"))
	if err != nil {
		return fmt.Errorf("parse fail flag: %w", err)
	}

	addr := v.GetString("addr")
	server := &http.Server{
		Addr:              addr,
		Handler:           withMiddleware(v.GetDuration("latency"), failCfg, restgw.NewHandler(store)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	printExports(cmd, addr)
	logger.Info("sandbox: listening", "addr", addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("sandbox: shutting down")
	return server.Shutdown(shutdownCtx)
}

func printExports(cmd *cobra.Command, addr string) {
	host := addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintln(out, "export AEROSPIKE_MODE=rest")
	fmt.Fprintf(out, "export AEROSPIKE_REST_URL=http://%s\n", host)
	fmt.Fprintln(out)
}
