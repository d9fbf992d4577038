// Command keygate serves the keygate passkey API.
//
// Usage:
//
//	keygate [-dev-redis]          serve the API configured by KEYGATE_* variables
//	keygate hash-password         read a password on stdin, print its argon2id hash
//
// The printed hash is the value for KEYGATE_ADMIN_PASSWORD_HASH.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/MrEthical07/keygate"
	"github.com/MrEthical07/keygate/httpapi"
	"github.com/MrEthical07/keygate/metrics/export/prometheus"
	"github.com/MrEthical07/keygate/passkey"
	"github.com/MrEthical07/keygate/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-password" {
		if err := hashPassword(os.Stdin, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "hash-password: %v\n", err)
			os.Exit(1)
		}
		return
	}

	devRedis := flag.Bool("dev-redis", false, "use an in-process miniredis instead of KEYGATE_REDIS_ADDR")
	flag.Parse()

	cfg, err := loadServerConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.slogLevel()}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *devRedis, logger); err != nil {
		logger.Error("keygate exited", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg serverConfig, devRedis bool, logger *slog.Logger) error {
	engineCfg, generatedKey, err := cfg.engineConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if generatedKey {
		logger.Warn("KEYGATE_ADMIN_SIGNING_KEY not set; generated an ephemeral key")
	}
	for _, w := range engineCfg.Lint() {
		logger.Warn("config lint", "code", w.Code, "severity", w.Severity.String(), "msg", w.Message)
	}

	rdb, cleanup, err := openRedis(cfg, devRedis, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	verifier, err := passkey.New(engineCfg.Passkey)
	if err != nil {
		return err
	}

	builder := keygate.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithVerifier(verifier).
		WithLogger(logger)
	if cfg.AuditStderr {
		builder = builder.WithAuditSink(keygate.NewJSONWriterSink(os.Stderr))
	}
	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	opts := []httpapi.Option{httpapi.WithLogger(logger)}
	if engineCfg.Metrics.Enabled {
		opts = append(opts, httpapi.WithMetricsHandler(prometheus.NewExporter(engine).Handler()))
	}
	api := httpapi.New(engine, opts...)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: cfg.ReadTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("keygate listening", "addr", cfg.Addr, "rp_id", engineCfg.Passkey.RPID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func openRedis(cfg serverConfig, dev bool, logger *slog.Logger) (redis.UniversalClient, func(), error) {
	if dev {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		logger.Warn("using in-process miniredis; data is lost on exit", "addr", mr.Addr())
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.RedisAddr},
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return client, func() { _ = client.Close() }, nil
}

// hashPassword reads one line from r and writes its argon2id PHC hash to w.
func hashPassword(r io.Reader, w io.Writer) error {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return errors.New("empty password")
	}

	hasher, err := password.NewArgon2(password.DefaultConfig())
	if err != nil {
		return err
	}
	hash, err := hasher.Hash(pw)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, hash)
	return err
}
