package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Tyrowin/roomchat/internal/server"
)

const (
	exitOK = iota
	exitRuntime
	exitConfig
)

// configError marks failures that happen before the server starts.
type configError struct{ err error }

func (e configError) Error() string { return e.err.Error() }
func (e configError) Unwrap() error { return e.err }

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)

	err := cmd.Execute()
	if err == nil {
		return exitOK
	}
	fmt.Fprintf(os.Stderr, "roomchat: %v\n", err)

	var cfgErr configError
	if errors.As(err, &cfgErr) {
		return exitConfig
	}
	return exitRuntime
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		envFile    string
	)

	cmd := &cobra.Command{
		Use:           "roomchat",
		Short:         "WebSocket chat server with identities and rooms",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath, envFile)
			if err != nil {
				return configError{err}
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	return cmd
}

func loadConfig(configPath, envFile string) (server.Config, error) {
	if envFile != "" {
		// A missing env file is fine; variables may come from the real environment.
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return server.Config{}, fmt.Errorf("load env file: %w", err)
		}
	}
	if configPath == "" {
		cfg, err := server.NewConfigFromEnv()
		if err != nil {
			return server.Config{}, err
		}
		return *cfg, nil
	}
	return server.LoadConfig(configPath)
}

func serve(parent context.Context, cfg server.Config) error {
	logger, err := server.NewLogger(cfg.Log, os.Stdout)
	if err != nil {
		return configError{err}
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
