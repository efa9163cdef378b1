// Package main implements the challenge sidecar's entry point: a cobra
// root command that loads configuration, wires the ten runtime
// components together, and runs until a termination signal drains it.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/CortexLM/challenge/common/logging"
	"github.com/CortexLM/challenge/config"
	"github.com/CortexLM/challenge/internal/lifecycle"
	"github.com/CortexLM/challenge/internal/orm"
	"github.com/CortexLM/challenge/sdk"
)

var rootCmd = &cobra.Command{
	Use:   "challenge",
	Short: "Confidential-computing challenge sidecar",
	RunE:  runRoot,
}

// RootCommand returns the root (top level) cobra.Command.
func RootCommand() *cobra.Command {
	return rootCmd
}

// Execute spawns the main entry point after handling the config file and
// command line arguments.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitConfigError)
	}
}

func init() {
	cobra.OnInitialize(initConfigFile)
	initRootFlags()
	rootCmd.PersistentFlags().AddFlagSet(rootFlags)
}

// loadConfig assembles a config.Config from the flags/env/file viper has
// already bound.
func loadConfig() config.Config {
	cfg := config.DefaultConfig()
	cfg.ConsumerBaseURL = viper.GetString(cfgConsumerBaseURL)
	cfg.SessionToken = viper.GetString(cfgSessionToken)
	cfg.JobID = viper.GetString(cfgJobID)
	cfg.ChallengeID = viper.GetString(cfgChallengeID)
	cfg.ValidatorHotkey = viper.GetString(cfgValidatorHotkey)
	cfg.RunServer = viper.GetBool(cfgRunServer)
	cfg.AdminMode = viper.GetBool(cfgAdminMode)
	cfg.DevMode = viper.GetBool(cfgDevMode)
	cfg.AllowInsecureAdmin = viper.GetBool(cfgAllowInsecureAdmin)
	cfg.Port = viper.GetInt(cfgPort)
	cfg.Host = viper.GetString(cfgHost)
	cfg.DbVersion = viper.GetInt(cfgDbVersion)
	cfg.Concurrency = viper.GetInt(cfgConcurrency)
	cfg.Log.File = viper.GetString(cfgLogFile)
	cfg.Log.Format = viper.GetString(cfgLogFormat)
	return cfg
}

// watchLifecycle advances Ready -> Serving as soon as the orchestrator
// reaches Ready; nothing else in the process issues that transition,
// since on_ready may itself depend on components only available once the
// migration barrier has cleared.
func watchLifecycle(orch *lifecycle.Orchestrator) {
	sub := orch.Subscribe()
	defer sub.Close()

	ch := make(chan int)
	sub.Unwrap(ch)

	for state := range ch {
		if lifecycle.State(state) == lifecycle.Ready {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := orch.EnterServing(ctx); err != nil {
				logger.Error("failed to enter serving", "err", err)
			}
			cancel()
		}
	}
}

func runRoot(cmd *cobra.Command, args []string) error {
	if err := initLogging(); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	cfg := loadConfig()

	app := sdk.New()
	rt, err := sdk.NewRuntime(cfg, app, orm.NewPolicy())
	if err != nil {
		logger.Error("configuration rejected", "err", err)
		os.Exit(exitConfigError)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rt.Start(ctx); err != nil {
		logger.Error("on_startup failed", "err", err)
		os.Exit(exitConfigError)
	}
	go watchLifecycle(rt.Lifecycle)

	var srv *http.Server
	if cfg.RunServer {
		srv = &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler: newMux(rt),
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("http server exited", "err", err)
				os.Exit(exitConfigError)
			}
		}()
		logger.Info("http façade listening", "addr", srv.Addr)
	}

	<-ctx.Done()
	logger.Info("termination signal received, draining")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}

	return rt.Shutdown(context.Background())
}

func initConfigFile() {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		_ = viper.ReadInConfig()
	}
	viper.SetEnvPrefix("challenge")
	viper.AutomaticEnv()
}

var logger = logging.GetLogger("cmd/challenge")
