package cli

import (
	"fmt"
	"io"
	"os"

	"interviewroom/internal/core/services"
	"interviewroom/internal/infrastructure/repositories"
	"interviewroom/pkg/config"
	"interviewroom/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// configPaths are tried in order when --config is not given.
var configPaths = []string{
	"configs/config.yaml",
	"./configs/config.yaml",
	"/etc/interviewroom/config.yaml",
	"config.yaml",
}

type Dependencies struct {
	ConfigPath string
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "coordinator",
		Short:         "Interview call coordinator",
		Long:          "Serves the meeting dashboard and runs the single interview call of this process: admission credential, join, local capture and remote participants.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&deps.ConfigPath, "config", "c", "", "path to the YAML config file")

	rootCmd.AddCommand(NewServeCmd(deps))
	rootCmd.AddCommand(NewMeetingsCmd(deps))
	rootCmd.AddCommand(NewCredentialCmd(deps))
	rootCmd.AddCommand(NewIssueCredentialCmd(deps))
	rootCmd.AddCommand(NewIssueIdentityCmd(deps))
	rootCmd.AddCommand(NewWatchCmd(deps))

	return rootCmd
}

// runtime is what every command builds on: config, logger and the storage factory.
type runtime struct {
	cfg    *config.Config
	logger *zap.Logger
	repos  *repositories.RepositoryFactory
}

func (d *Dependencies) open() (*runtime, error) {
	cfg, err := d.loadConfig()
	if err != nil {
		return nil, err
	}

	zl, err := logger.New(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	repos, err := repositories.NewRepositoryFactory(cfg, zl.Sugar().Named("repositories"))
	if err != nil {
		_ = zl.Sync()
		return nil, fmt.Errorf("init repositories: %w", err)
	}
	return &runtime{cfg: cfg, logger: zl, repos: repos}, nil
}

// loadConfig falls back to defaults and env overrides when no config file exists.
func (d *Dependencies) loadConfig() (*config.Config, error) {
	path := d.ConfigPath
	if path == "" {
		for _, candidate := range configPaths {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	return config.Load(path)
}

func (r *runtime) Close() {
	if err := r.repos.Close(); err != nil {
		r.logger.Sugar().Warnw("Failed to close repositories", "error", err)
	}
	_ = r.logger.Sync()
}

// credentialStore returns the process credential store and whether it outlives this process.
func (r *runtime) credentialStore() (*services.SessionTokenStore, bool) {
	store := services.NewSessionTokenStore(r.repos.CreateKeyValueStore(), services.SystemClock{}, r.logger.Sugar().Named("credentials"))
	return store, r.repos.RedisClient() != nil
}

func directoryOptions(cfg *config.Config) services.DirectoryOptions {
	opts := services.DefaultDirectoryOptions()
	opts.FuzzyNameMatch = cfg.Call.FuzzyParticipantMatch
	return opts
}

func controllerConfig(cfg *config.Config) services.ControllerConfig {
	cc := services.DefaultControllerConfig()
	cc.AppID = cfg.Transport.AppID
	cc.JoinTimeout = cfg.Call.JoinTimeout
	cc.OperationTimeout = cfg.Call.OperationTimeout
	cc.NotifyTimeout = cfg.Call.NotifyTimeout
	cc.CredentialTTLMinutes = cfg.Call.CredentialTTLMinutes
	cc.InboxSize = cfg.Call.InboxSize

	cc.RenderRetry.Enabled = cfg.Call.RenderRetryAttempts > 1
	if cfg.Call.RenderRetryAttempts > 0 {
		cc.RenderRetry.MaxAttempts = cfg.Call.RenderRetryAttempts
	}
	if cfg.Call.RenderRetryDelay > 0 {
		cc.RenderRetry.InitialDelay = cfg.Call.RenderRetryDelay
	}
	cc.NotifyRetry.Enabled = cfg.Call.NotifyRetryAttempts > 1
	if cfg.Call.NotifyRetryAttempts > 0 {
		cc.NotifyRetry.MaxAttempts = cfg.Call.NotifyRetryAttempts
	}
	if cfg.Call.NotifyRetryDelay > 0 {
		cc.NotifyRetry.InitialDelay = cfg.Call.NotifyRetryDelay
	}
	return cc
}

func newAuthService(cfg *config.Config, secret string) *services.AuthService {
	return services.NewAuthService(secret, cfg.Auth.Issuer, cfg.Auth.IdentityTTL, cfg.Auth.CredentialTTL, services.SystemClock{})
}

func printf(w io.Writer, format string, args ...interface{}) {
	_, _ = fmt.Fprintf(w, format, args...)
}
