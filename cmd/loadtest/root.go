package main

import (
	"os"
	"path/filepath"

	"livegrid/internal/client"
	"livegrid/pkg/config"
	"livegrid/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootOptions struct {
	APIURL      string
	ConfigPath  string
	SessionFile string
	LogLevel    string

	logger *zap.SugaredLogger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "loadtest",
		Short:        "Exercises a livegrid deployment: self-tests, synthetic participants and room admin",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			opts.logger = logger.New(opts.LogLevel, "console").Sugar()
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.APIURL, "api", envOr("LIVEGRID_API_URL", "http://localhost:5000/livekit"), "base URL of the livegrid API including its mount prefix")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "configs/config.yaml", "config file holding the media server key pair, used by the loopback transport")
	cmd.PersistentFlags().StringVar(&opts.SessionFile, "session-file", "", "SSO session file (default <user config dir>/livegrid/session.json)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "warn", "log level")

	cmd.AddCommand(
		newSelfTestCmd(opts),
		newParticipantsCmd(opts),
		newRoomsCmd(opts),
		newLoginCmd(opts),
		newLogoutCmd(opts),
	)
	return cmd
}

func (o *rootOptions) apiClient() *client.APIClient {
	return client.NewAPIClient(o.APIURL)
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	return config.Load(o.ConfigPath)
}

func (o *rootOptions) sessionStore() (*client.FileSessionStore, error) {
	path := o.SessionFile
	if path == "" {
		var err error
		if path, err = client.DefaultSessionPath(); err != nil {
			return nil, err
		}
	}
	return client.NewFileSessionStore(filepath.Clean(path)), nil
}

func (o *rootOptions) log() *zap.SugaredLogger {
	if o.logger == nil {
		return zap.NewNop().Sugar()
	}
	return o.logger
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
