package main

import (
	"fmt"
	"runtime"
	"time"

	"livegrid/internal/core/domain"
	"livegrid/internal/core/services"
	webrtcinfra "livegrid/internal/infrastructure/webrtc"
	"livegrid/internal/selftest"

	"github.com/spf13/cobra"
)

type selfTestOptions struct {
	Name              string
	Offline           bool
	Submit            bool
	Description       string
	WarmUp            time.Duration
	ObservationWindow time.Duration
	SampleInterval    time.Duration
}

func newSelfTestCmd(root *rootOptions) *cobra.Command {
	opts := &selfTestOptions{}

	cmd := &cobra.Command{
		Use:   "selftest",
		Short: "Runs the producer/consumer self-test over the loopback transport and reports the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSelfTest(cmd, root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", fmt.Sprintf("loadtest_%d", time.Now().Unix()), "self-test name; identities are <name>_producer and <name>_consumer")
	cmd.Flags().BoolVar(&opts.Offline, "offline", false, "sign credentials locally instead of calling the API; implies --submit=false")
	cmd.Flags().BoolVar(&opts.Submit, "submit", true, "submit the result to the API")
	cmd.Flags().StringVar(&opts.Description, "description", "", "free text stored with the result")
	cmd.Flags().DurationVar(&opts.WarmUp, "warm-up", 0, "max wait for the first remote track (default from config)")
	cmd.Flags().DurationVar(&opts.ObservationWindow, "window", 0, "observation window (default from config)")
	cmd.Flags().DurationVar(&opts.SampleInterval, "interval", 0, "sampling interval (default from config)")
	return cmd
}

func runSelfTest(cmd *cobra.Command, root *rootOptions, opts *selfTestOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	log := root.log()

	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}

	var creds domain.SelfTestCredentials
	if opts.Offline {
		issuer := services.NewCredentialService(cfg.LiveKit.APIKey, cfg.LiveKit.APISecret, cfg.LiveKit.TokenTTL, cfg.LiveKit.ServiceTokenTTL)
		creds, err = issuer.IssueSelfTestPair(opts.Name)
	} else {
		creds, err = root.apiClient().RegisterSelfTest(ctx, opts.Name)
	}
	if err != nil {
		return fmt.Errorf("obtain self-test credentials: %w", err)
	}

	transport, err := webrtcinfra.NewLoopbackTransport(cfg.LiveKit.APIKey, cfg.LiveKit.APISecret, webrtcinfra.DefaultLoopbackConfig(), log)
	if err != nil {
		return err
	}

	runnerCfg := selftest.Config{
		URL:               cfg.LiveKit.Host,
		WarmUp:            firstPositive(opts.WarmUp, cfg.SelfTest.WarmUp),
		ObservationWindow: firstPositive(opts.ObservationWindow, cfg.SelfTest.ObservationWindow),
		SampleInterval:    firstPositive(opts.SampleInterval, cfg.SelfTest.SampleInterval),
	}
	runner := selftest.NewRunner(transport, runnerCfg, log)
	runner.OnStateChange(func(s selftest.State) {
		fmt.Fprintf(out, "state: %s\n", s)
	})

	result, runErr := runner.Run(ctx, creds)
	record := result.Record()
	record.Browser = "livegrid-loadtest"
	record.OS = runtime.GOOS
	record.Description = opts.Description
	if record.Description == "" && runErr != nil {
		record.Description = runErr.Error()
	}
	if store, err := root.sessionStore(); err == nil {
		if session, ok, _ := store.Authenticated(time.Now()); ok {
			record.SSOID = session.UID
		}
	}

	fmt.Fprintf(out, "success: %t\navg bitrate: %d kbps\nsamples: %d\n", record.Success, record.AvgBitrate, len(result.Samples))

	if opts.Submit && !opts.Offline {
		stored, err := root.apiClient().SubmitResult(ctx, record)
		if err != nil {
			return fmt.Errorf("submit result: %w", err)
		}
		fmt.Fprintf(out, "result id: %s\n", stored.ID)
	}
	return runErr
}

func firstPositive(values ...time.Duration) time.Duration {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
