package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"livegrid/internal/core/domain"
	webrtcinfra "livegrid/internal/infrastructure/webrtc"
	"livegrid/internal/selftest"

	"github.com/spf13/cobra"
)

type participantsOptions struct {
	Rooms    int
	Seats    int
	Duration time.Duration
}

func newParticipantsCmd(root *rootOptions) *cobra.Command {
	opts := &participantsOptions{}

	cmd := &cobra.Command{
		Use:   "participants",
		Short: "Registers synthetic publishers part_<seat> in room_<n> and keeps them publishing",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Rooms <= 0 || opts.Seats <= 0 {
				return fmt.Errorf("--rooms and --seats must be > 0")
			}
			return runParticipants(cmd, root, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Rooms, "rooms", 1, "number of rooms, named room_1..room_N")
	cmd.Flags().IntVar(&opts.Seats, "seats", 4, "publishers per room")
	cmd.Flags().DurationVar(&opts.Duration, "duration", 30*time.Second, "how long every publisher stays connected")
	return cmd
}

func runParticipants(cmd *cobra.Command, root *rootOptions, opts *participantsOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	log := root.log()

	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	transport, err := webrtcinfra.NewLoopbackTransport(cfg.LiveKit.APIKey, cfg.LiveKit.APISecret, webrtcinfra.DefaultLoopbackConfig(), log)
	if err != nil {
		return err
	}
	api := root.apiClient()

	ctx, cancel := context.WithTimeout(ctx, opts.Duration)
	defer cancel()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for r := 1; r <= opts.Rooms; r++ {
		for s := 1; s <= opts.Seats; s++ {
			room := fmt.Sprintf("room_%d", r)
			name := fmt.Sprintf("part_%d", (r-1)*opts.Seats+s)

			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := holdPublisher(ctx, api.RegisterParticipant, transport, cfg.LiveKit.Host, name, room); err != nil {
					mu.Lock()
					errs = append(errs, fmt.Errorf("%s in %s: %w", name, room, err))
					mu.Unlock()
				}
			}()
		}
	}
	wg.Wait()

	total := opts.Rooms * opts.Seats
	fmt.Fprintf(out, "publishers: %d ok, %d failed\n", total-len(errs), len(errs))
	return errors.Join(errs...)
}

type registerFunc func(ctx context.Context, name, room string) (domain.Credential, error)

// holdPublisher registers name, publishes into room and stays until ctx
// ends.
func holdPublisher(ctx context.Context, register registerFunc, transport selftest.Transport, url, name, room string) error {
	cred, err := register(ctx, name, room)
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}

	conn, err := transport.Connect(ctx, url, cred)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Disconnect()

	if err := conn.PublishVideo(ctx); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	<-ctx.Done()
	return nil
}
