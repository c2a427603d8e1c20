package main

import (
	"encoding/json"
	"fmt"
	"io"

	"livegrid/internal/core/domain"

	"github.com/spf13/cobra"
)

func newRoomsCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "Lists or creates rooms through the admin proxy",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Lists active rooms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rooms, err := root.apiClient().ListRooms(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rooms)
		},
	})

	var (
		emptyTimeout    uint32
		maxParticipants uint32
		metadata        string
		nodeID          string
	)
	create := &cobra.Command{
		Use:   "create NAME",
		Short: "Creates a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]interface{}{"name": args[0]}
			if emptyTimeout > 0 {
				body["empty_timeout"] = emptyTimeout
			}
			if maxParticipants > 0 {
				body["max_participants"] = maxParticipants
			}
			if metadata != "" {
				body["metadata"] = metadata
			}
			if nodeID != "" {
				body["node_id"] = nodeID
			}
			opts, err := json.Marshal(body)
			if err != nil {
				return err
			}

			room, err := root.apiClient().CreateRoom(cmd.Context(), domain.RoomOptions(opts))
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), room)
		},
	}
	create.Flags().Uint32Var(&emptyTimeout, "empty-timeout", 0, "seconds an empty room is kept open")
	create.Flags().Uint32Var(&maxParticipants, "max-participants", 0, "participant limit, 0 for none")
	create.Flags().StringVar(&metadata, "metadata", "", "opaque room metadata")
	create.Flags().StringVar(&nodeID, "node-id", "", "media node to place the room on")
	cmd.AddCommand(create)

	return cmd
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
