package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Room is a room object exactly as the room service encoded it. Fields are
// not interpreted, so nothing the service adds is lost on the way through.
type Room = json.RawMessage

// RoomOptions is a CreateRoom body, forwarded to the room service as sent.
type RoomOptions = json.RawMessage

// ValidateRoomOptions only checks that opts is a JSON object with a
// non-empty string name. Every other field belongs to the room service.
func ValidateRoomOptions(opts RoomOptions) error {
	var head struct {
		Name *string `json:"name"`
	}
	if err := json.Unmarshal(opts, &head); err != nil {
		return fmt.Errorf("%w: body must be a JSON object", ErrInvalidRoomOptions)
	}
	if head.Name == nil || strings.TrimSpace(*head.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRoomOptions)
	}
	return nil
}
