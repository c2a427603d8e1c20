package domain

import (
	"fmt"

	"livegrid/pkg/validation"
)

// Role selects the permission set baked into a credential.
type Role string

const (
	RoleProctor     Role = "proctor"
	RoleParticipant Role = "participant"
	// Self-test roles: the producer publishes like a participant, the
	// consumer watches like a proctor.
	RoleProducer Role = "producer"
	RoleConsumer Role = "consumer"
)

func (r Role) Valid() bool {
	switch r {
	case RoleProctor, RoleParticipant, RoleProducer, RoleConsumer:
		return true
	}
	return false
}

// publishes reports whether the role sends media.
func (r Role) publishes() bool {
	return r == RoleParticipant || r == RoleProducer
}

// AccessGrant is the permission set for one identity in one room. It is
// immutable once built; use NewAccessGrant.
type AccessGrant struct {
	Identity     string
	Room         string
	Role         Role
	CanPublish   bool
	CanSubscribe bool
	Hidden       bool
	Metadata     string
}

// NewAccessGrant builds the grant for role. Publishing roles carry the
// identity as metadata so viewers can label the tile.
func NewAccessGrant(identity, room string, role Role) (AccessGrant, error) {
	if !role.Valid() {
		return AccessGrant{}, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	if err := validation.ValidateIdentity(identity); err != nil {
		return AccessGrant{}, fmt.Errorf("%w: %v", ErrInvalidGrant, err)
	}
	if err := validation.ValidateRoomName(room); err != nil {
		return AccessGrant{}, fmt.Errorf("%w: %v", ErrInvalidGrant, err)
	}

	g := AccessGrant{
		Identity: identity,
		Room:     room,
		Role:     role,
	}
	if role.publishes() {
		g.CanPublish = true
		g.Metadata = identity
	} else {
		g.CanSubscribe = true
		g.Hidden = true
	}
	return g, nil
}

// Validate checks the role/permission table. Grants decoded from a
// credential are checked with it before they are trusted.
func (g AccessGrant) Validate() error {
	if !g.Role.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownRole, g.Role)
	}
	if g.Identity == "" || g.Room == "" {
		return fmt.Errorf("%w: identity and room are required", ErrInvalidGrant)
	}
	if g.Role.publishes() {
		if !g.CanPublish || g.CanSubscribe || g.Hidden {
			return fmt.Errorf("%w: %s must publish only and be visible", ErrInvalidGrant, g.Role)
		}
		return nil
	}
	if g.CanPublish || !g.CanSubscribe || !g.Hidden {
		return fmt.Errorf("%w: %s must subscribe only and be hidden", ErrInvalidGrant, g.Role)
	}
	return nil
}

// Credential is a signed, opaque token carrying one AccessGrant.
type Credential string

// SelfTestCredentials is the producer/consumer pair for one self-test run.
type SelfTestCredentials struct {
	Producer Credential `json:"producer"`
	Consumer Credential `json:"consumer"`
}

// SelfTestRoom returns the room used by name's self-test.
func SelfTestRoom(name string) string {
	return "e2e_" + name
}
