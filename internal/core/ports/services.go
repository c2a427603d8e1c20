package ports

import (
	"context"

	"livegrid/internal/core/domain"
)

type CredentialIssuer interface {
	Issue(identity, room string, role domain.Role) (domain.Credential, error)
	IssueSelfTestPair(name string) (domain.SelfTestCredentials, error)
}

// RoomService is the upstream room-management API. Rooms and options pass
// through as raw JSON.
type RoomService interface {
	ListRooms(ctx context.Context) ([]domain.Room, error)
	CreateRoom(ctx context.Context, opts domain.RoomOptions) (domain.Room, error)
}

type SSOService interface {
	LoginForm() domain.SSOLoginForm
	HandleCallback(ctx context.Context, cb domain.SSOCallback) (redirectURL string, err error)
}

type ResultService interface {
	Record(ctx context.Context, record domain.TestResultRecord) (*domain.TestResultRecord, error)
	Get(ctx context.Context, id domain.RecordID) (*domain.TestResultRecord, error)
	List(ctx context.Context, limit int) ([]*domain.TestResultRecord, error)
}
