package services

import (
	"errors"
	"fmt"
	"time"

	"livegrid/internal/core/domain"
	"livegrid/internal/core/ports"

	"github.com/golang-jwt/jwt/v5"
)

// VideoGrant is the "video" claim understood by the media server.
// canPublish/canSubscribe are pointers so an explicit false is encoded.
type VideoGrant struct {
	RoomJoin     bool   `json:"roomJoin,omitempty"`
	Room         string `json:"room,omitempty"`
	RoomList     bool   `json:"roomList,omitempty"`
	RoomCreate   bool   `json:"roomCreate,omitempty"`
	CanPublish   *bool  `json:"canPublish,omitempty"`
	CanSubscribe *bool  `json:"canSubscribe,omitempty"`
	Hidden       bool   `json:"hidden,omitempty"`
}

type Claims struct {
	Name     string      `json:"name,omitempty"`
	Metadata string      `json:"metadata,omitempty"`
	Role     domain.Role `json:"role,omitempty"`
	Video    *VideoGrant `json:"video,omitempty"`
	jwt.RegisteredClaims
}

type CredentialService struct {
	apiKey          string
	apiSecret       []byte
	tokenTTL        time.Duration
	serviceTokenTTL time.Duration
	now             func() time.Time
}

var _ ports.CredentialIssuer = (*CredentialService)(nil)

func NewCredentialService(apiKey, apiSecret string, tokenTTL, serviceTokenTTL time.Duration) *CredentialService {
	return &CredentialService{
		apiKey:          apiKey,
		apiSecret:       []byte(apiSecret),
		tokenTTL:        tokenTTL,
		serviceTokenTTL: serviceTokenTTL,
		now:             time.Now,
	}
}

// Issue signs a room-join credential for identity in room.
func (s *CredentialService) Issue(identity, room string, role domain.Role) (domain.Credential, error) {
	grant, err := domain.NewAccessGrant(identity, room, role)
	if err != nil {
		return "", err
	}
	return s.sign(grant)
}

// IssueSelfTestPair signs the producer and consumer credentials for name's
// self-test room.
func (s *CredentialService) IssueSelfTestPair(name string) (domain.SelfTestCredentials, error) {
	room := domain.SelfTestRoom(name)

	producer, err := s.Issue(name+"_producer", room, domain.RoleProducer)
	if err != nil {
		return domain.SelfTestCredentials{}, fmt.Errorf("producer credential: %w", err)
	}
	consumer, err := s.Issue(name+"_consumer", room, domain.RoleConsumer)
	if err != nil {
		return domain.SelfTestCredentials{}, fmt.Errorf("consumer credential: %w", err)
	}

	return domain.SelfTestCredentials{Producer: producer, Consumer: consumer}, nil
}

// IssueServiceToken signs a short-lived admin token for the room service API.
func (s *CredentialService) IssueServiceToken(grant VideoGrant) (string, error) {
	now := s.now()
	claims := &Claims{
		Video: &grant,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.apiKey,
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.serviceTokenTTL)),
		},
	}
	return s.signClaims(claims)
}

func (s *CredentialService) sign(grant domain.AccessGrant) (domain.Credential, error) {
	if err := grant.Validate(); err != nil {
		return "", err
	}

	now := s.now()
	claims := &Claims{
		Name:     grant.Identity,
		Metadata: grant.Metadata,
		Role:     grant.Role,
		Video: &VideoGrant{
			RoomJoin:     true,
			Room:         grant.Room,
			CanPublish:   boolPtr(grant.CanPublish),
			CanSubscribe: boolPtr(grant.CanSubscribe),
			Hidden:       grant.Hidden,
		},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.apiKey,
			Subject:   grant.Identity,
			ID:        grant.Identity,
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	token, err := s.signClaims(claims)
	if err != nil {
		return "", err
	}
	return domain.Credential(token), nil
}

func (s *CredentialService) signClaims(claims *Claims) (string, error) {
	if len(s.apiSecret) == 0 {
		return "", errors.New("sign credential: api secret is empty")
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.apiSecret)
	if err != nil {
		return "", fmt.Errorf("sign credential: %w", err)
	}
	return token, nil
}

// DecodeGrant verifies a credential issued by this service and returns the
// grant it carries.
func (s *CredentialService) DecodeGrant(credential domain.Credential) (domain.AccessGrant, error) {
	return DecodeGrant(credential, s.apiKey, s.apiSecret, s.now)
}

// DecodeGrant verifies credential against apiKey/apiSecret and rebuilds its
// AccessGrant. The grant must satisfy the role table.
func DecodeGrant(credential domain.Credential, apiKey string, apiSecret []byte, now func() time.Time) (domain.AccessGrant, error) {
	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(apiKey),
		jwt.WithTimeFunc(now),
	)
	_, err := parser.ParseWithClaims(string(credential), claims, func(*jwt.Token) (interface{}, error) {
		return apiSecret, nil
	})
	if err != nil {
		return domain.AccessGrant{}, fmt.Errorf("%w: %v", domain.ErrInvalidCredential, err)
	}
	if claims.Video == nil || !claims.Video.RoomJoin {
		return domain.AccessGrant{}, fmt.Errorf("%w: no room join grant", domain.ErrInvalidCredential)
	}

	grant := domain.AccessGrant{
		Identity:     claims.Subject,
		Room:         claims.Video.Room,
		Role:         claims.Role,
		CanPublish:   deref(claims.Video.CanPublish),
		CanSubscribe: deref(claims.Video.CanSubscribe),
		Hidden:       claims.Video.Hidden,
		Metadata:     claims.Metadata,
	}
	if err := grant.Validate(); err != nil {
		return domain.AccessGrant{}, fmt.Errorf("%w: %v", domain.ErrInvalidCredential, err)
	}
	return grant, nil
}

func boolPtr(b bool) *bool { return &b }

func deref(b *bool) bool { return b != nil && *b }
