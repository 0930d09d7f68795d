// Package users implements registration: a user row and its user.created
// outbox envelope written in one transaction.
package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/nikitakapustkin/bankevents/libs/events"
)

// ErrLoginTaken reports a registration against an existing login.
var ErrLoginTaken = errors.New("login already taken")

// ErrInvalidRequest reports missing or malformed registration input.
var ErrInvalidRequest = errors.New("invalid registration request")

const producerName = "security-service"

type RegisterRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Age      *int   `json:"age"`
}

type User struct {
	ID           uuid.UUID
	Login        string
	Name         string
	Age          *int
	PasswordHash string
	CreatedAt    time.Time
}

// Repository persists a user together with its announcement event. The two
// writes share a transaction inside CreateUserWithEvent; a duplicate login
// surfaces as ErrLoginTaken.
type Repository interface {
	CreateUserWithEvent(ctx context.Context, u User, envelope []byte, eventID uuid.UUID) error
}

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// Register creates the user and queues its user.created event. The event id
// doubles as the correlation id, so every downstream event caused by this
// registration can be traced back to it.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (User, error) {
	req.Login = strings.TrimSpace(req.Login)
	if req.Login == "" || len(req.Password) < 8 {
		return User{}, fmt.Errorf("%w: login and a password of at least 8 characters are required", ErrInvalidRequest)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	u := User{
		ID:           uuid.New(),
		Login:        req.Login,
		Name:         req.Name,
		Age:          req.Age,
		PasswordHash: string(hash),
		CreatedAt:    now,
	}

	payload, err := events.Envelope{
		EventID:       u.ID,
		EventType:     events.TypeUserCreated,
		OccurredAt:    now,
		CorrelationID: &u.ID,
		Producer:      producerName,
		Payload:       userCreatedPayload(u),
	}.Encode()
	if err != nil {
		return User{}, err
	}

	if err := s.repo.CreateUserWithEvent(ctx, u, payload, u.ID); err != nil {
		if errors.Is(err, ErrLoginTaken) {
			return User{}, ErrLoginTaken
		}
		return User{}, fmt.Errorf("register %s: %w", req.Login, err)
	}
	return u, nil
}

func userCreatedPayload(u User) []byte {
	p := events.UserCreatedPayload{
		UserID:      u.ID,
		Login:       u.Login,
		Name:        u.Name,
		Age:         u.Age,
		Description: "User created: " + u.Login,
	}
	data, _ := json.Marshal(p)
	return data
}
