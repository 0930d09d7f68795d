package users

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nikitakapustkin/bankevents/libs/events"
)

type fakeRepo struct {
	users     []User
	envelopes [][]byte
	eventIDs  []uuid.UUID
	err       error
}

func (r *fakeRepo) CreateUserWithEvent(_ context.Context, u User, envelope []byte, eventID uuid.UUID) error {
	if r.err != nil {
		return r.err
	}
	r.users = append(r.users, u)
	r.envelopes = append(r.envelopes, envelope)
	r.eventIDs = append(r.eventIDs, eventID)
	return nil
}

func TestRegister_CreatesUserAndEvent(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo)
	now := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	u, err := svc.Register(context.Background(), RegisterRequest{
		Login:    "alice",
		Password: "correct horse",
		Name:     "Alice",
	})
	require.NoError(t, err)
	require.Len(t, repo.users, 1)

	stored := repo.users[0]
	assert.Equal(t, u.ID, stored.ID)
	assert.Equal(t, "alice", stored.Login)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("correct horse")))
	assert.Error(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("wrong")))

	env, err := events.DecodeEnvelope(repo.envelopes[0])
	require.NoError(t, err)
	assert.Equal(t, u.ID, env.EventID, "event id is the user id")
	require.NotNil(t, env.CorrelationID)
	assert.Equal(t, u.ID, *env.CorrelationID, "correlation id is the user id")
	assert.Equal(t, events.TypeUserCreated, env.EventType)
	assert.Equal(t, "security-service", env.Producer)
	assert.True(t, env.OccurredAt.Equal(now))

	var p events.UserCreatedPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, u.ID, p.UserID)
	assert.Equal(t, "alice", p.Login)
	assert.Equal(t, "User created: alice", p.Description)
}

func TestRegister_RejectsWeakInput(t *testing.T) {
	svc := NewService(&fakeRepo{})

	_, err := svc.Register(context.Background(), RegisterRequest{Login: "", Password: "longenough"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.Register(context.Background(), RegisterRequest{Login: "bob", Password: "short"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestRegister_TrimsLogin(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo)

	u, err := svc.Register(context.Background(), RegisterRequest{Login: "  carol  ", Password: "password1"})
	require.NoError(t, err)
	assert.Equal(t, "carol", u.Login)
}

func TestRegister_DuplicateLogin(t *testing.T) {
	svc := NewService(&fakeRepo{err: ErrLoginTaken})

	_, err := svc.Register(context.Background(), RegisterRequest{Login: "alice", Password: "password1"})
	assert.ErrorIs(t, err, ErrLoginTaken)
}
