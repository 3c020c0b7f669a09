package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/blog-service/internal/domain"
)

var at = time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)

func TestInMemoryDispatcherContinuesAfterHandlerError(t *testing.T) {
	d := NewInMemoryDispatcher(nil)
	var seen []string
	d.Subscribe(EventRoleChanged, func(context.Context, Event) error {
		seen = append(seen, "first")
		return errors.New("smtp down")
	})
	d.Subscribe(EventRoleChanged, func(context.Context, Event) error {
		seen = append(seen, "second")
		return nil
	})
	d.Subscribe(EventEmailVerified, func(context.Context, Event) error {
		seen = append(seen, "other")
		return nil
	})

	err := d.Publish(context.Background(), RoleChanged(domain.RoleChange{
		Username: "bob", Email: "b@x.com", OldRole: domain.RoleReader, NewRole: domain.RoleAuthor,
		Actor: "root", Reason: "good posts", ChangedAt: at,
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, seen)
}

func TestRedisQueueRoundTrip(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	q := NewRedisQueue(client, "test:notifications")
	token := domain.CredentialToken{Value: "tok", ExpiresAt: at.Add(time.Hour)}

	require.NoError(t, q.Publish(ctx, PasswordResetIssued("a@x.com", "alice", token, at)))
	require.NoError(t, q.Publish(ctx, RoleChanged(domain.RoleChange{
		Username: "alice", Email: "a@x.com", OldRole: domain.RoleReader, NewRole: domain.RoleEditor,
		Actor: "root", Reason: "moderation", ChangedAt: at,
	})))

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	first, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, EventPasswordResetIssued, first.Type)
	assert.Equal(t, "tok", first.Token)
	require.NotNil(t, first.ExpiresAt)
	assert.True(t, first.ExpiresAt.Equal(at.Add(time.Hour)))

	second, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, EventRoleChanged, second.Type)
	assert.Equal(t, domain.RoleReader, second.OldRole)
	assert.Equal(t, domain.RoleEditor, second.NewRole)
	assert.Equal(t, "moderation", second.Reason)
}

func TestRedisQueueRejectsUndecodablePayload(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	_, err := srv.Lpush("q", "{not json")
	require.NoError(t, err)

	_, err = NewRedisQueue(client, "q").Pop(context.Background(), time.Second)
	assert.Error(t, err)
}
