package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestLocal(t *testing.T) {
	ctx := context.Background()
	l := NewLocal()

	ok, err := l.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = l.TryLock(ctx)
	assert.False(t, ok, "second acquire must fail while held")

	require.NoError(t, l.Unlock(ctx))
	ok, _ = l.TryLock(ctx)
	assert.True(t, ok)
}

type MockRedis struct {
	mock.Mock
}

func (m *MockRedis) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	args := m.Called(key, value, expiration)
	return redis.NewBoolResult(args.Bool(0), args.Error(1))
}

func (m *MockRedis) Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	called := m.Called(keys, args)
	return redis.NewCmdResult(called.Get(0), called.Error(1))
}

func TestRedis_AcquireAndRelease(t *testing.T) {
	ctx := context.Background()
	client := &MockRedis{}
	var token any
	client.On("SetNX", "wolfcreek:cycle", mock.AnythingOfType("string"), 45*time.Minute).
		Run(func(args mock.Arguments) { token = args.Get(1) }).
		Return(true, nil).Once()
	client.On("Eval", []string{"wolfcreek:cycle"}, mock.Anything).
		Run(func(args mock.Arguments) {
			assert.Equal(t, []any{token}, args.Get(1), "release must present the acquire token")
		}).
		Return(int64(1), nil).Once()

	l := NewRedis(client, "wolfcreek:cycle", 45*time.Minute)
	ok, err := l.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "a held lock is not re-acquired")

	require.NoError(t, l.Unlock(ctx))
	client.AssertExpectations(t)
}

func TestRedis_HeldElsewhere(t *testing.T) {
	client := &MockRedis{}
	client.On("SetNX", "k", mock.Anything, time.Minute).Return(false, nil)

	l := NewRedis(client, "k", time.Minute)
	ok, err := l.TryLock(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, l.Unlock(context.Background()), ErrNotHeld)
}

func TestRedis_Errors(t *testing.T) {
	ctx := context.Background()
	client := &MockRedis{}
	client.On("SetNX", "k", mock.Anything, time.Minute).Return(false, errors.New("connection refused")).Once()
	client.On("SetNX", "k", mock.Anything, time.Minute).Return(true, nil).Once()
	client.On("Eval", []string{"k"}, mock.Anything).Return(int64(0), nil).Once()

	l := NewRedis(client, "k", time.Minute)
	_, err := l.TryLock(ctx)
	assert.ErrorContains(t, err, "connection refused")

	ok, err := l.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.ErrorIs(t, l.Unlock(ctx), ErrNotHeld, "an expired lock reports it was lost")
}
