package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLockerSerialisesSameKey(t *testing.T) {
	locker := NewLocalLocker()
	release, err := locker.Obtain(context.Background(), "bills:usr_a", time.Second)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Obtain(ctx, "bills:usr_a", time.Second)
	assert.ErrorIs(t, err, ErrBusy)

	other, err := locker.Obtain(context.Background(), "bills:usr_b", time.Second)
	require.NoError(t, err)
	other()

	release()
	release()
	again, err := locker.Obtain(context.Background(), "bills:usr_a", time.Second)
	require.NoError(t, err)
	again()
}

func TestLocalLockerForgetsReleasedKeys(t *testing.T) {
	locker := NewLocalLocker()
	release, err := locker.Obtain(context.Background(), "bills:usr_a", time.Second)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = locker.Obtain(ctx, "bills:usr_a", time.Second)
	require.ErrorIs(t, err, ErrBusy)

	locker.mu.Lock()
	assert.Len(t, locker.keys, 1)
	locker.mu.Unlock()

	release()

	locker.mu.Lock()
	assert.Empty(t, locker.keys)
	locker.mu.Unlock()
}
