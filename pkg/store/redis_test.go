package store

import (
	"context"
	"testing"
	"time"

	"github.com/absmach/fedtree/job"
	pkgerrors "github.com/absmach/fedtree/pkg/errors"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T, ttl time.Duration) (Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedis(client, "", ttl), mr
}

func TestRedisStoreExactlyOnce(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t, 0)
	key := Key{JobID: "job-1", Role: job.RoleServer}

	require.NoError(t, s.SaveResult(ctx, key, []byte(`{"returncode":0}`)))
	assert.True(t, mr.Exists("unifed:task:job-1:server"))

	err := s.SaveError(ctx, key, NewErrorRecord(pkgerrors.ErrChannel))
	assert.ErrorIs(t, err, pkgerrors.ErrAlreadyStored)

	rec, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, rec.Status)
	assert.JSONEq(t, `{"returncode":0}`, string(rec.Result))
	assert.Nil(t, rec.Error)
	assert.Equal(t, key, rec.Key)
}

func TestRedisStoreError(t *testing.T) {
	ctx := context.Background()
	s, _ := newRedisStore(t, 0)
	key := Key{JobID: "job-2", Role: job.RoleClient}

	require.NoError(t, s.SaveError(ctx, key, NewErrorRecord(pkgerrors.ErrUnknownDataset)))

	rec, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, rec.Status)
	require.NotNil(t, rec.Error)
	assert.Equal(t, "UnknownDatasetError", rec.Error.Kind)
	assert.NotEmpty(t, rec.Error.ID)
}

func TestRedisStoreLogAndTTL(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t, time.Minute)
	key := Key{JobID: "job-3", Role: job.RoleServer}

	require.NoError(t, s.SaveLog(ctx, key, "line\n"))

	got, err := s.GetLog(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "line\n", got)
	assert.Equal(t, time.Minute, mr.TTL("unifed:task:job-3:server:log"))

	mr.FastForward(2 * time.Minute)
	_, err = s.GetLog(ctx, key)
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestRedisStoreMissing(t *testing.T) {
	s, _ := newRedisStore(t, 0)

	_, err := s.Get(context.Background(), Key{JobID: "nope", Role: job.RoleClient})
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}
