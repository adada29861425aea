package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voidshard/galleryimport/pkg/errors"
	"github.com/voidshard/galleryimport/pkg/structs"
)

// Redis is a Database implementation backed by redis.
//
// Jobs are JSON strings updated with WATCH / MULTI so read-modify-write
// cycles are atomic. The registry is a single hash, notifications are keys
// with a TTL plus a per owner index set.
type Redis struct {
	opts   *Options
	client redis.UniversalClient
}

// NewRedis connects to redis with the given options.
func NewRedis(opts *Options) (*Redis, error) {
	opts.setDefaults()
	ropts, err := redis.ParseURL(opts.url())
	if err != nil {
		return nil, err
	}
	if opts.TLSConfig != nil {
		ropts.TLSConfig = opts.TLSConfig
	}
	return &Redis{opts: opts, client: redis.NewClient(ropts)}, nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client redis.UniversalClient, opts *Options) *Redis {
	if opts == nil {
		opts = &Options{}
	}
	opts.setDefaults()
	return &Redis{opts: opts, client: client}
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) InsertJob(ctx context.Context, j *structs.Job) error {
	data, err := json.Marshal(j)
	if err != nil {
		return err
	}
	ok, err := r.client.SetNX(ctx, r.jobKey(j.Kind, j.ID), data, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("job %s exists: %w", j.ID, errors.ErrInvalidState)
	}
	return nil
}

func (r *Redis) Job(ctx context.Context, kind, id string) (*structs.Job, error) {
	raw, err := r.client.Get(ctx, r.jobKey(kind, id)).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("job %s: %w", id, errors.ErrNotFound)
	} else if err != nil {
		return nil, err
	}
	j := &structs.Job{}
	return j, json.Unmarshal(raw, j)
}

func (r *Redis) UpdateJob(ctx context.Context, kind, id string, fn func(j *structs.Job) error) (*structs.Job, error) {
	key := r.jobKey(kind, id)

	var result *structs.Job
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return fmt.Errorf("job %s: %w", id, errors.ErrNotFound)
		} else if err != nil {
			return err
		}

		j := &structs.Job{}
		err = json.Unmarshal(raw, j)
		if err != nil {
			return err
		}
		result = j.Copy()

		err = fn(j)
		if err != nil {
			return err
		}

		data, err := json.Marshal(j)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err == nil {
			result = j
		}
		return err
	}

	for i := 0; i < r.opts.MaxRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if err == redis.TxFailedErr {
			continue // someone else wrote in between, go again
		}
		return result, err
	}
	return nil, fmt.Errorf("updating job %s: gave up after %d attempts", id, r.opts.MaxRetries)
}

func (r *Redis) DeleteJob(ctx context.Context, kind, id string) error {
	return r.client.Del(ctx, r.jobKey(kind, id)).Err()
}

func (r *Redis) Register(ctx context.Context, e *structs.RegistryEntry, max int) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	err = r.client.HSet(ctx, r.registryKey(), e.JobID, data).Err()
	if err != nil {
		return err
	}
	if max <= 0 {
		return nil
	}

	count, err := r.client.HLen(ctx, r.registryKey()).Result()
	if err != nil || count <= int64(max) {
		return err
	}

	entries, err := r.Entries(ctx)
	if err != nil {
		return err
	}
	_, err = r.Unregister(ctx, oldest(entries, len(entries)-max)...)
	return err
}

func (r *Redis) Touch(ctx context.Context, id string, st structs.Status, at int64) error {
	key := r.registryKey()

	txf := func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, key, id).Bytes()
		if err == redis.Nil {
			return nil // unregistered, don't bring it back
		} else if err != nil {
			return err
		}
		e := &structs.RegistryEntry{}
		err = json.Unmarshal(raw, e)
		if err != nil {
			return err
		}
		e.Status = st
		e.LastSeen = at
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, id, data)
			return nil
		})
		return err
	}

	for i := 0; i < r.opts.MaxRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if err == redis.TxFailedErr {
			continue
		}
		return err
	}
	return fmt.Errorf("touching %s: gave up after %d attempts", id, r.opts.MaxRetries)
}

func (r *Redis) Entries(ctx context.Context) ([]*structs.RegistryEntry, error) {
	all, err := r.client.HGetAll(ctx, r.registryKey()).Result()
	if err != nil {
		return nil, err
	}
	out := []*structs.RegistryEntry{}
	for _, raw := range all {
		e := &structs.RegistryEntry{}
		if json.Unmarshal([]byte(raw), e) != nil {
			continue
		}
		out = append(out, e)
	}
	sortEntries(out)
	return out, nil
}

func (r *Redis) Unregister(ctx context.Context, ids ...string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return r.client.HDel(ctx, r.registryKey(), ids...).Result()
}

func (r *Redis) Deliver(ctx context.Context, n *structs.Notification, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return false, err
	}
	key := r.noticeKey(n.Owner, n.JobID)
	ok, err := r.client.SetNX(ctx, key, data, ttl).Result()
	if err != nil || !ok {
		return false, err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, r.inboxKey(n.Owner), key)
		pipe.Expire(ctx, r.inboxKey(n.Owner), ttl)
		return nil
	})
	return true, err
}

func (r *Redis) Consume(ctx context.Context, owner string) ([]*structs.Notification, error) {
	keys, err := r.client.SMembers(ctx, r.inboxKey(owner)).Result()
	if err != nil {
		return nil, err
	}

	out := []*structs.Notification{}
	for _, key := range keys {
		// GETDEL means only one consumer ever sees a given notification
		raw, err := r.client.GetDel(ctx, key).Bytes()
		if err != nil && err != redis.Nil {
			return out, err
		}
		r.client.SRem(ctx, r.inboxKey(owner), key)
		if err == redis.Nil {
			continue // expired or taken by someone else
		}
		n := &structs.Notification{}
		if json.Unmarshal(raw, n) == nil {
			out = append(out, n)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out, nil
}

func (r *Redis) jobKey(kind, id string) string {
	return fmt.Sprintf("%s:job:%s:%s", r.opts.KeyPrefix, kind, id)
}

func (r *Redis) registryKey() string {
	return fmt.Sprintf("%s:registry", r.opts.KeyPrefix)
}

func (r *Redis) inboxKey(owner string) string {
	return fmt.Sprintf("%s:inbox:%s", r.opts.KeyPrefix, owner)
}

func (r *Redis) noticeKey(owner, jobID string) string {
	return fmt.Sprintf("%s:notice:%s:%s", r.opts.KeyPrefix, owner, jobID)
}
