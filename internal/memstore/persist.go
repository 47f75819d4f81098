package memstore

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/redis/go-redis/v9"
)

// FilePersister keeps the snapshot as a JSON file. Writes go to a temporary
// file first and are renamed into place. The version check and the rename
// happen under an flock on Path+".lock", so writers in other processes are
// serialized too.
type FilePersister struct {
	Path string
}

const lockRetryDelay = 10 * time.Millisecond

func (p *FilePersister) lock(ctx context.Context) (*flock.Flock, error) {
	fl := flock.New(p.Path + ".lock")
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, errors.New("memstore: snapshot lock not acquired")
	}
	return fl, nil
}

func (p *FilePersister) Load(ctx context.Context) (*Snapshot, error) {
	b, err := os.ReadFile(p.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	snap := &Snapshot{}
	if err := json.Unmarshal(b, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func (p *FilePersister) Save(ctx context.Context, snap *Snapshot, expected int64) error {
	fl, err := p.lock(ctx)
	if err != nil {
		return err
	}
	defer fl.Unlock()

	cur, err := p.Load(ctx)
	if err != nil {
		return err
	}
	if storedVersion(cur) != expected {
		return ErrSnapshotConflict
	}

	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(p.Path), filepath.Base(p.Path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p.Path)
}

// RedisPersister keeps the snapshot under a single redis key and uses WATCH
// to detect concurrent writers.
type RedisPersister struct {
	rdb     *redis.Client
	key     string
	timeout time.Duration
}

func NewRedisPersister(rdb *redis.Client, key string, timeout time.Duration) *RedisPersister {
	if key == "" {
		key = DefaultKey
	}
	return &RedisPersister{rdb: rdb, key: key, timeout: timeout}
}

func decodeSnapshot(raw string) (*Snapshot, error) {
	snap := &Snapshot{}
	if err := json.Unmarshal([]byte(raw), snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func (p *RedisPersister) Load(ctx context.Context) (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	raw, err := p.rdb.Get(ctx, p.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return decodeSnapshot(raw)
}

func (p *RedisPersister) Save(ctx context.Context, snap *Snapshot, expected int64) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err = p.rdb.Watch(ctx, func(tx *redis.Tx) error {
		var cur *Snapshot
		raw, err := tx.Get(ctx, p.key).Result()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			if cur, err = decodeSnapshot(raw); err != nil {
				return err
			}
		}
		if storedVersion(cur) != expected {
			return ErrSnapshotConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, p.key, b, 0)
			return nil
		})
		return err
	}, p.key)

	if errors.Is(err, redis.TxFailedErr) {
		return ErrSnapshotConflict
	}
	return err
}

func storedVersion(snap *Snapshot) int64 {
	if snap == nil {
		return 0
	}
	return snap.Version
}
