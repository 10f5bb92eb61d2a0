package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/btraven00/linkmedic/internal/artifacts"
	"github.com/btraven00/linkmedic/internal/model"
)

// ErrLocked means another monitor owns the health store.
var ErrLocked = errors.New("health store is locked by another monitor")

// Store persists health records between passes and runs.
type Store interface {
	Load(ctx context.Context) (map[string]*model.LinkHealthRecord, error)
	Save(ctx context.Context, records map[string]*model.LinkHealthRecord) error
	Close() error
}

// FileStore keeps the records in one JSON file. A lock file next to it
// keeps a second monitor out for as long as the store is open.
type FileStore struct {
	files *artifacts.Store
	name  string
	lock  string
}

// OpenFileStore takes the lock for path and returns the store.
func OpenFileStore(path string) (*FileStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	lock := path + ".lock"
	err := createLock(lock)
	if errors.Is(err, fs.ErrExist) && staleLock(lock) {
		// the owner died without releasing it
		if rerr := os.Remove(lock); rerr == nil || errors.Is(rerr, fs.ErrNotExist) {
			err = createLock(lock)
		}
	}
	if errors.Is(err, fs.ErrExist) {
		return nil, fmt.Errorf("%w: remove %s if no monitor is running", ErrLocked, lock)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock health store: %w", err)
	}

	return &FileStore{
		files: artifacts.NewStore(dir),
		name:  filepath.Base(path),
		lock:  lock,
	}, nil
}

// createLock creates lock exclusively and writes the current pid into it.
func createLock(lock string) error {
	f, err := os.OpenFile(lock, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}

	_, werr := f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		os.Remove(lock)
		return werr
	}

	return nil
}

// staleLock reports whether lock names a process that no longer exists. A
// lock that cannot be read or parsed is treated as held.
func staleLock(lock string) bool {
	data, err := os.ReadFile(lock)
	if err != nil {
		return false
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return false
	}

	return !processAlive(pid)
}

func processAlive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	err = p.Signal(syscall.Signal(0))

	return err == nil || !errors.Is(err, os.ErrProcessDone)
}

// Load reads every record. A missing file is an empty store.
func (s *FileStore) Load(_ context.Context) (map[string]*model.LinkHealthRecord, error) {
	var list []*model.LinkHealthRecord
	if _, err := s.files.Load(s.name, &list); err != nil {
		return nil, err
	}

	records := make(map[string]*model.LinkHealthRecord, len(list))
	for _, r := range list {
		records[r.URL] = r
	}

	return records, nil
}

// Save replaces the file with records, sorted by url.
func (s *FileStore) Save(_ context.Context, records map[string]*model.LinkHealthRecord) error {
	list := make([]*model.LinkHealthRecord, 0, len(records))
	for _, r := range records {
		list = append(list, r)
	}
	slices.SortFunc(list, func(a, b *model.LinkHealthRecord) int {
		switch {
		case a.URL < b.URL:
			return -1
		case a.URL > b.URL:
			return 1
		}
		return 0
	})

	return s.files.Save(s.name, list)
}

// Close releases the lock.
func (s *FileStore) Close() error {
	err := os.Remove(s.lock)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return err
}

// lockTTL bounds how long a crashed monitor keeps a Redis store locked.
const lockTTL = 2 * time.Hour

// RedisStore keeps the records in one Redis hash, field per url.
type RedisStore struct {
	client *redis.Client
	key    string
	token  string
}

// OpenRedisStore connects to addr and takes the store lock for key.
func OpenRedisStore(ctx context.Context, addr, key string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", addr, err)
	}

	s := &RedisStore{client: client, key: key, token: uuid.NewString()}
	ok, err := client.SetNX(ctx, s.lockKey(), s.token, lockTTL).Result()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to lock health store: %w", err)
	}
	if !ok {
		client.Close()
		return nil, fmt.Errorf("%w: redis key %s", ErrLocked, s.lockKey())
	}

	return s, nil
}

func (s *RedisStore) lockKey() string {
	return s.key + ":lock"
}

// Load reads every record of the hash.
func (s *RedisStore) Load(ctx context.Context) (map[string]*model.LinkHealthRecord, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read health records: %w", err)
	}

	records := make(map[string]*model.LinkHealthRecord, len(fields))
	for field, raw := range fields {
		var r model.LinkHealthRecord
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, fmt.Errorf("failed to parse health record for %s: %w", field, err)
		}
		records[field] = &r
	}

	return records, nil
}

// Save writes every record and extends the lock.
func (s *RedisStore) Save(ctx context.Context, records map[string]*model.LinkHealthRecord) error {
	if len(records) > 0 {
		values := make(map[string]any, len(records))
		for u, r := range records {
			data, err := json.Marshal(r)
			if err != nil {
				return err
			}
			values[u] = data
		}
		if err := s.client.HSet(ctx, s.key, values).Err(); err != nil {
			return fmt.Errorf("failed to write health records: %w", err)
		}
	}

	return s.client.Expire(ctx, s.lockKey(), lockTTL).Err()
}

// Close drops the lock if this store still owns it and disconnects.
func (s *RedisStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	owner, err := s.client.Get(ctx, s.lockKey()).Result()
	if err == nil && owner == s.token {
		err = s.client.Del(ctx, s.lockKey()).Err()
	} else if errors.Is(err, redis.Nil) {
		err = nil
	}

	if cerr := s.client.Close(); err == nil {
		err = cerr
	}

	return err
}
