package campaign

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ProgressStore persists campaign run state. Save is conditional on the
// revision it read, so concurrent writers cannot interleave updates.
type ProgressStore interface {
	// Get returns nil when no run exists for the campaign.
	Get(ctx context.Context, campaignID string) (*Progress, error)
	// Save persists the progress if its Revision still matches the
	// stored one, then increments it. ErrProgressConflict otherwise.
	Save(ctx context.Context, p *Progress) error
	Delete(ctx context.Context, campaignID string) error
}

// MemoryProgressStore keeps run state in a process-local map.
type MemoryProgressStore struct {
	mu   sync.Mutex
	runs map[string]*Progress
}

func NewMemoryProgressStore() *MemoryProgressStore {
	return &MemoryProgressStore{runs: make(map[string]*Progress)}
}

func (s *MemoryProgressStore) Get(_ context.Context, campaignID string) (*Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.runs[campaignID]
	if !ok {
		return nil, nil
	}
	return cloneProgress(p), nil
}

func (s *MemoryProgressStore) Save(_ context.Context, p *Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.runs[p.CampaignID]
	if ok && current.Revision != p.Revision {
		return ErrProgressConflict
	}
	saved := cloneProgress(p)
	saved.Revision = p.Revision + 1
	s.runs[p.CampaignID] = saved
	p.Revision = saved.Revision
	return nil
}

func (s *MemoryProgressStore) Delete(_ context.Context, campaignID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, campaignID)
	return nil
}

func cloneProgress(in *Progress) *Progress {
	data, err := json.Marshal(in)
	if err != nil {
		out := *in
		return &out
	}
	var out Progress
	if err := json.Unmarshal(data, &out); err != nil {
		cp := *in
		return &cp
	}
	return &out
}

const (
	progressKeyPrefix = "campaign:progress:"
	progressTTL       = 7 * 24 * time.Hour
)

// progressSaveScript performs the revision-checked save in one atomic step
// on the Redis side, so no WATCH/MULTI round trips are needed.
var progressSaveScript = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if current then
  local decoded = cjson.decode(current)
  if tostring(decoded.revision) ~= ARGV[2] then
    return 0
  end
end
redis.call("SET", KEYS[1], ARGV[1], "EX", ARGV[3])
return 1
`)

// RedisProgressStore persists run state in Redis so any API instance can
// serve a chain continuation.
type RedisProgressStore struct {
	rdb *redis.Client
}

func NewRedisProgressStore(rdb *redis.Client) *RedisProgressStore {
	return &RedisProgressStore{rdb: rdb}
}

func progressKey(campaignID string) string {
	return progressKeyPrefix + campaignID
}

func (s *RedisProgressStore) Get(ctx context.Context, campaignID string) (*Progress, error) {
	data, err := s.rdb.Get(ctx, progressKey(campaignID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("campaign progress: get: %w", err)
	}
	var p Progress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("campaign progress: unmarshal: %w", err)
	}
	return &p, nil
}

func (s *RedisProgressStore) Save(ctx context.Context, p *Progress) error {
	if p == nil || p.CampaignID == "" {
		return fmt.Errorf("campaign progress: campaign_id required")
	}
	expected := p.Revision
	p.Revision = expected + 1
	data, err := json.Marshal(p)
	if err != nil {
		p.Revision = expected
		return fmt.Errorf("campaign progress: marshal: %w", err)
	}
	ok, err := progressSaveScript.Run(ctx, s.rdb,
		[]string{progressKey(p.CampaignID)},
		string(data),
		fmt.Sprintf("%d", expected),
		int(progressTTL.Seconds()),
	).Int()
	if err != nil {
		p.Revision = expected
		return fmt.Errorf("campaign progress: save: %w", err)
	}
	if ok != 1 {
		p.Revision = expected
		return ErrProgressConflict
	}
	return nil
}

func (s *RedisProgressStore) Delete(ctx context.Context, campaignID string) error {
	return s.rdb.Del(ctx, progressKey(campaignID)).Err()
}
