package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shikigami/pkg/domain/interfaces"
	"github.com/m-mizutani/shikigami/pkg/domain/model/memory"
	"github.com/m-mizutani/shikigami/pkg/domain/types"
	"github.com/m-mizutani/shikigami/pkg/domain/types/apperr"
	"github.com/m-mizutani/shikigami/pkg/utils/errors"
)

// MemoryStore is scoped, scored and expiring recall for agents
type MemoryStore struct {
	repo interfaces.MemoryRepository
	now  func() time.Time
}

var _ interfaces.MemoryContextBuilder = (*MemoryStore)(nil)

// MemoryStoreOption configures MemoryStore
type MemoryStoreOption func(*MemoryStore)

// WithMemoryClock sets the clock used for access and expiry
func WithMemoryClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates a memory store backed by repo
func NewMemoryStore(repo interfaces.MemoryRepository, opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		repo: repo,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upsert writes a record, replacing any record with the same agent, scope and key
func (s *MemoryStore) Upsert(ctx context.Context, req *memory.UpsertRequest) (*memory.Record, error) {
	if req == nil {
		return nil, goerr.New("upsert request is required", goerr.T(apperr.ErrTagValidation))
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	rec := memory.NewRecord(types.NewMemoryID(ctx), req, s.now())
	stored, err := s.repo.UpsertMemory(ctx, rec)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to upsert memory",
			goerr.T(apperr.ErrTagPersistence),
			goerr.TV(apperr.AgentIDKey, req.AgentID), goerr.TV(apperr.MemoryKeyKey, req.Key))
	}
	return stored, nil
}

// Query returns non-expired records ordered by importance and recency. Every
// returned record counts as one access.
func (s *MemoryStore) Query(ctx context.Context, q *memory.Query) ([]*memory.Record, error) {
	if q == nil || q.AgentID == "" {
		return nil, goerr.New("query with agent ID is required", goerr.T(apperr.ErrTagValidation))
	}

	now := s.now()
	records, err := s.repo.QueryMemories(ctx, q, now)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query memories",
			goerr.T(apperr.ErrTagPersistence), goerr.TV(apperr.AgentIDKey, q.AgentID))
	}
	if len(records) == 0 {
		return records, nil
	}

	ids := make([]types.MemoryID, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
		rec.Touch(now)
	}
	if err := s.repo.TouchMemories(ctx, ids, now); err != nil {
		errors.Warn(ctx, goerr.Wrap(err, "failed to record memory access", goerr.T(apperr.ErrTagPersistence)),
			"memory access not recorded", "agent_id", q.AgentID, "count", len(ids))
	}

	return records, nil
}

// Delete removes the record identified by agent, scope and key
func (s *MemoryStore) Delete(ctx context.Context, agentID string, scope memory.Scope, key string) error {
	if err := s.repo.DeleteMemory(ctx, agentID, scope, key); err != nil {
		return goerr.Wrap(err, "failed to delete memory",
			goerr.TV(apperr.AgentIDKey, agentID), goerr.TV(apperr.MemoryKeyKey, key))
	}
	return nil
}

// ClearAll removes every record of agentID, or only those in scope when given
func (s *MemoryStore) ClearAll(ctx context.Context, agentID string, scope *memory.Scope) (int, error) {
	n, err := s.repo.DeleteMemories(ctx, agentID, scope)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to clear memories", goerr.TV(apperr.AgentIDKey, agentID))
	}
	ctxlog.From(ctx).Info("memories cleared", "agent_id", agentID, "scope", scope, "deleted", n)
	return n, nil
}

// Consolidate evicts the least important, least recently accessed records of
// one type until exactly maxRecords remain
func (s *MemoryStore) Consolidate(ctx context.Context, agentID, memoryType string, maxRecords int) (int, error) {
	if maxRecords < 0 {
		return 0, goerr.New("maxRecords must be non-negative",
			goerr.T(apperr.ErrTagValidation), goerr.V("max_records", maxRecords))
	}

	n, err := s.repo.ConsolidateMemories(ctx, agentID, memoryType, maxRecords)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to consolidate memories",
			goerr.TV(apperr.AgentIDKey, agentID), goerr.V("memory_type", memoryType))
	}
	if n > 0 {
		ctxlog.From(ctx).Info("memories consolidated",
			"agent_id", agentID, "memory_type", memoryType, "deleted", n)
	}
	return n, nil
}

// Sweep purges every expired record regardless of importance
func (s *MemoryStore) Sweep(ctx context.Context) (int, error) {
	n, err := s.repo.DeleteExpiredMemories(ctx, s.now())
	if err != nil {
		return 0, goerr.Wrap(err, "failed to sweep expired memories")
	}
	if n > 0 {
		ctxlog.From(ctx).Info("expired memories swept", "deleted", n)
	}
	return n, nil
}

// StartSweepWorker runs Sweep every interval until ctx is canceled
func (s *MemoryStore) StartSweepWorker(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.Sweep(ctx); err != nil {
					errors.Warn(ctx, err, "memory sweep failed")
				}
			}
		}
	}()
}

// BuildContext renders recalled memories grouped by type as "key: JSON" lines.
// It returns an empty string when nothing reaches the importance floor.
func (s *MemoryStore) BuildContext(ctx context.Context, agentID string, scope *memory.Scope, memoryTypes []string, limit int) (string, error) {
	records, err := s.Query(ctx, &memory.Query{
		AgentID:       agentID,
		Scope:         scope,
		MemoryTypes:   memoryTypes,
		MinImportance: memory.DefaultMinImportance,
		Limit:         limit,
	})
	if err != nil {
		return "", err
	}
	return formatMemoryContext(records, memoryTypes), nil
}

func formatMemoryContext(records []*memory.Record, order []string) string {
	if len(records) == 0 {
		return ""
	}

	groups := map[string][]*memory.Record{}
	for _, rec := range records {
		groups[rec.MemoryType] = append(groups[rec.MemoryType], rec)
	}

	names := make([]string, 0, len(groups))
	seen := map[string]bool{}
	for _, t := range order {
		if _, ok := groups[t]; ok && !seen[t] {
			names = append(names, t)
			seen[t] = true
		}
	}
	var rest []string
	for t := range groups {
		if !seen[t] {
			rest = append(rest, t)
		}
	}
	sort.Strings(rest)
	names = append(names, rest...)

	var sb strings.Builder
	for i, t := range names {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "[%s]\n", t)
		for _, rec := range groups[t] {
			value, err := json.Marshal(rec.Value)
			if err != nil {
				value = []byte(fmt.Sprintf("%q", fmt.Sprint(rec.Value)))
			}
			fmt.Fprintf(&sb, "%s: %s\n", rec.Key, value)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
