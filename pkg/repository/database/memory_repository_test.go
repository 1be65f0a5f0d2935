package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/shikigami/pkg/domain/interfaces"
	"github.com/m-mizutani/shikigami/pkg/domain/model/memory"
	"github.com/m-mizutani/shikigami/pkg/domain/types"
)

func newMemory(ctx context.Context, agentID string, scope memory.Scope, memType, key string, importance float64, ttl time.Duration, now time.Time) *memory.Record {
	return memory.NewRecord(types.NewMemoryID(ctx), &memory.UpsertRequest{
		AgentID:    agentID,
		Scope:      scope,
		MemoryType: memType,
		Key:        key,
		Value:      map[string]any{"note": key},
		Importance: importance,
		TTL:        ttl,
	}, now)
}

func testMemoryRepository(t *testing.T, repo interfaces.Repository) {
	ctx := context.Background()
	agentID := uniqueAgentID("mem")
	now := baseTime()
	aoi := memory.Scope{CampaignID: "c1", ArtistName: "Aoi"}
	ren := memory.Scope{CampaignID: "c1", ArtistName: "Ren"}

	t.Run("upsert replaces by scope and key", func(t *testing.T) {
		first, err := repo.UpsertMemory(ctx, newMemory(ctx, agentID, aoi, "preference", "tone", 0.5, 0, now))
		gt.NoError(t, err)

		second, err := repo.UpsertMemory(ctx, newMemory(ctx, agentID, aoi, "preference", "tone", 0.9, 0, now.Add(time.Minute)))
		gt.NoError(t, err)
		gt.Equal(t, second.ID, first.ID)
		gt.Equal(t, second.AccessCount, first.AccessCount+1)
		gt.Equal(t, second.Importance, 0.9)
		gt.True(t, second.CreatedAt.Equal(first.CreatedAt))

		records, err := repo.QueryMemories(ctx, &memory.Query{AgentID: agentID, Keys: []string{"tone"}}, now.Add(time.Minute))
		gt.NoError(t, err)
		gt.A(t, records).Length(1)
		gt.Equal(t, records[0].Importance, 0.9)
	})

	t.Run("query filters and orders", func(t *testing.T) {
		for _, rec := range []*memory.Record{
			newMemory(ctx, agentID, aoi, "performance", "views", 0.7, 0, now),
			newMemory(ctx, agentID, aoi, "style", "palette", 0.2, 0, now),
			newMemory(ctx, agentID, aoi, "preference", "short-lived", 1.0, time.Second, now),
			newMemory(ctx, agentID, ren, "preference", "tone", 0.8, 0, now),
		} {
			_, err := repo.UpsertMemory(ctx, rec)
			gt.NoError(t, err)
		}

		at := now.Add(time.Minute)
		scoped, err := repo.QueryMemories(ctx, &memory.Query{
			AgentID:       agentID,
			Scope:         &aoi,
			MinImportance: memory.DefaultMinImportance,
		}, at)
		gt.NoError(t, err)
		gt.A(t, scoped).Length(2)
		gt.Equal(t, scoped[0].Key, "tone")
		gt.Equal(t, scoped[1].Key, "views")

		typed, err := repo.QueryMemories(ctx, &memory.Query{
			AgentID:     agentID,
			MemoryTypes: []string{"preference"},
			Limit:       1,
		}, at)
		gt.NoError(t, err)
		gt.A(t, typed).Length(1)
		gt.Equal(t, typed[0].Key, "tone")
		gt.Equal(t, typed[0].Importance, 0.9)
	})

	t.Run("touch increments access", func(t *testing.T) {
		records, err := repo.QueryMemories(ctx, &memory.Query{AgentID: agentID, Scope: &ren}, now)
		gt.NoError(t, err)
		gt.A(t, records).Length(1)
		before := records[0].AccessCount

		gt.NoError(t, repo.TouchMemories(ctx, []types.MemoryID{records[0].ID, types.NewMemoryID(ctx)}, now.Add(time.Hour)))

		records, err = repo.QueryMemories(ctx, &memory.Query{AgentID: agentID, Scope: &ren}, now)
		gt.NoError(t, err)
		gt.Equal(t, records[0].AccessCount, before+1)
		gt.True(t, records[0].LastAccessedAt.Equal(now.Add(time.Hour)))
	})

	t.Run("delete expired", func(t *testing.T) {
		n, err := repo.DeleteExpiredMemories(ctx, now.Add(time.Minute))
		gt.NoError(t, err)
		gt.True(t, n >= 1)

		records, err := repo.QueryMemories(ctx, &memory.Query{AgentID: agentID, Keys: []string{"short-lived"}}, now)
		gt.NoError(t, err)
		gt.A(t, records).Length(0)
	})

	t.Run("consolidate evicts least important", func(t *testing.T) {
		consolidateAgent := uniqueAgentID("consolidate")
		for i, importance := range []float64{0.9, 0.1, 0.5, 0.3} {
			rec := newMemory(ctx, consolidateAgent, aoi, "performance", string(rune('a'+i)), importance, 0, now)
			_, err := repo.UpsertMemory(ctx, rec)
			gt.NoError(t, err)
		}

		deleted, err := repo.ConsolidateMemories(ctx, consolidateAgent, "performance", 2)
		gt.NoError(t, err)
		gt.Equal(t, deleted, 2)

		records, err := repo.QueryMemories(ctx, &memory.Query{AgentID: consolidateAgent}, now)
		gt.NoError(t, err)
		gt.A(t, records).Length(2)
		gt.Equal(t, records[0].Key, "a")
		gt.Equal(t, records[1].Key, "c")

		deleted, err = repo.ConsolidateMemories(ctx, consolidateAgent, "performance", 5)
		gt.NoError(t, err)
		gt.Equal(t, deleted, 0)
	})

	t.Run("delete single and scoped", func(t *testing.T) {
		gt.NoError(t, repo.DeleteMemory(ctx, agentID, aoi, "tone"))
		gt.NoError(t, repo.DeleteMemory(ctx, agentID, aoi, "tone"))

		n, err := repo.DeleteMemories(ctx, agentID, &ren)
		gt.NoError(t, err)
		gt.Equal(t, n, 1)

		n, err = repo.DeleteMemories(ctx, agentID, nil)
		gt.NoError(t, err)
		gt.Equal(t, n, 2)

		records, err := repo.QueryMemories(ctx, &memory.Query{AgentID: agentID}, now)
		gt.NoError(t, err)
		gt.A(t, records).Length(0)
	})
}
