package database_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/shikigami/pkg/domain/interfaces"
	"github.com/m-mizutani/shikigami/pkg/repository/database/firestore"
	"github.com/m-mizutani/shikigami/pkg/repository/database/memory"
	"github.com/m-mizutani/shikigami/pkg/repository/database/sqlite"
)

type closableRepository interface {
	interfaces.Repository
	Close() error
}

// newRepositories returns every backend available in this environment
func newRepositories(t *testing.T) map[string]interfaces.Repository {
	t.Helper()
	ctx := context.Background()

	repos := map[string]interfaces.Repository{
		"memory": memory.New(),
	}

	sqliteRepo, err := sqlite.New(ctx, filepath.Join(t.TempDir(), "shikigami.db"))
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	registerCleanup(t, sqliteRepo)
	repos["sqlite"] = sqliteRepo

	if fsRepo, reason := createFirestoreRepo(t); fsRepo != nil {
		registerCleanup(t, fsRepo)
		repos["firestore"] = fsRepo
	} else {
		t.Logf("firestore skipped: %s", reason)
	}

	return repos
}

func registerCleanup(t *testing.T, repo closableRepository) {
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Logf("failed to close repository: %v", err)
		}
	})
}

func createFirestoreRepo(t *testing.T) (*firestore.Client, string) {
	t.Helper()

	projectID := os.Getenv("TEST_FIRESTORE_PROJECT")
	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE")
	if projectID == "" || databaseID == "" {
		return nil, "TEST_FIRESTORE_PROJECT and TEST_FIRESTORE_DATABASE are not set"
	}

	client, err := firestore.New(context.Background(), projectID, databaseID)
	if err != nil {
		t.Fatalf("failed to create firestore client: %v", err)
	}
	return client, ""
}

// uniqueAgentID keeps shared backends free of cross-test collisions
func uniqueAgentID(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
}

// baseTime is truncated to the coarsest precision among backends
func baseTime() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func runAll(t *testing.T, fn func(t *testing.T, repo interfaces.Repository)) {
	for name, repo := range newRepositories(t) {
		t.Run(name, func(t *testing.T) {
			fn(t, repo)
		})
	}
}

func TestPromptRepository(t *testing.T) {
	runAll(t, testPromptRepository)
}

func TestExecutionRepository(t *testing.T) {
	runAll(t, testExecutionRepository)
}

func TestEvaluationRepository(t *testing.T) {
	runAll(t, testEvaluationRepository)
}

func TestMemoryRepository(t *testing.T) {
	runAll(t, testMemoryRepository)
}
