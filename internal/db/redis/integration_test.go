package redis

import (
	"os"
	"testing"

	"github.com/vexhub/vexdb/internal/db"
	"github.com/vexhub/vexdb/internal/db/dbtest"
)

// TestConformance runs the shared backend suite against a live Redis with
// RediSearch. Skipped unless VEXDB_REDIS_ADDR is set.
func TestConformance(t *testing.T) {
	addr := os.Getenv("VEXDB_REDIS_ADDR")
	if addr == "" {
		t.Skip("VEXDB_REDIS_ADDR not set")
	}

	dbtest.Run(t, func(t *testing.T) db.Store {
		s, err := NewStore(Config{
			Addrs:    []string{addr},
			Password: os.Getenv("VEXDB_REDIS_PASSWORD"),
		})
		if err != nil {
			t.Fatalf("NewStore: %v", err)
		}
		t.Cleanup(s.Close)
		return s
	})
}
