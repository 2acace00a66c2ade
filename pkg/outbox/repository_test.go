package outbox

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/stockroomhq/stockroom-backend/pkg/db/models"
	"github.com/stockroomhq/stockroom-backend/pkg/enums"
)

const outboxTestDDL = `CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  ordering_key TEXT NOT NULL DEFAULT '',
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`

func newRepoTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:outbox_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.Exec(outboxTestDDL).Error; err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return conn
}

func TestFetchUnpublishedForPublishLocksRowsOnPostgres(t *testing.T) {
	t.Parallel()

	// DryRun builds the statement without touching a server.
	conn, err := gorm.Open(postgres.Open("host=localhost user=stockroom dbname=stockroom"), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
	})
	if err != nil {
		t.Fatalf("open dry-run db: %v", err)
	}

	stmt := lockForPublish(conn).
		Where("published_at IS NULL").
		Find(&[]models.OutboxEvent{}).
		Statement
	if sql := stmt.SQL.String(); !strings.Contains(sql, "FOR UPDATE SKIP LOCKED") {
		t.Fatalf("expected publish fetch to claim rows, got %q", sql)
	}
}

func TestFetchUnpublishedForPublishSkipsLockOnSqlite(t *testing.T) {
	t.Parallel()

	conn := newRepoTestDB(t)
	repo := NewRepository(conn)

	for i := 0; i < 2; i++ {
		event := models.OutboxEvent{
			EventType:     enums.EventInventoryAdjusted,
			AggregateType: enums.AggregateInventoryItem,
			AggregateID:   uuid.New(),
			OrderingKey:   uuid.NewString(),
			Payload:       []byte(`{}`),
		}
		if err := repo.Insert(conn, event); err != nil {
			t.Fatalf("insert event %d: %v", i, err)
		}
	}

	err := conn.Transaction(func(tx *gorm.DB) error {
		rows, err := repo.FetchUnpublishedForPublish(tx, 10, 5)
		if err != nil {
			return err
		}
		if len(rows) != 2 {
			t.Fatalf("expected 2 unpublished rows, got %d", len(rows))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("fetch for publish: %v", err)
	}
}
