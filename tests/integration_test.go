package tests

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/juju/clock"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/scan-intake/internal/adapter/input"
	"github.com/rl1809/scan-intake/internal/adapter/storage"
	"github.com/rl1809/scan-intake/internal/core/domain"
	"github.com/rl1809/scan-intake/internal/core/service"
	"github.com/rl1809/scan-intake/internal/port"
)

type testEnv struct {
	mysql   *sql.DB
	store   *storage.MySQLAdapter
	cleanup func()
}

func setupTestEnv(t *testing.T) *testEnv {
	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "root:root@tcp(localhost:3306)/inventory?parseTime=true"
	}

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	ensureSchema(t, db)

	return &testEnv{
		mysql: db,
		store: storage.NewMySQLAdapter(db),
		cleanup: func() {
			db.Close()
		},
	}
}

func ensureSchema(t *testing.T, db *sql.DB) {
	t.Helper()
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS warehouses (
			id   VARCHAR(36) PRIMARY KEY,
			name VARCHAR(255) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS parts (
			id              VARCHAR(36) PRIMARY KEY,
			name            VARCHAR(255) NOT NULL,
			part_number     VARCHAR(64) NOT NULL,
			barcode         VARCHAR(64) NOT NULL,
			quantity        INT NOT NULL,
			min_stock_level INT NOT NULL DEFAULT 0,
			unit_cost       DECIMAL(12,2) NOT NULL DEFAULT 0,
			warehouse_id    VARCHAR(36) NOT NULL,
			created_at      DATETIME NOT NULL,
			updated_at      DATETIME NOT NULL,
			INDEX idx_parts_barcode (barcode)
		)`,
		`CREATE TABLE IF NOT EXISTS suppliers (
			id   VARCHAR(36) PRIMARY KEY,
			name VARCHAR(255) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS supplier_options (
			part_id        VARCHAR(36) NOT NULL,
			supplier_id    VARCHAR(36) NOT NULL,
			unit_cost      DECIMAL(12,2) NOT NULL DEFAULT 0,
			lead_time_days INT NOT NULL DEFAULT 0,
			preferred      BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (part_id, supplier_id)
		)`,
		`CREATE TABLE IF NOT EXISTS part_transactions (
			id                VARCHAR(36) PRIMARY KEY,
			part_id           VARCHAR(36) NOT NULL,
			machine_id        VARCHAR(36),
			type              VARCHAR(16) NOT NULL,
			quantity_signed   INT NOT NULL,
			unit_cost         DECIMAL(12,2) NOT NULL DEFAULT 0,
			notes             TEXT,
			performed_by      VARCHAR(64) NOT NULL,
			performed_by_role VARCHAR(64) NOT NULL,
			created_at        DATETIME NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("schema: %v", err)
		}
	}
}

func (env *testEnv) seedPart(t *testing.T, id, barcode string, quantity int) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	env.mysql.ExecContext(ctx, `DELETE FROM part_transactions WHERE part_id = ?`, id)
	env.mysql.ExecContext(ctx, `DELETE FROM parts WHERE barcode = ?`, barcode)
	if _, err := env.mysql.ExecContext(ctx, `
		INSERT INTO warehouses (id, name) VALUES ('wh-1', 'Main')
		ON DUPLICATE KEY UPDATE name = 'Main'`); err != nil {
		t.Fatalf("seed warehouse: %v", err)
	}
	if _, err := env.mysql.ExecContext(ctx, `
		INSERT INTO parts (id, name, part_number, barcode, quantity,
			min_stock_level, unit_cost, warehouse_id, created_at, updated_at)
		VALUES (?, 'Bearing 6204', ?, ?, ?, 2, '12.50', 'wh-1', ?, ?)`,
		id, "PN-"+id, barcode, quantity, now, now); err != nil {
		t.Fatalf("seed part: %v", err)
	}
}

func newSession(env *testEnv, cache port.ResolutionCache) (*service.Session, *service.ListCollector) {
	clk := clock.WallClock
	resolver := service.NewResolver(env.store, cache, clk, 2, 10*time.Millisecond)
	collector := service.NewListCollector()
	session := service.NewSession(resolver, env.store, cache, collector, clk,
		domain.Technician{ID: "tech-7", Role: "maintenance"},
		service.SessionConfig{
			Debounce:       10 * time.Millisecond,
			FlushThreshold: 5,
			RecoveryDelay:  10 * time.Millisecond,
		})
	return session, collector
}

func waitState(t *testing.T, session *service.Session, state service.State) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if session.View().State == state {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session never reached %s state", state)
}

func TestIntegration_UsageFlow(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	env.seedPart(t, "it-flow", "IT-FLOW-001", 10)

	cache := storage.NewMemoryCache(clock.WallClock, 30*time.Second)
	session, _ := newSession(env, cache)
	manual := input.NewManualAdapter(session, clock.WallClock)

	// Scan and resolve
	if !manual.Submit("IT-FLOW-001") {
		t.Fatal("scan was rejected")
	}
	waitState(t, session, service.StateMenu)

	v := session.View()
	if v.Pending == nil || v.Pending.Part.CurrentQuantity != 10 {
		t.Fatalf("unexpected pending part: %+v", v.Pending)
	}

	// Use 3 units
	if err := session.Choose(service.MenuActionUsage); err != nil {
		t.Fatalf("choose: %v", err)
	}
	record, err := session.Commit(ctx, 3, "machine-4", "belt swap")
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if record.QuantitySigned != -3 {
		t.Errorf("expected signed quantity -3, got %d", record.QuantitySigned)
	}

	// Verify MySQL quantity
	var quantity int
	env.mysql.QueryRowContext(ctx, `SELECT quantity FROM parts WHERE id = 'it-flow'`).Scan(&quantity)
	if quantity != 7 {
		t.Errorf("expected quantity 7, got %d", quantity)
	}

	// Verify audit row
	var count int
	env.mysql.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM part_transactions WHERE part_id = 'it-flow' AND quantity_signed = -3`).Scan(&count)
	if count != 1 {
		t.Errorf("expected 1 audit row, got %d", count)
	}

	// The cache entry was evicted: a re-scan must see the new quantity.
	if !manual.Submit("IT-FLOW-001") {
		t.Fatal("re-scan was rejected")
	}
	waitState(t, session, service.StateMenu)
	if got := session.View().Pending.Part.CurrentQuantity; got != 7 {
		t.Errorf("expected re-resolved quantity 7, got %d", got)
	}
}

func TestIntegration_OverdrawRejectedEndToEnd(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	env.seedPart(t, "it-over", "IT-OVER-001", 10)

	cache := storage.NewMemoryCache(clock.WallClock, 30*time.Second)
	session, _ := newSession(env, cache)
	manual := input.NewManualAdapter(session, clock.WallClock)

	manual.Submit("IT-OVER-001")
	waitState(t, session, service.StateMenu)
	session.Choose(service.MenuActionUsage)

	if _, err := session.Commit(ctx, 15, "", ""); err == nil {
		t.Fatal("expected overdraw to be rejected")
	}

	// Nothing may have been written
	var quantity int
	env.mysql.QueryRowContext(ctx, `SELECT quantity FROM parts WHERE id = 'it-over'`).Scan(&quantity)
	if quantity != 10 {
		t.Errorf("expected quantity unchanged at 10, got %d", quantity)
	}
	var count int
	env.mysql.QueryRowContext(ctx, `SELECT COUNT(*) FROM part_transactions WHERE part_id = 'it-over'`).Scan(&count)
	if count != 0 {
		t.Errorf("expected no audit rows, got %d", count)
	}
}

func TestIntegration_BatchModeCollects(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	env.seedPart(t, "it-b1", "IT-BATCH-001", 5)
	env.seedPart(t, "it-b2", "IT-BATCH-002", 5)
	env.seedPart(t, "it-b3", "IT-BATCH-003", 5)

	cache := storage.NewMemoryCache(clock.WallClock, 30*time.Second)
	session, collector := newSession(env, cache)
	session.SetBatchMode(true)
	manual := input.NewManualAdapter(session, clock.WallClock)

	for _, code := range []string{"IT-BATCH-001", "IT-BATCH-002", "IT-BATCH-003"} {
		if !manual.Submit(code) {
			t.Fatalf("batch scan %s was rejected", code)
		}
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && len(collector.Parts()) < 3 {
		time.Sleep(5 * time.Millisecond)
	}

	parts := collector.Drain()
	if len(parts) != 3 {
		t.Fatalf("expected 3 collected parts, got %d", len(parts))
	}
	if parts[0].Barcode != "IT-BATCH-001" || parts[2].Barcode != "IT-BATCH-003" {
		t.Errorf("expected FIFO order, got %+v", parts)
	}
	if session.View().State != service.StateScan {
		t.Error("batch mode must never leave scan state")
	}
}

func TestIntegration_RedisCacheEviction(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	defer rdb.Close()

	ctx := context.Background()
	env.seedPart(t, "it-redis", "IT-REDIS-001", 10)
	rdb.Del(ctx, "part:IT-REDIS-001")

	cache := storage.NewRedisCache(rdb, 30*time.Second)
	session, _ := newSession(env, cache)
	manual := input.NewManualAdapter(session, clock.WallClock)

	manual.Submit("IT-REDIS-001")
	waitState(t, session, service.StateMenu)

	// The snapshot is now cached in Redis.
	if _, ok, _ := cache.Get(ctx, "IT-REDIS-001"); !ok {
		t.Fatal("expected cached snapshot after resolution")
	}

	session.Choose(service.MenuActionUsage)
	if _, err := session.Commit(ctx, 2, "", ""); err != nil {
		t.Fatalf("commit: %v", err)
	}

	// Commit must evict the entry.
	if _, ok, _ := cache.Get(ctx, "IT-REDIS-001"); ok {
		t.Error("expected cache eviction after commit")
	}
}
