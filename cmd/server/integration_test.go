//go:build integration

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/liamcoop/noshow/rules"
)

// setupTestDB creates a PostgreSQL testcontainer and runs migrations
func setupTestDB(t *testing.T) *sql.DB {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_PASSWORD": "password",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	postgres, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { postgres.Terminate(ctx) })

	host, err := postgres.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := postgres.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	connStr := fmt.Sprintf("postgres://postgres:password@%s:%s/testdb?sslmode=disable", host, port.Port())

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	for i := 0; i < 30; i++ {
		if err := db.Ping(); err == nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	m, err := migrate.New("file://../../migrations", connStr)
	if err != nil {
		t.Fatalf("Failed to create migration instance: %v", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return db
}

func setupTestRedis(t *testing.T) *redis.Client {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start redis container: %v", err)
	}
	t.Cleanup(func() { container.Terminate(ctx) })

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get redis endpoint: %v", err)
	}

	rdb, err := openRedis("redis://" + endpoint + "/0")
	if err != nil {
		t.Fatalf("Failed to connect to redis: %v", err)
	}
	return rdb
}

// TestEndToEnd_PostgresRuleTable verifies the migrated standard table scores
// like the in-memory one and that edits persist across server instances
func TestEndToEnd_PostgresRuleTable(t *testing.T) {
	db := setupTestDB(t)

	server, err := NewServerWithDB(db, nil, testConfig())
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	ts := httptest.NewServer(server)
	defer ts.Close()

	var health HealthResponse
	doJSON(t, http.MethodGet, ts.URL+"/api/v1/health", nil, http.StatusOK, &health)
	if health.Store != storePostgres || health.ActiveRules != 7 {
		t.Fatalf("health = %+v", health)
	}

	req := lowRiskRequest()
	req["lead_time_days"] = 15
	req["reminder_sent"] = false

	var resp AssessResponse
	doJSON(t, http.MethodPost, ts.URL+"/api/v1/assess", req, http.StatusOK, &resp)
	if resp.Score != 75 || len(resp.Reasons) != 3 {
		t.Errorf("score=%d reasons=%v, want 75 with 3 reasons", resp.Score, resp.Reasons)
	}

	var created rules.Rule
	doJSON(t, http.MethodPost, ts.URL+"/api/v1/rules", map[string]any{
		"name":       "repeat_offender",
		"expression": "Appointment.past_no_shows >= 3",
		"reason":     "Repeated missed appointments",
		"weight":     15,
		"position":   25,
	}, http.StatusCreated, &created)

	// A fresh server over the same database sees the stored rule
	restarted, err := NewServerWithDB(db, nil, testConfig())
	if err != nil {
		t.Fatalf("Failed to create second server: %v", err)
	}
	ts2 := httptest.NewServer(restarted)
	defer ts2.Close()

	var fetched rules.Rule
	doJSON(t, http.MethodGet, ts2.URL+"/api/v1/rules/"+created.ID, nil, http.StatusOK, &fetched)
	if fetched.Position != 25 || fetched.Weight != 15 {
		t.Errorf("fetched rule = %+v", fetched)
	}
}

// TestEndToEnd_SharedRedisCache verifies instances sharing Redis observe each other's edits
func TestEndToEnd_SharedRedisCache(t *testing.T) {
	db := setupTestDB(t)
	rdb := setupTestRedis(t)

	first, err := NewServerWithDB(db, rdb, testConfig())
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	defer first.Close()

	rdb2 := setupTestRedisClient(t, rdb)
	second, err := NewServerWithDB(db, rdb2, testConfig())
	if err != nil {
		t.Fatalf("Failed to create second server: %v", err)
	}

	ts1 := httptest.NewServer(first)
	defer ts1.Close()
	ts2 := httptest.NewServer(second)
	defer ts2.Close()

	var health HealthResponse
	doJSON(t, http.MethodGet, ts2.URL+"/api/v1/health", nil, http.StatusOK, &health)
	if health.Cache != cacheRedis {
		t.Fatalf("Cache = %q, want redis", health.Cache)
	}

	doJSON(t, http.MethodDelete, ts1.URL+"/api/v1/rules/weekend", nil, http.StatusNoContent, nil)

	var list RulesListResponse
	doJSON(t, http.MethodGet, ts2.URL+"/api/v1/rules", nil, http.StatusOK, &list)
	if len(list.Rules) != 6 {
		t.Errorf("second instance lists %d rules after delete, want 6", len(list.Rules))
	}
}

func setupTestRedisClient(t *testing.T, rdb *redis.Client) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: rdb.Options().Addr})
	t.Cleanup(func() { client.Close() })
	return client
}
