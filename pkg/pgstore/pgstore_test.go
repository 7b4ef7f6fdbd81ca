// Copyright 2025 BPI Labs

package pgstore

import (
	"database/sql"
	"log"
	"os"
	"testing"

	_ "github.com/lib/pq"
)

// testDB is populated by TestMain when BPCI_TEST_DB names a reachable
// Postgres instance. Every test below skips when it is nil, the same
// convention the rest of the repository's database-backed tests use.
var testDB *sql.DB

func TestMain(m *testing.M) {
	connStr := os.Getenv("BPCI_TEST_DB")
	if connStr == "" {
		os.Exit(m.Run())
	}

	var err error
	testDB, err = sql.Open("postgres", connStr)
	if err != nil {
		panic("failed to connect to test database: " + err.Error())
	}

	code := m.Run()
	testDB.Close()
	os.Exit(code)
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	if testDB == nil {
		t.Skip("BPCI_TEST_DB not configured, skipping pgstore integration test")
	}
	client := &Client{db: testDB, logger: log.New(log.Writer(), "[pgstore-test] ", log.LstdFlags)}
	return client
}
