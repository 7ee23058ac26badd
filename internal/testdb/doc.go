//go:build integration

// Package testdb provides helpers for tests that run against a real Postgres
// database.
//
// Each test runs inside its own transaction that is rolled back when the test
// completes, so tests can use t.Parallel() without stepping on each other:
//
//	func TestSomething(t *testing.T) {
//	    db := testdb.GetTestDBWithT(t)
//	    testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
//	        tasks := postgres.NewPostgresTaskStore(tx, logger)
//	        ...
//	    })
//	}
//
// The database URL is read from TASKAPI_TEST_DATABASE_URL, falling back to
// DATABASE_URL. Tests are skipped when neither is set.
package testdb
