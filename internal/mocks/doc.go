// Package mocks provides hand-written test doubles for the store, job port,
// auth and id interfaces.
//
// Store mocks keep their data in memory and behave like the Postgres
// implementations for the cases services depend on. Every method can be
// overridden through its Fn field, and error fields inject failures:
//
//	tasks := mocks.NewMockTaskStore()
//	tasks.SwapErr = errors.New("connection reset")
package mocks
