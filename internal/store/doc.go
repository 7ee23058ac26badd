// Package store defines the persistence interfaces and errors of the task
// backend. Implementations live in internal/platform/postgres.
package store
