// Package postgres implements the store interfaces on PostgreSQL through the
// pgx database/sql driver. Stores accept a store.DBTX so the same code runs on
// a pool or inside a transaction; WithTx rebinds a store to a transaction.
//
// IDs are written as BIGINT via idgen.ID.Int64.
package postgres
