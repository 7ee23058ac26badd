// Package idgen allocates 64-bit, time-ordered identifiers.
//
// Each ID packs a unix millisecond timestamp, the worker id of the issuing
// process and a per-millisecond sequence number. IDs from one Allocator are
// strictly increasing; IDs from allocators with different worker ids never
// collide. The worker id is fixed for the lifetime of the process.
package idgen
