// Package domain contains the core business entities of the task backend:
// users, bot profiles, categories and tasks. It is independent of storage
// and transport.
package domain
