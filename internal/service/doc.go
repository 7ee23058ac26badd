// Package service contains the application use cases: account and bot
// authentication, the shared category list, and per-user task management.
//
// Services receive their stores and collaborators through constructors and
// never depend on a concrete database driver. Writes that touch more than one
// store run inside store.RunInTransaction.
//
// Every task write passes through a schedule.Gate, so the notification job of
// a task follows its deadline:
//
//   - the task row is locked and its previous state captured inside the
//     transaction
//   - after commit the gate reconciles the job against the committed row
//   - a failed reconcile is logged and left for the sweeper
//
// Errors from stores are wrapped in ServiceError, which keeps the sentinel
// reachable through errors.Is for the HTTP layer to map.
package service
