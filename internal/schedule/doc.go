// Package schedule keeps each task's deferred due notification in step with
// the task itself.
//
// Every task write passes through a Gate. Before the write it snapshots the
// task's deadline, status and notification handle; after the commit it runs
// the Reconciler, which compares that snapshot with the new state and issues
// at most one Cancel and one Submit on the JobPort. The resulting handle is
// written back to the task with a single-column update that does not pass
// through the Gate again.
//
// Job port failures never fail the task write. They are logged, counted and
// left for the Sweeper to repair.
package schedule
