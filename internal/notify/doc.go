// Package notify runs deadline notifications. Runner persists jobs in the
// notification_jobs table, implements schedule.JobPort, and feeds due jobs to
// a worker pool that hands each one to a Deliverer.
//
// Jobs are re-checked against the current task before delivery, so a job
// whose cancel was lost does not notify for a task that was completed,
// cleared or rescheduled.
package notify
