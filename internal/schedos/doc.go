// Package schedos registers, queries and removes recurring jobs in the
// operating system's own scheduler, so scheduled work runs without any
// always-on process of ours.
//
// Two backends exist, each a pure translation layer over the scheduler's
// management CLI: schtasks (Windows Task Scheduler) and crontab (POSIX cron).
// The adapter holds no state of its own; the OS scheduler is the source of
// truth.
package schedos
