// Package audiobook queues audiobook generation and reports task progress.
//
// The gateway does not synthesize audio itself. Submit writes a pending row to
// the audiobook_tasks table; an external worker claims it and updates status,
// progress and file_path as it goes. At most one unfinished task exists per
// book and library: a second request returns the running task's id.
package audiobook
