// Package watcher keeps the index current while the process runs. It
// watches the directory roots behind every watched glob with fsnotify,
// coalesces bursts of file events through a debounce window, and triggers
// an incremental indexing run when relevant files appear or change.
// Path dedup in the store makes those re-runs idempotent, so the watcher
// never needs to know what is already indexed.
package watcher
