// Package watcher watches script directories and loads scripts that appear
// while the process runs.
//
// Watcher wraps fsnotify and coalesces bursts of events for the same file.
// Scripts consumes the coalesced events and hands new files to a Loader.
// A script is only ever loaded once; edits to a loaded script are reported
// and otherwise ignored.
package watcher
