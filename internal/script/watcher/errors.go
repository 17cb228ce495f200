package watcher

import "errors"

// Watcher errors.
var (
	// ErrWatcherClosed is returned when the watcher has been closed.
	ErrWatcherClosed = errors.New("watcher is closed")

	// ErrPathNotExist is returned when watching a directory that does not exist.
	ErrPathNotExist = errors.New("path does not exist")

	// ErrNotDirectory is returned when watching something that is not a directory.
	ErrNotDirectory = errors.New("path is not a directory")

	// ErrAlreadyWatching is returned when a directory is watched twice.
	ErrAlreadyWatching = errors.New("already watching path")

	// ErrScriptChanged is reported when a loaded script changes on disk.
	// Registrations are permanent, so the change takes effect on restart.
	ErrScriptChanged = errors.New("loaded script changed on disk, restart to reload")
)
