package sst

import "testing"

// SetRenameFile replaces the rename used to commit records and move
// snapshot storage until the test ends.
func SetRenameFile(t testing.TB, fn func(oldpath, newpath string) error) {
	t.Helper()
	prev := renameFile
	renameFile = fn
	t.Cleanup(func() { renameFile = prev })
}
