package core

import (
	"io"
	"os"
	"path/filepath"

	"github.com/oneconcern/envmon/pkg/core/status"
	"github.com/oneconcern/envmon/pkg/model"
	"github.com/spf13/afero"
)

// BackupPath is where a live environment directory is moved while it is being replaced.
//
// The presence of this directory signals a transaction in progress, or one that crashed.
func BackupPath(live string) string {
	return filepath.Clean(live) + model.TransactionBackupExt
}

// ReplaceDir atomically replaces the live directory with a copy of the sandbox directory.
//
// The live directory is first moved to its backup location, then the sandbox is
// copied in place. When the copy fails, the partial copy is removed and the backup
// is moved back: the live directory is left exactly as found.
func ReplaceDir(fs afero.Fs, live, sandbox string) error {
	backup := BackupPath(live)
	if _, err := fs.Stat(backup); err == nil {
		return status.ErrPriorTransaction.WrapMessage("%s", backup)
	} else if !os.IsNotExist(err) {
		return status.ErrBackupTransaction.Wrap(err)
	}

	if err := fs.Rename(live, backup); err != nil {
		return status.ErrBackupTransaction.Wrap(err)
	}

	if err := CopyDir(fs, sandbox, live); err != nil {
		_ = fs.RemoveAll(live)
		if restoreErr := fs.Rename(backup, live); restoreErr != nil {
			return status.ErrAbortTransaction.WrapMessage("%v", err).Wrap(restoreErr)
		}
		return status.ErrMoveTransaction.Wrap(err)
	}

	if err := fs.RemoveAll(backup); err != nil {
		return status.ErrRemoveBackup.WrapMessage("%s", backup).Wrap(err)
	}
	return nil
}

// CopyDir recursively copies a directory. Symlinks are copied as symlinks when the file system supports them.
func CopyDir(fs afero.Fs, src, dst string) error {
	return afero.Walk(fs, src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case info.IsDir():
			return fs.MkdirAll(target, info.Mode().Perm()|0o700)
		case info.Mode()&os.ModeSymlink != 0:
			return copySymlink(fs, path, target)
		default:
			return copyFile(fs, path, target, info.Mode().Perm())
		}
	})
}

func copySymlink(fs afero.Fs, src, dst string) error {
	linker, ok := fs.(afero.Symlinker)
	if !ok {
		return &os.LinkError{Op: "symlink", Old: src, New: dst, Err: afero.ErrNoSymlink}
	}
	dest, err := linker.ReadlinkIfPossible(src)
	if err != nil {
		return err
	}
	return linker.SymlinkIfPossible(dest, dst)
}

func copyFile(fs afero.Fs, src, dst string, perm os.FileMode) error {
	source, err := fs.Open(src)
	if err != nil {
		return err
	}
	defer source.Close()

	target, err := fs.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err = io.Copy(target, source); err != nil {
		_ = target.Close()
		return err
	}
	return target.Close()
}
