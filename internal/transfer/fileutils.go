package transfer

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"
)

// resolveLocalPath maps a remote file name onto localDir. Only the base name is kept
// so a listing can never write outside localDir.
func resolveLocalPath(remoteName, localDir string) (string, error) {
	base := path.Base(filepath.ToSlash(remoteName))
	if base == "." || base == ".." || base == "/" {
		return "", fmt.Errorf("invalid remote file name %q", remoteName)
	}

	absolutePath, err := filepath.Abs(filepath.Join(localDir, base))
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	return absolutePath, nil
}

// saveRemoteFile streams reader into localDir/remoteName. The content lands in a temp
// file first and replaces any existing file by rename, so readers of localDir never
// see a partial download.
func saveRemoteFile(remoteName, localDir string, modTime time.Time, reader io.Reader) (int64, error) {
	part, err := stageRemoteFile(remoteName, localDir, reader)
	if err != nil {
		return 0, err
	}
	if err := part.commit(modTime); err != nil {
		part.discard()
		return part.size, err
	}
	return part.size, nil
}

// partialFile is a fully written download that has not replaced its destination yet.
type partialFile struct {
	tmpPath   string
	localPath string
	size      int64
}

// stageRemoteFile copies reader into a temp file next to the destination.
func stageRemoteFile(remoteName, localDir string, reader io.Reader) (*partialFile, error) {
	localPath, err := resolveLocalPath(remoteName, localDir)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(localPath), "."+filepath.Base(localPath)+".part-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create destination file: %w", err)
	}

	n, err := io.Copy(tmp, reader)
	if err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to copy file contents: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to flush destination file: %w", err)
	}

	return &partialFile{tmpPath: tmp.Name(), localPath: localPath, size: n}, nil
}

// commit moves the staged content over the destination.
func (p *partialFile) commit(modTime time.Time) error {
	if !modTime.IsZero() {
		_ = os.Chtimes(p.tmpPath, modTime, modTime)
	}
	if err := os.Rename(p.tmpPath, p.localPath); err != nil {
		return fmt.Errorf("failed to move file into place: %w", err)
	}
	return nil
}

func (p *partialFile) discard() {
	_ = os.Remove(p.tmpPath)
}
