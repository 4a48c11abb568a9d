package vault

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"dbrevert/internal/revert"
)

// FileSystemVault is a filesystem-based implementation of the Vault
// interface. Archives are stored under their key relative to the vault
// root:
//
//	<root>/
//	  archives/
//	    <hostID>/<runstamp>/<filename>
type FileSystemVault struct {
	name        string
	root        string
	archivesDir string
}

// NewFileSystemVault creates a new filesystem vault rooted at the given
// path.
func NewFileSystemVault(name, root string) (*FileSystemVault, error) {
	archivesDir := filepath.Join(root, "archives")

	if err := os.MkdirAll(archivesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archives directory: %w", err)
	}

	return &FileSystemVault{
		name:        name,
		root:        root,
		archivesDir: archivesDir,
	}, nil
}

// PutArchive stores an archive under the given key.
func (v *FileSystemVault) PutArchive(key string, r io.Reader, size int64) error {
	destPath := filepath.Join(v.archivesDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}
	return v.writeFile(destPath, r, size)
}

// GetArchive retrieves an archive by key and writes it to w.
func (v *FileSystemVault) GetArchive(key string, w io.Writer) error {
	srcPath := filepath.Join(v.archivesDir, filepath.FromSlash(key))
	return v.readFile(srcPath, w, fmt.Sprintf("archive not found: %s", key))
}

// ListArchives returns the keys stored under the given prefix, sorted.
func (v *FileSystemVault) ListArchives(prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(v.archivesDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(v.archivesDir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing archives: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// ValidateSetup verifies that the vault directories are accessible.
func (v *FileSystemVault) ValidateSetup() error {
	info, err := os.Stat(v.root)
	if err != nil {
		return fmt.Errorf("vault root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("vault root is not a directory: %s", v.root)
	}

	info, err = os.Stat(v.archivesDir)
	if err != nil {
		return fmt.Errorf("vault directory not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("vault path is not a directory: %s", v.archivesDir)
	}

	return nil
}

// writeFile writes data from r to the specified path using atomic write
// (temp file + rename).
func (v *FileSystemVault) writeFile(destPath string, r io.Reader, expectedSize int64) error {
	// Create the temp file in the same directory so the rename is atomic.
	dir := filepath.Dir(destPath)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// readFile reads from the specified path and writes to w.
func (v *FileSystemVault) readFile(srcPath string, w io.Writer, notFoundMsg string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s", notFoundMsg)
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	return nil
}

// Compile-time check that FileSystemVault implements revert.Vault.
var _ revert.Vault = (*FileSystemVault)(nil)
