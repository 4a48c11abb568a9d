package revert

import "io"

// Vault stores displaced originals off the working tree for retention.
// All operations stream through io.Reader/io.Writer so large database
// archives never have to fit in memory.
type Vault interface {
	// PutArchive stores an archive under the given key. size is the number
	// of bytes that will be read from r.
	PutArchive(key string, r io.Reader, size int64) error

	// GetArchive retrieves an archive by key and writes it to w.
	GetArchive(key string, w io.Writer) error

	// ListArchives returns the keys stored under the given prefix.
	ListArchives(prefix string) ([]string, error)

	// ValidateSetup verifies that the vault is accessible and properly
	// configured.
	ValidateSetup() error
}
