package fs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"sst-go/internal/sst"
)

// OSLinkCreator creates hardlinks with os.Link. Both paths must be on the
// same filesystem.
type OSLinkCreator struct{}

func NewOSLinkCreator() *OSLinkCreator {
	return &OSLinkCreator{}
}

func (OSLinkCreator) CreateHardLink(newPath, existingPath string) error {
	info, err := os.Stat(existingPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", existingPath, sst.ErrLinkTargetMissing)
		}
		return fmt.Errorf("stat link target: %w: %w", sst.ErrIOFailure, err)
	}
	if info.IsDir() {
		return fmt.Errorf("link target %s: %w", existingPath, sst.ErrNotAFile)
	}
	if err := os.Link(existingPath, newPath); err != nil {
		return fmt.Errorf("linking %s: %w: %w", newPath, sst.ErrIOFailure, err)
	}
	return nil
}

var _ sst.LinkCreator = (*OSLinkCreator)(nil)
