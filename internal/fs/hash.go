package fs

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"sst-go/internal/sst"
)

// MD5Hasher computes MD5 content checksums.
type MD5Hasher struct{}

func NewMD5Hasher() *MD5Hasher {
	return &MD5Hasher{}
}

// HashFile returns the lowercase hex MD5 of the file at path. A cancelled
// context yields ErrOperationCancelled and no digest.
func (h *MD5Hasher) HashFile(ctx context.Context, path string, onProgress sst.ProgressFunc) (string, error) {
	f, info, err := openRegular(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sum := md5.New()
	if _, err := pump(ctx, sum, f, path, info.Size(), onProgress); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(sum.Sum(nil)), nil
}

var _ sst.Hasher = (*MD5Hasher)(nil)
