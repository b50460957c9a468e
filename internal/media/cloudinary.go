// Package media releases photos attached to journal entries. Uploads happen
// client-side; the backend only needs to delete an asset when its entry goes.
package media

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

var (
	// ErrRelease is returned when Cloudinary refuses to delete an asset.
	ErrRelease = errors.New("photo release failed")
	// ErrForeignAsset is returned for a public id outside the upload folder.
	ErrForeignAsset = errors.New("photo is not in the upload folder")
)

// DefaultFolder is the Cloudinary folder the client uploads entry photos to.
const DefaultFolder = "travel-memories"

// CloudinaryReleaser deletes uploaded images by public id. It only touches
// assets under its upload folder; the rest of the account is not ours.
type CloudinaryReleaser struct {
	cld    *cloudinary.Cloudinary
	prefix string
}

// NewCloudinaryReleaser builds a releaser from account credentials, scoped
// to folder.
func NewCloudinaryReleaser(cloudName, apiKey, apiSecret, folder string) (*CloudinaryReleaser, error) {
	folder = strings.Trim(strings.TrimSpace(folder), "/")
	if folder == "" {
		return nil, errors.New("media.NewCloudinaryReleaser: upload folder is required")
	}
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("media.NewCloudinaryReleaser: %w", err)
	}
	return &CloudinaryReleaser{cld: cld, prefix: folder + "/"}, nil
}

// Owns reports whether publicID names an asset inside the upload folder.
func (r *CloudinaryReleaser) Owns(publicID string) bool {
	rest, ok := strings.CutPrefix(publicID, r.prefix)
	return ok && rest != "" && !strings.HasPrefix(rest, "/")
}

// WithUploadPrefix overrides the API host, e.g. for an httptest server.
func (r *CloudinaryReleaser) WithUploadPrefix(prefix string) *CloudinaryReleaser {
	r.cld.Config.API.UploadPrefix = prefix
	return r
}

// Release destroys the image with publicID. An asset that is already gone
// counts as released; one outside the upload folder is refused.
func (r *CloudinaryReleaser) Release(ctx context.Context, publicID string) error {
	if !r.Owns(publicID) {
		return fmt.Errorf("media.CloudinaryReleaser.Release: %w: %q", ErrForeignAsset, publicID)
	}
	res, err := r.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return fmt.Errorf("media.CloudinaryReleaser.Release: %w", err)
	}
	if res.Error.Message != "" {
		return fmt.Errorf("media.CloudinaryReleaser.Release: %w: %s", ErrRelease, res.Error.Message)
	}
	switch res.Result {
	case "ok", "not found":
		return nil
	default:
		return fmt.Errorf("media.CloudinaryReleaser.Release: %w: result %q", ErrRelease, res.Result)
	}
}

// Noop is used when no media account is configured.
type Noop struct{}

// Owns accepts any id; nothing is ever released.
func (Noop) Owns(string) bool { return true }

// Release does nothing.
func (Noop) Release(context.Context, string) error { return nil }
