// Package storage persists uploaded files (payment slips, profile photos)
// and returns the public URL under which they can be fetched.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
)

// Folders used for uploads.
const (
	SlipFolder  = "slips"
	PhotoFolder = "profile-photos"
)

// BlobStore saves a file and returns its URL.  Delete takes a URL returned
// by Save; deleting a file that is already gone is not an error.
type BlobStore interface {
	Save(ctx context.Context, folder, filename string, r io.Reader) (string, error)
	Delete(ctx context.Context, url string) error
}

// uniqueName keeps the extension of the client file name and replaces the
// rest with a random id so uploads never collide or escape the folder.
func uniqueName(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) > 10 || strings.ContainsAny(ext, `/\`) {
		ext = ""
	}
	return uuid.NewString() + ext
}

// CloudinaryStore uploads to Cloudinary.
type CloudinaryStore struct {
	cld    *cloudinary.Cloudinary
	prefix string
}

// NewCloudinaryStore builds a store from a cloudinary:// URL.  Uploads land
// under prefix/folder.
func NewCloudinaryStore(cloudinaryURL, prefix string) (*CloudinaryStore, error) {
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}
	return &CloudinaryStore{cld: cld, prefix: prefix}, nil
}

func (s *CloudinaryStore) Save(ctx context.Context, folder, filename string, r io.Reader) (string, error) {
	name := uniqueName(filename)
	res, err := s.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		Folder:   path.Join(s.prefix, folder),
		PublicID: strings.TrimSuffix(name, filepath.Ext(name)),
		Tags:     []string{"swimming-pool"},
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", filename, err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("upload %s: %s", filename, res.Error.Message)
	}
	return res.SecureURL, nil
}

func (s *CloudinaryStore) Delete(ctx context.Context, url string) error {
	resourceType, publicID, ok := parseCloudinaryURL(url)
	if !ok {
		return fmt.Errorf("not a cloudinary url: %s", url)
	}
	res, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID, ResourceType: resourceType})
	if err != nil {
		return fmt.Errorf("destroy %s: %w", publicID, err)
	}
	if res.Error.Message != "" {
		return fmt.Errorf("destroy %s: %s", publicID, res.Error.Message)
	}
	return nil
}

// parseCloudinaryURL splits a delivery URL such as
// https://res.cloudinary.com/demo/image/upload/v1712/pool/slips/abc.png
// into its resource type (image) and public id (pool/slips/abc).
func parseCloudinaryURL(url string) (string, string, bool) {
	head, tail, found := strings.Cut(url, "/upload/")
	if !found || tail == "" {
		return "", "", false
	}
	resourceType := head[strings.LastIndex(head, "/")+1:]
	if first, rest, ok := strings.Cut(tail, "/"); ok && isVersion(first) {
		tail = rest
	}
	publicID := strings.TrimSuffix(tail, path.Ext(tail))
	if resourceType == "" || publicID == "" {
		return "", "", false
	}
	return resourceType, publicID, true
}

func isVersion(seg string) bool {
	if len(seg) < 2 || seg[0] != 'v' {
		return false
	}
	for _, c := range seg[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// LocalStore writes files below a directory and serves them from baseURL.
type LocalStore struct {
	dir     string
	baseURL string
}

func NewLocalStore(dir, baseURL string) *LocalStore {
	return &LocalStore{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}
}

func (s *LocalStore) Save(ctx context.Context, folder, filename string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	folder = filepath.Base(filepath.Clean("/" + folder))
	dir := filepath.Join(s.dir, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}
	name := uniqueName(filename)
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return s.baseURL + "/" + folder + "/" + name, nil
}

func (s *LocalStore) Delete(_ context.Context, url string) error {
	rel, ok := strings.CutPrefix(url, s.baseURL+"/")
	if !ok {
		return fmt.Errorf("not a local upload: %s", url)
	}
	folder, name := path.Split(rel)
	folder = filepath.Base(filepath.Clean("/" + folder))
	err := os.Remove(filepath.Join(s.dir, folder, filepath.Base(name)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
