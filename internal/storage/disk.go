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
)

// diskStorage implements Storage on the local filesystem under a single root directory.
// It is safe for concurrent use; uniqueness of keys relies on O_EXCL creation.
type diskStorage struct {
	root string
	dirs []string
}

// NewDisk creates a disk backed Storage rooted at root and makes sure the given
// category directories exist.
func NewDisk(root string, dirs ...string) (Storage, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}

	d := &diskStorage{root: abs}
	for _, dir := range dirs {
		p, err := d.resolve(dir)
		if err != nil {
			return nil, fmt.Errorf("storage dir %q: %w", dir, err)
		}
		if err := os.MkdirAll(p, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir %q: %w", dir, err)
		}
		d.dirs = append(d.dirs, dir)
	}
	return d, nil
}

// resolve maps a key to an absolute path that is guaranteed to stay inside root.
func (d *diskStorage) resolve(key string) (string, error) {
	if key == "" || strings.Contains(key, "\\") || path.IsAbs(key) {
		return "", ErrInvalidKey
	}
	clean := path.Clean(key)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrInvalidKey
	}
	return filepath.Join(d.root, filepath.FromSlash(clean)), nil
}

func (d *diskStorage) Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	p, err := d.resolve(key)
	if err != nil {
		return ObjectInfo{}, err
	}
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}

	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return ObjectInfo{}, fmt.Errorf("%s: %w", key, ErrObjectExists)
		}
		return ObjectInfo{}, fmt.Errorf("create %s: %w", key, err)
	}

	src := io.Reader(&ctxReader{ctx: ctx, r: r})
	if opt.MaxSize > 0 {
		src = io.LimitReader(src, opt.MaxSize+1)
	}

	n, err := io.Copy(f, src)
	if err == nil && opt.MaxSize > 0 && n > opt.MaxSize {
		err = ErrTooLarge
	}
	if cerr := f.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		// Abandoned writes must not leave partial files behind.
		_ = os.Remove(p)
		if errors.Is(err, ErrTooLarge) {
			return ObjectInfo{}, fmt.Errorf("write %s: %w", key, ErrTooLarge)
		}
		return ObjectInfo{}, fmt.Errorf("write %s: %w", key, err)
	}

	st, err := os.Stat(p)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("stat %s: %w", key, err)
	}
	info := infoFromFileInfo(key, st)
	info.ContentType = opt.ContentType
	return info, nil
}

func (d *diskStorage) Open(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	p, err := d.resolve(key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	if err := ctx.Err(); err != nil {
		return nil, ObjectInfo{}, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, ObjectInfo{}, notFound(key, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ObjectInfo{}, fmt.Errorf("stat %s: %w", key, err)
	}
	return f, infoFromFileInfo(key, st), nil
}

func (d *diskStorage) Delete(ctx context.Context, key string) error {
	p, err := d.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		return notFound(key, err)
	}
	return nil
}

func (d *diskStorage) List(ctx context.Context, dir string) ([]ObjectInfo, error) {
	p, err := d.resolve(dir)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(p)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	out := make([]ObjectInfo, 0, len(entries))
	for _, e := range entries {
		info := ObjectInfo{Key: path.Join(dir, e.Name()), Name: e.Name()}
		// Entries can vanish between ReadDir and Info; keep the name regardless.
		if fi, err := e.Info(); err == nil {
			info.Size = fi.Size()
			info.LastModified = fi.ModTime()
		}
		out = append(out, info)
	}
	return out, nil
}

func (d *diskStorage) Ping(ctx context.Context) error {
	for _, dir := range d.dirs {
		if err := ctx.Err(); err != nil {
			return err
		}
		p, _ := d.resolve(dir)
		st, err := os.Stat(p)
		if err != nil {
			return fmt.Errorf("storage dir %s: %w", dir, err)
		}
		if !st.IsDir() {
			return fmt.Errorf("storage dir %s: not a directory", dir)
		}
	}
	return nil
}

func infoFromFileInfo(key string, st fs.FileInfo) ObjectInfo {
	return ObjectInfo{
		Key:          key,
		Name:         st.Name(),
		Size:         st.Size(),
		LastModified: st.ModTime(),
	}
}

func notFound(key string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", key, ErrObjectNotFound)
	}
	return fmt.Errorf("%s: %w", key, err)
}

// ctxReader stops a copy as soon as the context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
