// Package file implements a device-local snapshot.KV backed by one file per
// key in a data directory.
package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-cart/internal/storage/snapshot"
)

var _ snapshot.KV = (*KV)(nil)

// KV stores each key as <dir>/<key>.json.
type KV struct {
	dir string
}

// New returns a KV rooted at dir, creating the directory if needed.
func New(dir string) (*KV, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrapf(err, "create data dir %s", dir)
	}
	return &KV{dir: dir}, nil
}

// Get implements snapshot.KV.
func (kv *KV) Get(_ context.Context, key string) ([]byte, error) {
	path, err := kv.path(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, snapshot.ErrNotFound
		}
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return data, nil
}

// Set implements snapshot.KV. The value is written to a temp file in the
// same directory and renamed over the target so readers never observe a
// partial snapshot.
func (kv *KV) Set(_ context.Context, key string, value []byte) error {
	path, err := kv.path(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(kv.dir, "."+key+"-*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "write temp file")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp file")
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "rename to %s", path)
	}
	return nil
}

// Ping checks that the data directory is still accessible.
func (kv *KV) Ping(_ context.Context) error {
	info, err := os.Stat(kv.dir)
	if err != nil {
		return errors.Wrap(err, "stat data dir")
	}
	if !info.IsDir() {
		return errors.Errorf("%s is not a directory", kv.dir)
	}
	return nil
}

func (kv *KV) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", errors.Errorf("invalid key %q", key)
	}
	return filepath.Join(kv.dir, key+".json"), nil
}
