package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dmitrijs2005/cryptexdrive/internal/common"
)

const tempPrefix = ".tmp-"

// Local keeps each owner's blobs in <root>/<owner>/<name>.
type Local struct {
	root string
}

func NewLocal(root string) (*Local, error) {
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Local{root: root}, nil
}

// Save writes to a temp file in the owner directory and renames it into
// place, so readers see either the old blob or the new one.
func (l *Local) Save(_ context.Context, owner, name string, data []byte) (err error) {
	if err := validate(owner, name); err != nil {
		return err
	}

	dir := filepath.Join(l.root, owner)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create owner dir: %w", err)
	}

	f, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	if _, err = f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write blob: %w", err)
	}
	if err = f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync blob: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("close blob: %w", err)
	}
	if err = os.Rename(tmp, filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("rename blob: %w", err)
	}
	return nil
}

func (l *Local) Read(_ context.Context, owner, name string) ([]byte, error) {
	if err := validate(owner, name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(l.root, owner, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

func (l *Local) List(_ context.Context, owner string) ([]string, error) {
	if err := ValidateName(owner); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(l.root, owner))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list blobs: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), tempPrefix) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (l *Local) Delete(_ context.Context, owner, name string) error {
	if err := validate(owner, name); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(l.root, owner, name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}
