// Package storage persists encrypted blobs keyed by (owner, name). Blobs are
// opaque here: encryption happens before Save and after Read.
package storage

import (
	"context"
	"strings"
	"unicode"

	"github.com/dmitrijs2005/cryptexdrive/internal/common"
)

type Backend interface {
	Save(ctx context.Context, owner, name string, data []byte) error
	// Read returns common.ErrorNotFound when no blob exists.
	Read(ctx context.Context, owner, name string) ([]byte, error)
	// List returns an empty slice for an owner with no blobs.
	List(ctx context.Context, owner string) ([]string, error)
	Delete(ctx context.Context, owner, name string) error
}

// ValidateName rejects anything that could address outside the owner's
// namespace.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return common.ErrInvalidName
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return common.ErrInvalidName
	}
	return nil
}

func validate(owner, name string) error {
	if err := ValidateName(owner); err != nil {
		return err
	}
	return ValidateName(name)
}

// SanitizeName turns a client-supplied filename into a safe one: the path is
// dropped, whitespace becomes "_", characters outside [A-Za-z0-9._-] are
// removed and leading dots or underscores are trimmed.
func SanitizeName(raw string) (string, error) {
	if i := strings.LastIndexAny(raw, "/\\"); i >= 0 {
		raw = raw[i+1:]
	}

	var b strings.Builder
	for _, r := range raw {
		switch {
		case unicode.IsSpace(r):
			b.WriteByte('_')
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '-' || r == '_'):
			b.WriteRune(r)
		}
	}

	name := strings.TrimLeft(b.String(), "._")
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return name, nil
}
