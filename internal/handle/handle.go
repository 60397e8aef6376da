// Package handle encodes and decodes the opaque identifiers exchanged with
// API clients. A handle is base64("Kind:id"); the declared kind is validated
// on resolution so a handle minted for one entity type can never address
// another.
package handle

import (
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Kind names an addressable entity type.
type Kind string

const (
	KindDataset        Kind = "Dataset"
	KindDatasetVersion Kind = "DatasetVersion"
	KindDatasetExample Kind = "DatasetExample"
	KindSpan           Kind = "Span"
	KindUser           Kind = "User"
)

// Encode returns the opaque handle for an internal numeric id.
func Encode(kind Kind, id int64) string {
	return base64.StdEncoding.EncodeToString([]byte(string(kind) + ":" + strconv.FormatInt(id, 10)))
}

// Resolve decodes a handle and validates its declared kind, returning the
// internal numeric id.
func Resolve(h string, expected Kind) (int64, error) {
	raw, err := base64.StdEncoding.DecodeString(h)
	if err != nil {
		return 0, eris.Wrapf(err, "handle: malformed id %q", h)
	}
	kind, idStr, ok := strings.Cut(string(raw), ":")
	if !ok {
		return 0, eris.Errorf("handle: malformed id %q", h)
	}
	if Kind(kind) != expected {
		return 0, eris.Errorf("handle: expected %s id, got %s", expected, kind)
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "handle: malformed id %q", h)
	}
	return id, nil
}

// ResolveAll resolves a slice of handles of one kind, preserving order.
func ResolveAll(hs []string, expected Kind) ([]int64, error) {
	ids := make([]int64, 0, len(hs))
	for _, h := range hs {
		id, err := Resolve(h, expected)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
