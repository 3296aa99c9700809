// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package datasets

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

var (
	nameRegex = regexp.MustCompile(`^[A-Za-z0-9_\-.]+$`)
	hashRegex = regexp.MustCompile(`^[a-f0-9]{56}$`)
	doiRegex  = regexp.MustCompile(`^10\..+$`)
)

// Name is a single path segment: non-empty, matching ^[A-Za-z0-9_\-.]+$.
type Name string

// ParseName validates s against the Name pattern.
func ParseName(s string) (Name, error) {
	if !nameRegex.MatchString(s) {
		return "", fmt.Errorf("datasets: %q does not match the name pattern", s)
	}
	return Name(s), nil
}

func (n *Name) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseName(s)
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

// PathId is a forward-slash-separated sequence of Name segments. The
// first segment is always the dataset name. It is the logical locator,
// independent of the host filesystem separator.
type PathId string

// Join appends a segment to the path id.
func (p PathId) Join(name Name) PathId {
	return PathId(string(p) + "/" + string(name))
}

// PathRoot is a canonicalized, absolute local directory.
type PathRoot string

// Join maps a logical PathId to a platform-native path.
func (r PathRoot) Join(id PathId) string {
	rel := string(id)
	if filepath.Separator != '/' {
		rel = strings.ReplaceAll(rel, "/", string(filepath.Separator))
	}
	return filepath.Join(string(r), rel)
}

// JoinWithSuffix appends a raw byte suffix to the last path segment
// before mapping it to a platform-native path.
func (r PathRoot) JoinWithSuffix(id PathId, suffix string) string {
	return r.Join(PathId(string(id) + suffix))
}

// JoinWithSuffixes appends two raw byte suffixes in order.
func (r PathRoot) JoinWithSuffixes(id PathId, first, second string) string {
	return r.Join(PathId(string(id) + first + second))
}

// Hash is a SHA3-224 digest (28 bytes), serialized as 56 lowercase hex
// characters.
type Hash [28]byte

// ParseHash validates and decodes a 56-character lowercase hex string.
func ParseHash(s string) (Hash, error) {
	var h Hash
	if !hashRegex.MatchString(s) {
		return h, fmt.Errorf("datasets: %q does not match the hash pattern", s)
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return h, err
	}
	copy(h[:], decoded)
	return h, nil
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseHash(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// NewHasher returns a fresh SHA3-224 hasher compatible with Hash.
func NewHasher() hash.Hash {
	return sha3.New224()
}

// SumHash finalizes a hasher created by NewHasher into a Hash.
func SumHash(h hash.Hash) Hash {
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// Doi is a publication identifier matching ^10\..+$.
type Doi string

// ParseDoi validates s against the DOI pattern.
func ParseDoi(s string) (Doi, error) {
	if !doiRegex.MatchString(s) {
		return "", fmt.Errorf("datasets: %q does not match the doi pattern", s)
	}
	return Doi(s), nil
}

func (d *Doi) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDoi(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Strong, named wrappers for booleans and counts so call sites at
// Install/CalculateSize/Cite are self-describing.
type (
	Force                bool
	Keep                 bool
	DispatchDois         bool
	CalculateSizeFlag    bool
	Pretty               bool
	FilePermits          int
	DownloadIndexPermits int
	DownloadPermits      int
	DownloadDoiPermits   int
	DecodePermits        int
)
