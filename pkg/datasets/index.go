// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package datasets

import (
	"encoding/json"
	"fmt"
)

// Version is the index schema version.
type Version struct {
	Major uint64 `json:"major"`
	Minor uint64 `json:"minor"`
	Patch uint64 `json:"patch"`
}

// CompressionKind discriminates a Compression's wire representation.
type CompressionKind string

const (
	CompressionNone   CompressionKind = "none"
	CompressionBrotli CompressionKind = "brotli"
)

// Compression describes one encoding offered for a Resource. A "none"
// compression serves the raw file directly; "brotli" serves a
// compressed artifact with its own size, digest, and suffix.
type Compression struct {
	Kind   CompressionKind
	Size   uint64 // meaningful only for Brotli
	Hash   Hash   // meaningful only for Brotli
	Suffix Name
}

func (c Compression) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case CompressionNone:
		return json.Marshal(struct {
			Type   string `json:"type"`
			Suffix Name   `json:"suffix"`
		}{"none", c.Suffix})
	case CompressionBrotli:
		return json.Marshal(struct {
			Type   string `json:"type"`
			Size   uint64 `json:"size"`
			Hash   Hash   `json:"hash"`
			Suffix Name   `json:"suffix"`
		}{"brotli", c.Size, c.Hash, c.Suffix})
	default:
		return nil, fmt.Errorf("datasets: unknown compression kind %q", c.Kind)
	}
}

func (c *Compression) UnmarshalJSON(data []byte) error {
	var tagged struct {
		Type   string `json:"type"`
		Size   uint64 `json:"size"`
		Hash   Hash   `json:"hash"`
		Suffix Name   `json:"suffix"`
	}
	if err := json.Unmarshal(data, &tagged); err != nil {
		return err
	}
	switch tagged.Type {
	case "none":
		*c = Compression{Kind: CompressionNone, Suffix: tagged.Suffix}
	case "brotli":
		*c = Compression{Kind: CompressionBrotli, Size: tagged.Size, Hash: tagged.Hash, Suffix: tagged.Suffix}
	default:
		return fmt.Errorf("datasets: unknown compression type %q", tagged.Type)
	}
	return nil
}

// Compressions holds the mandatory first compression and any
// additional alternatives, preserving wire order.
type Compressions struct {
	First Compression
	Rest  []Compression
}

func (c Compressions) MarshalJSON() ([]byte, error) {
	all := make([]Compression, 0, len(c.Rest)+1)
	all = append(all, c.First)
	all = append(all, c.Rest...)
	return json.Marshal(all)
}

func (c *Compressions) UnmarshalJSON(data []byte) error {
	var all []Compression
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	if len(all) == 0 {
		return fmt.Errorf("datasets: compressions array must have at least one element")
	}
	c.First = all[0]
	c.Rest = all[1:]
	return nil
}

// CompressionProperties is the (size, hash, suffix) triple describing
// one compression's transmitted form.
type CompressionProperties struct {
	Size   uint64
	Hash   Hash
	Suffix Name
}

func compressionProperties(resource *Resource, c Compression) CompressionProperties {
	switch c.Kind {
	case CompressionBrotli:
		return CompressionProperties{Size: c.Size, Hash: c.Hash, Suffix: c.Suffix}
	default: // CompressionNone
		return CompressionProperties{Size: resource.Size, Hash: resource.Hash, Suffix: c.Suffix}
	}
}

// Resource is a named file's raw (decompressed) size and digest, plus
// the compressions it is offered in and an optional attached DOI.
type Resource struct {
	Name         Name         `json:"name"`
	Size         uint64       `json:"size"`
	Hash         Hash         `json:"hash"`
	Compressions Compressions `json:"compressions"`
	Doi          *Doi         `json:"doi,omitempty"`
}

// BestCompression returns the compression with the smallest
// transmitted size; the earliest entry wins ties.
func (r *Resource) BestCompression() (Compression, CompressionProperties) {
	best := r.Compressions.First
	bestProps := compressionProperties(r, best)
	for _, c := range r.Compressions.Rest {
		props := compressionProperties(r, c)
		if props.Size < bestProps.Size {
			best, bestProps = c, props
		}
	}
	return best, bestProps
}

// PropertiesKind discriminates the typed properties tag on File entries.
type PropertiesKind string

const (
	PropertiesAps PropertiesKind = "aps"
	PropertiesDvs PropertiesKind = "dvs"
	PropertiesImu PropertiesKind = "imu"
)

// Properties is the internally-tagged per-file property payload.
type Properties struct {
	Kind   PropertiesKind
	Width  uint64 // aps, dvs
	Height uint64 // aps, dvs
}

func (p Properties) MarshalJSON() ([]byte, error) {
	switch p.Kind {
	case PropertiesAps, PropertiesDvs:
		return json.Marshal(struct {
			Type   string `json:"type"`
			Width  uint64 `json:"width"`
			Height uint64 `json:"height"`
		}{string(p.Kind), p.Width, p.Height})
	case PropertiesImu:
		return json.Marshal(struct {
			Type string `json:"type"`
		}{string(p.Kind)})
	default:
		return nil, fmt.Errorf("datasets: unknown properties kind %q", p.Kind)
	}
}

func (p *Properties) UnmarshalJSON(data []byte) error {
	var tagged struct {
		Type   string `json:"type"`
		Width  uint64 `json:"width"`
		Height uint64 `json:"height"`
	}
	if err := json.Unmarshal(data, &tagged); err != nil {
		return err
	}
	switch PropertiesKind(tagged.Type) {
	case PropertiesAps, PropertiesDvs:
		*p = Properties{Kind: PropertiesKind(tagged.Type), Width: tagged.Width, Height: tagged.Height}
	case PropertiesImu:
		*p = Properties{Kind: PropertiesImu}
	default:
		return fmt.Errorf("datasets: unknown properties type %q", tagged.Type)
	}
	return nil
}

// File is a typed resource entry in a directory index.
type File struct {
	Resource
	Properties Properties      `json:"properties"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}

// OtherFile is an untyped resource entry in a directory index.
type OtherFile struct {
	Resource
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// Index is the per-directory record served at "<dir>/-index.json".
type Index struct {
	Version     Version         `json:"version"`
	Doi         *Doi            `json:"doi,omitempty"`
	Directories []Name          `json:"directories"`
	Files       []File          `json:"files"`
	OtherFiles  []OtherFile     `json:"other_files"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

// Resources iterates the files and other_files of the index as a flat
// slice of Resource pointers, files first, matching the original's
// chained iterator order.
func (idx *Index) Resources() []*Resource {
	out := make([]*Resource, 0, len(idx.Files)+len(idx.OtherFiles))
	for i := range idx.Files {
		out = append(out, &idx.Files[i].Resource)
	}
	for i := range idx.OtherFiles {
		out = append(out, &idx.OtherFiles[i].Resource)
	}
	return out
}
