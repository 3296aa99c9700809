// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package datasets

import (
	"encoding/json"
	"testing"
)

func TestCompressionRoundTrip(t *testing.T) {
	none := Compression{Kind: CompressionNone, Suffix: Name("")}
	data, err := json.Marshal(none)
	if err != nil {
		t.Fatal(err)
	}
	var back Compression
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.Kind != CompressionNone {
		t.Fatalf("expected none kind, got %v", back.Kind)
	}

	brotli := Compression{Kind: CompressionBrotli, Size: 128, Hash: SumHash(NewHasher()), Suffix: Name(".br")}
	data, err = json.Marshal(brotli)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.Kind != CompressionBrotli || back.Size != 128 || back.Suffix != Name(".br") {
		t.Fatalf("round trip mismatch: %+v", back)
	}
}

func TestCompressionsRequiresAtLeastOne(t *testing.T) {
	var c Compressions
	if err := json.Unmarshal([]byte(`[]`), &c); err == nil {
		t.Fatal("expected error unmarshaling empty compressions array")
	}
}

func TestCompressionsMarshalOrder(t *testing.T) {
	c := Compressions{
		First: Compression{Kind: CompressionNone, Suffix: Name("")},
		Rest:  []Compression{{Kind: CompressionBrotli, Size: 10, Suffix: Name(".br")}},
	}
	data, err := json.Marshal(c)
	if err != nil {
		t.Fatal(err)
	}
	var back Compressions
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.First.Kind != CompressionNone || len(back.Rest) != 1 || back.Rest[0].Kind != CompressionBrotli {
		t.Fatalf("order not preserved: %+v", back)
	}
}

func TestResourceBestCompressionPrefersSmallest(t *testing.T) {
	r := &Resource{
		Size: 1000,
		Compressions: Compressions{
			First: Compression{Kind: CompressionNone, Suffix: Name("")},
			Rest:  []Compression{{Kind: CompressionBrotli, Size: 400, Suffix: Name(".br")}},
		},
	}
	best, props := r.BestCompression()
	if best.Kind != CompressionBrotli || props.Size != 400 {
		t.Fatalf("expected brotli at 400 bytes to win, got %+v / %+v", best, props)
	}
}

func TestResourceBestCompressionTiesFavorEarliest(t *testing.T) {
	r := &Resource{
		Size: 500,
		Compressions: Compressions{
			First: Compression{Kind: CompressionNone, Suffix: Name("")},
			Rest:  []Compression{{Kind: CompressionBrotli, Size: 500, Suffix: Name(".br")}},
		},
	}
	best, _ := r.BestCompression()
	if best.Kind != CompressionNone {
		t.Fatalf("expected the first entry to win a tie, got %+v", best)
	}
}

func TestPropertiesImuRoundTrip(t *testing.T) {
	p := Properties{Kind: PropertiesImu}
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	var back Properties
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.Kind != PropertiesImu {
		t.Fatalf("expected imu kind, got %+v", back)
	}
}

func TestIndexResourcesOrdersFilesBeforeOtherFiles(t *testing.T) {
	idx := &Index{
		Files: []File{
			{Resource: Resource{Name: Name("a.bin")}, Properties: Properties{Kind: PropertiesImu}},
		},
		OtherFiles: []OtherFile{
			{Resource: Resource{Name: Name("b.txt")}},
		},
	}
	resources := idx.Resources()
	if len(resources) != 2 {
		t.Fatalf("expected 2 resources, got %d", len(resources))
	}
	if resources[0].Name != Name("a.bin") || resources[1].Name != Name("b.txt") {
		t.Fatalf("unexpected order: %v, %v", resources[0].Name, resources[1].Name)
	}
}

func TestIndexUnmarshalMinimal(t *testing.T) {
	raw := []byte(`{"version":{"major":1,"minor":0,"patch":0},"directories":["sub"],"files":[],"other_files":[]}`)
	var idx Index
	if err := json.Unmarshal(raw, &idx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(idx.Directories) != 1 || idx.Directories[0] != Name("sub") {
		t.Fatalf("unexpected directories: %v", idx.Directories)
	}
}
