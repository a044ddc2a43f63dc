// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package imagehash

import (
	"archive/zip"
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/pdiddy/exam-audit/pkg/types"
)

// makePNG renders a 64x64 grayscale PNG from a per-pixel intensity
// function.
func makePNG(t *testing.T, intensity func(x, y int) uint8) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Pix[y*img.Stride+x] = intensity(x, y)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test image: %v", err)
	}
	return buf.Bytes()
}

func gradientLR(x, _ int) uint8 { return uint8(x * 4) }
func gradientRL(x, _ int) uint8 { return uint8(255 - x*4) }

func TestHashStableForIdenticalImages(t *testing.T) {
	a, err := Hash(makePNG(t, gradientLR))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	b, err := Hash(makePNG(t, gradientLR))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if a != b {
		t.Errorf("identical images must hash equally: %016x != %016x", a, b)
	}
}

func TestHashSeparatesOpposedImages(t *testing.T) {
	a, err := Hash(makePNG(t, gradientLR))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	b, err := Hash(makePNG(t, gradientRL))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if Distance(a, b) <= 8 {
		t.Errorf("opposed gradients must be far apart, distance %d", Distance(a, b))
	}
}

func TestHashRejectsGarbage(t *testing.T) {
	if _, err := Hash([]byte("definitely not an image")); err == nil {
		t.Error("expected error for undecodable bytes")
	}
}

func TestDistance(t *testing.T) {
	if got := Distance(0, 0); got != 0 {
		t.Errorf("Distance(0,0) = %d", got)
	}
	if got := Distance(0, 1); got != 1 {
		t.Errorf("Distance(0,1) = %d", got)
	}
	if got := Distance(0, ^uint64(0)); got != 64 {
		t.Errorf("Distance(0,^0) = %d", got)
	}
}

func TestClusterItems(t *testing.T) {
	items := []Item{
		{ID: "img_q1_1", ParentID: "q1", Hash: 0xff00ff00ff00ff00},
		{ID: "img_q2_1", ParentID: "q2", Hash: 0xff00ff00ff00ff01},
		{ID: "img_q3_1", ParentID: "q3", Hash: 0x0000000000000000},
	}
	got := ClusterItems(items, 8)

	if got.Assignment["img_q1_1"] != got.Assignment["img_q2_1"] {
		t.Errorf("near hashes must share a cluster: %v", got.Assignment)
	}
	if got.Assignment["img_q3_1"] == got.Assignment["img_q1_1"] {
		t.Errorf("distant hash must not join: %v", got.Assignment)
	}
	if got.Assignment["img_q1_1"] != "img-cluster-1" {
		t.Errorf("first cluster must be img-cluster-1, got %s", got.Assignment["img_q1_1"])
	}
	if len(got.ParentClusters["q1"]) != 1 {
		t.Errorf("parent view missing: %v", got.ParentClusters)
	}
}

func TestClusterItemsParentDedup(t *testing.T) {
	items := []Item{
		{ID: "img_q1_1", ParentID: "q1", Hash: 42},
		{ID: "img_q1_2", ParentID: "q1", Hash: 42},
	}
	got := ClusterItems(items, 0)
	if len(got.ParentClusters["q1"]) != 1 {
		t.Errorf("same cluster must appear once per parent: %v", got.ParentClusters["q1"])
	}
}

func TestMatchKnowledge(t *testing.T) {
	items := []Item{{ID: "img_q1_1", ParentID: "q1", Hash: 0xaaaaaaaaaaaaaaaa}}
	corpus := []types.KnowledgeImage{
		{ImageID: "atlas#1", Source: "atlas.pdf", Page: 12, Hash: 0xaaaaaaaaaaaaaaaa},
		{ImageID: "atlas#2", Source: "atlas.pdf", Page: 40, Hash: 0xaaaaaaaaaaaaaaab},
		{ImageID: "atlas#3", Source: "atlas.pdf", Page: 77, Hash: 0x5555555555555555},
	}
	got := MatchKnowledge(items, corpus, 10)

	matches := got["q1"]
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].KnowledgeImageID != "atlas#1" || matches[0].HammingDistance != 0 {
		t.Errorf("nearest match must come first: %+v", matches[0])
	}
	if matches[1].HammingDistance != 1 {
		t.Errorf("unexpected second match: %+v", matches[1])
	}
}

func TestMatchKnowledgeCapsPerImage(t *testing.T) {
	items := []Item{{ID: "img_q1_1", ParentID: "q1", Hash: 0}}
	var corpus []types.KnowledgeImage
	for i := 0; i < 12; i++ {
		corpus = append(corpus, types.KnowledgeImage{
			ImageID: string(rune('a' + i)),
			Source:  "atlas.pdf",
			Hash:    uint64(1) << i,
		})
	}
	got := MatchKnowledge(items, corpus, 10)
	if len(got["q1"]) != maxMatchesPerImage {
		t.Errorf("expected cap at %d matches, got %d", maxMatchesPerImage, len(got["q1"]))
	}
}

func writeTestZip(t *testing.T, files map[string][]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "images.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for name, data := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFromZip(t *testing.T) {
	good := makePNG(t, gradientLR)
	path := writeTestZip(t, map[string][]byte{
		"img_q1_1.png": good,
		"img_q1_2.png": makePNG(t, gradientRL),
		"img_q2_1.png": good,
		"broken.png":   []byte("corrupt"),
	})

	store, err := FromZip(path)
	if err != nil {
		t.Fatalf("FromZip: %v", err)
	}
	if store.Len() != 3 {
		t.Errorf("expected 3 readable images, got %d", store.Len())
	}
	if store.Skipped != 1 {
		t.Errorf("expected 1 skipped image, got %d", store.Skipped)
	}

	q1 := store.ForQuestion("q1")
	if len(q1) != 2 {
		t.Fatalf("expected 2 images for q1, got %d", len(q1))
	}
	if q1[0].Stem != "img_q1_1" || q1[1].Stem != "img_q1_2" {
		t.Errorf("unexpected stem order: %s, %s", q1[0].Stem, q1[1].Stem)
	}

	if _, ok := store.ByStem("img_q2_1"); !ok {
		t.Error("expected lookup by stem to succeed")
	}
	if missing := store.MissingRefs([]string{"img_q1_1.png", "img_q9_1.png"}); len(missing) != 1 || missing[0] != "img_q9_1.png" {
		t.Errorf("unexpected missing refs: %v", missing)
	}

	items := store.Items()
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	for _, it := range items {
		if it.ParentID == "" {
			t.Errorf("item %s has no parent question", it.ID)
		}
	}
}

func TestFromZipMissingArchive(t *testing.T) {
	if _, err := FromZip(filepath.Join(t.TempDir(), "missing.zip")); err == nil {
		t.Error("expected error for missing archive")
	}
}
