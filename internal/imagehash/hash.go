// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package imagehash clusters images by perceptual similarity, with no
// text involvement.
package imagehash

import (
	"bytes"
	"fmt"
	"image"
	"math/bits"

	// Decoders for the formats seen in question-image archives.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/corona10/goimagehash"
)

// Hash computes the 64-bit difference hash of an encoded image. The
// hash is robust to minor scaling and compression differences and is
// compared via Hamming distance.
func Hash(raw []byte) (uint64, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return 0, fmt.Errorf("decoding image: %w", err)
	}
	h, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return 0, fmt.Errorf("hashing image: %w", err)
	}
	return h.GetHash(), nil
}

// Distance returns the Hamming distance between two hashes.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}
