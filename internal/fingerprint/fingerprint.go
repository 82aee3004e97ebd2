// Package fingerprint computes 64-bit perceptual fingerprints for photos and
// scores their similarity. The fingerprint is an average hash: coarse enough
// to survive re-encoding and re-compression, cheap enough to compute lazily
// for every library entry.
package fingerprint

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"strconv"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// gridSize is the sampling grid edge; gridSize*gridSize samples become bits.
	gridSize = 8
	// Bits is the fingerprint length in bits.
	Bits = gridSize * gridSize
	// HexLen is the length of a hex-encoded fingerprint.
	HexLen = Bits / 4
)

// Zero is the sentinel fingerprint for files that could not be decoded.
// A zero fingerprint never matches anything and degrades the duplicate
// check to exact-hash-only.
const Zero = "0000000000000000"

var (
	// ErrUnsupportedFormat is returned when the input cannot be decoded as a
	// raster image. Non-image files simply have no fingerprint; callers use
	// the Zero sentinel and move on.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrLengthMismatch is returned when two fingerprints of different
	// bit-lengths are compared. The generator always produces fixed-length
	// fingerprints, so hitting this indicates a defect, not bad user input.
	ErrLengthMismatch = errors.New("fingerprint length mismatch")
)

// Compute derives the 64-bit average hash of an image and returns it as a
// 16-character hex string.
//
// The image is downsampled to an 8x8 grayscale grid with a Catmull-Rom
// filter, the 64 samples are averaged, and bit i is set when sample i is
// above the mean. Raster order, most significant bit first.
func Compute(imageData []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return Zero, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	return Encode(computeAverageHash(img)), nil
}

// computeAverageHash computes the raw 64-bit average hash for a decoded image.
func computeAverageHash(img image.Image) uint64 {
	gray := sampleGrid(img)

	var sum float64
	for _, row := range gray {
		for _, v := range row {
			sum += v
		}
	}
	mean := sum / float64(Bits)

	var hash uint64
	bit := Bits - 1
	for y := range gridSize {
		for x := range gridSize {
			if gray[x][y] > mean {
				hash |= 1 << bit
			}
			bit--
		}
	}
	return hash
}

// sampleGrid scales the image down to the sampling grid and converts it to
// grayscale values in [0,255], indexed [x][y].
func sampleGrid(img image.Image) [gridSize][gridSize]float64 {
	dst := image.NewRGBA(image.Rect(0, 0, gridSize, gridSize))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)

	var gray [gridSize][gridSize]float64
	for x := range gridSize {
		for y := range gridSize {
			r, g, b, _ := dst.At(x, y).RGBA()
			// ITU-R BT.601 luma formula.
			gray[x][y] = 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
		}
	}
	return gray
}

// Encode formats a raw 64-bit fingerprint as a 16-character hex string.
func Encode(hash uint64) string {
	return fmt.Sprintf("%016x", hash)
}

// Decode parses a hex-encoded fingerprint back into its raw bits.
func Decode(fp string) (uint64, error) {
	v, err := strconv.ParseUint(fp, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid fingerprint %q: %w", fp, err)
	}
	return v, nil
}

// HammingDistance counts the differing bits between two raw fingerprints.
func HammingDistance(a, b uint64) int {
	xor := a ^ b
	distance := 0
	for xor != 0 {
		distance++
		xor &= xor - 1 // Clear lowest set bit
	}
	return distance
}

// Similarity compares two hex-encoded fingerprints and returns a percentage
// in [0,100], rounded to two decimal places: 100 means every bit matches.
// Symmetric and reflexive. Returns ErrLengthMismatch when the fingerprints
// do not have the same bit-length.
func Similarity(a, b string) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d hex chars", ErrLengthMismatch, len(a), len(b))
	}

	bitsA, err := Decode(a)
	if err != nil {
		return 0, err
	}
	bitsB, err := Decode(b)
	if err != nil {
		return 0, err
	}

	totalBits := len(a) * 4
	matching := 1 - float64(HammingDistance(bitsA, bitsB))/float64(totalBits)
	return math.Round(matching*100*100) / 100, nil
}

// IsZero reports whether fp is the unreadable-file sentinel.
func IsZero(fp string) bool {
	return fp == Zero || fp == ""
}
