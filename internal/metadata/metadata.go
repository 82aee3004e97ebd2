// Package metadata extracts capture metadata from photo files and resolves
// the best-effort capture timestamp used by burst grouping and duplicate
// reasoning.
package metadata

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// ErrMetadataUnavailable is returned when a file carries no readable capture
// metadata. Absence is not a failure at the caller level; the timestamp
// resolver falls through to its next source.
var ErrMetadataUnavailable = errors.New("capture metadata unavailable")

// Camera describes the capture device settings embedded in a photo.
// All fields are optional; zero values mean the tag was absent.
type Camera struct {
	Make        string  `json:"make,omitempty"`
	Model       string  `json:"model,omitempty"`
	Lens        string  `json:"lens,omitempty"`
	ISO         int     `json:"iso,omitempty"`
	Aperture    float64 `json:"aperture,omitempty"`     // f-number
	FocalLength float64 `json:"focal_length,omitempty"` // millimeters
}

// SameDevice reports whether both cameras declare the same non-empty
// make and model.
func (c *Camera) SameDevice(o *Camera) bool {
	if c == nil || o == nil {
		return false
	}
	return c.Make != "" && c.Model != "" && c.Make == o.Make && c.Model == o.Model
}

// SameExposure reports whether at least one exposure setting (ISO, aperture,
// focal length) is present and identical on both sides.
func (c *Camera) SameExposure(o *Camera) bool {
	if c == nil || o == nil {
		return false
	}
	if c.ISO != 0 && c.ISO == o.ISO {
		return true
	}
	if c.Aperture != 0 && c.Aperture == o.Aperture {
		return true
	}
	if c.FocalLength != 0 && c.FocalLength == o.FocalLength {
		return true
	}
	return false
}

// Info is the typed projection of a photo's EXIF block.
type Info struct {
	TakenAt    *time.Time // original capture time (DateTimeOriginal, then DateTimeDigitized)
	ModifiedAt *time.Time // file modification time recorded by software (DateTime)
	Camera     *Camera
	Software   string // editing/processing software signature, if any
}

// Extractor is the collaborator interface the detector and resolver depend
// on, so tests can inject canned metadata.
type Extractor interface {
	ExtractFile(path string) (*Info, error)
	Extract(data []byte) (*Info, error)
}

// ExifExtractor reads metadata from embedded EXIF blocks.
type ExifExtractor struct{}

// ExtractFile reads capture metadata from the file at path.
func (ExifExtractor) ExtractFile(path string) (*Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMetadataUnavailable, err)
	}
	return ExifExtractor{}.Extract(data)
}

// Extract reads capture metadata from raw file bytes. Files without EXIF
// data return ErrMetadataUnavailable.
func (ExifExtractor) Extract(data []byte) (*Info, error) {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMetadataUnavailable, err)
	}

	info := &Info{
		TakenAt:    firstTagTime(x, exif.DateTimeOriginal, exif.DateTimeDigitized),
		ModifiedAt: firstTagTime(x, exif.DateTime),
		Software:   tagString(x, exif.Software),
		Camera:     extractCamera(x),
	}
	return info, nil
}

// exifTimeLayout is the timestamp format mandated by the EXIF standard.
const exifTimeLayout = "2006:01:02 15:04:05"

// firstTagTime returns the first parseable timestamp among the given tags.
func firstTagTime(x *exif.Exif, names ...exif.FieldName) *time.Time {
	for _, name := range names {
		s := tagString(x, name)
		if s == "" {
			continue
		}
		if ts, err := time.ParseInLocation(exifTimeLayout, s, time.Local); err == nil {
			return &ts
		}
	}
	return nil
}

func extractCamera(x *exif.Exif) *Camera {
	cam := &Camera{
		Make:  tagString(x, exif.Make),
		Model: tagString(x, exif.Model),
		Lens:  tagString(x, exif.LensModel),
	}
	if tag, err := x.Get(exif.ISOSpeedRatings); err == nil {
		if iso, err := tag.Int(0); err == nil {
			cam.ISO = iso
		}
	}
	cam.Aperture = tagRatio(x, exif.FNumber)
	cam.FocalLength = tagRatio(x, exif.FocalLength)

	if cam.Make == "" && cam.Model == "" && cam.Lens == "" &&
		cam.ISO == 0 && cam.Aperture == 0 && cam.FocalLength == 0 {
		return nil
	}
	return cam
}

func tagString(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil || tag == nil {
		return ""
	}
	if tag.Format() == tiff.StringVal {
		if s, err := tag.StringVal(); err == nil {
			return s
		}
	}
	return ""
}

func tagRatio(x *exif.Exif, name exif.FieldName) float64 {
	tag, err := x.Get(name)
	if err != nil || tag == nil {
		return 0
	}
	num, den, err := tag.Rat2(0)
	if err != nil || den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
