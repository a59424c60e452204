package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// =============================================================================
// Supported File Types
// =============================================================================

// photoExts contains photo file extensions.
// These files are candidates for EXIF date extraction.
var photoExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".heic": true,
	".hif":  true, // Apple HEIF (alternate extension)
	".webp": true,
	".dng":  true, // Adobe Digital Negative
	".arw":  true, // Sony RAW
	".cr2":  true, // Canon RAW
	".nef":  true, // Nikon RAW
	".raf":  true, // Fujifilm RAW
}

// videoExts contains video file extensions.
var videoExts = map[string]bool{
	".mp4": true,
	".mov": true,
	".m4v": true,
	".3gp": true,
	".avi": true,
	".mkv": true,
	".mts": true,
}

// isPhotoFile returns true if the file extension indicates a photo file.
func isPhotoFile(ext string) bool {
	return photoExts[strings.ToLower(ext)]
}

// isVideoFile returns true if the file extension indicates a video file.
func isVideoFile(ext string) bool {
	return videoExts[strings.ToLower(ext)]
}

// =============================================================================
// Sidecar Records
// =============================================================================

// ErrNoCaptureTime is returned when neither the sidecar nor any enabled
// fallback yields a non-zero capture time.
var ErrNoCaptureTime = errors.New("no capture time")

// Epoch is a Unix timestamp in seconds. The exporter writes it as a numeric
// string; plain JSON numbers are accepted too.
type Epoch int64

// UnmarshalJSON implements json.Unmarshaler.
func (e *Epoch) UnmarshalJSON(data []byte) error {
	raw := string(bytes.Trim(bytes.TrimSpace(data), `"`))
	if raw == "" || raw == "null" {
		*e = 0
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("timestamp %s: %w", data, err)
	}
	*e = Epoch(v)
	return nil
}

// Time converts e to a time.Time; zero stays the zero Time.
func (e Epoch) Time() time.Time {
	if e == 0 {
		return time.Time{}
	}
	return time.Unix(int64(e), 0)
}

// Timestamp is the nested shape used by photoTakenTime and creationTime.
type Timestamp struct {
	Timestamp Epoch  `json:"timestamp"`
	Formatted string `json:"formatted"`
}

// GeoData is the exporter's location block.
type GeoData struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
}

// Sidecar is the JSON metadata record written next to each media file.
// Only the fields the merger reads are decoded.
type Sidecar struct {
	Title          string    `json:"title"`
	PhotoTakenTime Timestamp `json:"photoTakenTime"`
	CreationTime   Timestamp `json:"creationTime"`
	GeoData        GeoData   `json:"geoData"`
	Location       string    `json:"location"`
}

// ReadSidecar loads and decodes a sidecar file.
func ReadSidecar(path string) (*Sidecar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Sidecar
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	s.applyDefaults()
	return &s, nil
}

// applyDefaults fills optional fields that may be absent from the record.
// A missing location is derived from geoData when coordinates are present
// and left empty otherwise.
func (s *Sidecar) applyDefaults() {
	if s.Location != "" {
		return
	}
	if s.GeoData.Latitude != 0 || s.GeoData.Longitude != 0 {
		s.Location = strconv.FormatFloat(s.GeoData.Latitude, 'f', 6, 64) + "," +
			strconv.FormatFloat(s.GeoData.Longitude, 'f', 6, 64)
	}
}

// =============================================================================
// Capture Time Resolution
// =============================================================================

// CaptureSource names where a capture time came from.
type CaptureSource string

const (
	SourcePhotoTaken CaptureSource = "photoTakenTime"
	SourceCreation   CaptureSource = "creationTime"
	SourceEXIF       CaptureSource = "exif"
	SourceFilename   CaptureSource = "filename"
)

// CaptureTime returns the primary photoTakenTime, falling back to
// creationTime when the primary is absent or zero.
func (s *Sidecar) CaptureTime() (time.Time, CaptureSource, bool) {
	if t := s.PhotoTakenTime.Timestamp.Time(); !t.IsZero() {
		return t, SourcePhotoTaken, true
	}
	if t := s.CreationTime.Timestamp.Time(); !t.IsZero() {
		return t, SourceCreation, true
	}
	return time.Time{}, "", false
}

// resolveCaptureTime determines the capture time for a paired file.
// Priority:
//  1. sidecar photoTakenTime
//  2. sidecar creationTime
//  3. EXIF DateTimeOriginal (photos only, when enabled)
//  4. date parsed from the file name (when enabled)
func resolveCaptureTime(m Merge, s *Sidecar, mediaPath string) (time.Time, CaptureSource, error) {
	if t, src, ok := s.CaptureTime(); ok {
		return t, src, nil
	}
	if m.EXIFFallback && isPhotoFile(filepath.Ext(mediaPath)) {
		if t, err := exifDate(mediaPath); err == nil && !t.IsZero() {
			return t, SourceEXIF, nil
		}
	}
	if m.FilenameFallback {
		if t, ok := dateFromFilename(filepath.Base(mediaPath)); ok {
			return t, SourceFilename, nil
		}
	}
	return time.Time{}, "", ErrNoCaptureTime
}

// exifDate extracts the capture date from a photo's EXIF metadata.
func exifDate(path string) (time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return time.Time{}, err
	}
	return x.DateTime()
}

// datePatterns contains regex patterns for extracting dates from filenames.
// Patterns are tried in order; first match wins.
var datePatterns = []struct {
	regex  *regexp.Regexp
	layout string
}{
	// Android camera: IMG_20210101_123456.jpg, PXL_20210101_123456789.jpg
	{regexp.MustCompile(`(\d{8}_\d{6})`), "20060102_150405"},

	// Screenshots: Screenshot_2021-01-01-12-34-56.png
	{regexp.MustCompile(`(\d{4}-\d{2}-\d{2}-\d{2}-\d{2}-\d{2})`), "2006-01-02-15-04-05"},

	// ISO date: 2021-01-01_photo.jpg
	{regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`), "2006-01-02"},

	// Compact date: 20210101_photo.jpg (last resort, less specific)
	{regexp.MustCompile(`(\d{8})`), "20060102"},
}

// dateFromFilename attempts to extract a date from the filename.
func dateFromFilename(filename string) (time.Time, bool) {
	for _, p := range datePatterns {
		matches := p.regex.FindStringSubmatch(filename)
		if len(matches) < 2 {
			continue
		}
		if t, err := time.ParseInLocation(p.layout, matches[1], time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
