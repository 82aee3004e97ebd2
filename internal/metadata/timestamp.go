package metadata

import (
	"regexp"
	"strconv"
	"time"
)

// filenameTimestamp matches the YYYYMMDD_HHMMSS naming used by cameras and
// export tools (separators between date and time are optional, e.g.
// IMG_20240615_143022.jpg or 20240615-143022_edit.png).
var filenameTimestamp = regexp.MustCompile(`((?:19|20)\d{2})(\d{2})(\d{2})[_-]?(\d{2})(\d{2})(\d{2})`)

// TimestampFromFilename extracts a capture timestamp embedded in a filename.
// Returns false when no plausible timestamp is present.
func TimestampFromFilename(name string) (time.Time, bool) {
	m := filenameTimestamp.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, false
	}

	year := atoi(m[1])
	month := atoi(m[2])
	day := atoi(m[3])
	hour := atoi(m[4])
	minute := atoi(m[5])
	second := atoi(m[6])

	if month < 1 || month > 12 || day < 1 || day > 31 ||
		hour > 23 || minute > 59 || second > 59 {
		return time.Time{}, false
	}

	ts := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.Local)
	// Reject impossible dates such as February 30th, which time.Date
	// silently normalizes into the next month.
	if ts.Day() != day || ts.Month() != time.Month(month) {
		return time.Time{}, false
	}
	return ts, true
}

// ResolveTime returns the best-effort capture timestamp for a file. It never
// fails; the priority chain is embedded capture metadata, then a filename
// timestamp, then the file's own upload/modification time.
//
// Metadata is most authoritative but frequently stripped by sharing tools;
// filename patterns are a strong secondary signal for camera exports; the
// fallback is the only value guaranteed to exist.
func ResolveTime(info *Info, filename string, fallback time.Time) time.Time {
	if info != nil {
		if info.TakenAt != nil {
			return *info.TakenAt
		}
		if info.ModifiedAt != nil {
			return *info.ModifiedAt
		}
	}
	if ts, ok := TimestampFromFilename(filename); ok {
		return ts
	}
	return fallback
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
