package comic

import "strings"

// ImageURL picks the display URL of a record. Local mode serves
// <base>images/<year>/<image> when the record names a local file; otherwise
// the original absolute URL is used, which may be empty.
func ImageURL(rec Record, useLocal bool, base string) string {
	if useLocal && rec.Image != "" {
		if base != "" && !strings.HasSuffix(base, "/") {
			base += "/"
		}
		return base + "images/" + YearOf(rec.Date) + "/" + rec.Image
	}
	return rec.OriginalImageURL
}
