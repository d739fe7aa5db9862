package usecase

import (
	"fmt"
	"regexp"
	"time"
)

var timestampPattern = regexp.MustCompile(`(\d{8})_(\d{6})`)

// extractTimestamp finds the backup timestamp embedded in a file name such
// as app_20240102_150405.sql.gz.
func extractTimestamp(filename string) (time.Time, error) {
	matches := timestampPattern.FindStringSubmatch(filename)
	if len(matches) < 3 {
		return time.Time{}, fmt.Errorf("invalid filename format: no timestamp found")
	}

	return time.Parse(backupTimestamp, matches[1]+"_"+matches[2])
}
