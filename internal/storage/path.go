package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	reportRoot = "reports"
	dateLayout = "2006-01-02"
)

var fileNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// ReportKey is the parsed form of reports/<yyyy-mm-dd>/<run-id>/<file>.
type ReportKey struct {
	Date     time.Time
	RunID    uuid.UUID
	FileName string
}

func (k ReportKey) String() string {
	return path.Join(reportRoot, k.Date.Format(dateLayout), k.RunID.String(), k.FileName)
}

// BuildReportKey lays out reports/<yyyy-mm-dd>/<run-id>/<file>, dated in UTC.
func BuildReportKey(runID uuid.UUID, at time.Time, fileName string) (string, error) {
	if runID == uuid.Nil {
		return "", fmt.Errorf("run id is required")
	}
	fileName = path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if !fileNamePattern.MatchString(fileName) {
		return "", fmt.Errorf("invalid report file name: %q", fileName)
	}
	ts := at.UTC()
	day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	return ReportKey{Date: day, RunID: runID, FileName: fileName}.String(), nil
}

// ParseReportKey accepts only keys produced by BuildReportKey.
func ParseReportKey(key string) (ReportKey, error) {
	parts := strings.Split(strings.TrimPrefix(strings.TrimSpace(key), "/"), "/")
	if len(parts) != 4 || parts[0] != reportRoot {
		return ReportKey{}, fmt.Errorf("invalid report key %q: want %s/<yyyy-mm-dd>/<run-id>/<file>", key, reportRoot)
	}
	day, err := time.Parse(dateLayout, parts[1])
	if err != nil {
		return ReportKey{}, fmt.Errorf("invalid report key %q: bad date %q", key, parts[1])
	}
	runID, err := uuid.Parse(parts[2])
	if err != nil || runID == uuid.Nil {
		return ReportKey{}, fmt.Errorf("invalid report key %q: bad run id %q", key, parts[2])
	}
	if !fileNamePattern.MatchString(parts[3]) {
		return ReportKey{}, fmt.Errorf("invalid report key %q: bad file name %q", key, parts[3])
	}
	return ReportKey{Date: day, RunID: runID, FileName: parts[3]}, nil
}

// ContentType maps report extensions to the MIME type stored with the object.
func ContentType(fileName string) string {
	switch strings.ToLower(path.Ext(fileName)) {
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".csv":
		return "text/csv"
	case ".parquet":
		return "application/vnd.apache.parquet"
	default:
		return "application/octet-stream"
	}
}
