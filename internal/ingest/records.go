package ingest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/osinto/casefile/internal/ftm"
)

// Record is one FollowTheMoney record as it appears on the wire. The
// id is optional; generated ids are assigned during ingestion.
type Record struct {
	ID         string         `json:"id"`
	Schema     string         `json:"schema"`
	Properties ftm.Properties `json:"properties"`
}

// maxRecordLine bounds a single NDJSON line. FTM exports carry whole
// documents in bodyText, so lines can get large.
const maxRecordLine = 16 * 1024 * 1024

// DecodeRecords parses FTM records from a JSON array or an NDJSON
// stream. The format is sniffed from the first non-space byte; `.ftm`
// and `.ijson` filenames try NDJSON first. Either way the other format
// is attempted before giving up.
func DecodeRecords(data []byte, filename string) ([]Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return []Record{}, nil
	}

	name := strings.ToLower(filename)
	linesFirst := strings.HasSuffix(name, ".ftm") ||
		strings.HasSuffix(name, ".ijson") ||
		trimmed[0] != '['

	if linesFirst {
		records, err := decodeLines(trimmed)
		if err == nil {
			return records, nil
		}
		if records, arrayErr := decodeArray(trimmed); arrayErr == nil {
			return records, nil
		}
		return nil, err
	}

	records, err := decodeArray(trimmed)
	if err == nil {
		return records, nil
	}
	if records, lineErr := decodeLines(trimmed); lineErr == nil {
		return records, nil
	}
	return nil, err
}

func decodeArray(data []byte) ([]Record, error) {
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing record array: %w", err)
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

func decodeLines(data []byte) ([]Record, error) {
	records := []Record{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordLine)

	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var record Record
		if err := json.Unmarshal(text, &record); err != nil {
			return nil, fmt.Errorf("parsing line %d: %w", line, err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading records: %w", err)
	}
	return records, nil
}
