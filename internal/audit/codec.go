package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/alanyoungcy/arbot/internal/domain"
)

// EncodeLine serializes a record as one newline-terminated JSON object.
func EncodeLine(rec domain.AuditRecord) ([]byte, error) {
	buf, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return append(buf, '\n'), nil
}

// DecodeLine parses one JSONL line back into an AuditRecord.
func DecodeLine(line []byte) (domain.AuditRecord, error) {
	var rec domain.AuditRecord
	if err := json.Unmarshal(bytes.TrimSpace(line), &rec); err != nil {
		return domain.AuditRecord{}, fmt.Errorf("audit: decode line: %w", err)
	}
	return rec, nil
}

// ReadAll decodes every record from a JSONL stream, preserving append order.
// Blank lines are skipped.
func ReadAll(r io.Reader) ([]domain.AuditRecord, error) {
	var records []domain.AuditRecord
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		rec, err := DecodeLine(line)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("audit: scan: %w", err)
	}
	return records, nil
}
