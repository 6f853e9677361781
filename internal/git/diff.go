package git

import (
	"fmt"
	"strings"
)

// parseNameStatus parses `git diff-tree -r -z --name-status` output.
//
// Records are NUL separated: "<status>\0<path>\0" for most changes and
// "<status><score>\0<old>\0<new>\0" for renames and copies.
func parseNameStatus(out []byte) ([]ChangeRecord, error) {
	fields := strings.Split(string(out), "\x00")
	records := make([]ChangeRecord, 0, len(fields)/2)

	for i := 0; i < len(fields); {
		status := fields[i]
		if status == "" {
			i++
			continue
		}

		switch status[0] {
		case 'R', 'C':
			if i+2 >= len(fields) {
				return nil, fmt.Errorf("truncated %s record in diff output", status)
			}
			kind := Renamed
			if status[0] == 'C' {
				// A copy leaves the source untouched; the destination is new.
				kind = Added
			}
			records = append(records, ChangeRecord{Kind: kind, Path: NormalizePath(fields[i+2])})
			i += 3

		default:
			if i+1 >= len(fields) {
				return nil, fmt.Errorf("truncated %s record in diff output", status)
			}
			kind, err := kindFromStatus(status[0])
			if err != nil {
				return nil, fmt.Errorf("%w: %q for %s", err, status, fields[i+1])
			}
			records = append(records, ChangeRecord{Kind: kind, Path: NormalizePath(fields[i+1])})
			i += 2
		}
	}

	return records, nil
}

func kindFromStatus(code byte) (ChangeKind, error) {
	switch code {
	case 'A':
		return Added, nil
	case 'M', 'T':
		return Modified, nil
	case 'D':
		return Deleted, nil
	default:
		return 0, ErrUnsupportedStatus
	}
}
