package docparse

import "strings"

// minPrintableRun filters OLE structure noise out of .msg containers
const minPrintableRun = 4

// parseMsg extracts printable text runs from an Outlook .msg container.
// NUL bytes are transparent because .msg strings are UTF-16LE.
func parseMsg(data []byte) (string, map[string]string) {
	runs := []string{}
	run := make([]byte, 0, 256)

	flush := func() {
		if len(run) >= minPrintableRun {
			runs = append(runs, string(run))
		}
		run = run[:0]
	}

	for _, b := range data {
		switch {
		case b >= 0x20 && b <= 0x7e:
			run = append(run, b)
		case b == 0x00:
			continue
		case b == '\n' || b == '\r' || b == '\t':
			flush()
		default:
			flush()
		}
	}
	flush()

	return strings.Join(runs, "\n"), map[string]string{"format": "msg"}
}
