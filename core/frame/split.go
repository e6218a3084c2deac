package frame

import "bytes"

// SplitFrames is a bufio.SplitFunc yielding complete frames from a byte
// stream. Bytes outside a frame are discarded; a start marker with no end
// marker within MaxLen bytes is dropped and scanning resumes after it.
func SplitFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := bytes.IndexByte(data, StartByte)
	if start < 0 {
		return len(data), nil, nil
	}
	rest := data[start:]
	if end := bytes.IndexByte(rest, EndByte); end >= 0 && end < MaxLen {
		return start + end + 1, rest[:end+1], nil
	}
	if len(rest) >= MaxLen {
		return start + 1, nil, nil
	}
	if atEOF {
		return len(data), nil, nil
	}
	return start, nil, nil
}
