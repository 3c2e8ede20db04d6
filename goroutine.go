package di

import (
	"bytes"
	"runtime"
	"strconv"
)

// gid returns the current goroutine id, parsed from the runtime stack header.
// It keys the ambient request-scope slot so nested resolutions on the same
// goroutine find their request context without explicit threading.
func gid() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	header := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	if i := bytes.IndexByte(header, ' '); i > 0 {
		header = header[:i]
	}
	id, _ := strconv.ParseInt(string(header), 10, 64)
	return id
}
