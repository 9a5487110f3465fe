package page

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// Caller walks up the call stack and returns the first test file location it
// sees, e.g. "search_test.go:53", or "unknown" when not called from a test.
func Caller() string {
	for skip := 1; ; skip++ {
		_, file, line, ok := runtime.Caller(skip)
		if !ok {
			return "unknown"
		}
		if strings.HasSuffix(file, "_test.go") {
			return fmt.Sprintf("%s:%d", filepath.Base(file), line)
		}
	}
}
