package loader

import (
	"os"
	"runtime"
	"testing"
)

// systemSymbol names an export of every candidate in systemLibraryCandidates.
func systemSymbol() string {
	if runtime.GOOS == "windows" {
		return "GetCurrentProcessId"
	}
	return "getpid"
}

func systemLibraryCandidates() []string {
	switch runtime.GOOS {
	case "linux":
		return []string{
			"/lib/x86_64-linux-gnu/libc.so.6",
			"/lib/aarch64-linux-gnu/libc.so.6",
			"/usr/lib/x86_64-linux-gnu/libc.so.6",
			"/usr/lib/aarch64-linux-gnu/libc.so.6",
			"/lib64/libc.so.6",
			"/usr/lib64/libc.so.6",
			"/lib/libc.so.6",
			"/lib/ld-musl-x86_64.so.1",
			"/lib/ld-musl-aarch64.so.1",
		}
	case "darwin":
		return []string{"/usr/lib/libSystem.B.dylib"}
	case "windows":
		return []string{`C:\Windows\System32\kernel32.dll`}
	default:
		return nil
	}
}

// openSystemLibrary opens a library that is always present on the host, or
// skips the test.
func openSystemLibrary(t *testing.T) *Library {
	t.Helper()
	for _, candidate := range systemLibraryCandidates() {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		lib, err := Open(candidate)
		if err != nil {
			t.Fatalf("Open(%s): %v", candidate, err)
		}
		return lib
	}
	t.Skipf("no system library found for %s", runtime.GOOS)
	return nil
}
