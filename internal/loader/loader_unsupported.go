//go:build !(darwin || freebsd || linux || windows)

package loader

import (
	"fmt"
	"runtime"
)

// sysHandle is unused; every open fails.
type sysHandle = uintptr

func sysOpen(string) (sysHandle, error) {
	return 0, fmt.Errorf("dynamic loading is not supported on %s/%s", runtime.GOOS, runtime.GOARCH)
}

func sysLookup(sysHandle, string) (uintptr, error) {
	return 0, fmt.Errorf("dynamic loading is not supported on %s/%s", runtime.GOOS, runtime.GOARCH)
}

func sysClose(sysHandle) error {
	return nil
}
