//go:build windows

package loader

import "golang.org/x/sys/windows"

// sysHandle is the loaded module.
type sysHandle = *windows.DLL

func sysOpen(path string) (sysHandle, error) {
	return windows.LoadDLL(path)
}

func sysLookup(handle sysHandle, name string) (uintptr, error) {
	proc, err := handle.FindProc(name)
	if err != nil {
		return 0, err
	}
	return proc.Addr(), nil
}

func sysClose(handle sysHandle) error {
	return handle.Release()
}
