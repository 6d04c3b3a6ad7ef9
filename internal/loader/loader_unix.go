//go:build darwin || freebsd || linux

package loader

import "github.com/ebitengine/purego"

// sysHandle is the dlopen handle.
type sysHandle = uintptr

// sysOpen resolves every symbol at load time and keeps them out of the
// global namespace.
func sysOpen(path string) (sysHandle, error) {
	return purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
}

func sysLookup(handle sysHandle, name string) (uintptr, error) {
	return purego.Dlsym(handle, name)
}

func sysClose(handle sysHandle) error {
	return purego.Dlclose(handle)
}
