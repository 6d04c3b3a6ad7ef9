// Package loader opens native shared libraries at run time and resolves
// their exported symbols.
//
// A Library owns exactly one OS-level handle. Close releases it once; any
// further Close is a no-op and any Lookup after Close fails with
// ErrLibraryClosed. Callers that bind typed wrappers over the resolved
// addresses (see internal/capi) must not call through them after Close.
//
// On unix-like systems the library is opened with dlopen(RTLD_NOW|RTLD_LOCAL)
// through purego, so every undefined symbol of the artifact is resolved up
// front. On Windows the DLL is loaded with LoadLibrary via x/sys/windows.
package loader
