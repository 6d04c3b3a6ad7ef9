//go:build windows

package capi

import "golang.org/x/sys/windows"

// goString copies a NUL-terminated C string. NULL yields "".
func goString(p *byte) string {
	if p == nil {
		return ""
	}
	return windows.BytePtrToString(p)
}
