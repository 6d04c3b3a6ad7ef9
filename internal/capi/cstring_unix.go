//go:build !windows

package capi

import "golang.org/x/sys/unix"

// goString copies a NUL-terminated C string. NULL yields "".
func goString(p *byte) string {
	if p == nil {
		return ""
	}
	return unix.BytePtrToString(p)
}
