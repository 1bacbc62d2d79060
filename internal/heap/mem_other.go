//go:build !linux

package heap

import "unsafe"

// reserve 无 mmap 支持时回退到 Go 堆分配
// buf 被 Arena 持有，保活到 Release 为止
func reserve(size int) ([]byte, uintptr, error) {
	buf := make([]byte, size)
	return buf, uintptr(unsafe.Pointer(&buf[0])), nil
}

func release(buf []byte) error {
	return nil
}
