//go:build linux

package heap

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// reserve 通过 mmap 预留匿名内存 (Linux)
// 内存不在 Go 堆上，地址可以安全地交给编译后的代码解引用
func reserve(size int) ([]byte, uintptr, error) {
	buf, err := unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, 0, err
	}
	return buf, uintptr(unsafe.Pointer(&buf[0])), nil
}

// release 释放 mmap 内存
func release(buf []byte) error {
	return unix.Munmap(buf)
}
