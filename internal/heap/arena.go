// Package heap 实现 JIT 运行时的堆分配器
//
// 单块指针递增 (bump) 分配：预留一整块内存，Alloc 只移动游标。
// 编译后的代码通过宿主调用入口触达这里，约定为
// 单个 64 位大小实参、返回 64 位地址。没有回收，整块内存随
// 所有者一起释放。
package heap

import (
	"fmt"
	"sync"
)

// 页大小
const pageSize = 4096

// DefaultArenaSize 默认堆大小 (16MB)
const DefaultArenaSize = 16 * 1024 * 1024

// Arena 指针递增分配器
type Arena struct {
	mu   sync.Mutex
	buf  []byte
	base uintptr
	used int
}

// NewArena 创建堆，size 向上对齐到页边界
func NewArena(size int) (*Arena, error) {
	if size <= 0 {
		size = DefaultArenaSize
	}
	size = (size + pageSize - 1) &^ (pageSize - 1)

	buf, base, err := reserve(size)
	if err != nil {
		return nil, fmt.Errorf("heap: reserve %d bytes: %w", size, err)
	}
	return &Arena{buf: buf, base: base}, nil
}

// Size 返回堆容量
func (a *Arena) Size() int {
	return len(a.buf)
}

// Used 返回已分配字节数
func (a *Arena) Used() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.used
}

// Alloc 分配 size 字节并返回地址，按 8 字节对齐
func (a *Arena) Alloc(size uint64) (uint64, error) {
	if size > uint64(len(a.buf)) {
		return 0, fmt.Errorf("heap: allocation of %d bytes exceeds arena capacity %d", size, len(a.buf))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	n := (int(size) + 7) &^ 7
	if a.used+n > len(a.buf) {
		return 0, fmt.Errorf("heap: out of memory (%d used, %d requested, %d capacity)", a.used, n, len(a.buf))
	}

	addr := a.base + uintptr(a.used)
	a.used += n

	// 新分配的内存清零 (数组元素的默认值依赖这一点)
	for i := addr - a.base; i < addr-a.base+uintptr(n); i++ {
		a.buf[i] = 0
	}

	return uint64(addr), nil
}

// Contains 检查地址是否落在堆内 (调试用)
func (a *Arena) Contains(addr uint64) bool {
	return uintptr(addr) >= a.base && uintptr(addr) < a.base+uintptr(len(a.buf))
}

// Release 释放堆内存，之后分配器不可再使用
func (a *Arena) Release() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.buf == nil {
		return nil
	}
	err := release(a.buf)
	a.buf = nil
	a.base = 0
	return err
}
