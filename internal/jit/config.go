package jit

import "github.com/tangzhangming/kava/internal/heap"

// Config 编译器配置
//
// 零值即默认值：宿主指令集、默认堆大小、边界检查和编译缓存
// 都开启
type Config struct {
	// TargetISA 目标指令集，空串表示宿主。只支持本机编译
	TargetISA string

	// HeapSize 数组分配堆的字节数，0 表示默认
	HeapSize int

	// DisableBoundsChecks 关闭数组访问的边界检查
	DisableBoundsChecks bool

	// DisableCache 关闭按方法内容做键的编译缓存
	DisableCache bool
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{HeapSize: heap.DefaultArenaSize}
}
