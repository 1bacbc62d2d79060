// module.go - 模块与终结
//
// Module 管理宿主函数注册表并负责把 IR 函数终结为可调用代码。
// 宿主函数是编译后代码能触达的唯一外部入口 (例如堆分配器)，
// 以索引形式被 call 指令引用。

package ir

import (
	"fmt"
	"sync"
)

// ============================================================================
// 错误类型
// ============================================================================

// CodegenError 函数级代码生成错误 (类型不匹配、块未终结等)
type CodegenError struct {
	Fn     string
	Reason string
}

func (e *CodegenError) Error() string {
	return fmt.Sprintf("codegen error in %q: %s", e.Fn, e.Reason)
}

// ModuleError 模块级错误 (宿主函数缺失、重复注册等)
type ModuleError struct {
	Reason string
}

func (e *ModuleError) Error() string {
	return fmt.Sprintf("module error: %s", e.Reason)
}

// TrapError 运行时陷阱
type TrapError struct {
	Code TrapCode
}

func (e *TrapError) Error() string {
	return fmt.Sprintf("trap: %s", e.Code)
}

// ============================================================================
// 宿主函数
// ============================================================================

// HostFunc 宿主函数：接收 64 位实参，返回 64 位结果
// 返回错误时执行中止并向调用者传播
type HostFunc func(args []uint64) (uint64, error)

// hostEntry 宿主函数注册项
type hostEntry struct {
	name      string
	nargs     int
	hasResult bool
	fn        HostFunc
}

// Module IR 模块
type Module struct {
	mu     sync.RWMutex
	hosts  []hostEntry
	byName map[string]int
}

// NewModule 创建模块
func NewModule() *Module {
	return &Module{byName: make(map[string]int)}
}

// RegisterHost 注册宿主函数，返回分配的索引
func (m *Module) RegisterHost(name string, nargs int, hasResult bool, fn HostFunc) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[name]; ok {
		return 0, &ModuleError{Reason: fmt.Sprintf("host function %q already registered", name)}
	}
	idx := len(m.hosts)
	m.hosts = append(m.hosts, hostEntry{name: name, nargs: nargs, hasResult: hasResult, fn: fn})
	m.byName[name] = idx
	return idx, nil
}

// HostIndex 按名称查找宿主函数索引
func (m *Module) HostIndex(name string) (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.byName[name]
	return idx, ok
}

// ============================================================================
// 终结
// ============================================================================

// Finish 结束构建并校验函数结构
// 返回构建期间记录的第一个错误；校验每个块都有终结指令、
// 入口块参数与函数签名一致
func (b *Builder) Finish() (*Function, error) {
	if b.err != nil {
		return nil, b.err
	}
	fn := b.fn

	if len(fn.blocks) == 0 {
		return nil, &CodegenError{Fn: fn.Name, Reason: "function has no blocks"}
	}

	entry := fn.blocks[0]
	if len(entry.params) != len(fn.Params) {
		return nil, &CodegenError{Fn: fn.Name,
			Reason: fmt.Sprintf("entry block has %d parameters, signature has %d", len(entry.params), len(fn.Params))}
	}
	for i, p := range entry.params {
		if fn.ValueType(p) != fn.Params[i] {
			return nil, &CodegenError{Fn: fn.Name,
				Reason: fmt.Sprintf("entry parameter %d: expected %s, got %s", i, fn.Params[i], fn.ValueType(p))}
		}
	}

	for bi, blk := range fn.blocks {
		n := len(blk.instrs)
		if n == 0 || !fn.instrs[blk.instrs[n-1]].IsTerminator() {
			return nil, &CodegenError{Fn: fn.Name, Reason: fmt.Sprintf("block %d is not terminated", bi)}
		}
	}

	return fn, nil
}

// Code 终结后的可调用代码
// 无状态，可以被多个 goroutine 并发调用
type Code struct {
	fn    *Function
	hosts []hostEntry
}

// Finalize 把 IR 函数终结为可调用代码
// 校验所有 call 指令引用的宿主函数在模块中存在且元数匹配
func (m *Module) Finalize(fn *Function) (*Code, error) {
	m.mu.RLock()
	hosts := append([]hostEntry(nil), m.hosts...)
	m.mu.RUnlock()

	for i := range fn.instrs {
		in := &fn.instrs[i]
		if in.Op != OpCall {
			continue
		}
		if in.Host < 0 || in.Host >= len(hosts) {
			return nil, &ModuleError{Reason: fmt.Sprintf("call references unknown host function %d", in.Host)}
		}
		h := hosts[in.Host]
		if len(in.Args) != h.nargs {
			return nil, &CodegenError{Fn: fn.Name,
				Reason: fmt.Sprintf("call %q: expected %d arguments, got %d", h.name, h.nargs, len(in.Args))}
		}
		if h.hasResult != (in.Type != Void) {
			return nil, &CodegenError{Fn: fn.Name,
				Reason: fmt.Sprintf("call %q: result arity mismatch", h.name)}
		}
	}

	return &Code{fn: fn, hosts: hosts}, nil
}
