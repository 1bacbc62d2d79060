package jit

import (
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/crypto/blake2b"

	"github.com/tangzhangming/kava/internal/classfile"
	"github.com/tangzhangming/kava/internal/heap"
	"github.com/tangzhangming/kava/internal/ir"
)

// ============================================================================
// 编译器驱动
// ============================================================================

// Compiler 方法编译器
//
// Compile 可以被多个 goroutine 并发调用：每次编译的状态都是
// 局部的，共享的只有只增的缓存、宿主函数表和堆
type Compiler struct {
	mod       *ir.Module
	arena     *heap.Arena
	heapAlloc int

	boundsCheck bool
	useCache    bool

	cache sync.Map // [32]byte → *Function

	compiled  atomic.Uint64
	cacheHits atomic.Uint64
	failed    atomic.Uint64
}

// CompilerStats 编译器计数
type CompilerStats struct {
	Compiled  uint64 // 成功编译的方法数
	CacheHits uint64 // 缓存命中数
	Failed    uint64 // 编译失败数
}

// NewCompiler 创建编译器
//
// cfg 为 nil 时使用默认配置。显式指定非宿主指令集会返回
// UnsupportedTargetISAError，不做交叉编译
func NewCompiler(cfg *Config) (*Compiler, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.TargetISA != "" && cfg.TargetISA != "host" && cfg.TargetISA != runtime.GOARCH {
		return nil, &UnsupportedTargetISAError{ISA: cfg.TargetISA}
	}

	arena, err := heap.NewArena(cfg.HeapSize)
	if err != nil {
		return nil, &BackendError{Err: err}
	}

	mod := ir.NewModule()
	heapAlloc, err := mod.RegisterHost("heap_alloc", 1, true, func(args []uint64) (uint64, error) {
		return arena.Alloc(args[0])
	})
	if err != nil {
		arena.Release()
		return nil, &BackendError{Err: err}
	}

	return &Compiler{
		mod:         mod,
		arena:       arena,
		heapAlloc:   heapAlloc,
		boundsCheck: !cfg.DisableBoundsChecks,
		useCache:    !cfg.DisableCache,
	}, nil
}

// Compile 把一个静态方法编译为可调用函数
//
// 失败时返回封闭错误集合中的具体错误，绝不返回编译了一半的
// 函数。同一份字节码重复编译命中缓存
func (c *Compiler) Compile(method *classfile.Method, cp *classfile.ConstantPool) (*Function, error) {
	fn, err := c.compile(method, cp)
	if err != nil {
		c.failed.Add(1)
		return nil, err
	}
	return fn, nil
}

func (c *Compiler) compile(method *classfile.Method, cp *classfile.ConstantPool) (*Function, error) {
	switch {
	case !method.IsStatic():
		return nil, &UnsupportedMethodError{Name: method.Name, Reason: "not static"}
	case method.IsNative():
		return nil, &UnsupportedMethodError{Name: method.Name, Reason: "native method"}
	case method.IsAbstract():
		return nil, &UnsupportedMethodError{Name: method.Name, Reason: "abstract method"}
	case method.Code == nil:
		return nil, &UnsupportedMethodError{Name: method.Name, Reason: "missing Code attribute"}
	}

	sig, err := ParseSignature(method.Descriptor)
	if err != nil {
		return nil, err
	}

	var key [blake2b.Size256]byte
	if c.useCache {
		key = methodKey(method.Descriptor, method.Code.Code)
		if cached, ok := c.cache.Load(key); ok {
			c.cacheHits.Add(1)
			return cached.(*Function), nil
		}
	}

	instrs, err := classfile.Decode(method.Code.Code)
	if err != nil {
		return nil, &ClassFileError{Err: err}
	}

	cf, err := buildControlFlow(instrs, cp)
	if err != nil {
		return nil, err
	}

	irFn, err := translate(method.Name, sig, method.Code, cp, cf, c.heapAlloc, c.boundsCheck)
	if err != nil {
		return nil, err
	}

	code, err := c.mod.Finalize(irFn)
	if err != nil {
		return nil, &BackendError{Err: err}
	}

	fn := &Function{name: method.Name, sig: sig, code: code}
	c.compiled.Add(1)

	if c.useCache {
		if prev, loaded := c.cache.LoadOrStore(key, fn); loaded {
			return prev.(*Function), nil
		}
	}
	return fn, nil
}

// Stats 返回当前计数快照
func (c *Compiler) Stats() CompilerStats {
	return CompilerStats{
		Compiled:  c.compiled.Load(),
		CacheHits: c.cacheHits.Load(),
		Failed:    c.failed.Load(),
	}
}

// Heap 返回编译器的数组分配堆
func (c *Compiler) Heap() *heap.Arena {
	return c.arena
}

// Close 释放堆内存，之后编译出的函数不可再执行
func (c *Compiler) Close() error {
	return c.arena.Release()
}

// methodKey 编译缓存键：描述符 + 字节码的 BLAKE2b 摘要
func methodKey(descriptor string, code []byte) [blake2b.Size256]byte {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(descriptor))
	h.Write([]byte{0})
	h.Write(code)

	var key [blake2b.Size256]byte
	copy(key[:], h.Sum(nil))
	return key
}
