// Package jit 将 JVM 字节码方法编译为可直接调用的本地函数
//
// 编译流程分三步：
//  1. 控制流分析：扫描字节码划分基本块，推导每个块入口处
//     操作数栈的形状 (见 cfg.go)
//  2. 指令翻译：编译期模拟操作数栈，把栈式字节码逐条降级为
//     块结构 IR (见 translate.go)
//  3. 后端终结：IR 交给 internal/ir 生成可调用代码
//
// 只支持静态方法、基本类型参数和返回值；遇到不支持的指令或
// 类型会返回封闭错误集合中的对应错误 (见 errors.go)，调用方
// 据此回退到解释执行。
package jit

import (
	"fmt"
	"math"

	"github.com/tangzhangming/kava/internal/ir"
)

// ============================================================================
// 值类型
// ============================================================================

// Kind JIT 值的类型标签
type Kind uint8

const (
	Int32 Kind = iota
	Int64
	Float32
	Float64

	// Ref 数组引用：后端表示是 i64 指针，但在 JVM 栈和局部
	// 变量表里是第一类 (category-1) 值，只占一个槽位
	Ref
)

func (k Kind) String() string {
	switch k {
	case Int32:
		return "i32"
	case Int64:
		return "i64"
	case Float32:
		return "f32"
	case Float64:
		return "f64"
	case Ref:
		return "ref"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Wide 判断类型在 JVM 局部变量表中是否占两个槽位
func (k Kind) Wide() bool {
	return k == Int64 || k == Float64
}

// backendType Kind 对应的后端 IR 类型
func (k Kind) backendType() ir.Type {
	switch k {
	case Int32:
		return ir.I32
	case Int64, Ref:
		return ir.I64
	case Float32:
		return ir.F32
	default:
		return ir.F64
	}
}

// ============================================================================
// 运行时值
// ============================================================================

// Value 带类型标签的 64 位值，是编译后函数的参数和返回值载体
//
// 位模式约定与后端一致：i32 存低 32 位 (高位为零)，f32 存
// float32 的位模式，f64 存 float64 的位模式。
type Value struct {
	kind Kind
	bits uint64
}

// NewInt32 构造 i32 值
func NewInt32(v int32) Value {
	return Value{kind: Int32, bits: uint64(uint32(v))}
}

// NewInt64 构造 i64 值
func NewInt64(v int64) Value {
	return Value{kind: Int64, bits: uint64(v)}
}

// NewFloat32 构造 f32 值
func NewFloat32(v float32) Value {
	return Value{kind: Float32, bits: uint64(math.Float32bits(v))}
}

// NewFloat64 构造 f64 值
func NewFloat64(v float64) Value {
	return Value{kind: Float64, bits: math.Float64bits(v)}
}

// Kind 返回类型标签
func (v Value) Kind() Kind {
	return v.kind
}

// Bits 返回原始位模式
func (v Value) Bits() uint64 {
	return v.bits
}

// Int32 取出 i32 值，类型不符会返回 InvalidValueError
func (v Value) Int32() (int32, error) {
	if v.kind != Int32 {
		return 0, &InvalidValueError{Expected: Int32, Actual: v.kind}
	}
	return int32(uint32(v.bits)), nil
}

// Int64 取出 i64 值
func (v Value) Int64() (int64, error) {
	if v.kind != Int64 {
		return 0, &InvalidValueError{Expected: Int64, Actual: v.kind}
	}
	return int64(v.bits), nil
}

// Float32 取出 f32 值
func (v Value) Float32() (float32, error) {
	if v.kind != Float32 {
		return 0, &InvalidValueError{Expected: Float32, Actual: v.kind}
	}
	return math.Float32frombits(uint32(v.bits)), nil
}

// Float64 取出 f64 值
func (v Value) Float64() (float64, error) {
	if v.kind != Float64 {
		return 0, &InvalidValueError{Expected: Float64, Actual: v.kind}
	}
	return math.Float64frombits(v.bits), nil
}

func (v Value) String() string {
	switch v.kind {
	case Int32:
		return fmt.Sprintf("i32(%d)", int32(uint32(v.bits)))
	case Int64:
		return fmt.Sprintf("i64(%d)", int64(v.bits))
	case Float32:
		return fmt.Sprintf("f32(%g)", math.Float32frombits(uint32(v.bits)))
	default:
		return fmt.Sprintf("f64(%g)", math.Float64frombits(v.bits))
	}
}
