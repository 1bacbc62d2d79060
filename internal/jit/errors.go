package jit

import (
	"fmt"

	"github.com/tangzhangming/kava/internal/classfile"
)

// ============================================================================
// 编译错误 (封闭集合)
//
// 编译失败不是致命错误：调用方拿到具体错误类型后可以决定
// 回退解释执行还是上报。所有错误都实现 error，可用 errors.As
// 区分。
// ============================================================================

// UnsupportedInstructionError 方法包含尚未支持的字节码指令
type UnsupportedInstructionError struct {
	Op classfile.Opcode
	PC int
}

func (e *UnsupportedInstructionError) Error() string {
	return fmt.Sprintf("jit: unsupported instruction %s at pc=%d", e.Op, e.PC)
}

// UnsupportedMethodError 方法本身不可编译 (非静态、native、abstract、无代码)
type UnsupportedMethodError struct {
	Name   string
	Reason string
}

func (e *UnsupportedMethodError) Error() string {
	return fmt.Sprintf("jit: cannot compile method %s: %s", e.Name, e.Reason)
}

// UnsupportedTypeError 方法签名包含不支持的类型 (引用类型、数组)
type UnsupportedTypeError struct {
	Descriptor string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("jit: unsupported type in descriptor %q", e.Descriptor)
}

// UnsupportedTargetISAError 宿主指令集不支持
type UnsupportedTargetISAError struct {
	ISA string
}

func (e *UnsupportedTargetISAError) Error() string {
	return fmt.Sprintf("jit: unsupported target ISA %q", e.ISA)
}

// OperandStackUnderflowError 字节码在空栈上弹出值 (坏的类文件)
type OperandStackUnderflowError struct {
	PC int
}

func (e *OperandStackUnderflowError) Error() string {
	return fmt.Sprintf("jit: operand stack underflow at pc=%d", e.PC)
}

// InvalidLocalVariableIndexError 局部变量索引超出 max_locals
type InvalidLocalVariableIndexError struct {
	Index int
	Max   int
}

func (e *InvalidLocalVariableIndexError) Error() string {
	return fmt.Sprintf("jit: local variable index %d out of range (max_locals=%d)", e.Index, e.Max)
}

// InvalidConstantIndexError 常量池索引越界
type InvalidConstantIndexError struct {
	Index int
}

func (e *InvalidConstantIndexError) Error() string {
	return fmt.Sprintf("jit: invalid constant pool index %d", e.Index)
}

// InvalidConstantError ldc 引用了不支持的常量池条目类型
type InvalidConstantError struct {
	Index int
	Tag   uint8
}

func (e *InvalidConstantError) Error() string {
	return fmt.Sprintf("jit: constant pool entry %d (tag=%d) is not loadable", e.Index, e.Tag)
}

// InvalidValueError 运行时值的类型与期望不符
type InvalidValueError struct {
	Expected Kind
	Actual   Kind
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("jit: expected %s value, got %s", e.Expected, e.Actual)
}

// ArityError 调用编译后函数时实参个数不对
type ArityError struct {
	Expected int
	Actual   int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("jit: expected %d arguments, got %d", e.Expected, e.Actual)
}

// InternalError 编译器自身的不变量被破坏，属于 bug 而非输入问题
type InternalError struct {
	Reason string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("jit: internal error: %s", e.Reason)
}

func internalf(format string, args ...interface{}) *InternalError {
	return &InternalError{Reason: fmt.Sprintf(format, args...)}
}

// ClassFileError 类文件解析失败，包装 classfile 包的错误
type ClassFileError struct {
	Err error
}

func (e *ClassFileError) Error() string {
	return fmt.Sprintf("jit: malformed class file: %v", e.Err)
}

func (e *ClassFileError) Unwrap() error {
	return e.Err
}

// BackendError 后端生成代码失败，包装 ir 包的错误
type BackendError struct {
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("jit: backend: %v", e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}
