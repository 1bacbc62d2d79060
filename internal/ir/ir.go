// Package ir 实现块结构的代码生成后端
//
// 后端接收带类型的基本块 IR：每个块声明自己的参数 (SSA 块参数，
// 相当于 phi 节点)，跳转指令为目标块显式传参。前端 (JIT) 只负责
// 把栈式字节码翻译成这种形式，最终由 Finalize 产出可调用代码。
//
// 当前的执行引擎是一个 IR 求值器，不依赖目标机器；新的目标
// (本地机器码) 只需要实现同样的 Finalize 契约。
package ir

import "fmt"

// ============================================================================
// 类型系统
// ============================================================================

// Type IR 值类型
type Type uint8

const (
	Void Type = iota
	I32
	I64
	F32
	F64
)

// String 返回类型名
func (t Type) String() string {
	switch t {
	case Void:
		return "void"
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// IsInt 检查是否是整数类型
func (t Type) IsInt() bool {
	return t == I32 || t == I64
}

// IsFloat 检查是否是浮点类型
func (t Type) IsFloat() bool {
	return t == F32 || t == F64
}

// Bits 返回类型位宽
func (t Type) Bits() int {
	switch t {
	case I32, F32:
		return 32
	case I64, F64:
		return 64
	default:
		return 0
	}
}

// ============================================================================
// 值与块句柄
// ============================================================================

// Value IR 值句柄 (函数内唯一)
type Value int32

// NoValue 无效值句柄
const NoValue Value = -1

// Block 基本块句柄 (函数内唯一，0 号块是入口块)
type Block int32

// ============================================================================
// 比较条件
// ============================================================================

// Cond 比较条件
type Cond uint8

const (
	CondEq  Cond = iota // 相等
	CondNe              // 不等
	CondLt              // 有符号小于
	CondLe              // 有符号小于等于
	CondGt              // 有符号大于
	CondGe              // 有符号大于等于
	CondUlt             // 无符号小于
	CondUno             // 无序 (浮点，任一操作数为 NaN)
)

// String 返回条件名
func (c Cond) String() string {
	switch c {
	case CondEq:
		return "eq"
	case CondNe:
		return "ne"
	case CondLt:
		return "lt"
	case CondLe:
		return "le"
	case CondGt:
		return "gt"
	case CondGe:
		return "ge"
	case CondUlt:
		return "ult"
	case CondUno:
		return "uno"
	default:
		return fmt.Sprintf("cond(%d)", uint8(c))
	}
}

// ============================================================================
// 访存标志
// ============================================================================

// MemFlags 访存标志
type MemFlags uint8

const (
	// FlagTrusted 地址可信，跳过空指针检查
	FlagTrusted MemFlags = 1 << iota
	// FlagAligned 地址保证按类型自然对齐
	FlagAligned
)

// ============================================================================
// 陷阱代码
// ============================================================================

// TrapCode 运行时陷阱代码
type TrapCode uint8

const (
	TrapUnreachable TrapCode = iota
	TrapDivByZero
	TrapIndexOutOfBounds
	TrapNegativeArraySize
)

// String 返回陷阱描述
func (tc TrapCode) String() string {
	switch tc {
	case TrapUnreachable:
		return "unreachable code"
	case TrapDivByZero:
		return "integer division by zero"
	case TrapIndexOutOfBounds:
		return "array index out of bounds"
	case TrapNegativeArraySize:
		return "negative array size"
	default:
		return fmt.Sprintf("trap(%d)", uint8(tc))
	}
}

// ============================================================================
// IR 指令
// ============================================================================

// Op IR 操作码
type Op uint8

const (
	// 常量
	OpIconst Op = iota
	OpF32const
	OpF64const

	// 整数运算 (按结果类型位宽回绕)
	OpIadd
	OpIsub
	OpImul
	OpSdiv
	OpSrem
	OpIneg
	OpBand
	OpBor
	OpBxor
	OpIshl // 移位数按位宽取模
	OpSshr
	OpUshr

	// 浮点运算
	OpFadd
	OpFsub
	OpFmul
	OpFdiv
	OpFrem
	OpFneg

	// 比较 (产生 i32 0/1)
	OpIcmp
	OpFcmp

	// 类型转换
	OpSextend       // i32 -> i64 符号扩展
	OpUextend       // i32 -> i64 零扩展
	OpIreduce       // i64 -> i32 截断
	OpFpromote      // f32 -> f64
	OpFdemote       // f64 -> f32
	OpFcvtToSintSat // 浮点 -> 有符号整数 (饱和，NaN -> 0)
	OpFcvtFromSint  // 有符号整数 -> 浮点

	// 调用与访存
	OpCall       // 调用注册的宿主函数
	OpLoad       // 按类型从内存加载
	OpStore      // 按类型写入内存
	OpSload8     // 加载 8 位并符号扩展为 i32
	OpSload16    // 加载 16 位并符号扩展为 i32
	OpUload16    // 加载 16 位并零扩展为 i32
	OpIstore8    // 写入低 8 位
	OpIstore16   // 写入低 16 位
	OpStackLoad  // 从栈槽加载
	OpStackStore // 写入栈槽

	// 控制流
	OpJump
	OpBrif
	OpReturn
	OpTrap
)

// opNames IR 操作码名称表
var opNames = [...]string{
	OpIconst: "iconst", OpF32const: "f32const", OpF64const: "f64const",
	OpIadd: "iadd", OpIsub: "isub", OpImul: "imul", OpSdiv: "sdiv", OpSrem: "srem",
	OpIneg: "ineg", OpBand: "band", OpBor: "bor", OpBxor: "bxor",
	OpIshl: "ishl", OpSshr: "sshr", OpUshr: "ushr",
	OpFadd: "fadd", OpFsub: "fsub", OpFmul: "fmul", OpFdiv: "fdiv", OpFrem: "frem", OpFneg: "fneg",
	OpIcmp: "icmp", OpFcmp: "fcmp",
	OpSextend: "sextend", OpUextend: "uextend", OpIreduce: "ireduce",
	OpFpromote: "fpromote", OpFdemote: "fdemote",
	OpFcvtToSintSat: "fcvt_to_sint_sat", OpFcvtFromSint: "fcvt_from_sint",
	OpCall: "call", OpLoad: "load", OpStore: "store",
	OpSload8: "sload8", OpSload16: "sload16", OpUload16: "uload16",
	OpIstore8: "istore8", OpIstore16: "istore16",
	OpStackLoad: "stack_load", OpStackStore: "stack_store",
	OpJump: "jump", OpBrif: "brif", OpReturn: "return", OpTrap: "trap",
}

// String 返回操作码名
func (op Op) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return fmt.Sprintf("op(%d)", uint8(op))
}

// BranchTarget 跳转目标及其块参数实参
type BranchTarget struct {
	Block Block
	Args  []Value
}

// Instr 一条 IR 指令
type Instr struct {
	Op      Op
	Type    Type     // 结果类型 (无结果为 Void)
	Result  Value    // 结果值句柄 (无结果为 NoValue)
	Args    []Value  // 操作数
	Imm     int64    // 立即数 (iconst/f*const 的位模式)
	Cond    Cond     // icmp/fcmp 条件
	Off     int32    // load/store 偏移
	Flags   MemFlags // 访存标志
	Slot    int      // stack_load/stack_store 的槽位
	Host    int      // call 的宿主函数索引
	Trap    TrapCode
	Targets []BranchTarget // jump: 1 个目标；brif: [成立, 不成立]
}

// IsTerminator 检查指令是否终结基本块
func (in *Instr) IsTerminator() bool {
	switch in.Op {
	case OpJump, OpBrif, OpReturn, OpTrap:
		return true
	default:
		return false
	}
}

// ============================================================================
// IR 函数
// ============================================================================

// blockData 基本块
type blockData struct {
	params []Value
	instrs []int // 指令在 arena 中的索引
}

// Function 一个待编译的 IR 函数
// 块和值都用整数句柄索引 arena，不持有指针
type Function struct {
	Name      string
	Params    []Type // 入口块参数必须与之一致
	Ret       Type
	SlotCount int // 64 位栈槽数量 (局部变量)

	blocks    []blockData
	instrs    []Instr
	valueType []Type
}

// NewFunction 创建 IR 函数
func NewFunction(name string, params []Type, ret Type) *Function {
	return &Function{Name: name, Params: params, Ret: ret}
}

// NumBlocks 返回基本块数量
func (f *Function) NumBlocks() int {
	return len(f.blocks)
}

// NumValues 返回值数量
func (f *Function) NumValues() int {
	return len(f.valueType)
}

// ValueType 返回值的类型
func (f *Function) ValueType(v Value) Type {
	if v < 0 || int(v) >= len(f.valueType) {
		return Void
	}
	return f.valueType[v]
}

// BlockParams 返回块参数
func (f *Function) BlockParams(b Block) []Value {
	return f.blocks[b].params
}

// newValue 分配新的值句柄
func (f *Function) newValue(t Type) Value {
	v := Value(len(f.valueType))
	f.valueType = append(f.valueType, t)
	return v
}
