// builder.go - IR 构建器
//
// 构建器是前端生成 IR 的唯一入口。所有类型检查在发射时进行，
// 第一处错误被记录下来并让后续发射变成空操作，Finalize 时统一
// 返回 (调用方不必在每次发射后检查错误)。

package ir

import "fmt"

// Builder IR 构建器
type Builder struct {
	fn  *Function
	cur Block
	err error
}

// NewBuilder 创建指向函数的构建器
func NewBuilder(fn *Function) *Builder {
	return &Builder{fn: fn, cur: -1}
}

// Err 返回构建过程中记录的第一个错误
func (b *Builder) Err() error {
	return b.err
}

// fail 记录第一个构建错误
func (b *Builder) fail(format string, args ...interface{}) {
	if b.err == nil {
		b.err = &CodegenError{Fn: b.fn.Name, Reason: fmt.Sprintf(format, args...)}
	}
}

// CreateBlock 创建新基本块
func (b *Builder) CreateBlock() Block {
	blk := Block(len(b.fn.blocks))
	b.fn.blocks = append(b.fn.blocks, blockData{})
	return blk
}

// AppendBlockParam 为块追加一个带类型的参数
func (b *Builder) AppendBlockParam(blk Block, t Type) Value {
	if t == Void {
		b.fail("block %d: void block parameter", blk)
		return NoValue
	}
	v := b.fn.newValue(t)
	b.fn.blocks[blk].params = append(b.fn.blocks[blk].params, v)
	return v
}

// SwitchTo 切换当前发射位置到指定块
func (b *Builder) SwitchTo(blk Block) {
	if int(blk) >= len(b.fn.blocks) {
		b.fail("switch to unknown block %d", blk)
		return
	}
	b.cur = blk
}

// CurrentBlock 返回当前块
func (b *Builder) CurrentBlock() Block {
	return b.cur
}

// emit 发射一条指令到当前块
func (b *Builder) emit(in Instr) Value {
	if b.err != nil {
		return NoValue
	}
	if b.cur < 0 {
		b.fail("no current block")
		return NoValue
	}
	blk := &b.fn.blocks[b.cur]
	if n := len(blk.instrs); n > 0 && b.fn.instrs[blk.instrs[n-1]].IsTerminator() {
		b.fail("block %d: emit after terminator", b.cur)
		return NoValue
	}
	if in.Type != Void {
		in.Result = b.fn.newValue(in.Type)
	} else {
		in.Result = NoValue
	}
	idx := len(b.fn.instrs)
	b.fn.instrs = append(b.fn.instrs, in)
	blk.instrs = append(blk.instrs, idx)
	return in.Result
}

// expect 检查操作数类型
func (b *Builder) expect(what string, v Value, t Type) {
	if b.err != nil {
		return
	}
	if got := b.fn.ValueType(v); got != t {
		b.fail("%s: expected %s operand, got %s", what, t, got)
	}
}

// expectInt 检查操作数是整数类型
func (b *Builder) expectInt(what string, v Value) Type {
	t := b.fn.ValueType(v)
	if !t.IsInt() {
		b.fail("%s: expected integer operand, got %s", what, t)
	}
	return t
}

// ============================================================================
// 常量
// ============================================================================

// Iconst 整数常量 (imm 按类型位宽截断)
func (b *Builder) Iconst(t Type, imm int64) Value {
	if !t.IsInt() {
		b.fail("iconst: non-integer type %s", t)
		return NoValue
	}
	return b.emit(Instr{Op: OpIconst, Type: t, Imm: imm})
}

// F32const float 常量
func (b *Builder) F32const(bits uint32) Value {
	return b.emit(Instr{Op: OpF32const, Type: F32, Imm: int64(bits)})
}

// F64const double 常量
func (b *Builder) F64const(bits uint64) Value {
	return b.emit(Instr{Op: OpF64const, Type: F64, Imm: int64(bits)})
}

// ============================================================================
// 运算
// ============================================================================

// binaryInt 发射整数二元运算
func (b *Builder) binaryInt(op Op, x, y Value) Value {
	t := b.expectInt(op.String(), x)
	b.expect(op.String(), y, t)
	return b.emit(Instr{Op: op, Type: t, Args: []Value{x, y}})
}

// Iadd 整数加法 (回绕)
func (b *Builder) Iadd(x, y Value) Value { return b.binaryInt(OpIadd, x, y) }

// Isub 整数减法 (回绕)
func (b *Builder) Isub(x, y Value) Value { return b.binaryInt(OpIsub, x, y) }

// Imul 整数乘法 (回绕)
func (b *Builder) Imul(x, y Value) Value { return b.binaryInt(OpImul, x, y) }

// Sdiv 有符号整数除法 (除零在运行时陷入)
func (b *Builder) Sdiv(x, y Value) Value { return b.binaryInt(OpSdiv, x, y) }

// Srem 有符号整数取余 (除零在运行时陷入)
func (b *Builder) Srem(x, y Value) Value { return b.binaryInt(OpSrem, x, y) }

// Band 按位与
func (b *Builder) Band(x, y Value) Value { return b.binaryInt(OpBand, x, y) }

// Bor 按位或
func (b *Builder) Bor(x, y Value) Value { return b.binaryInt(OpBor, x, y) }

// Bxor 按位异或
func (b *Builder) Bxor(x, y Value) Value { return b.binaryInt(OpBxor, x, y) }

// shift 发射移位运算，移位数可以是任意整数类型，按被移位值的位宽取模
func (b *Builder) shift(op Op, x, count Value) Value {
	t := b.expectInt(op.String(), x)
	b.expectInt(op.String(), count)
	return b.emit(Instr{Op: op, Type: t, Args: []Value{x, count}})
}

// Ishl 左移
func (b *Builder) Ishl(x, count Value) Value { return b.shift(OpIshl, x, count) }

// Sshr 算术右移
func (b *Builder) Sshr(x, count Value) Value { return b.shift(OpSshr, x, count) }

// Ushr 逻辑右移
func (b *Builder) Ushr(x, count Value) Value { return b.shift(OpUshr, x, count) }

// Ineg 整数取负
func (b *Builder) Ineg(x Value) Value {
	t := b.expectInt("ineg", x)
	return b.emit(Instr{Op: OpIneg, Type: t, Args: []Value{x}})
}

// binaryFloat 发射浮点二元运算
func (b *Builder) binaryFloat(op Op, x, y Value) Value {
	t := b.fn.ValueType(x)
	if !t.IsFloat() {
		b.fail("%s: expected float operand, got %s", op, t)
		return NoValue
	}
	b.expect(op.String(), y, t)
	return b.emit(Instr{Op: op, Type: t, Args: []Value{x, y}})
}

// Fadd 浮点加法
func (b *Builder) Fadd(x, y Value) Value { return b.binaryFloat(OpFadd, x, y) }

// Fsub 浮点减法
func (b *Builder) Fsub(x, y Value) Value { return b.binaryFloat(OpFsub, x, y) }

// Fmul 浮点乘法
func (b *Builder) Fmul(x, y Value) Value { return b.binaryFloat(OpFmul, x, y) }

// Fdiv 浮点除法
func (b *Builder) Fdiv(x, y Value) Value { return b.binaryFloat(OpFdiv, x, y) }

// Frem 浮点取余 (IEEE 余数的截断语义)
func (b *Builder) Frem(x, y Value) Value { return b.binaryFloat(OpFrem, x, y) }

// Fneg 浮点取负
func (b *Builder) Fneg(x Value) Value {
	t := b.fn.ValueType(x)
	if !t.IsFloat() {
		b.fail("fneg: expected float operand, got %s", t)
		return NoValue
	}
	return b.emit(Instr{Op: OpFneg, Type: t, Args: []Value{x}})
}

// Icmp 整数比较，产生 i32 0/1
func (b *Builder) Icmp(cond Cond, x, y Value) Value {
	t := b.expectInt("icmp", x)
	b.expect("icmp", y, t)
	if cond == CondUno {
		b.fail("icmp: unordered condition on integers")
	}
	return b.emit(Instr{Op: OpIcmp, Type: I32, Cond: cond, Args: []Value{x, y}})
}

// Fcmp 浮点比较，产生 i32 0/1；任一操作数为 NaN 时
// 只有 CondUno 和 CondNe 成立
func (b *Builder) Fcmp(cond Cond, x, y Value) Value {
	t := b.fn.ValueType(x)
	if !t.IsFloat() {
		b.fail("fcmp: expected float operand, got %s", t)
		return NoValue
	}
	b.expect("fcmp", y, t)
	return b.emit(Instr{Op: OpFcmp, Type: I32, Cond: cond, Args: []Value{x, y}})
}

// ============================================================================
// 类型转换
// ============================================================================

// convert 发射类型转换
func (b *Builder) convert(op Op, from, to Type, x Value) Value {
	b.expect(op.String(), x, from)
	return b.emit(Instr{Op: op, Type: to, Args: []Value{x}})
}

// Sextend i32 -> i64 符号扩展
func (b *Builder) Sextend(x Value) Value { return b.convert(OpSextend, I32, I64, x) }

// Uextend i32 -> i64 零扩展
func (b *Builder) Uextend(x Value) Value { return b.convert(OpUextend, I32, I64, x) }

// Ireduce i64 -> i32 截断 (保留低 32 位)
func (b *Builder) Ireduce(x Value) Value { return b.convert(OpIreduce, I64, I32, x) }

// Fpromote f32 -> f64
func (b *Builder) Fpromote(x Value) Value { return b.convert(OpFpromote, F32, F64, x) }

// Fdemote f64 -> f32
func (b *Builder) Fdemote(x Value) Value { return b.convert(OpFdemote, F64, F32, x) }

// FcvtToSintSat 浮点 -> 有符号整数，饱和语义 (NaN -> 0，越界 -> 边界值)
func (b *Builder) FcvtToSintSat(to Type, x Value) Value {
	t := b.fn.ValueType(x)
	if !t.IsFloat() || !to.IsInt() {
		b.fail("fcvt_to_sint_sat: %s -> %s", t, to)
		return NoValue
	}
	return b.emit(Instr{Op: OpFcvtToSintSat, Type: to, Args: []Value{x}})
}

// FcvtFromSint 有符号整数 -> 浮点
func (b *Builder) FcvtFromSint(to Type, x Value) Value {
	t := b.fn.ValueType(x)
	if !t.IsInt() || !to.IsFloat() {
		b.fail("fcvt_from_sint: %s -> %s", t, to)
		return NoValue
	}
	return b.emit(Instr{Op: OpFcvtFromSint, Type: to, Args: []Value{x}})
}

// ============================================================================
// 调用与访存
// ============================================================================

// Call 调用注册的宿主函数，ret 为 Void 时无结果
func (b *Builder) Call(host int, ret Type, args ...Value) Value {
	return b.emit(Instr{Op: OpCall, Type: ret, Host: host, Args: args})
}

// Load 按类型从 ptr+off 加载，ptr 必须是 i64 地址
func (b *Builder) Load(t Type, ptr Value, off int32, flags MemFlags) Value {
	b.expect("load", ptr, I64)
	if t == Void {
		b.fail("load: void type")
		return NoValue
	}
	return b.emit(Instr{Op: OpLoad, Type: t, Args: []Value{ptr}, Off: off, Flags: flags})
}

// Store 把 val 写入 ptr+off
func (b *Builder) Store(val, ptr Value, off int32, flags MemFlags) {
	b.expect("store", ptr, I64)
	b.emit(Instr{Op: OpStore, Args: []Value{val, ptr}, Off: off, Flags: flags})
}

func (b *Builder) narrowLoad(op Op, ptr Value, off int32, flags MemFlags) Value {
	b.expect(opNames[op], ptr, I64)
	return b.emit(Instr{Op: op, Type: I32, Args: []Value{ptr}, Off: off, Flags: flags})
}

// Sload8 加载 8 位并符号扩展为 i32
func (b *Builder) Sload8(ptr Value, off int32, flags MemFlags) Value {
	return b.narrowLoad(OpSload8, ptr, off, flags)
}

// Sload16 加载 16 位并符号扩展为 i32
func (b *Builder) Sload16(ptr Value, off int32, flags MemFlags) Value {
	return b.narrowLoad(OpSload16, ptr, off, flags)
}

// Uload16 加载 16 位并零扩展为 i32
func (b *Builder) Uload16(ptr Value, off int32, flags MemFlags) Value {
	return b.narrowLoad(OpUload16, ptr, off, flags)
}

// Istore8 把 val 的低 8 位写入 ptr+off
func (b *Builder) Istore8(val, ptr Value, off int32, flags MemFlags) {
	b.expect("istore8", ptr, I64)
	b.expect("istore8", val, I32)
	b.emit(Instr{Op: OpIstore8, Args: []Value{val, ptr}, Off: off, Flags: flags})
}

// Istore16 把 val 的低 16 位写入 ptr+off
func (b *Builder) Istore16(val, ptr Value, off int32, flags MemFlags) {
	b.expect("istore16", ptr, I64)
	b.expect("istore16", val, I32)
	b.emit(Instr{Op: OpIstore16, Args: []Value{val, ptr}, Off: off, Flags: flags})
}

// StackLoad 从 64 位栈槽加载
func (b *Builder) StackLoad(t Type, slot int) Value {
	if slot < 0 || slot >= b.fn.SlotCount {
		b.fail("stack_load: slot %d out of range (%d slots)", slot, b.fn.SlotCount)
		return NoValue
	}
	return b.emit(Instr{Op: OpStackLoad, Type: t, Slot: slot})
}

// StackStore 写入 64 位栈槽
func (b *Builder) StackStore(slot int, val Value) {
	if slot < 0 || slot >= b.fn.SlotCount {
		b.fail("stack_store: slot %d out of range (%d slots)", slot, b.fn.SlotCount)
		return
	}
	b.emit(Instr{Op: OpStackStore, Slot: slot, Args: []Value{val}})
}

// ============================================================================
// 控制流
// ============================================================================

// checkTarget 检查跳转实参与目标块形参匹配
func (b *Builder) checkTarget(what string, t BranchTarget) {
	if b.err != nil {
		return
	}
	if int(t.Block) >= len(b.fn.blocks) {
		b.fail("%s: unknown target block %d", what, t.Block)
		return
	}
	params := b.fn.blocks[t.Block].params
	if len(t.Args) != len(params) {
		b.fail("%s: block %d expects %d arguments, got %d", what, t.Block, len(params), len(t.Args))
		return
	}
	for i, arg := range t.Args {
		if got, want := b.fn.ValueType(arg), b.fn.ValueType(params[i]); got != want {
			b.fail("%s: block %d argument %d: expected %s, got %s", what, t.Block, i, want, got)
			return
		}
	}
}

// Jump 无条件跳转
func (b *Builder) Jump(dst Block, args []Value) {
	t := BranchTarget{Block: dst, Args: args}
	b.checkTarget("jump", t)
	b.emit(Instr{Op: OpJump, Targets: []BranchTarget{t}})
}

// Brif 按条件 (i32 非零为真) 两路跳转
func (b *Builder) Brif(cond Value, then Block, thenArgs []Value, els Block, elsArgs []Value) {
	b.expect("brif", cond, I32)
	tt := BranchTarget{Block: then, Args: thenArgs}
	tf := BranchTarget{Block: els, Args: elsArgs}
	b.checkTarget("brif", tt)
	b.checkTarget("brif", tf)
	b.emit(Instr{Op: OpBrif, Args: []Value{cond}, Targets: []BranchTarget{tt, tf}})
}

// Return 函数返回，返回类型为 Void 时不带值
func (b *Builder) Return(vals ...Value) {
	switch {
	case b.fn.Ret == Void && len(vals) != 0:
		b.fail("return: void function returns %d values", len(vals))
	case b.fn.Ret != Void && len(vals) != 1:
		b.fail("return: expected 1 value, got %d", len(vals))
	case b.fn.Ret != Void:
		b.expect("return", vals[0], b.fn.Ret)
	}
	b.emit(Instr{Op: OpReturn, Args: vals})
}

// Trap 无条件陷入
func (b *Builder) Trap(code TrapCode) {
	b.emit(Instr{Op: OpTrap, Trap: code})
}
