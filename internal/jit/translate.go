package jit

import (
	"math"

	"github.com/tangzhangming/kava/internal/classfile"
	"github.com/tangzhangming/kava/internal/ir"
)

// ============================================================================
// 指令翻译
//
// 两遍编译的第二遍：按 cfg.go 划好的块逐条翻译字节码。操作数
// 栈只在编译期模拟，运行时不存在：每个栈条目就是一个 IR 值。
// 合流块的入口栈形状来自第一遍，每个条目对应一个块参数，跳转
// 时把当前模拟栈自底向上作为块实参传过去。
//
// 局部变量不走块参数：统一降级为后端栈槽的读写。long/double
// 在 JVM 局部变量表里占两个槽位，这里沿用同样的编号，宽值存
// 在低编号槽里，高编号槽闲置
// ============================================================================

// translator 单个方法的翻译状态
type translator struct {
	fn  *ir.Function
	b   *ir.Builder
	cf  *controlFlow
	cp  *classfile.ConstantPool
	sig *Signature

	maxLocals   int
	heapAlloc   int // heap_alloc 宿主函数索引
	boundsCheck bool

	stack    operandStack
	irBlocks []ir.Block // 按 cf 块索引，不可达块为 -1

	trapBlocks map[ir.TrapCode]ir.Block
}

// translate 把方法翻译为 IR 函数
func translate(name string, sig *Signature, code *classfile.CodeAttribute,
	cp *classfile.ConstantPool, cf *controlFlow, heapAlloc int, boundsCheck bool) (*ir.Function, error) {

	maxLocals := int(code.MaxLocals)
	if n := sig.SlotCount(); maxLocals < n {
		maxLocals = n
	}

	fn := ir.NewFunction(name, sig.backendParams(), sig.backendRet())
	fn.SlotCount = maxLocals

	t := &translator{
		fn:          fn,
		b:           ir.NewBuilder(fn),
		cf:          cf,
		cp:          cp,
		sig:         sig,
		maxLocals:   maxLocals,
		heapAlloc:   heapAlloc,
		boundsCheck: boundsCheck,
		irBlocks:    make([]ir.Block, len(cf.blocks)),
		trapBlocks:  make(map[ir.TrapCode]ir.Block),
	}
	return t.run()
}

func (t *translator) run() (*ir.Function, error) {
	// 入口块：函数参数即块参数
	entry := t.b.CreateBlock()
	for _, k := range t.sig.Params {
		t.b.AppendBlockParam(entry, k.backendType())
	}

	// 每个可达基本块一个 IR 块，入口栈形状决定块参数
	for bi, blk := range t.cf.blocks {
		if !blk.known {
			t.irBlocks[bi] = ir.Block(-1)
			continue
		}
		irb := t.b.CreateBlock()
		for _, k := range blk.entry {
			t.b.AppendBlockParam(irb, k.backendType())
		}
		t.irBlocks[bi] = irb
	}

	// 序言：参数落到局部变量槽
	t.b.SwitchTo(entry)
	params := t.fn.BlockParams(entry)
	slot := 0
	for i, k := range t.sig.Params {
		t.b.StackStore(slot, params[i])
		slot++
		if k.Wide() {
			slot++
		}
	}
	t.b.Jump(t.irBlocks[0], nil)

	for bi, blk := range t.cf.blocks {
		if !blk.known {
			continue
		}
		if err := t.block(bi, blk); err != nil {
			return nil, err
		}
	}

	fn, err := t.b.Finish()
	if err != nil {
		return nil, &BackendError{Err: err}
	}
	return fn, nil
}

// block 翻译一个基本块
func (t *translator) block(bi int, blk *basicBlock) error {
	irb := t.irBlocks[bi]
	t.b.SwitchTo(irb)
	t.stack.reset(blk.entry, t.fn.BlockParams(irb))

	for i := blk.first; i <= blk.last; i++ {
		if err := t.instr(t.cf.instrs[i]); err != nil {
			return err
		}
	}

	// 块因下一条指令是其他块的首指令而结束：直落跳转
	last := t.cf.instrs[blk.last]
	if !last.Op.IsBranch() && !isGoto(last.Op) && !last.Op.IsReturn() {
		succ, err := t.targetBlock(last.PC + last.Width)
		if err != nil {
			return err
		}
		t.b.Jump(succ, t.stack.values())
	}
	return nil
}

// targetBlock pc 对应的 IR 块
func (t *translator) targetBlock(pc int) (ir.Block, error) {
	idx, ok := t.cf.byPC[pc]
	if !ok {
		return ir.Block(-1), internalf("branch target pc=%d has no block", pc)
	}
	irb := t.irBlocks[idx]
	if irb < 0 {
		return ir.Block(-1), internalf("branch into untranslated block at pc=%d", pc)
	}
	return irb, nil
}

// trapBlock 返回指定陷阱的共享块 (惰性创建，无参数)
func (t *translator) trapBlock(code ir.TrapCode) ir.Block {
	if blk, ok := t.trapBlocks[code]; ok {
		return blk
	}
	cur := t.b.CurrentBlock()
	blk := t.b.CreateBlock()
	t.b.SwitchTo(blk)
	t.b.Trap(code)
	t.b.SwitchTo(cur)
	t.trapBlocks[code] = blk
	return blk
}

func (t *translator) push(k Kind, v ir.Value) {
	t.stack.push(k, v)
}

// checkLocal 校验局部变量索引 (宽值占两个槽)
func (t *translator) checkLocal(index int, k Kind) error {
	width := 1
	if k.Wide() {
		width = 2
	}
	if index < 0 || index+width > t.maxLocals {
		return &InvalidLocalVariableIndexError{Index: index, Max: t.maxLocals}
	}
	return nil
}

// instr 翻译一条指令
func (t *translator) instr(in classfile.Instruction) error {
	pc := in.PC
	op := in.Op
	switch {
	case op == classfile.OpNop:
		return nil

	// ------------------------------------------------------------------
	// 常量
	// ------------------------------------------------------------------

	case op == classfile.OpAconstNull:
		// null 引用按零指针处理
		t.push(Ref, t.b.Iconst(ir.I64, 0))
		return nil

	case op >= classfile.OpIconstM1 && op <= classfile.OpIconst5:
		t.push(Int32, t.b.Iconst(ir.I32, int64(op)-int64(classfile.OpIconst0)))
		return nil

	case op == classfile.OpBipush || op == classfile.OpSipush:
		t.push(Int32, t.b.Iconst(ir.I32, in.Value))
		return nil

	case op == classfile.OpLconst0 || op == classfile.OpLconst1:
		t.push(Int64, t.b.Iconst(ir.I64, int64(op-classfile.OpLconst0)))
		return nil

	case op >= classfile.OpFconst0 && op <= classfile.OpFconst2:
		f := float32(op - classfile.OpFconst0)
		t.push(Float32, t.b.F32const(math.Float32bits(f)))
		return nil

	case op == classfile.OpDconst0 || op == classfile.OpDconst1:
		d := float64(op - classfile.OpDconst0)
		t.push(Float64, t.b.F64const(math.Float64bits(d)))
		return nil

	case op == classfile.OpLdc || op == classfile.OpLdcW || op == classfile.OpLdc2W:
		k, bits, err := loadableConstant(t.cp, in.Index, op == classfile.OpLdc2W)
		if err != nil {
			return err
		}
		switch k {
		case Int32:
			t.push(Int32, t.b.Iconst(ir.I32, int64(int32(uint32(bits)))))
		case Int64:
			t.push(Int64, t.b.Iconst(ir.I64, int64(bits)))
		case Float32:
			t.push(Float32, t.b.F32const(uint32(bits)))
		default:
			t.push(Float64, t.b.F64const(bits))
		}
		return nil

	// ------------------------------------------------------------------
	// 局部变量
	// ------------------------------------------------------------------

	case op == classfile.OpIload, op >= classfile.OpIload0 && op <= classfile.OpIload3:
		return t.loadLocal(in.Index, Int32)
	case op == classfile.OpLload, op >= classfile.OpLload0 && op <= classfile.OpLload3:
		return t.loadLocal(in.Index, Int64)
	case op == classfile.OpFload, op >= classfile.OpFload0 && op <= classfile.OpFload3:
		return t.loadLocal(in.Index, Float32)
	case op == classfile.OpDload, op >= classfile.OpDload0 && op <= classfile.OpDload3:
		return t.loadLocal(in.Index, Float64)
	case op == classfile.OpAload, op >= classfile.OpAload0 && op <= classfile.OpAload3:
		return t.loadLocal(in.Index, Ref)

	case op == classfile.OpIstore, op >= classfile.OpIstore0 && op <= classfile.OpIstore3:
		return t.storeLocal(pc, in.Index, Int32)
	case op == classfile.OpLstore, op >= classfile.OpLstore0 && op <= classfile.OpLstore3:
		return t.storeLocal(pc, in.Index, Int64)
	case op == classfile.OpFstore, op >= classfile.OpFstore0 && op <= classfile.OpFstore3:
		return t.storeLocal(pc, in.Index, Float32)
	case op == classfile.OpDstore, op >= classfile.OpDstore0 && op <= classfile.OpDstore3:
		return t.storeLocal(pc, in.Index, Float64)
	case op == classfile.OpAstore, op >= classfile.OpAstore0 && op <= classfile.OpAstore3:
		return t.storeLocal(pc, in.Index, Ref)

	case op == classfile.OpIinc:
		if err := t.checkLocal(in.Index, Int32); err != nil {
			return err
		}
		v := t.b.StackLoad(ir.I32, in.Index)
		t.b.StackStore(in.Index, t.b.Iadd(v, t.b.Iconst(ir.I32, in.Value)))
		return nil

	// ------------------------------------------------------------------
	// 栈操作
	// ------------------------------------------------------------------

	case op == classfile.OpPop:
		top, err := t.stack.pop(pc)
		if err != nil {
			return err
		}
		if top.kind.Wide() {
			return internalf("pop on category-2 value at pc=%d", pc)
		}
		return nil

	case op == classfile.OpPop2:
		top, err := t.stack.pop(pc)
		if err != nil {
			return err
		}
		if !top.kind.Wide() {
			return &UnsupportedInstructionError{Op: op, PC: pc}
		}
		return nil

	case op == classfile.OpDup:
		top, err := t.stack.peek(pc, 0)
		if err != nil {
			return err
		}
		if top.kind.Wide() {
			return internalf("dup on category-2 value at pc=%d", pc)
		}
		t.push(top.kind, top.val)
		return nil

	case op == classfile.OpDup2:
		top, err := t.stack.peek(pc, 0)
		if err != nil {
			return err
		}
		if !top.kind.Wide() {
			return &UnsupportedInstructionError{Op: op, PC: pc}
		}
		t.push(top.kind, top.val)
		return nil

	case op == classfile.OpSwap:
		a, err := t.stack.pop(pc)
		if err != nil {
			return err
		}
		b, err := t.stack.pop(pc)
		if err != nil {
			return err
		}
		if a.kind.Wide() || b.kind.Wide() {
			return internalf("swap on category-2 value at pc=%d", pc)
		}
		t.push(a.kind, a.val)
		t.push(b.kind, b.val)
		return nil

	// ------------------------------------------------------------------
	// 算术
	// ------------------------------------------------------------------

	case op >= classfile.OpIadd && op <= classfile.OpDrem:
		return t.arith(pc, op)

	case op == classfile.OpIneg || op == classfile.OpLneg:
		k := Int32
		if op == classfile.OpLneg {
			k = Int64
		}
		x, err := t.stack.popKind(pc, k)
		if err != nil {
			return err
		}
		t.push(k, t.b.Ineg(x))
		return nil

	case op == classfile.OpFneg || op == classfile.OpDneg:
		k := Float32
		if op == classfile.OpDneg {
			k = Float64
		}
		x, err := t.stack.popKind(pc, k)
		if err != nil {
			return err
		}
		t.push(k, t.b.Fneg(x))
		return nil

	case op >= classfile.OpIshl && op <= classfile.OpLushr:
		return t.shift(pc, op)

	case op >= classfile.OpIand && op <= classfile.OpLxor:
		return t.logic(pc, op)

	// ------------------------------------------------------------------
	// 类型转换
	// ------------------------------------------------------------------

	case op >= classfile.OpI2l && op <= classfile.OpI2s:
		return t.convert(pc, op)

	// ------------------------------------------------------------------
	// 三路比较
	// ------------------------------------------------------------------

	case op == classfile.OpLcmp:
		y, err := t.stack.popKind(pc, Int64)
		if err != nil {
			return err
		}
		x, err := t.stack.popKind(pc, Int64)
		if err != nil {
			return err
		}
		gt := t.b.Icmp(ir.CondGt, x, y)
		lt := t.b.Icmp(ir.CondLt, x, y)
		t.push(Int32, t.b.Isub(gt, lt))
		return nil

	case op == classfile.OpFcmpl, op == classfile.OpFcmpg,
		op == classfile.OpDcmpl, op == classfile.OpDcmpg:
		k := Float32
		if op == classfile.OpDcmpl || op == classfile.OpDcmpg {
			k = Float64
		}
		y, err := t.stack.popKind(pc, k)
		if err != nil {
			return err
		}
		x, err := t.stack.popKind(pc, k)
		if err != nil {
			return err
		}
		// 三路比较降为算术：gt 和 lt 对 NaN 都是 0，所以
		// l 变体 gt-lt-uno 得 -1，g 变体 gt-lt+uno 得 +1
		gt := t.b.Fcmp(ir.CondGt, x, y)
		lt := t.b.Fcmp(ir.CondLt, x, y)
		uno := t.b.Fcmp(ir.CondUno, x, y)
		r := t.b.Isub(gt, lt)
		if op == classfile.OpFcmpl || op == classfile.OpDcmpl {
			r = t.b.Isub(r, uno)
		} else {
			r = t.b.Iadd(r, uno)
		}
		t.push(Int32, r)
		return nil

	// ------------------------------------------------------------------
	// 分支
	// ------------------------------------------------------------------

	case op >= classfile.OpIfeq && op <= classfile.OpIfle:
		v, err := t.stack.popKind(pc, Int32)
		if err != nil {
			return err
		}
		cond := t.b.Icmp(branchCond(op-classfile.OpIfeq), v, t.b.Iconst(ir.I32, 0))
		return t.condBranch(in, cond)

	case op >= classfile.OpIfIcmpeq && op <= classfile.OpIfIcmple:
		y, err := t.stack.popKind(pc, Int32)
		if err != nil {
			return err
		}
		x, err := t.stack.popKind(pc, Int32)
		if err != nil {
			return err
		}
		cond := t.b.Icmp(branchCond(op-classfile.OpIfIcmpeq), x, y)
		return t.condBranch(in, cond)

	case isGoto(op):
		dst, err := t.targetBlock(in.Target)
		if err != nil {
			return err
		}
		t.b.Jump(dst, t.stack.values())
		return nil

	// ------------------------------------------------------------------
	// 数组
	// ------------------------------------------------------------------

	case op == classfile.OpNewarray:
		return t.newarray(pc, in.Value)

	case op == classfile.OpArraylength:
		ref, err := t.stack.popKind(pc, Ref)
		if err != nil {
			return err
		}
		length := t.b.Load(ir.I64, ref, 0, ir.FlagTrusted)
		t.push(Int32, t.b.Ireduce(length))
		return nil

	case op >= classfile.OpIaload && op <= classfile.OpSaload:
		if op == classfile.OpAaload {
			return &UnsupportedInstructionError{Op: op, PC: pc}
		}
		return t.arrayLoad(pc, op)

	case op >= classfile.OpIastore && op <= classfile.OpSastore:
		if op == classfile.OpAastore {
			return &UnsupportedInstructionError{Op: op, PC: pc}
		}
		return t.arrayStore(pc, op)

	// ------------------------------------------------------------------
	// 返回
	// ------------------------------------------------------------------

	case op >= classfile.OpIreturn && op <= classfile.OpDreturn:
		k := [4]Kind{Int32, Int64, Float32, Float64}[op-classfile.OpIreturn]
		if t.sig.Ret == nil || *t.sig.Ret != k {
			return internalf("%s in method returning %s", op, t.sig)
		}
		v, err := t.stack.popKind(pc, k)
		if err != nil {
			return err
		}
		if t.stack.depth() != 0 {
			return internalf("operand stack not empty at return (pc=%d, depth=%d)", pc, t.stack.depth())
		}
		t.b.Return(v)
		return nil

	case op == classfile.OpReturn:
		if t.sig.Ret != nil {
			return internalf("void return in method returning %s", t.sig.Ret)
		}
		if t.stack.depth() != 0 {
			return internalf("operand stack not empty at return (pc=%d, depth=%d)", pc, t.stack.depth())
		}
		t.b.Return()
		return nil

	default:
		return &UnsupportedInstructionError{Op: op, PC: pc}
	}
}

func (t *translator) loadLocal(index int, k Kind) error {
	if err := t.checkLocal(index, k); err != nil {
		return err
	}
	t.push(k, t.b.StackLoad(k.backendType(), index))
	return nil
}

func (t *translator) storeLocal(pc, index int, k Kind) error {
	if err := t.checkLocal(index, k); err != nil {
		return err
	}
	v, err := t.stack.popKind(pc, k)
	if err != nil {
		return err
	}
	t.b.StackStore(index, v)
	return nil
}

// arith 二元算术：弹 y 再弹 x，压 x op y
func (t *translator) arith(pc int, op classfile.Opcode) error {
	k := arithKind(op)
	y, err := t.stack.popKind(pc, k)
	if err != nil {
		return err
	}
	x, err := t.stack.popKind(pc, k)
	if err != nil {
		return err
	}

	var r ir.Value
	switch (op - classfile.OpIadd) / 4 {
	case 0: // add
		if k.backendType().IsInt() {
			r = t.b.Iadd(x, y)
		} else {
			r = t.b.Fadd(x, y)
		}
	case 1: // sub
		if k.backendType().IsInt() {
			r = t.b.Isub(x, y)
		} else {
			r = t.b.Fsub(x, y)
		}
	case 2: // mul
		if k.backendType().IsInt() {
			r = t.b.Imul(x, y)
		} else {
			r = t.b.Fmul(x, y)
		}
	case 3: // div
		if k.backendType().IsInt() {
			r = t.b.Sdiv(x, y)
		} else {
			r = t.b.Fdiv(x, y)
		}
	default: // rem
		if k.backendType().IsInt() {
			r = t.b.Srem(x, y)
		} else {
			r = t.b.Frem(x, y)
		}
	}
	t.push(k, r)
	return nil
}

// shift 移位：移位数永远是 int，按被移位值的位宽取模
func (t *translator) shift(pc int, op classfile.Opcode) error {
	k := Int32
	if op == classfile.OpLshl || op == classfile.OpLshr || op == classfile.OpLushr {
		k = Int64
	}
	count, err := t.stack.popKind(pc, Int32)
	if err != nil {
		return err
	}
	x, err := t.stack.popKind(pc, k)
	if err != nil {
		return err
	}

	var r ir.Value
	switch op {
	case classfile.OpIshl, classfile.OpLshl:
		r = t.b.Ishl(x, count)
	case classfile.OpIshr, classfile.OpLshr:
		r = t.b.Sshr(x, count)
	default:
		r = t.b.Ushr(x, count)
	}
	t.push(k, r)
	return nil
}

func (t *translator) logic(pc int, op classfile.Opcode) error {
	k := Int32
	if op == classfile.OpLand || op == classfile.OpLor || op == classfile.OpLxor {
		k = Int64
	}
	y, err := t.stack.popKind(pc, k)
	if err != nil {
		return err
	}
	x, err := t.stack.popKind(pc, k)
	if err != nil {
		return err
	}

	var r ir.Value
	switch op {
	case classfile.OpIand, classfile.OpLand:
		r = t.b.Band(x, y)
	case classfile.OpIor, classfile.OpLor:
		r = t.b.Bor(x, y)
	default:
		r = t.b.Bxor(x, y)
	}
	t.push(k, r)
	return nil
}

// convert 类型转换
func (t *translator) convert(pc int, op classfile.Opcode) error {
	from := conversionSource(op)
	to := conversionResult(op)
	x, err := t.stack.popKind(pc, from)
	if err != nil {
		return err
	}

	var r ir.Value
	switch op {
	case classfile.OpI2l:
		r = t.b.Sextend(x)
	case classfile.OpL2i:
		r = t.b.Ireduce(x)
	case classfile.OpI2f, classfile.OpI2d, classfile.OpL2f, classfile.OpL2d:
		r = t.b.FcvtFromSint(to.backendType(), x)
	case classfile.OpF2i, classfile.OpF2l, classfile.OpD2i, classfile.OpD2l:
		r = t.b.FcvtToSintSat(to.backendType(), x)
	case classfile.OpF2d:
		r = t.b.Fpromote(x)
	case classfile.OpD2f:
		r = t.b.Fdemote(x)
	case classfile.OpI2b:
		c := t.b.Iconst(ir.I32, 24)
		r = t.b.Sshr(t.b.Ishl(x, c), c)
	case classfile.OpI2s:
		c := t.b.Iconst(ir.I32, 16)
		r = t.b.Sshr(t.b.Ishl(x, c), c)
	case classfile.OpI2c:
		r = t.b.Band(x, t.b.Iconst(ir.I32, 0xFFFF))
	default:
		return internalf("conversion %s not handled", op)
	}
	t.push(to, r)
	return nil
}

// conversionSource 类型转换指令的源类型
func conversionSource(op classfile.Opcode) Kind {
	switch op {
	case classfile.OpI2l, classfile.OpI2f, classfile.OpI2d,
		classfile.OpI2b, classfile.OpI2c, classfile.OpI2s:
		return Int32
	case classfile.OpL2i, classfile.OpL2f, classfile.OpL2d:
		return Int64
	case classfile.OpF2i, classfile.OpF2l, classfile.OpF2d:
		return Float32
	default:
		return Float64
	}
}

// branchCond ifeq..ifle / if_icmpeq..if_icmple 共用的条件顺序
func branchCond(offset classfile.Opcode) ir.Cond {
	switch offset {
	case 0:
		return ir.CondEq
	case 1:
		return ir.CondNe
	case 2:
		return ir.CondLt
	case 3:
		return ir.CondGe
	case 4:
		return ir.CondGt
	default:
		return ir.CondLe
	}
}

// condBranch 条件分支：两个后继拿到同样的栈
func (t *translator) condBranch(in classfile.Instruction, cond ir.Value) error {
	then, err := t.targetBlock(in.Target)
	if err != nil {
		return err
	}
	els, err := t.targetBlock(in.PC + in.Width)
	if err != nil {
		return err
	}
	args := t.stack.values()
	t.b.Brif(cond, then, args, els, args)
	return nil
}

// ============================================================================
// 数组
//
// 布局：偏移 0 处 8 字节 i64 长度头，元素从偏移 8 开始。指针
// 以 long 形式在栈上流转
// ============================================================================

// arrayElemSize newarray atype 对应的元素字节数
func arrayElemSize(atype int64) (int64, bool) {
	switch atype {
	case classfile.ArrayTypeBoolean, classfile.ArrayTypeByte:
		return 1, true
	case classfile.ArrayTypeChar, classfile.ArrayTypeShort:
		return 2, true
	case classfile.ArrayTypeFloat, classfile.ArrayTypeInt:
		return 4, true
	case classfile.ArrayTypeDouble, classfile.ArrayTypeLong:
		return 8, true
	default:
		return 0, false
	}
}

// newarray 分配数组：负长度落入陷阱块，长度写进头部
func (t *translator) newarray(pc int, atype int64) error {
	elemSize, ok := arrayElemSize(atype)
	if !ok {
		return &ClassFileError{Err: &classfile.FormatError{Offset: pc, Reason: "invalid newarray element type"}}
	}

	count, err := t.stack.popKind(pc, Int32)
	if err != nil {
		return err
	}

	nonNeg := t.b.Icmp(ir.CondGe, count, t.b.Iconst(ir.I32, 0))
	cont := t.b.CreateBlock()
	t.b.Brif(nonNeg, cont, nil, t.trapBlock(ir.TrapNegativeArraySize), nil)
	t.b.SwitchTo(cont)

	count64 := t.b.Sextend(count)
	bytes := t.b.Iadd(t.b.Iconst(ir.I64, 8), t.b.Imul(count64, t.b.Iconst(ir.I64, elemSize)))
	ref := t.b.Call(t.heapAlloc, ir.I64, bytes)
	t.b.Store(count64, ref, 0, ir.FlagTrusted)

	t.push(Ref, ref)
	return nil
}

// elementAddr 弹出索引和数组引用，返回元素基址 (元素从偏移 8 开始)
func (t *translator) elementAddr(pc int, elemSize int64) (ir.Value, error) {
	index, err := t.stack.popKind(pc, Int32)
	if err != nil {
		return ir.NoValue, err
	}
	ref, err := t.stack.popKind(pc, Ref)
	if err != nil {
		return ir.NoValue, err
	}

	index64 := t.b.Sextend(index)
	if t.boundsCheck {
		// 无符号比较同时挡掉负索引
		length := t.b.Load(ir.I64, ref, 0, ir.FlagTrusted)
		inRange := t.b.Icmp(ir.CondUlt, index64, length)
		cont := t.b.CreateBlock()
		t.b.Brif(inRange, cont, nil, t.trapBlock(ir.TrapIndexOutOfBounds), nil)
		t.b.SwitchTo(cont)
	}
	return t.b.Iadd(ref, t.b.Imul(index64, t.b.Iconst(ir.I64, elemSize))), nil
}

// arrayLoad 数组取值
func (t *translator) arrayLoad(pc int, op classfile.Opcode) error {
	k := arrayElemKind(op)

	var elemSize int64
	switch op {
	case classfile.OpBaload:
		elemSize = 1
	case classfile.OpCaload, classfile.OpSaload:
		elemSize = 2
	case classfile.OpIaload, classfile.OpFaload:
		elemSize = 4
	default:
		elemSize = 8
	}

	addr, err := t.elementAddr(pc, elemSize)
	if err != nil {
		return err
	}

	var v ir.Value
	switch op {
	case classfile.OpBaload:
		v = t.b.Sload8(addr, 8, ir.FlagTrusted)
	case classfile.OpCaload:
		v = t.b.Uload16(addr, 8, ir.FlagTrusted)
	case classfile.OpSaload:
		v = t.b.Sload16(addr, 8, ir.FlagTrusted)
	default:
		v = t.b.Load(k.backendType(), addr, 8, ir.FlagTrusted)
	}
	t.push(k, v)
	return nil
}

// arrayStore 数组写入
func (t *translator) arrayStore(pc int, op classfile.Opcode) error {
	k := arrayElemKind(op)
	val, err := t.stack.popKind(pc, k)
	if err != nil {
		return err
	}

	var elemSize int64
	switch op {
	case classfile.OpBastore:
		elemSize = 1
	case classfile.OpCastore, classfile.OpSastore:
		elemSize = 2
	case classfile.OpIastore, classfile.OpFastore:
		elemSize = 4
	default:
		elemSize = 8
	}

	addr, err := t.elementAddr(pc, elemSize)
	if err != nil {
		return err
	}

	switch op {
	case classfile.OpBastore:
		t.b.Istore8(val, addr, 8, ir.FlagTrusted)
	case classfile.OpCastore, classfile.OpSastore:
		t.b.Istore16(val, addr, 8, ir.FlagTrusted)
	default:
		t.b.Store(val, addr, 8, ir.FlagTrusted)
	}
	return nil
}
