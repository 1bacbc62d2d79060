package jit

import (
	"fmt"
	"math"
	"sort"

	"github.com/tangzhangming/kava/internal/classfile"
)

// ============================================================================
// 控制流分析
//
// 两遍编译的第一遍：划分基本块并推导每个块入口处操作数栈的
// 形状。有了入口形状，翻译回边 (循环头) 时目标块的参数列表
// 已经确定，不需要迭代重写
// ============================================================================

// basicBlock 一个基本块
type basicBlock struct {
	startPC int
	first   int // 指令索引区间 [first, last]
	last    int

	entry []Kind // 入口栈形状 (自底向上)
	known bool
}

// controlFlow 方法的控制流图
type controlFlow struct {
	instrs  []classfile.Instruction
	blocks  []*basicBlock
	byPC    map[int]int // 块首 pc → 块索引
	indexOf map[int]int // pc → 指令索引
}

// blockAt 返回以 pc 为首的块，不存在时报告坏跳转
func (cf *controlFlow) blockAt(pc int) (*basicBlock, error) {
	idx, ok := cf.byPC[pc]
	if !ok {
		return nil, &ClassFileError{Err: fmt.Errorf("branch target pc=%d is not an instruction boundary", pc)}
	}
	return cf.blocks[idx], nil
}

// buildControlFlow 划分基本块并传播入口栈形状
func buildControlFlow(instrs []classfile.Instruction, cp *classfile.ConstantPool) (*controlFlow, error) {
	if len(instrs) == 0 {
		return nil, &ClassFileError{Err: fmt.Errorf("empty code attribute")}
	}

	cf := &controlFlow{
		instrs:  instrs,
		byPC:    make(map[int]int),
		indexOf: make(map[int]int, len(instrs)),
	}
	for i, in := range instrs {
		cf.indexOf[in.PC] = i
	}

	// 块首：pc 0、所有跳转目标、跳转和返回的下一条指令
	leaders := map[int]bool{instrs[0].PC: true}
	for i, in := range instrs {
		if in.Op.IsBranch() || isGoto(in.Op) {
			if _, ok := cf.indexOf[in.Target]; !ok {
				return nil, &ClassFileError{Err: fmt.Errorf("branch target pc=%d is not an instruction boundary", in.Target)}
			}
			leaders[in.Target] = true
		}
		if (in.Op.IsBranch() || isGoto(in.Op) || in.Op.IsReturn()) && i+1 < len(instrs) {
			leaders[instrs[i+1].PC] = true
		}
	}

	starts := make([]int, 0, len(leaders))
	for pc := range leaders {
		starts = append(starts, pc)
	}
	sort.Ints(starts)

	for bi, pc := range starts {
		first := cf.indexOf[pc]
		last := len(instrs) - 1
		if bi+1 < len(starts) {
			last = cf.indexOf[starts[bi+1]] - 1
		}
		cf.byPC[pc] = len(cf.blocks)
		cf.blocks = append(cf.blocks, &basicBlock{startPC: pc, first: first, last: last})
	}

	if err := cf.propagateShapes(cp); err != nil {
		return nil, err
	}
	return cf, nil
}

// propagateShapes 从入口块开始沿边传播栈形状
//
// 方法入口时操作数栈为空 (参数在局部变量表里)。前驱之间形状
// 不一致说明字节码没有通过校验，按内部错误处理
func (cf *controlFlow) propagateShapes(cp *classfile.ConstantPool) error {
	entry := cf.blocks[0]
	entry.entry = []Kind{}
	entry.known = true

	work := []*basicBlock{entry}
	for len(work) > 0 {
		blk := work[len(work)-1]
		work = work[:len(work)-1]

		shape := append([]Kind(nil), blk.entry...)
		sim := kindSim{stack: shape}
		for i := blk.first; i <= blk.last; i++ {
			if err := sim.step(cf.instrs[i], cp); err != nil {
				return err
			}
		}

		for _, pc := range cf.successors(blk) {
			succ, err := cf.blockAt(pc)
			if err != nil {
				return err
			}
			if !succ.known {
				succ.entry = append([]Kind(nil), sim.stack...)
				succ.known = true
				work = append(work, succ)
			} else if !shapeEqual(succ.entry, sim.stack) {
				return internalf("operand stack shape mismatch at pc=%d: %v vs %v",
					succ.startPC, succ.entry, sim.stack)
			}
		}
	}
	return nil
}

// isGoto 无条件跳转
func isGoto(op classfile.Opcode) bool {
	return op == classfile.OpGoto || op == classfile.OpGotoW
}

// successors 块的后继 pc 列表
func (cf *controlFlow) successors(blk *basicBlock) []int {
	last := cf.instrs[blk.last]
	switch {
	case isGoto(last.Op):
		return []int{last.Target}
	case last.Op.IsBranch():
		// 条件分支：目标 + 直落
		return []int{last.Target, last.PC + last.Width}
	case last.Op.IsReturn():
		return nil
	default:
		// 块因下一条指令是其他块的首指令而结束
		return []int{last.PC + last.Width}
	}
}

// ============================================================================
// 形状模拟
// ============================================================================

// kindSim 只跟踪类型的轻量栈模拟，供形状传播使用
//
// 翻译遍 (translate.go) 在真实 IR 值上做同样的栈操作，两边的
// 指令集必须保持一致
type kindSim struct {
	stack []Kind
}

func (s *kindSim) push(k Kind) {
	s.stack = append(s.stack, k)
}

func (s *kindSim) pop(pc int) (Kind, error) {
	if len(s.stack) == 0 {
		return 0, &OperandStackUnderflowError{PC: pc}
	}
	top := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	return top, nil
}

func (s *kindSim) popN(pc int, n int) error {
	for i := 0; i < n; i++ {
		if _, err := s.pop(pc); err != nil {
			return err
		}
	}
	return nil
}

// step 应用一条指令的栈效果
func (s *kindSim) step(in classfile.Instruction, cp *classfile.ConstantPool) error {
	pc := in.PC
	op := in.Op
	switch {
	case op == classfile.OpNop || op == classfile.OpIinc ||
		isGoto(op) || op == classfile.OpReturn:
		return nil

	case op == classfile.OpAconstNull:
		// null 引用按零指针处理
		s.push(Ref)
		return nil

	case op >= classfile.OpIconstM1 && op <= classfile.OpIconst5,
		op == classfile.OpBipush, op == classfile.OpSipush:
		s.push(Int32)
		return nil

	case op == classfile.OpLconst0 || op == classfile.OpLconst1:
		s.push(Int64)
		return nil

	case op >= classfile.OpFconst0 && op <= classfile.OpFconst2:
		s.push(Float32)
		return nil

	case op == classfile.OpDconst0 || op == classfile.OpDconst1:
		s.push(Float64)
		return nil

	case op == classfile.OpLdc || op == classfile.OpLdcW || op == classfile.OpLdc2W:
		k, _, err := loadableConstant(cp, in.Index, op == classfile.OpLdc2W)
		if err != nil {
			return err
		}
		s.push(k)
		return nil

	case op == classfile.OpIload, op >= classfile.OpIload0 && op <= classfile.OpIload3:
		s.push(Int32)
		return nil
	case op == classfile.OpLload, op >= classfile.OpLload0 && op <= classfile.OpLload3:
		s.push(Int64)
		return nil
	case op == classfile.OpFload, op >= classfile.OpFload0 && op <= classfile.OpFload3:
		s.push(Float32)
		return nil
	case op == classfile.OpDload, op >= classfile.OpDload0 && op <= classfile.OpDload3:
		s.push(Float64)
		return nil
	case op == classfile.OpAload, op >= classfile.OpAload0 && op <= classfile.OpAload3:
		s.push(Ref)
		return nil

	case op == classfile.OpIstore, op >= classfile.OpIstore0 && op <= classfile.OpIstore3,
		op == classfile.OpLstore, op >= classfile.OpLstore0 && op <= classfile.OpLstore3,
		op == classfile.OpFstore, op >= classfile.OpFstore0 && op <= classfile.OpFstore3,
		op == classfile.OpDstore, op >= classfile.OpDstore0 && op <= classfile.OpDstore3,
		op == classfile.OpAstore, op >= classfile.OpAstore0 && op <= classfile.OpAstore3:
		_, err := s.pop(pc)
		return err

	case op == classfile.OpPop:
		k, err := s.pop(pc)
		if err != nil {
			return err
		}
		if k.Wide() {
			return internalf("pop on category-2 value at pc=%d", pc)
		}
		return nil

	case op == classfile.OpPop2:
		k, err := s.pop(pc)
		if err != nil {
			return err
		}
		if !k.Wide() {
			// 两个单字值的形式不支持
			return &UnsupportedInstructionError{Op: op, PC: pc}
		}
		return nil

	case op == classfile.OpDup:
		if len(s.stack) == 0 {
			return &OperandStackUnderflowError{PC: pc}
		}
		top := s.stack[len(s.stack)-1]
		if top.Wide() {
			return internalf("dup on category-2 value at pc=%d", pc)
		}
		s.push(top)
		return nil

	case op == classfile.OpDup2:
		if len(s.stack) == 0 {
			return &OperandStackUnderflowError{PC: pc}
		}
		top := s.stack[len(s.stack)-1]
		if !top.Wide() {
			return &UnsupportedInstructionError{Op: op, PC: pc}
		}
		s.push(top)
		return nil

	case op == classfile.OpSwap:
		if len(s.stack) < 2 {
			return &OperandStackUnderflowError{PC: pc}
		}
		a := s.stack[len(s.stack)-1]
		b := s.stack[len(s.stack)-2]
		if a.Wide() || b.Wide() {
			return internalf("swap on category-2 value at pc=%d", pc)
		}
		s.stack[len(s.stack)-1], s.stack[len(s.stack)-2] = b, a
		return nil

	case op >= classfile.OpIadd && op <= classfile.OpDrem:
		// 二元算术：弹两个同类值压一个
		k := arithKind(op)
		if err := s.popN(pc, 2); err != nil {
			return err
		}
		s.push(k)
		return nil

	case op >= classfile.OpIneg && op <= classfile.OpDneg:
		// 取负不改变栈形状
		return nil

	case op >= classfile.OpIshl && op <= classfile.OpLushr:
		// 移位数永远是 int
		if err := s.popN(pc, 2); err != nil {
			return err
		}
		if op == classfile.OpIshl || op == classfile.OpIshr || op == classfile.OpIushr {
			s.push(Int32)
		} else {
			s.push(Int64)
		}
		return nil

	case op >= classfile.OpIand && op <= classfile.OpLxor:
		k := Int32
		if op == classfile.OpLand || op == classfile.OpLor || op == classfile.OpLxor {
			k = Int64
		}
		if err := s.popN(pc, 2); err != nil {
			return err
		}
		s.push(k)
		return nil

	case op >= classfile.OpI2l && op <= classfile.OpI2s:
		if _, err := s.pop(pc); err != nil {
			return err
		}
		s.push(conversionResult(op))
		return nil

	case op == classfile.OpLcmp,
		op == classfile.OpFcmpl, op == classfile.OpFcmpg,
		op == classfile.OpDcmpl, op == classfile.OpDcmpg:
		if err := s.popN(pc, 2); err != nil {
			return err
		}
		s.push(Int32)
		return nil

	case op >= classfile.OpIfeq && op <= classfile.OpIfle:
		_, err := s.pop(pc)
		return err

	case op >= classfile.OpIfIcmpeq && op <= classfile.OpIfIcmple:
		return s.popN(pc, 2)

	case op == classfile.OpNewarray:
		if _, err := s.pop(pc); err != nil {
			return err
		}
		s.push(Ref)
		return nil

	case op == classfile.OpArraylength:
		if _, err := s.pop(pc); err != nil {
			return err
		}
		s.push(Int32)
		return nil

	case op >= classfile.OpIaload && op <= classfile.OpSaload:
		if op == classfile.OpAaload {
			return &UnsupportedInstructionError{Op: op, PC: pc}
		}
		if err := s.popN(pc, 2); err != nil {
			return err
		}
		s.push(arrayElemKind(op))
		return nil

	case op >= classfile.OpIastore && op <= classfile.OpSastore:
		if op == classfile.OpAastore {
			return &UnsupportedInstructionError{Op: op, PC: pc}
		}
		return s.popN(pc, 3)

	case op >= classfile.OpIreturn && op <= classfile.OpDreturn:
		_, err := s.pop(pc)
		return err

	default:
		return &UnsupportedInstructionError{Op: op, PC: pc}
	}
}

// arithKind 二元算术指令的结果类型
func arithKind(op classfile.Opcode) Kind {
	switch (op - classfile.OpIadd) % 4 {
	case 0:
		return Int32
	case 1:
		return Int64
	case 2:
		return Float32
	default:
		return Float64
	}
}

// conversionResult 类型转换指令的结果类型
func conversionResult(op classfile.Opcode) Kind {
	switch op {
	case classfile.OpI2l, classfile.OpF2l, classfile.OpD2l:
		return Int64
	case classfile.OpI2f, classfile.OpL2f, classfile.OpD2f:
		return Float32
	case classfile.OpI2d, classfile.OpL2d, classfile.OpF2d:
		return Float64
	default:
		// l2i f2i d2i i2b i2c i2s
		return Int32
	}
}

// arrayElemKind 数组取值指令的元素类型
func arrayElemKind(op classfile.Opcode) Kind {
	switch op {
	case classfile.OpLaload, classfile.OpLastore:
		return Int64
	case classfile.OpFaload, classfile.OpFastore:
		return Float32
	case classfile.OpDaload, classfile.OpDastore:
		return Float64
	default:
		return Int32
	}
}

// loadableConstant 取出 ldc/ldc2_w 引用的常量的类型和位模式
func loadableConstant(cp *classfile.ConstantPool, index int, wide bool) (Kind, uint64, error) {
	entry, err := cp.Entry(index)
	if err != nil {
		return 0, 0, &InvalidConstantIndexError{Index: index}
	}
	switch c := entry.(type) {
	case *classfile.ConstantIntegerInfo:
		if wide {
			return 0, 0, &InvalidConstantError{Index: index, Tag: entry.Tag()}
		}
		return Int32, uint64(uint32(c.Value)), nil
	case *classfile.ConstantFloatInfo:
		if wide {
			return 0, 0, &InvalidConstantError{Index: index, Tag: entry.Tag()}
		}
		return Float32, uint64(math.Float32bits(c.Value)), nil
	case *classfile.ConstantLongInfo:
		if !wide {
			return 0, 0, &InvalidConstantError{Index: index, Tag: entry.Tag()}
		}
		return Int64, uint64(c.Value), nil
	case *classfile.ConstantDoubleInfo:
		if !wide {
			return 0, 0, &InvalidConstantError{Index: index, Tag: entry.Tag()}
		}
		return Float64, math.Float64bits(c.Value), nil
	default:
		return 0, 0, &InvalidConstantError{Index: index, Tag: entry.Tag()}
	}
}
