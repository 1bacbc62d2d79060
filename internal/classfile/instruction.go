// instruction.go - 字节码指令解码器
//
// 将 Code 属性的原始字节流解码为带 pc 偏移的指令序列。
// 解码器覆盖完整的标准指令集宽度，不支持的指令也会被解码出来
// (由 JIT 在翻译阶段报告 UnsupportedInstruction)，绝不静默跳过。

package classfile

import (
	"encoding/binary"
	"fmt"
)

// Instruction 一条解码后的字节码指令
type Instruction struct {
	PC     int    // 指令起始偏移
	Op     Opcode // 操作码
	Index  int    // 局部变量槽位或常量池索引 (_n 形式已归一化)
	Value  int64  // 立即数 (bipush/sipush 的常量、iinc 的增量、newarray 的 atype)
	Target int    // 分支目标的绝对 pc
	Width  int    // 指令总宽度 (含操作码)
}

// String 返回指令的反汇编形式
func (in Instruction) String() string {
	switch {
	case in.Op.IsBranch() || in.Op == OpGoto || in.Op == OpGotoW:
		return fmt.Sprintf("%4d: %s %d", in.PC, in.Op, in.Target)
	case in.Op == OpIinc:
		return fmt.Sprintf("%4d: %s %d %d", in.PC, in.Op, in.Index, in.Value)
	case in.Op == OpBipush || in.Op == OpSipush || in.Op == OpNewarray:
		return fmt.Sprintf("%4d: %s %d", in.PC, in.Op, in.Value)
	default:
		return fmt.Sprintf("%4d: %s", in.PC, in.Op)
	}
}

// Decode 解码整个方法的字节码
func Decode(code []byte) ([]Instruction, error) {
	insts := make([]Instruction, 0, len(code)/2)

	pc := 0
	for pc < len(code) {
		inst, err := decodeOne(code, pc)
		if err != nil {
			return nil, err
		}
		insts = append(insts, inst)
		pc += inst.Width
	}

	return insts, nil
}

// decodeOne 解码单条指令
func decodeOne(code []byte, pc int) (Instruction, error) {
	op := Opcode(code[pc])
	inst := Instruction{PC: pc, Op: op, Width: 1}

	need := func(n int) error {
		if pc+n >= len(code) {
			return &FormatError{Offset: pc, Reason: fmt.Sprintf("truncated %s instruction", op)}
		}
		return nil
	}

	switch op {
	// 归一化的局部变量操作 (_0.._3 形式)
	case OpIload0, OpIload1, OpIload2, OpIload3:
		inst.Index = int(op - OpIload0)
	case OpLload0, OpLload1, OpLload2, OpLload3:
		inst.Index = int(op - OpLload0)
	case OpFload0, OpFload1, OpFload2, OpFload3:
		inst.Index = int(op - OpFload0)
	case OpDload0, OpDload1, OpDload2, OpDload3:
		inst.Index = int(op - OpDload0)
	case OpAload0, OpAload1, OpAload2, OpAload3:
		inst.Index = int(op - OpAload0)
	case OpIstore0, OpIstore1, OpIstore2, OpIstore3:
		inst.Index = int(op - OpIstore0)
	case OpLstore0, OpLstore1, OpLstore2, OpLstore3:
		inst.Index = int(op - OpLstore0)
	case OpFstore0, OpFstore1, OpFstore2, OpFstore3:
		inst.Index = int(op - OpFstore0)
	case OpDstore0, OpDstore1, OpDstore2, OpDstore3:
		inst.Index = int(op - OpDstore0)
	case OpAstore0, OpAstore1, OpAstore2, OpAstore3:
		inst.Index = int(op - OpAstore0)

	// 单字节局部变量索引
	case OpIload, OpLload, OpFload, OpDload, OpAload,
		OpIstore, OpLstore, OpFstore, OpDstore, OpAstore, OpRet:
		if err := need(1); err != nil {
			return inst, err
		}
		inst.Index = int(code[pc+1])
		inst.Width = 2

	// 立即数
	case OpBipush:
		if err := need(1); err != nil {
			return inst, err
		}
		inst.Value = int64(int8(code[pc+1]))
		inst.Width = 2

	case OpSipush:
		if err := need(2); err != nil {
			return inst, err
		}
		inst.Value = int64(int16(binary.BigEndian.Uint16(code[pc+1:])))
		inst.Width = 3

	case OpNewarray:
		if err := need(1); err != nil {
			return inst, err
		}
		inst.Value = int64(code[pc+1])
		inst.Width = 2

	// 常量池索引
	case OpLdc:
		if err := need(1); err != nil {
			return inst, err
		}
		inst.Index = int(code[pc+1])
		inst.Width = 2

	case OpLdcW, OpLdc2W:
		if err := need(2); err != nil {
			return inst, err
		}
		inst.Index = int(binary.BigEndian.Uint16(code[pc+1:]))
		inst.Width = 3

	// iinc: 槽位 + 有符号增量
	case OpIinc:
		if err := need(2); err != nil {
			return inst, err
		}
		inst.Index = int(code[pc+1])
		inst.Value = int64(int8(code[pc+2]))
		inst.Width = 3

	// 分支：目标存储为绝对 pc
	case OpIfeq, OpIfne, OpIflt, OpIfge, OpIfgt, OpIfle,
		OpIfIcmpeq, OpIfIcmpne, OpIfIcmplt, OpIfIcmpge, OpIfIcmpgt, OpIfIcmple,
		OpIfAcmpeq, OpIfAcmpne, OpIfnull, OpIfnonnull, OpGoto, OpJsr:
		if err := need(2); err != nil {
			return inst, err
		}
		offset := int(int16(binary.BigEndian.Uint16(code[pc+1:])))
		inst.Target = pc + offset
		inst.Width = 3

	case OpGotoW, OpJsrW:
		if err := need(4); err != nil {
			return inst, err
		}
		offset := int(int32(binary.BigEndian.Uint32(code[pc+1:])))
		inst.Target = pc + offset
		inst.Width = 5

	// 可变宽度指令：正确跳过操作数，翻译阶段报告不支持
	case OpTableswitch:
		pad := 3 - (pc % 4)
		base := pc + 1 + pad
		if base+12 > len(code) {
			return inst, &FormatError{Offset: pc, Reason: "truncated tableswitch"}
		}
		low := int32(binary.BigEndian.Uint32(code[base+4:]))
		high := int32(binary.BigEndian.Uint32(code[base+8:]))
		if high < low {
			return inst, &FormatError{Offset: pc, Reason: "tableswitch high < low"}
		}
		inst.Width = 1 + pad + 12 + int(high-low+1)*4

	case OpLookupswitch:
		pad := 3 - (pc % 4)
		base := pc + 1 + pad
		if base+8 > len(code) {
			return inst, &FormatError{Offset: pc, Reason: "truncated lookupswitch"}
		}
		npairs := int32(binary.BigEndian.Uint32(code[base+4:]))
		if npairs < 0 {
			return inst, &FormatError{Offset: pc, Reason: "lookupswitch negative npairs"}
		}
		inst.Width = 1 + pad + 8 + int(npairs)*8

	case OpWide:
		if err := need(1); err != nil {
			return inst, err
		}
		if Opcode(code[pc+1]) == OpIinc {
			inst.Width = 6
		} else {
			inst.Width = 4
		}

	default:
		// 固定宽度表覆盖其余带操作数的指令；不在表中即为无操作数
		if w, ok := operandWidths[op]; ok {
			if err := need(w); err != nil {
				return inst, err
			}
			inst.Width = 1 + w
		}
	}

	if pc+inst.Width > len(code) {
		return inst, &FormatError{Offset: pc, Reason: fmt.Sprintf("instruction %s overruns code", op)}
	}
	return inst, nil
}
