// eval.go - IR 求值器
//
// 对终结后的 IR 逐指令求值。所有值统一放在 64 位寄存器数组里：
// i32 零扩展到低 32 位，f32/f64 存位模式。块参数在跳转时由
// 分支实参赋值，这正是合并点 (phi) 语义的执行形式。
//
// load/store 直接对原始地址解引用，地址由宿主分配器保证有效。

package ir

import (
	"fmt"
	"math"
	"unsafe"
)

// Call 以给定实参执行函数，返回函数的返回值位模式
// 返回类型为 Void 时结果无意义；实参数量必须与签名一致
func (c *Code) Call(args []uint64) (uint64, error) {
	fn := c.fn
	if len(args) != len(fn.Params) {
		return 0, &CodegenError{Fn: fn.Name,
			Reason: fmt.Sprintf("call with %d arguments, signature has %d", len(args), len(fn.Params))}
	}

	regs := make([]uint64, len(fn.valueType))
	slots := make([]uint64, fn.SlotCount)

	// 入口块参数
	cur := Block(0)
	for i, p := range fn.blocks[0].params {
		regs[p] = normalize(fn.Params[i], args[i])
	}

	// 跳转实参的暂存区，避免赋值顺序互相覆盖
	var hop []uint64

run:
	for {
		for _, idx := range fn.blocks[cur].instrs {
			in := &fn.instrs[idx]

			switch in.Op {
			case OpIconst:
				if in.Type == I32 {
					regs[in.Result] = uint64(uint32(in.Imm))
				} else {
					regs[in.Result] = uint64(in.Imm)
				}
			case OpF32const, OpF64const:
				regs[in.Result] = uint64(in.Imm)

			case OpIadd, OpIsub, OpImul, OpBand, OpBor, OpBxor:
				regs[in.Result] = intBinary(in.Op, in.Type, regs[in.Args[0]], regs[in.Args[1]])

			case OpSdiv, OpSrem:
				r, err := intDivide(in.Op, in.Type, regs[in.Args[0]], regs[in.Args[1]])
				if err != nil {
					return 0, err
				}
				regs[in.Result] = r

			case OpIneg:
				if in.Type == I32 {
					regs[in.Result] = uint64(uint32(-int32(uint32(regs[in.Args[0]]))))
				} else {
					regs[in.Result] = uint64(-int64(regs[in.Args[0]]))
				}

			case OpIshl, OpSshr, OpUshr:
				regs[in.Result] = intShift(in.Op, in.Type, regs[in.Args[0]], regs[in.Args[1]])

			case OpFadd, OpFsub, OpFmul, OpFdiv, OpFrem:
				regs[in.Result] = floatBinary(in.Op, in.Type, regs[in.Args[0]], regs[in.Args[1]])

			case OpFneg:
				if in.Type == F32 {
					regs[in.Result] = uint64(math.Float32bits(-math.Float32frombits(uint32(regs[in.Args[0]]))))
				} else {
					regs[in.Result] = math.Float64bits(-math.Float64frombits(regs[in.Args[0]]))
				}

			case OpIcmp:
				regs[in.Result] = boolBit(intCompare(in.Cond, fn.ValueType(in.Args[0]), regs[in.Args[0]], regs[in.Args[1]]))

			case OpFcmp:
				regs[in.Result] = boolBit(floatCompare(in.Cond, fn.ValueType(in.Args[0]), regs[in.Args[0]], regs[in.Args[1]]))

			case OpSextend:
				regs[in.Result] = uint64(int64(int32(uint32(regs[in.Args[0]]))))
			case OpUextend:
				regs[in.Result] = uint64(uint32(regs[in.Args[0]]))
			case OpIreduce:
				regs[in.Result] = uint64(uint32(regs[in.Args[0]]))
			case OpFpromote:
				regs[in.Result] = math.Float64bits(float64(math.Float32frombits(uint32(regs[in.Args[0]]))))
			case OpFdemote:
				regs[in.Result] = uint64(math.Float32bits(float32(math.Float64frombits(regs[in.Args[0]]))))

			case OpFcvtToSintSat:
				regs[in.Result] = cvtToSintSat(fn.ValueType(in.Args[0]), in.Type, regs[in.Args[0]])

			case OpFcvtFromSint:
				regs[in.Result] = cvtFromSint(fn.ValueType(in.Args[0]), in.Type, regs[in.Args[0]])

			case OpCall:
				h := c.hosts[in.Host]
				callArgs := make([]uint64, len(in.Args))
				for i, a := range in.Args {
					callArgs[i] = regs[a]
				}
				r, err := h.fn(callArgs)
				if err != nil {
					return 0, err
				}
				if in.Result != NoValue {
					regs[in.Result] = normalize(in.Type, r)
				}

			case OpLoad:
				addr := uintptr(regs[in.Args[0]]) + uintptr(int64(in.Off))
				regs[in.Result] = loadMem(in.Type, addr)

			case OpStore:
				addr := uintptr(regs[in.Args[1]]) + uintptr(int64(in.Off))
				storeMem(fn.ValueType(in.Args[0]), addr, regs[in.Args[0]])

			case OpSload8:
				addr := uintptr(regs[in.Args[0]]) + uintptr(int64(in.Off))
				regs[in.Result] = uint64(uint32(int32(*(*int8)(unsafe.Pointer(addr)))))

			case OpSload16:
				addr := uintptr(regs[in.Args[0]]) + uintptr(int64(in.Off))
				regs[in.Result] = uint64(uint32(int32(*(*int16)(unsafe.Pointer(addr)))))

			case OpUload16:
				addr := uintptr(regs[in.Args[0]]) + uintptr(int64(in.Off))
				regs[in.Result] = uint64(*(*uint16)(unsafe.Pointer(addr)))

			case OpIstore8:
				addr := uintptr(regs[in.Args[1]]) + uintptr(int64(in.Off))
				*(*uint8)(unsafe.Pointer(addr)) = uint8(regs[in.Args[0]])

			case OpIstore16:
				addr := uintptr(regs[in.Args[1]]) + uintptr(int64(in.Off))
				*(*uint16)(unsafe.Pointer(addr)) = uint16(regs[in.Args[0]])

			case OpStackLoad:
				regs[in.Result] = normalize(in.Type, slots[in.Slot])

			case OpStackStore:
				slots[in.Slot] = regs[in.Args[0]]

			case OpJump:
				cur = c.branch(in.Targets[0], regs, &hop)
				continue run

			case OpBrif:
				t := in.Targets[1]
				if uint32(regs[in.Args[0]]) != 0 {
					t = in.Targets[0]
				}
				cur = c.branch(t, regs, &hop)
				continue run

			case OpReturn:
				if len(in.Args) == 1 {
					return regs[in.Args[0]], nil
				}
				return 0, nil

			case OpTrap:
				return 0, &TrapError{Code: in.Trap}

			default:
				return 0, &CodegenError{Fn: fn.Name, Reason: fmt.Sprintf("unexecutable op %s", in.Op)}
			}
		}
		// 块没有终结指令时 Finish 已经报错，到不了这里
		return 0, &CodegenError{Fn: fn.Name, Reason: fmt.Sprintf("fell off block %d", cur)}
	}
}

// branch 执行一次跳转：把实参搬运到目标块参数
func (c *Code) branch(t BranchTarget, regs []uint64, hop *[]uint64) Block {
	params := c.fn.blocks[t.Block].params
	if len(t.Args) == 0 {
		return t.Block
	}
	*hop = (*hop)[:0]
	for _, a := range t.Args {
		*hop = append(*hop, regs[a])
	}
	for i, p := range params {
		regs[p] = (*hop)[i]
	}
	return t.Block
}

// normalize 按类型规范化位模式 (i32/f32 清高位)
func normalize(t Type, v uint64) uint64 {
	if t == I32 || t == F32 {
		return uint64(uint32(v))
	}
	return v
}

// boolBit 布尔转 i32 0/1
func boolBit(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// intBinary 整数二元运算
func intBinary(op Op, t Type, x, y uint64) uint64 {
	if t == I32 {
		a, b := int32(uint32(x)), int32(uint32(y))
		var r int32
		switch op {
		case OpIadd:
			r = a + b
		case OpIsub:
			r = a - b
		case OpImul:
			r = a * b
		case OpBand:
			r = a & b
		case OpBor:
			r = a | b
		case OpBxor:
			r = a ^ b
		}
		return uint64(uint32(r))
	}
	a, b := int64(x), int64(y)
	var r int64
	switch op {
	case OpIadd:
		r = a + b
	case OpIsub:
		r = a - b
	case OpImul:
		r = a * b
	case OpBand:
		r = a & b
	case OpBor:
		r = a | b
	case OpBxor:
		r = a ^ b
	}
	return uint64(r)
}

// intDivide 整数除法/取余，除零陷入
// MinInt / -1 依 Go 的补码回绕语义，与 JVM 一致
func intDivide(op Op, t Type, x, y uint64) (uint64, error) {
	if t == I32 {
		a, b := int32(uint32(x)), int32(uint32(y))
		if b == 0 {
			return 0, &TrapError{Code: TrapDivByZero}
		}
		if op == OpSdiv {
			return uint64(uint32(a / b)), nil
		}
		return uint64(uint32(a % b)), nil
	}
	a, b := int64(x), int64(y)
	if b == 0 {
		return 0, &TrapError{Code: TrapDivByZero}
	}
	if op == OpSdiv {
		return uint64(a / b), nil
	}
	return uint64(a % b), nil
}

// intShift 移位，移位数按位宽取模
func intShift(op Op, t Type, x, count uint64) uint64 {
	if t == I32 {
		n := uint(count) & 31
		switch op {
		case OpIshl:
			return uint64(uint32(x) << n)
		case OpSshr:
			return uint64(uint32(int32(uint32(x)) >> n))
		default: // OpUshr
			return uint64(uint32(x) >> n)
		}
	}
	n := uint(count) & 63
	switch op {
	case OpIshl:
		return x << n
	case OpSshr:
		return uint64(int64(x) >> n)
	default: // OpUshr
		return x >> n
	}
}

// floatBinary 浮点二元运算
func floatBinary(op Op, t Type, x, y uint64) uint64 {
	if t == F32 {
		a, b := math.Float32frombits(uint32(x)), math.Float32frombits(uint32(y))
		var r float32
		switch op {
		case OpFadd:
			r = a + b
		case OpFsub:
			r = a - b
		case OpFmul:
			r = a * b
		case OpFdiv:
			r = a / b
		case OpFrem:
			r = float32(math.Mod(float64(a), float64(b)))
		}
		return uint64(math.Float32bits(r))
	}
	a, b := math.Float64frombits(x), math.Float64frombits(y)
	var r float64
	switch op {
	case OpFadd:
		r = a + b
	case OpFsub:
		r = a - b
	case OpFmul:
		r = a * b
	case OpFdiv:
		r = a / b
	case OpFrem:
		r = math.Mod(a, b)
	}
	return math.Float64bits(r)
}

// intCompare 整数比较
func intCompare(cond Cond, t Type, x, y uint64) bool {
	if t == I32 {
		a, b := int32(uint32(x)), int32(uint32(y))
		switch cond {
		case CondEq:
			return a == b
		case CondNe:
			return a != b
		case CondLt:
			return a < b
		case CondLe:
			return a <= b
		case CondGt:
			return a > b
		case CondGe:
			return a >= b
		case CondUlt:
			return uint32(x) < uint32(y)
		}
		return false
	}
	a, b := int64(x), int64(y)
	switch cond {
	case CondEq:
		return a == b
	case CondNe:
		return a != b
	case CondLt:
		return a < b
	case CondLe:
		return a <= b
	case CondGt:
		return a > b
	case CondGe:
		return a >= b
	case CondUlt:
		return x < y
	}
	return false
}

// floatCompare 浮点比较
// 有序条件在任一操作数为 NaN 时为假；CondNe 为 IEEE 的 !=
func floatCompare(cond Cond, t Type, x, y uint64) bool {
	var a, b float64
	if t == F32 {
		a, b = float64(math.Float32frombits(uint32(x))), float64(math.Float32frombits(uint32(y)))
	} else {
		a, b = math.Float64frombits(x), math.Float64frombits(y)
	}
	switch cond {
	case CondEq:
		return a == b
	case CondNe:
		return a != b
	case CondLt:
		return a < b
	case CondLe:
		return a <= b
	case CondGt:
		return a > b
	case CondGe:
		return a >= b
	case CondUno:
		return math.IsNaN(a) || math.IsNaN(b)
	}
	return false
}

// cvtToSintSat 浮点转有符号整数的饱和转换
// NaN -> 0，超出范围 -> 对应边界值 (JVM f2i/f2l/d2i/d2l 语义)
func cvtToSintSat(from, to Type, v uint64) uint64 {
	var f float64
	if from == F32 {
		f = float64(math.Float32frombits(uint32(v)))
	} else {
		f = math.Float64frombits(v)
	}

	if math.IsNaN(f) {
		return 0
	}
	if to == I32 {
		switch {
		case f >= float64(math.MaxInt32):
			return uint64(uint32(math.MaxInt32))
		case f <= float64(math.MinInt32):
			return uint64(uint32(1) << 31)
		default:
			return uint64(uint32(int32(f)))
		}
	}
	switch {
	case f >= float64(math.MaxInt64):
		return uint64(int64(math.MaxInt64))
	case f <= float64(math.MinInt64):
		return uint64(1) << 63
	default:
		return uint64(int64(f))
	}
}

// cvtFromSint 有符号整数转浮点
func cvtFromSint(from, to Type, v uint64) uint64 {
	var i int64
	if from == I32 {
		i = int64(int32(uint32(v)))
	} else {
		i = int64(v)
	}
	if to == F32 {
		return uint64(math.Float32bits(float32(i)))
	}
	return math.Float64bits(float64(i))
}

// loadMem 按类型从原始地址加载
func loadMem(t Type, addr uintptr) uint64 {
	switch t {
	case I32, F32:
		return uint64(*(*uint32)(unsafe.Pointer(addr)))
	default:
		return *(*uint64)(unsafe.Pointer(addr))
	}
}

// storeMem 按类型写入原始地址
func storeMem(t Type, addr uintptr, v uint64) {
	switch t {
	case I32, F32:
		*(*uint32)(unsafe.Pointer(addr)) = uint32(v)
	default:
		*(*uint64)(unsafe.Pointer(addr)) = v
	}
}
