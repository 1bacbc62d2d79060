// ir_test.go - IR 构建与执行测试

package ir

import (
	"errors"
	"math"
	"runtime"
	"testing"
	"unsafe"
)

func finalize(t *testing.T, m *Module, b *Builder) *Code {
	t.Helper()
	fn, err := b.Finish()
	if err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	code, err := m.Finalize(fn)
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	return code
}

// TestSimpleAdd 单块函数：返回 x + y
func TestSimpleAdd(t *testing.T) {
	m := NewModule()
	fn := NewFunction("add", []Type{I32, I32}, I32)
	b := NewBuilder(fn)

	entry := b.CreateBlock()
	x := b.AppendBlockParam(entry, I32)
	y := b.AppendBlockParam(entry, I32)
	b.SwitchTo(entry)
	b.Return(b.Iadd(x, y))

	code := finalize(t, m, b)

	tests := []struct {
		x, y, want int32
	}{
		{1, 2, 3},
		{-1, 1, 0},
		{math.MaxInt32, 1, math.MinInt32},
	}
	for _, tc := range tests {
		got, err := code.Call([]uint64{uint64(uint32(tc.x)), uint64(uint32(tc.y))})
		if err != nil {
			t.Fatalf("Call failed: %v", err)
		}
		if int32(uint32(got)) != tc.want {
			t.Errorf("add(%d, %d) = %d, want %d", tc.x, tc.y, int32(uint32(got)), tc.want)
		}
	}
}

// TestBlockParams 多前驱合流块通过块参数取值
func TestBlockParams(t *testing.T) {
	m := NewModule()
	fn := NewFunction("select", []Type{I32}, I32)
	b := NewBuilder(fn)

	entry := b.CreateBlock()
	cond := b.AppendBlockParam(entry, I32)
	merge := b.CreateBlock()
	b.AppendBlockParam(merge, I32)
	thenBlk := b.CreateBlock()
	elseBlk := b.CreateBlock()

	b.SwitchTo(entry)
	b.Brif(cond, thenBlk, nil, elseBlk, nil)

	b.SwitchTo(thenBlk)
	b.Jump(merge, []Value{b.Iconst(I32, 10)})

	b.SwitchTo(elseBlk)
	b.Jump(merge, []Value{b.Iconst(I32, 20)})

	b.SwitchTo(merge)
	b.Return(fn.BlockParams(merge)[0])

	code := finalize(t, m, b)

	if got, _ := code.Call([]uint64{1}); got != 10 {
		t.Errorf("select(1) = %d, want 10", got)
	}
	if got, _ := code.Call([]uint64{0}); got != 20 {
		t.Errorf("select(0) = %d, want 20", got)
	}
}

// TestLoop 块参数承载循环变量
func TestLoop(t *testing.T) {
	m := NewModule()
	fn := NewFunction("countdown", []Type{I32}, I32)
	b := NewBuilder(fn)

	entry := b.CreateBlock()
	n := b.AppendBlockParam(entry, I32)
	head := b.CreateBlock()
	i := b.AppendBlockParam(head, I32)
	acc := b.AppendBlockParam(head, I32)
	body := b.CreateBlock()
	exit := b.CreateBlock()

	b.SwitchTo(entry)
	b.Jump(head, []Value{n, b.Iconst(I32, 0)})

	b.SwitchTo(head)
	more := b.Icmp(CondGt, i, b.Iconst(I32, 0))
	b.Brif(more, body, nil, exit, nil)

	b.SwitchTo(body)
	next := b.Isub(i, b.Iconst(I32, 1))
	sum := b.Iadd(acc, i)
	b.Jump(head, []Value{next, sum})

	b.SwitchTo(exit)
	b.Return(acc)

	code := finalize(t, m, b)

	// 1 + 2 + ... + 10
	got, err := code.Call([]uint64{10})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if got != 55 {
		t.Errorf("countdown(10) = %d, want 55", got)
	}
}

// TestDivTrap 除零陷阱
func TestDivTrap(t *testing.T) {
	m := NewModule()
	fn := NewFunction("div", []Type{I32, I32}, I32)
	b := NewBuilder(fn)

	entry := b.CreateBlock()
	x := b.AppendBlockParam(entry, I32)
	y := b.AppendBlockParam(entry, I32)
	b.SwitchTo(entry)
	b.Return(b.Sdiv(x, y))

	code := finalize(t, m, b)

	_, err := code.Call([]uint64{1, 0})
	var trap *TrapError
	if !errors.As(err, &trap) || trap.Code != TrapDivByZero {
		t.Errorf("expected TrapDivByZero, got %v", err)
	}

	// MinInt32 / -1 回绕
	minInt := int32(math.MinInt32)
	negOne := int32(-1)
	got, err := code.Call([]uint64{uint64(uint32(minInt)), uint64(uint32(negOne))})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if int32(uint32(got)) != math.MinInt32 {
		t.Errorf("MinInt32 / -1 = %d, want MinInt32", int32(uint32(got)))
	}
}

// TestShiftMask 移位数按位宽取模
func TestShiftMask(t *testing.T) {
	m := NewModule()
	fn := NewFunction("shl", []Type{I32, I32}, I32)
	b := NewBuilder(fn)

	entry := b.CreateBlock()
	x := b.AppendBlockParam(entry, I32)
	count := b.AppendBlockParam(entry, I32)
	b.SwitchTo(entry)
	b.Return(b.Ishl(x, count))

	code := finalize(t, m, b)
	if got, _ := code.Call([]uint64{1, 32}); got != 1 {
		t.Errorf("1 << 32 = %d, want 1 (count masked to 0)", got)
	}
	if got, _ := code.Call([]uint64{1, 33}); got != 2 {
		t.Errorf("1 << 33 = %d, want 2", got)
	}
}

// TestFcvtSaturation 浮点转整数的饱和语义
func TestFcvtSaturation(t *testing.T) {
	m := NewModule()
	fn := NewFunction("f2i", []Type{F32}, I32)
	b := NewBuilder(fn)

	entry := b.CreateBlock()
	x := b.AppendBlockParam(entry, F32)
	b.SwitchTo(entry)
	b.Return(b.FcvtToSintSat(I32, x))

	code := finalize(t, m, b)

	tests := []struct {
		in   float32
		want int32
	}{
		{1.7, 1},
		{-1.7, -1},
		{float32(math.NaN()), 0},
		{float32(math.Inf(1)), math.MaxInt32},
		{float32(math.Inf(-1)), math.MinInt32},
	}
	for _, tc := range tests {
		got, _ := code.Call([]uint64{uint64(math.Float32bits(tc.in))})
		if int32(uint32(got)) != tc.want {
			t.Errorf("f2i(%v) = %d, want %d", tc.in, int32(uint32(got)), tc.want)
		}
	}
}

// TestFloatCompareUnordered icmp/fcmp 的 NaN 行为
func TestFloatCompareUnordered(t *testing.T) {
	m := NewModule()
	fn := NewFunction("uno", []Type{F64, F64}, I32)
	b := NewBuilder(fn)

	entry := b.CreateBlock()
	x := b.AppendBlockParam(entry, F64)
	y := b.AppendBlockParam(entry, F64)
	b.SwitchTo(entry)
	b.Return(b.Fcmp(CondUno, x, y))

	code := finalize(t, m, b)

	nan := math.Float64bits(math.NaN())
	one := math.Float64bits(1.0)
	if got, _ := code.Call([]uint64{nan, one}); got != 1 {
		t.Errorf("uno(NaN, 1) = %d, want 1", got)
	}
	if got, _ := code.Call([]uint64{one, one}); got != 0 {
		t.Errorf("uno(1, 1) = %d, want 0", got)
	}
}

// TestHostCall 宿主函数调用
func TestHostCall(t *testing.T) {
	m := NewModule()
	var calls int
	idx, err := m.RegisterHost("double_it", 1, true, func(args []uint64) (uint64, error) {
		calls++
		return args[0] * 2, nil
	})
	if err != nil {
		t.Fatalf("RegisterHost failed: %v", err)
	}

	fn := NewFunction("viaHost", []Type{I64}, I64)
	b := NewBuilder(fn)
	entry := b.CreateBlock()
	x := b.AppendBlockParam(entry, I64)
	b.SwitchTo(entry)
	b.Return(b.Call(idx, I64, x))

	code := finalize(t, m, b)
	got, err := code.Call([]uint64{21})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if got != 42 || calls != 1 {
		t.Errorf("viaHost(21) = %d (calls=%d)", got, calls)
	}
}

// TestStackSlots 栈槽读写
func TestStackSlots(t *testing.T) {
	m := NewModule()
	fn := NewFunction("swapSlots", []Type{I64, I64}, I64)
	fn.SlotCount = 2
	b := NewBuilder(fn)

	entry := b.CreateBlock()
	x := b.AppendBlockParam(entry, I64)
	y := b.AppendBlockParam(entry, I64)
	b.SwitchTo(entry)
	b.StackStore(0, x)
	b.StackStore(1, y)
	b.Return(b.Isub(b.StackLoad(I64, 1), b.StackLoad(I64, 0)))

	code := finalize(t, m, b)
	got, _ := code.Call([]uint64{3, 10})
	if got != 7 {
		t.Errorf("swapSlots(3, 10) = %d, want 7", got)
	}
}

// TestMemoryAccess 访存指令 (含窄加载/窄写入)
func TestMemoryAccess(t *testing.T) {
	m := NewModule()
	fn := NewFunction("mem", []Type{I64}, I32)
	b := NewBuilder(fn)

	entry := b.CreateBlock()
	ptr := b.AppendBlockParam(entry, I64)
	b.SwitchTo(entry)
	b.Istore8(b.Iconst(I32, 200), ptr, 0, FlagTrusted)
	b.Istore16(b.Iconst(I32, 0x1FFFF), ptr, 2, FlagTrusted)
	b.Store(b.Iconst(I32, -5), ptr, 4, FlagTrusted)

	lowByte := b.Sload8(ptr, 0, FlagTrusted)    // -56 (符号扩展)
	lowWord := b.Uload16(ptr, 2, FlagTrusted)   // 0xFFFF (零扩展)
	full := b.Load(I32, ptr, 4, FlagTrusted)    // -5
	sum := b.Iadd(b.Iadd(lowByte, lowWord), full)
	b.Return(sum)

	code := finalize(t, m, b)

	buf := make([]byte, 16)
	addr := uint64(uintptr(unsafe.Pointer(&buf[0])))
	got, err := code.Call([]uint64{addr})
	runtime.KeepAlive(buf)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	want := int32(-56 + 0xFFFF - 5)
	if int32(uint32(got)) != want {
		t.Errorf("mem() = %d, want %d", int32(uint32(got)), want)
	}
}

// TestBuilderErrors 构建错误：未终结的块
func TestBuilderErrors(t *testing.T) {
	fn := NewFunction("broken", nil, Void)
	b := NewBuilder(fn)
	b.CreateBlock() // 空块，没有终结指令

	_, err := b.Finish()
	var codegen *CodegenError
	if !errors.As(err, &codegen) {
		t.Errorf("expected CodegenError, got %v", err)
	}
}

// TestFinalizeHostCheck Finalize 校验宿主函数索引
func TestFinalizeHostCheck(t *testing.T) {
	m := NewModule()
	fn := NewFunction("badCall", nil, I64)
	b := NewBuilder(fn)
	entry := b.CreateBlock()
	b.SwitchTo(entry)
	b.Return(b.Call(7, I64)) // 未注册的宿主索引

	built, err := b.Finish()
	if err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	_, err = m.Finalize(built)
	var modErr *ModuleError
	if !errors.As(err, &modErr) {
		t.Errorf("expected ModuleError, got %v", err)
	}
}

// TestTrapInstr 显式陷阱指令
func TestTrapInstr(t *testing.T) {
	m := NewModule()
	fn := NewFunction("boom", nil, Void)
	b := NewBuilder(fn)
	entry := b.CreateBlock()
	b.SwitchTo(entry)
	b.Trap(TrapUnreachable)

	code := finalize(t, m, b)
	_, err := code.Call(nil)
	var trap *TrapError
	if !errors.As(err, &trap) || trap.Code != TrapUnreachable {
		t.Errorf("expected TrapUnreachable, got %v", err)
	}
}
