// compiler_test.go - JIT 编译器端到端测试
//
// 手工汇编小段字节码，编译后直接执行并核对结果

package jit

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/tangzhangming/kava/internal/classfile"
	"github.com/tangzhangming/kava/internal/ir"
)

// staticMethod 构造一个带字节码的静态方法
func staticMethod(name, descriptor string, maxStack, maxLocals int, code []byte) *classfile.Method {
	return &classfile.Method{
		AccessFlags: classfile.AccPublic | classfile.AccStatic,
		Name:        name,
		Descriptor:  descriptor,
		Code: &classfile.CodeAttribute{
			MaxStack:  uint16(maxStack),
			MaxLocals: uint16(maxLocals),
			Code:      code,
		},
	}
}

func testCompiler(t *testing.T) *Compiler {
	t.Helper()
	c, err := NewCompiler(nil)
	if err != nil {
		t.Fatalf("NewCompiler failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func mustCompile(t *testing.T, c *Compiler, m *classfile.Method, cp *classfile.ConstantPool) *Function {
	t.Helper()
	if cp == nil {
		cp = classfile.NewConstantPool()
	}
	fn, err := c.Compile(m, cp)
	if err != nil {
		t.Fatalf("Compile(%s%s) failed: %v", m.Name, m.Descriptor, err)
	}
	return fn
}

func mustExecute(t *testing.T, fn *Function, args ...Value) *Value {
	t.Helper()
	result, err := fn.Execute(args)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	return result
}

func executeI32(t *testing.T, fn *Function, args ...Value) int32 {
	t.Helper()
	v, err := mustExecute(t, fn, args...).Int32()
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	return v
}

// TestIdentityInt iload_0; ireturn 原样返回参数
func TestIdentityInt(t *testing.T) {
	c := testCompiler(t)
	fn := mustCompile(t, c, staticMethod("id", "(I)I", 1, 1, []byte{
		0x1A, // iload_0
		0xAC, // ireturn
	}), nil)

	for _, v := range []int32{0, 1, -1, 42, math.MaxInt32, math.MinInt32} {
		if got := executeI32(t, fn, NewInt32(v)); got != v {
			t.Errorf("id(%d) = %d", v, got)
		}
	}
}

// TestIdentityLong lload_0; lreturn 原样返回参数
func TestIdentityLong(t *testing.T) {
	c := testCompiler(t)
	fn := mustCompile(t, c, staticMethod("id", "(J)J", 2, 2, []byte{
		0x1E, // lload_0
		0xAD, // lreturn
	}), nil)

	for _, v := range []int64{0, -1, math.MaxInt64, math.MinInt64} {
		got, err := mustExecute(t, fn, NewInt64(v)).Int64()
		if err != nil {
			t.Fatalf("result: %v", err)
		}
		if got != v {
			t.Errorf("id(%d) = %d", v, got)
		}
	}
}

// TestConstantReturn 常量返回：立即数和常量池两条路径
func TestConstantReturn(t *testing.T) {
	c := testCompiler(t)

	fn := mustCompile(t, c, staticMethod("answer", "()I", 1, 0, []byte{
		0x10, 42, // bipush 42
		0xAC, // ireturn
	}), nil)
	if got := executeI32(t, fn); got != 42 {
		t.Errorf("answer() = %d, want 42", got)
	}

	fn = mustCompile(t, c, staticMethod("negative", "()I", 1, 0, []byte{
		0x11, 0xFE, 0xD4, // sipush -300
		0xAC,
	}), nil)
	if got := executeI32(t, fn); got != -300 {
		t.Errorf("negative() = %d, want -300", got)
	}

	// ldc / ldc2_w 走常量池
	cp := classfile.NewConstantPool()
	intIdx := cp.AddInteger(123456789)
	longIdx := cp.AddLong(math.MinInt64)

	fn = mustCompile(t, c, staticMethod("fromPool", "()I", 1, 0, []byte{
		0x12, byte(intIdx), // ldc
		0xAC,
	}), cp)
	if got := executeI32(t, fn); got != 123456789 {
		t.Errorf("fromPool() = %d", got)
	}

	fn = mustCompile(t, c, staticMethod("longPool", "()J", 2, 0, []byte{
		0x14, byte(longIdx >> 8), byte(longIdx), // ldc2_w
		0xAD,
	}), cp)
	got, _ := mustExecute(t, fn).Int64()
	if got != math.MinInt64 {
		t.Errorf("longPool() = %d", got)
	}
}

// TestMax 菱形控制流：两个前驱在返回块合流
func TestMax(t *testing.T) {
	c := testCompiler(t)
	fn := mustCompile(t, c, staticMethod("max", "(II)I", 2, 2, []byte{
		0x1A,             // iload_0
		0x1B,             // iload_1
		0xA2, 0x00, 0x05, // if_icmpge +5
		0x1B, // iload_1
		0xAC, // ireturn
		0x1A, // iload_0
		0xAC, // ireturn
	}), nil)

	tests := []struct {
		x, y, want int32
	}{
		{3, 7, 7},
		{7, 3, 7},
		{5, 5, 5},
		{math.MinInt32, math.MaxInt32, math.MaxInt32},
		{-1, -2, -1},
	}
	for _, tc := range tests {
		if got := executeI32(t, fn, NewInt32(tc.x), NewInt32(tc.y)); got != tc.want {
			t.Errorf("max(%d, %d) = %d, want %d", tc.x, tc.y, got, tc.want)
		}
	}
}

// TestSelectMerge 合流块带一个栈上值 (块参数)
func TestSelectMerge(t *testing.T) {
	c := testCompiler(t)
	fn := mustCompile(t, c, staticMethod("select", "(I)I", 2, 1, []byte{
		0x1A,             // iload_0
		0x99, 0x00, 0x07, // ifeq +7 (pc1 -> pc8)
		0x05,             // iconst_2
		0xA7, 0x00, 0x04, // goto +4 (pc5 -> pc9)
		0x06, // iconst_3
		0xAC, // ireturn (合流点，栈深 1)
	}), nil)

	if got := executeI32(t, fn, NewInt32(0)); got != 3 {
		t.Errorf("select(0) = %d, want 3", got)
	}
	if got := executeI32(t, fn, NewInt32(9)); got != 2 {
		t.Errorf("select(9) = %d, want 2", got)
	}
}

// TestLongHashCode Long.hashCode: (int)(v ^ (v >>> 32))
func TestLongHashCode(t *testing.T) {
	c := testCompiler(t)
	fn := mustCompile(t, c, staticMethod("hashCode", "(J)I", 5, 2, []byte{
		0x1E,     // lload_0
		0x10, 32, // bipush 32
		0x7D, // lushr
		0x1E, // lload_0
		0x83, // lxor
		0x88, // l2i
		0xAC, // ireturn
	}), nil)

	tests := []struct {
		v    int64
		want int32
	}{
		{0, 0},
		{1, 1},
		{-1, 0},
		{math.MaxInt64, math.MinInt32},
		{math.MinInt64, math.MinInt32},
	}
	for _, tc := range tests {
		if got := executeI32(t, fn, NewInt64(tc.v)); got != tc.want {
			t.Errorf("hashCode(%d) = %d, want %d", tc.v, got, tc.want)
		}
	}
}

// TestVoidReturn void 方法返回 nil 结果
func TestVoidReturn(t *testing.T) {
	c := testCompiler(t)
	fn := mustCompile(t, c, staticMethod("noop", "()V", 0, 0, []byte{
		0xB1, // return
	}), nil)

	result, err := fn.Execute(nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result != nil {
		t.Errorf("void method returned %v, want nil", result)
	}
}

// TestLoopSum 带回边的循环：sum(n) = 0 + 1 + ... + n-1
func TestLoopSum(t *testing.T) {
	c := testCompiler(t)
	m, cp := sumMethod()
	fn := mustCompile(t, c, m, cp)

	tests := []struct {
		n, want int32
	}{
		{0, 0},
		{1, 0},
		{5, 10},
		{100, 4950},
	}
	for _, tc := range tests {
		if got := executeI32(t, fn, NewInt32(tc.n)); got != tc.want {
			t.Errorf("sum(%d) = %d, want %d", tc.n, got, tc.want)
		}
	}
}

// sumMethod 构造循环求和方法 (并发测试也用)
func sumMethod() (*classfile.Method, *classfile.ConstantPool) {
	return staticMethod("sum", "(I)I", 2, 3, []byte{
		0x03,             // iconst_0
		0x3C,             // istore_1 (sum)
		0x03,             // iconst_0
		0x3D,             // istore_2 (i)
		0x1C,             // iload_2
		0x1A,             // iload_0
		0xA2, 0x00, 0x0D, // if_icmpge +13 (pc6 -> pc19)
		0x1B,          // iload_1
		0x1C,          // iload_2
		0x60,          // iadd
		0x3C,          // istore_1
		0x84, 2, 1,    // iinc 2 1
		0xA7, 0xFF, 0xF4, // goto -12 (pc16 -> pc4)
		0x1B, // iload_1
		0xAC, // ireturn
	}), classfile.NewConstantPool()
}

// TestFloatCompareNaN fcmpl/fcmpg 对 NaN 的取向
func TestFloatCompareNaN(t *testing.T) {
	c := testCompiler(t)

	fcmpl := mustCompile(t, c, staticMethod("fcmpl", "(FF)I", 2, 2, []byte{
		0x22, 0x23, 0x95, 0xAC, // fload_0 fload_1 fcmpl ireturn
	}), nil)
	fcmpg := mustCompile(t, c, staticMethod("fcmpg", "(FF)I", 2, 2, []byte{
		0x22, 0x23, 0x96, 0xAC, // fload_0 fload_1 fcmpg ireturn
	}), nil)

	nan := float32(math.NaN())
	tests := []struct {
		x, y         float32
		wantL, wantG int32
	}{
		{1, 2, -1, -1},
		{2, 1, 1, 1},
		{1, 1, 0, 0},
		{nan, 1, -1, 1},
		{1, nan, -1, 1},
		{nan, nan, -1, 1},
	}
	for _, tc := range tests {
		if got := executeI32(t, fcmpl, NewFloat32(tc.x), NewFloat32(tc.y)); got != tc.wantL {
			t.Errorf("fcmpl(%v, %v) = %d, want %d", tc.x, tc.y, got, tc.wantL)
		}
		if got := executeI32(t, fcmpg, NewFloat32(tc.x), NewFloat32(tc.y)); got != tc.wantG {
			t.Errorf("fcmpg(%v, %v) = %d, want %d", tc.x, tc.y, got, tc.wantG)
		}
	}
}

// TestDoubleCompareNaN dcmpl/dcmpg 对 NaN 的取向
func TestDoubleCompareNaN(t *testing.T) {
	c := testCompiler(t)

	dcmpl := mustCompile(t, c, staticMethod("dcmpl", "(DD)I", 4, 4, []byte{
		0x26, 0x28, 0x97, 0xAC, // dload_0 dload_2 dcmpl ireturn
	}), nil)
	dcmpg := mustCompile(t, c, staticMethod("dcmpg", "(DD)I", 4, 4, []byte{
		0x26, 0x28, 0x98, 0xAC, // dload_0 dload_2 dcmpg ireturn
	}), nil)

	if got := executeI32(t, dcmpl, NewFloat64(math.NaN()), NewFloat64(0)); got != -1 {
		t.Errorf("dcmpl(NaN, 0) = %d, want -1", got)
	}
	if got := executeI32(t, dcmpg, NewFloat64(math.NaN()), NewFloat64(0)); got != 1 {
		t.Errorf("dcmpg(NaN, 0) = %d, want 1", got)
	}
	if got := executeI32(t, dcmpl, NewFloat64(1.5), NewFloat64(2.5)); got != -1 {
		t.Errorf("dcmpl(1.5, 2.5) = %d, want -1", got)
	}
}

// TestShiftMasking 移位数按位宽掩码 (int 取 5 位，long 取 6 位)
func TestShiftMasking(t *testing.T) {
	c := testCompiler(t)

	ishl := mustCompile(t, c, staticMethod("ishl", "(II)I", 2, 2, []byte{
		0x1A, 0x1B, 0x78, 0xAC, // iload_0 iload_1 ishl ireturn
	}), nil)
	if got := executeI32(t, ishl, NewInt32(1), NewInt32(33)); got != 2 {
		t.Errorf("1 << 33 = %d, want 2 (count masked to 1)", got)
	}

	iushr := mustCompile(t, c, staticMethod("iushr", "(II)I", 2, 2, []byte{
		0x1A, 0x1B, 0x7C, 0xAC, // iload_0 iload_1 iushr ireturn
	}), nil)
	if got := executeI32(t, iushr, NewInt32(-1), NewInt32(1)); got != math.MaxInt32 {
		t.Errorf("-1 >>> 1 = %d, want %d", got, math.MaxInt32)
	}

	lshl := mustCompile(t, c, staticMethod("lshl", "(JI)J", 3, 3, []byte{
		0x1E, 0x1C, 0x79, 0xAD, // lload_0 iload_2 lshl lreturn
	}), nil)
	got, _ := mustExecute(t, lshl, NewInt64(1), NewInt32(65)).Int64()
	if got != 2 {
		t.Errorf("1L << 65 = %d, want 2 (count masked to 1)", got)
	}
}

// TestConversions 数值转换的边界行为
func TestConversions(t *testing.T) {
	c := testCompiler(t)

	// f2i 饱和：NaN -> 0，越界 -> MIN/MAX
	f2i := mustCompile(t, c, staticMethod("f2i", "(F)I", 1, 1, []byte{
		0x22, 0x8B, 0xAC, // fload_0 f2i ireturn
	}), nil)
	f2iTests := []struct {
		in   float32
		want int32
	}{
		{1.9, 1},
		{-1.9, -1},
		{float32(math.NaN()), 0},
		{float32(math.Inf(1)), math.MaxInt32},
		{float32(math.Inf(-1)), math.MinInt32},
		{3e9, math.MaxInt32},
	}
	for _, tc := range f2iTests {
		if got := executeI32(t, f2i, NewFloat32(tc.in)); got != tc.want {
			t.Errorf("f2i(%v) = %d, want %d", tc.in, got, tc.want)
		}
	}

	// d2l 饱和
	d2l := mustCompile(t, c, staticMethod("d2l", "(D)J", 2, 2, []byte{
		0x26, 0x8F, 0xAD, // dload_0 d2l lreturn
	}), nil)
	got, _ := mustExecute(t, d2l, NewFloat64(math.Inf(-1))).Int64()
	if got != math.MinInt64 {
		t.Errorf("d2l(-Inf) = %d, want MinInt64", got)
	}
	got, _ = mustExecute(t, d2l, NewFloat64(math.NaN())).Int64()
	if got != 0 {
		t.Errorf("d2l(NaN) = %d, want 0", got)
	}

	// l2i 保留低 32 位
	l2i := mustCompile(t, c, staticMethod("l2i", "(J)I", 2, 2, []byte{
		0x1E, 0x88, 0xAC, // lload_0 l2i ireturn
	}), nil)
	if got := executeI32(t, l2i, NewInt64(0x1_00000001)); got != 1 {
		t.Errorf("l2i(0x100000001) = %d, want 1", got)
	}

	// i2b 截断后符号扩展，i2c 零扩展
	i2b := mustCompile(t, c, staticMethod("i2b", "(I)I", 1, 1, []byte{
		0x1A, 0x91, 0xAC, // iload_0 i2b ireturn
	}), nil)
	if got := executeI32(t, i2b, NewInt32(384)); got != -128 {
		t.Errorf("i2b(384) = %d, want -128", got)
	}

	i2c := mustCompile(t, c, staticMethod("i2c", "(I)I", 1, 1, []byte{
		0x1A, 0x92, 0xAC, // iload_0 i2c ireturn
	}), nil)
	if got := executeI32(t, i2c, NewInt32(0x1FFFF)); got != 0xFFFF {
		t.Errorf("i2c(0x1FFFF) = %d, want 65535", got)
	}

	// i2f 往返
	i2f := mustCompile(t, c, staticMethod("i2f", "(I)F", 1, 1, []byte{
		0x1A, 0x86, 0xAE, // iload_0 i2f freturn
	}), nil)
	f, _ := mustExecute(t, i2f, NewInt32(-7)).Float32()
	if f != -7.0 {
		t.Errorf("i2f(-7) = %v", f)
	}
}

// TestIntegerWrapping 算术按补码回绕
func TestIntegerWrapping(t *testing.T) {
	c := testCompiler(t)

	add := mustCompile(t, c, staticMethod("add", "(II)I", 2, 2, []byte{
		0x1A, 0x1B, 0x60, 0xAC, // iload_0 iload_1 iadd ireturn
	}), nil)
	if got := executeI32(t, add, NewInt32(math.MaxInt32), NewInt32(1)); got != math.MinInt32 {
		t.Errorf("MaxInt32 + 1 = %d, want MinInt32", got)
	}

	mul := mustCompile(t, c, staticMethod("mul", "(II)I", 2, 2, []byte{
		0x1A, 0x1B, 0x68, 0xAC, // imul
	}), nil)
	if got := executeI32(t, mul, NewInt32(math.MaxInt32), NewInt32(2)); got != -2 {
		t.Errorf("MaxInt32 * 2 = %d, want -2", got)
	}
}

// TestDivision idiv 的除零陷阱和 MIN/-1 回绕
func TestDivision(t *testing.T) {
	c := testCompiler(t)
	div := mustCompile(t, c, staticMethod("div", "(II)I", 2, 2, []byte{
		0x1A, 0x1B, 0x6C, 0xAC, // iload_0 iload_1 idiv ireturn
	}), nil)

	if got := executeI32(t, div, NewInt32(7), NewInt32(-2)); got != -3 {
		t.Errorf("7 / -2 = %d, want -3", got)
	}
	if got := executeI32(t, div, NewInt32(math.MinInt32), NewInt32(-1)); got != math.MinInt32 {
		t.Errorf("MinInt32 / -1 = %d, want MinInt32", got)
	}

	_, err := div.Execute([]Value{NewInt32(1), NewInt32(0)})
	var trap *ir.TrapError
	if !errors.As(err, &trap) || trap.Code != ir.TrapDivByZero {
		t.Errorf("1 / 0: expected division trap, got %v", err)
	}
}

// TestArrayRoundTrip int 数组写入后读回
func TestArrayRoundTrip(t *testing.T) {
	c := testCompiler(t)
	fn := mustCompile(t, c, staticMethod("roundTrip", "(I)I", 3, 2, []byte{
		0x08,       // iconst_5
		0xBC, 0x0A, // newarray int
		0x4C,       // astore_1
		0x2B,       // aload_1
		0x05,       // iconst_2
		0x1A,       // iload_0
		0x4F,       // iastore
		0x2B,       // aload_1
		0x05,       // iconst_2
		0x2E,       // iaload
		0xAC,       // ireturn
	}), nil)

	for _, v := range []int32{0, -1, math.MaxInt32} {
		if got := executeI32(t, fn, NewInt32(v)); got != v {
			t.Errorf("roundTrip(%d) = %d", v, got)
		}
	}
}

// TestArrayLength arraylength 读长度头
func TestArrayLength(t *testing.T) {
	c := testCompiler(t)
	fn := mustCompile(t, c, staticMethod("length", "(I)I", 2, 1, []byte{
		0x1A,       // iload_0
		0xBC, 0x0B, // newarray long
		0xBE, // arraylength
		0xAC, // ireturn
	}), nil)

	if got := executeI32(t, fn, NewInt32(17)); got != 17 {
		t.Errorf("length = %d, want 17", got)
	}
	if got := executeI32(t, fn, NewInt32(0)); got != 0 {
		t.Errorf("length = %d, want 0", got)
	}
}

// TestNarrowArrays byte/char 数组的窄元素语义
func TestNarrowArrays(t *testing.T) {
	c := testCompiler(t)

	// byte 数组：写入截断到 8 位，读出符号扩展
	byteArr := mustCompile(t, c, staticMethod("byteArr", "(I)I", 3, 2, []byte{
		0x04,       // iconst_1
		0xBC, 0x08, // newarray byte
		0x4C,       // astore_1
		0x2B,       // aload_1
		0x03,       // iconst_0
		0x1A,       // iload_0
		0x54,       // bastore
		0x2B,       // aload_1
		0x03,       // iconst_0
		0x33,       // baload
		0xAC,       // ireturn
	}), nil)
	if got := executeI32(t, byteArr, NewInt32(200)); got != -56 {
		t.Errorf("byteArr(200) = %d, want -56", got)
	}

	// char 数组：读出零扩展
	charArr := mustCompile(t, c, staticMethod("charArr", "(I)I", 3, 2, []byte{
		0x04,       // iconst_1
		0xBC, 0x05, // newarray char
		0x4C,       // astore_1
		0x2B,       // aload_1
		0x03,       // iconst_0
		0x1A,       // iload_0
		0x55,       // castore
		0x2B,       // aload_1
		0x03,       // iconst_0
		0x34,       // caload
		0xAC,       // ireturn
	}), nil)
	if got := executeI32(t, charArr, NewInt32(0x1FFFF)); got != 0xFFFF {
		t.Errorf("charArr(0x1FFFF) = %d, want 65535", got)
	}
}

// TestArrayTraps 边界检查和负长度的陷阱
func TestArrayTraps(t *testing.T) {
	c := testCompiler(t)

	outOfBounds := mustCompile(t, c, staticMethod("oob", "(I)I", 3, 2, []byte{
		0x04,       // iconst_1
		0xBC, 0x0A, // newarray int
		0x4C, // astore_1
		0x2B, // aload_1
		0x1A, // iload_0
		0x2E, // iaload
		0xAC, // ireturn
	}), nil)

	if got := executeI32(t, outOfBounds, NewInt32(0)); got != 0 {
		t.Errorf("fresh array element = %d, want 0", got)
	}

	var trap *ir.TrapError
	_, err := outOfBounds.Execute([]Value{NewInt32(5)})
	if !errors.As(err, &trap) || trap.Code != ir.TrapIndexOutOfBounds {
		t.Errorf("index 5 of length-1 array: expected bounds trap, got %v", err)
	}
	_, err = outOfBounds.Execute([]Value{NewInt32(-1)})
	if !errors.As(err, &trap) || trap.Code != ir.TrapIndexOutOfBounds {
		t.Errorf("negative index: expected bounds trap, got %v", err)
	}

	negSize := mustCompile(t, c, staticMethod("negSize", "(I)I", 2, 1, []byte{
		0x1A,       // iload_0
		0xBC, 0x0A, // newarray int
		0xBE, // arraylength
		0xAC, // ireturn
	}), nil)
	_, err = negSize.Execute([]Value{NewInt32(-3)})
	if !errors.As(err, &trap) || trap.Code != ir.TrapNegativeArraySize {
		t.Errorf("negative array size: expected trap, got %v", err)
	}
}

// TestUnsupportedInstruction 不支持的指令给出操作码和 pc
func TestUnsupportedInstruction(t *testing.T) {
	c := testCompiler(t)
	cp := classfile.NewConstantPool()

	_, err := c.Compile(staticMethod("callOther", "()V", 1, 0, []byte{
		0x00,             // nop
		0xB8, 0x00, 0x01, // invokestatic #1
		0xB1, // return
	}), cp)

	var unsupported *UnsupportedInstructionError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedInstructionError, got %v", err)
	}
	if unsupported.Op != classfile.OpInvokestatic || unsupported.PC != 1 {
		t.Errorf("wrong error detail: op=%s pc=%d", unsupported.Op, unsupported.PC)
	}
}

// TestUnsupportedMethod 非静态、native、无代码的方法都拒绝
func TestUnsupportedMethod(t *testing.T) {
	c := testCompiler(t)
	cp := classfile.NewConstantPool()
	code := &classfile.CodeAttribute{MaxStack: 0, MaxLocals: 1, Code: []byte{0xB1}}

	tests := []struct {
		name   string
		method *classfile.Method
	}{
		{"instance", &classfile.Method{AccessFlags: classfile.AccPublic, Name: "m", Descriptor: "()V", Code: code}},
		{"native", &classfile.Method{AccessFlags: classfile.AccStatic | classfile.AccNative, Name: "m", Descriptor: "()V"}},
		{"abstract", &classfile.Method{AccessFlags: classfile.AccStatic | classfile.AccAbstract, Name: "m", Descriptor: "()V"}},
		{"noCode", &classfile.Method{AccessFlags: classfile.AccStatic, Name: "m", Descriptor: "()V"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Compile(tc.method, cp)
			var unsupported *UnsupportedMethodError
			if !errors.As(err, &unsupported) {
				t.Errorf("expected UnsupportedMethodError, got %v", err)
			}
		})
	}
}

// TestUnsupportedType 引用和数组类型的签名拒绝
func TestUnsupportedType(t *testing.T) {
	c := testCompiler(t)
	cp := classfile.NewConstantPool()
	code := []byte{0xB1}

	for _, descriptor := range []string{
		"(Ljava/lang/String;)V",
		"([I)V",
		"()Ljava/lang/Object;",
		"()[J",
	} {
		_, err := c.Compile(staticMethod("m", descriptor, 1, 1, code), cp)
		var unsupported *UnsupportedTypeError
		if !errors.As(err, &unsupported) {
			t.Errorf("%s: expected UnsupportedTypeError, got %v", descriptor, err)
		}
	}
}

// TestInvalidConstant ldc 引用坏索引或不可加载的条目
func TestInvalidConstant(t *testing.T) {
	c := testCompiler(t)
	cp := classfile.NewConstantPool()
	utf8Idx := cp.AddUtf8("hello")

	_, err := c.Compile(staticMethod("m", "()I", 1, 0, []byte{
		0x12, byte(utf8Idx), // ldc -> utf8 条目
		0xAC,
	}), cp)
	var invalid *InvalidConstantError
	if !errors.As(err, &invalid) {
		t.Errorf("ldc utf8: expected InvalidConstantError, got %v", err)
	}

	_, err = c.Compile(staticMethod("m", "()I", 1, 0, []byte{
		0x12, 99, // ldc -> 越界索引
		0xAC,
	}), cp)
	var badIndex *InvalidConstantIndexError
	if !errors.As(err, &badIndex) {
		t.Errorf("ldc 99: expected InvalidConstantIndexError, got %v", err)
	}
}

// TestStackUnderflow 空栈弹出
func TestStackUnderflow(t *testing.T) {
	c := testCompiler(t)
	_, err := c.Compile(staticMethod("m", "()V", 1, 0, []byte{
		0x57, // pop
		0xB1,
	}), classfile.NewConstantPool())

	var underflow *OperandStackUnderflowError
	if !errors.As(err, &underflow) {
		t.Errorf("expected OperandStackUnderflowError, got %v", err)
	}
}

// TestInvalidLocalIndex 局部变量索引超出 max_locals
func TestInvalidLocalIndex(t *testing.T) {
	c := testCompiler(t)
	_, err := c.Compile(staticMethod("m", "()I", 1, 1, []byte{
		0x15, 5, // iload 5 (max_locals=1)
		0xAC,
	}), classfile.NewConstantPool())

	var invalid *InvalidLocalVariableIndexError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidLocalVariableIndexError, got %v", err)
	}
	if invalid.Index != 5 {
		t.Errorf("wrong index in error: %d", invalid.Index)
	}
}

// TestExecuteArgChecks 实参个数和类型校验
func TestExecuteArgChecks(t *testing.T) {
	c := testCompiler(t)
	fn := mustCompile(t, c, staticMethod("id", "(I)I", 1, 1, []byte{0x1A, 0xAC}), nil)

	_, err := fn.Execute(nil)
	var arity *ArityError
	if !errors.As(err, &arity) {
		t.Errorf("no args: expected ArityError, got %v", err)
	}

	_, err = fn.Execute([]Value{NewInt64(1)})
	var invalid *InvalidValueError
	if !errors.As(err, &invalid) {
		t.Errorf("wrong kind: expected InvalidValueError, got %v", err)
	}
	if invalid != nil && (invalid.Expected != Int32 || invalid.Actual != Int64) {
		t.Errorf("wrong error detail: %v", invalid)
	}
}

// TestUnsupportedTargetISA 显式指定非宿主指令集
func TestUnsupportedTargetISA(t *testing.T) {
	_, err := NewCompiler(&Config{TargetISA: "sparc"})
	var unsupported *UnsupportedTargetISAError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedTargetISAError, got %v", err)
	}
	if unsupported.ISA != "sparc" {
		t.Errorf("wrong ISA in error: %s", unsupported.ISA)
	}
}

// TestCompileCache 同样的字节码命中缓存
func TestCompileCache(t *testing.T) {
	c := testCompiler(t)
	m, cp := sumMethod()

	fn1 := mustCompile(t, c, m, cp)
	fn2 := mustCompile(t, c, m, cp)
	if fn1 != fn2 {
		t.Error("expected cache hit to return the same function")
	}

	stats := c.Stats()
	if stats.Compiled != 1 || stats.CacheHits != 1 {
		t.Errorf("stats = %+v, want Compiled=1 CacheHits=1", stats)
	}

	// 关闭缓存后每次都重新编译
	nc, err := NewCompiler(&Config{DisableCache: true})
	if err != nil {
		t.Fatalf("NewCompiler failed: %v", err)
	}
	defer nc.Close()

	fn1 = mustCompile(t, nc, m, cp)
	fn2 = mustCompile(t, nc, m, cp)
	if fn1 == fn2 {
		t.Error("expected distinct functions with cache disabled")
	}
}

// TestConcurrentExecution 编译后的函数可以并发重入
func TestConcurrentExecution(t *testing.T) {
	c := testCompiler(t)
	m, cp := sumMethod()
	fn := mustCompile(t, c, m, cp)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				result, err := fn.Execute([]Value{NewInt32(100)})
				if err != nil {
					t.Errorf("Execute failed: %v", err)
					return
				}
				v, _ := result.Int32()
				if v != 4950 {
					t.Errorf("sum(100) = %d, want 4950", v)
					return
				}
			}
		}()
	}
	wg.Wait()
}

// TestConcurrentCompile 编译本身也可以并发
func TestConcurrentCompile(t *testing.T) {
	c := testCompiler(t)
	m, cp := sumMethod()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn, err := c.Compile(m, cp)
			if err != nil {
				t.Errorf("Compile failed: %v", err)
				return
			}
			result, err := fn.Execute([]Value{NewInt32(10)})
			if err != nil {
				t.Errorf("Execute failed: %v", err)
				return
			}
			if got, _ := result.Int32(); got != 45 {
				t.Errorf("sum(10) = %d, want 45", got)
			}
		}()
	}
	wg.Wait()
}

// TestStackOps pop/dup/swap 的编译期栈操作
func TestStackOps(t *testing.T) {
	c := testCompiler(t)

	// dup + pop 相互抵消
	fn := mustCompile(t, c, staticMethod("dupPop", "(I)I", 2, 1, []byte{
		0x1A, // iload_0
		0x59, // dup
		0x57, // pop
		0xAC, // ireturn
	}), nil)
	if got := executeI32(t, fn, NewInt32(7)); got != 7 {
		t.Errorf("dupPop(7) = %d", got)
	}

	// swap 后相减，验证操作数顺序
	fn = mustCompile(t, c, staticMethod("swapSub", "(II)I", 2, 2, []byte{
		0x1A, // iload_0
		0x1B, // iload_1
		0x5F, // swap
		0x64, // isub -> y - x
		0xAC,
	}), nil)
	if got := executeI32(t, fn, NewInt32(3), NewInt32(10)); got != 7 {
		t.Errorf("swapSub(3, 10) = %d, want 7", got)
	}

	// dup2/pop2 的拆分形式不支持
	_, err := c.Compile(staticMethod("splitPop2", "(II)V", 2, 2, []byte{
		0x1A, 0x1B, // 两个 int
		0x58, // pop2 (拆分形式)
		0xB1,
	}), classfile.NewConstantPool())
	var unsupported *UnsupportedInstructionError
	if !errors.As(err, &unsupported) {
		t.Errorf("split pop2: expected UnsupportedInstructionError, got %v", err)
	}
}

// TestFloatArithmetic 浮点运算和取余
func TestFloatArithmetic(t *testing.T) {
	c := testCompiler(t)

	frem := mustCompile(t, c, staticMethod("frem", "(FF)F", 2, 2, []byte{
		0x22, 0x23, 0x72, 0xAE, // fload_0 fload_1 frem freturn
	}), nil)
	got, _ := mustExecute(t, frem, NewFloat32(5.5), NewFloat32(2)).Float32()
	if got != 1.5 {
		t.Errorf("5.5 %% 2 = %v, want 1.5", got)
	}
	// JVM 取余的符号跟被除数
	got, _ = mustExecute(t, frem, NewFloat32(-5.5), NewFloat32(2)).Float32()
	if got != -1.5 {
		t.Errorf("-5.5 %% 2 = %v, want -1.5", got)
	}

	dmul := mustCompile(t, c, staticMethod("dmul", "(DD)D", 4, 4, []byte{
		0x26, 0x28, 0x6B, 0xAF, // dload_0 dload_2 dmul dreturn
	}), nil)
	d, _ := mustExecute(t, dmul, NewFloat64(1.5), NewFloat64(-2)).Float64()
	if d != -3.0 {
		t.Errorf("1.5 * -2 = %v", d)
	}
}
