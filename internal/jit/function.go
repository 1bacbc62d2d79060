package jit

// ============================================================================
// 编译后的函数
// ============================================================================

// Function 编译完成的方法
//
// 无状态：每次调用的帧都是独立的，可以被多个 goroutine 并发
// 执行，也可以重复执行
type Function struct {
	name string
	sig  *Signature
	code callable
}

// callable 终结后的后端代码
type callable interface {
	Call(args []uint64) (uint64, error)
}

// Name 返回方法名
func (f *Function) Name() string {
	return f.name
}

// Signature 返回方法签名
func (f *Function) Signature() *Signature {
	return f.sig
}

// Execute 执行函数
//
// 实参个数和类型逐一校验。void 方法返回 nil 结果。运行时陷阱
// (除零、负数组长度、越界) 以错误形式返回，不会 panic
func (f *Function) Execute(args []Value) (*Value, error) {
	if len(args) != len(f.sig.Params) {
		return nil, &ArityError{Expected: len(f.sig.Params), Actual: len(args)}
	}

	raw := make([]uint64, len(args))
	for i, a := range args {
		if a.kind != f.sig.Params[i] {
			return nil, &InvalidValueError{Expected: f.sig.Params[i], Actual: a.kind}
		}
		raw[i] = a.bits
	}

	ret, err := f.code.Call(raw)
	if err != nil {
		return nil, err
	}

	if f.sig.Ret == nil {
		return nil, nil
	}
	return &Value{kind: *f.sig.Ret, bits: ret}, nil
}
