package jit

import (
	"strings"

	"github.com/tangzhangming/kava/internal/ir"
)

// ============================================================================
// 方法签名
// ============================================================================

// Signature 从方法描述符解析出的参数和返回类型
//
// boolean/byte/char/short 在 JVM 操作数栈上就是 int，这里统一
// 映射为 Int32。引用类型和数组参数不支持。
type Signature struct {
	Params []Kind
	Ret    *Kind // nil 表示 void
}

// ParseSignature 解析方法描述符，如 "(IJ)V"
func ParseSignature(descriptor string) (*Signature, error) {
	if len(descriptor) < 3 || descriptor[0] != '(' {
		return nil, &UnsupportedTypeError{Descriptor: descriptor}
	}
	end := strings.IndexByte(descriptor, ')')
	if end < 0 {
		return nil, &UnsupportedTypeError{Descriptor: descriptor}
	}

	sig := &Signature{}
	params := descriptor[1:end]
	for i := 0; i < len(params); i++ {
		k, ok := fieldKind(params[i])
		if !ok {
			return nil, &UnsupportedTypeError{Descriptor: descriptor}
		}
		sig.Params = append(sig.Params, k)
	}

	ret := descriptor[end+1:]
	if ret == "V" {
		return sig, nil
	}
	if len(ret) != 1 {
		return nil, &UnsupportedTypeError{Descriptor: descriptor}
	}
	k, ok := fieldKind(ret[0])
	if !ok {
		return nil, &UnsupportedTypeError{Descriptor: descriptor}
	}
	sig.Ret = &k
	return sig, nil
}

// fieldKind 字段描述符字符到 Kind 的映射
func fieldKind(c byte) (Kind, bool) {
	switch c {
	case 'Z', 'B', 'C', 'S', 'I':
		return Int32, true
	case 'J':
		return Int64, true
	case 'F':
		return Float32, true
	case 'D':
		return Float64, true
	default:
		// L...; 和 [ 走到这里：单字符里不会出现完整引用描述符，
		// 但首字符足以判定不支持
		return 0, false
	}
}

// SlotCount 参数占用的局部变量槽位总数 (long/double 占两个)
func (s *Signature) SlotCount() int {
	n := 0
	for _, k := range s.Params {
		if k.Wide() {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// backendParams 后端函数的参数类型列表
func (s *Signature) backendParams() []ir.Type {
	out := make([]ir.Type, len(s.Params))
	for i, k := range s.Params {
		out[i] = k.backendType()
	}
	return out
}

// backendRet 后端函数的返回类型
func (s *Signature) backendRet() ir.Type {
	if s.Ret == nil {
		return ir.Void
	}
	return s.Ret.backendType()
}

func (s *Signature) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, k := range s.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k.String())
	}
	b.WriteByte(')')
	if s.Ret != nil {
		b.WriteString(" -> ")
		b.WriteString(s.Ret.String())
	}
	return b.String()
}
