package jit

import "github.com/tangzhangming/kava/internal/ir"

// ============================================================================
// 编译期操作数栈
// ============================================================================

// stackValue 栈上的一个条目：后端值句柄加类型标签
//
// long/double 在这里只占一个条目。dup2/pop2 等按字 (word) 计数
// 的指令根据 Wide() 换算。
type stackValue struct {
	kind Kind
	val  ir.Value
}

// operandStack 编译期模拟的 JVM 操作数栈
//
// 翻译过程中不产生任何运行时栈操作：每个栈条目就是一个 IR 值
// 句柄，push/pop 只是编译器的簿记。
type operandStack struct {
	entries []stackValue
}

// push 压入一个值
func (s *operandStack) push(k Kind, v ir.Value) {
	s.entries = append(s.entries, stackValue{kind: k, val: v})
}

// pop 弹出栈顶值
func (s *operandStack) pop(pc int) (stackValue, error) {
	if len(s.entries) == 0 {
		return stackValue{}, &OperandStackUnderflowError{PC: pc}
	}
	top := s.entries[len(s.entries)-1]
	s.entries = s.entries[:len(s.entries)-1]
	return top, nil
}

// popKind 弹出栈顶值并检查类型
func (s *operandStack) popKind(pc int, k Kind) (ir.Value, error) {
	top, err := s.pop(pc)
	if err != nil {
		return ir.NoValue, err
	}
	if top.kind != k {
		return ir.NoValue, internalf("expected %s on stack at pc=%d, got %s", k, pc, top.kind)
	}
	return top.val, nil
}

// peek 返回从栈顶数第 n 个条目 (0 为栈顶)，不弹出
func (s *operandStack) peek(pc int, n int) (stackValue, error) {
	if n >= len(s.entries) {
		return stackValue{}, &OperandStackUnderflowError{PC: pc}
	}
	return s.entries[len(s.entries)-1-n], nil
}

// depth 当前条目数
func (s *operandStack) depth() int {
	return len(s.entries)
}

// shape 当前栈形状 (自底向上的类型列表)
func (s *operandStack) shape() []Kind {
	out := make([]Kind, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.kind
	}
	return out
}

// values 当前栈上的后端值句柄 (自底向上)
//
// 跳转到合流块时把这些值作为块实参传递，顺序约定为栈底在前。
func (s *operandStack) values() []ir.Value {
	out := make([]ir.Value, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.val
	}
	return out
}

// reset 按给定形状和值句柄重建栈 (进入新块时使用)
func (s *operandStack) reset(shape []Kind, vals []ir.Value) {
	s.entries = s.entries[:0]
	for i, k := range shape {
		s.entries = append(s.entries, stackValue{kind: k, val: vals[i]})
	}
}

// shapeEqual 比较两个栈形状
func shapeEqual(a, b []Kind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
