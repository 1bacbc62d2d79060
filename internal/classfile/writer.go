// writer.go - class 文件写入器
//
// ByteWriter 提供大端序的字节拼装；Assembler 在其上组装完整的
// class 文件 (常量池、方法表、Code 属性)。测试和工具用它合成
// 可以再被 Parse 读回的 .class 字节流。

package classfile

import (
	"bytes"
	"encoding/binary"
)

// ByteWriter 字节码写入器
type ByteWriter struct {
	buf bytes.Buffer
}

// NewByteWriter 创建新的字节码写入器
func NewByteWriter() *ByteWriter {
	return &ByteWriter{}
}

// WriteU8 写入无符号字节
func (w *ByteWriter) WriteU8(v uint8) {
	w.buf.WriteByte(v)
}

// WriteU16 写入无符号短整型 (大端序)
func (w *ByteWriter) WriteU16(v uint16) {
	binary.Write(&w.buf, binary.BigEndian, v)
}

// WriteU32 写入无符号整型 (大端序)
func (w *ByteWriter) WriteU32(v uint32) {
	binary.Write(&w.buf, binary.BigEndian, v)
}

// WriteBytes 写入字节数组
func (w *ByteWriter) WriteBytes(b []byte) {
	w.buf.Write(b)
}

// Bytes 返回字节数组
func (w *ByteWriter) Bytes() []byte {
	return w.buf.Bytes()
}

// Len 返回当前长度
func (w *ByteWriter) Len() int {
	return w.buf.Len()
}

// Reset 重置写入器
func (w *ByteWriter) Reset() {
	w.buf.Reset()
}

// ============================================================================
// Class 文件组装器
// ============================================================================

// asmMethod 待写入的方法
type asmMethod struct {
	flags uint16
	name  string
	desc  string
	code  *CodeAttribute
}

// Assembler class 文件组装器
type Assembler struct {
	className string
	superName string
	pool      *ConstantPool
	methods   []asmMethod
}

// NewAssembler 创建组装器
func NewAssembler(className string) *Assembler {
	return &Assembler{
		className: className,
		superName: "java/lang/Object",
		pool:      NewConstantPool(),
	}
}

// Pool 返回常量池 (用于在字节码中引用 ldc 常量)
func (a *Assembler) Pool() *ConstantPool {
	return a.pool
}

// AddMethod 添加方法
func (a *Assembler) AddMethod(flags uint16, name, descriptor string, code *CodeAttribute) {
	a.methods = append(a.methods, asmMethod{flags: flags, name: name, desc: descriptor, code: code})
}

// Bytes 组装并返回 class 文件字节流
func (a *Assembler) Bytes() ([]byte, error) {
	// 方法名/描述符/类名的 UTF8 和 Class 条目在常量池末尾补齐
	type methodRefs struct {
		nameIdx uint16
		descIdx uint16
	}

	thisIdx := a.pool.Add(&ConstantClassInfo{NameIndex: a.pool.AddUtf8(a.className)})
	superIdx := a.pool.Add(&ConstantClassInfo{NameIndex: a.pool.AddUtf8(a.superName)})

	var codeAttrIdx uint16
	hasCode := false
	refs := make([]methodRefs, len(a.methods))
	for i, m := range a.methods {
		refs[i] = methodRefs{nameIdx: a.pool.AddUtf8(m.name), descIdx: a.pool.AddUtf8(m.desc)}
		if m.code != nil && !hasCode {
			codeAttrIdx = a.pool.AddUtf8("Code")
			hasCode = true
		}
	}

	w := NewByteWriter()
	w.WriteU32(ClassFileMagic)
	w.WriteU16(ClassMinorVersion)
	w.WriteU16(ClassMajorVersion)

	// 常量池
	w.WriteU16(uint16(a.pool.Count()))
	for i := 1; i < a.pool.Count(); i++ {
		entry := a.pool.entries[i]
		if entry == nil {
			continue // long/double 的第二个槽位
		}
		if err := entry.Write(&w.buf); err != nil {
			return nil, err
		}
	}

	w.WriteU16(AccPublic | AccSuper)
	w.WriteU16(thisIdx)
	w.WriteU16(superIdx)
	w.WriteU16(0) // interfaces
	w.WriteU16(0) // fields

	// 方法表
	w.WriteU16(uint16(len(a.methods)))
	for i, m := range a.methods {
		w.WriteU16(m.flags)
		w.WriteU16(refs[i].nameIdx)
		w.WriteU16(refs[i].descIdx)
		if m.code == nil {
			w.WriteU16(0)
			continue
		}
		w.WriteU16(1) // 一个 Code 属性
		w.WriteU16(codeAttrIdx)
		attrLen := 2 + 2 + 4 + len(m.code.Code) + 2 + 8*len(m.code.ExceptionTable) + 2
		w.WriteU32(uint32(attrLen))
		w.WriteU16(m.code.MaxStack)
		w.WriteU16(m.code.MaxLocals)
		w.WriteU32(uint32(len(m.code.Code)))
		w.WriteBytes(m.code.Code)
		w.WriteU16(uint16(len(m.code.ExceptionTable)))
		for _, e := range m.code.ExceptionTable {
			w.WriteU16(e.StartPC)
			w.WriteU16(e.EndPC)
			w.WriteU16(e.HandlerPC)
			w.WriteU16(e.CatchType)
		}
		w.WriteU16(0) // Code 属性的子属性
	}

	w.WriteU16(0) // class attributes
	return w.Bytes(), nil
}
