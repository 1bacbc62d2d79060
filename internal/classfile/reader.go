// reader.go - class 文件读取器
//
// 将 .class 字节流解析为 ClassFile 结构。
// 只解析 JIT 需要的部分：常量池、方法表和方法的 Code 属性，
// 其他属性 (SourceFile、LineNumberTable 等) 读取后丢弃。

package classfile

import (
	"encoding/binary"
	"fmt"
	"math"
)

// FormatError class 文件格式错误
type FormatError struct {
	Offset int    // 出错时的读取偏移
	Reason string // 错误原因
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid class file at offset %d: %s", e.Offset, e.Reason)
}

// byteReader 大端序字节读取器
type byteReader struct {
	data []byte
	pos  int
}

func (r *byteReader) fail(format string, args ...interface{}) error {
	return &FormatError{Offset: r.pos, Reason: fmt.Sprintf(format, args...)}
}

func (r *byteReader) remaining() int {
	return len(r.data) - r.pos
}

func (r *byteReader) readU8() (uint8, error) {
	if r.remaining() < 1 {
		return 0, r.fail("unexpected end of file")
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

func (r *byteReader) readU16() (uint16, error) {
	if r.remaining() < 2 {
		return 0, r.fail("unexpected end of file")
	}
	v := binary.BigEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *byteReader) readU32() (uint32, error) {
	if r.remaining() < 4 {
		return 0, r.fail("unexpected end of file")
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *byteReader) readU64() (uint64, error) {
	if r.remaining() < 8 {
		return 0, r.fail("unexpected end of file")
	}
	v := binary.BigEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *byteReader) readBytes(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, r.fail("unexpected end of file (need %d bytes)", n)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Parse 解析 class 文件字节流
func Parse(data []byte) (*ClassFile, error) {
	r := &byteReader{data: data}

	magic, err := r.readU32()
	if err != nil {
		return nil, err
	}
	if magic != ClassFileMagic {
		return nil, r.fail("bad magic 0x%08X", magic)
	}

	cf := &ClassFile{}
	if cf.MinorVersion, err = r.readU16(); err != nil {
		return nil, err
	}
	if cf.MajorVersion, err = r.readU16(); err != nil {
		return nil, err
	}

	// 常量池
	cf.ConstantPool, err = parseConstantPool(r)
	if err != nil {
		return nil, err
	}

	if cf.AccessFlags, err = r.readU16(); err != nil {
		return nil, err
	}

	thisClass, err := r.readU16()
	if err != nil {
		return nil, err
	}
	if cf.ThisClass, err = className(cf.ConstantPool, thisClass); err != nil {
		return nil, err
	}

	superClass, err := r.readU16()
	if err != nil {
		return nil, err
	}
	if superClass != 0 {
		if cf.SuperClass, err = className(cf.ConstantPool, superClass); err != nil {
			return nil, err
		}
	}

	// 接口表
	ifaceCount, err := r.readU16()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(ifaceCount); i++ {
		idx, err := r.readU16()
		if err != nil {
			return nil, err
		}
		name, err := className(cf.ConstantPool, idx)
		if err != nil {
			return nil, err
		}
		cf.Interfaces = append(cf.Interfaces, name)
	}

	// 字段表
	fieldCount, err := r.readU16()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(fieldCount); i++ {
		field, err := parseField(r, cf.ConstantPool)
		if err != nil {
			return nil, err
		}
		cf.Fields = append(cf.Fields, field)
	}

	// 方法表
	methodCount, err := r.readU16()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(methodCount); i++ {
		method, err := parseMethod(r, cf.ConstantPool)
		if err != nil {
			return nil, err
		}
		cf.Methods = append(cf.Methods, method)
	}

	// 类属性：跳过
	if err := skipAttributes(r); err != nil {
		return nil, err
	}

	return cf, nil
}

// parseConstantPool 解析常量池
func parseConstantPool(r *byteReader) (*ConstantPool, error) {
	count, err := r.readU16()
	if err != nil {
		return nil, err
	}

	cp := NewConstantPool()
	for i := 1; i < int(count); i++ {
		tag, err := r.readU8()
		if err != nil {
			return nil, err
		}

		var entry ConstantPoolEntry
		switch tag {
		case ConstantUtf8:
			length, err := r.readU16()
			if err != nil {
				return nil, err
			}
			b, err := r.readBytes(int(length))
			if err != nil {
				return nil, err
			}
			entry = &ConstantUtf8Info{Value: string(b)}

		case ConstantInteger:
			v, err := r.readU32()
			if err != nil {
				return nil, err
			}
			entry = &ConstantIntegerInfo{Value: int32(v)}

		case ConstantFloat:
			v, err := r.readU32()
			if err != nil {
				return nil, err
			}
			entry = &ConstantFloatInfo{Value: math.Float32frombits(v)}

		case ConstantLong:
			v, err := r.readU64()
			if err != nil {
				return nil, err
			}
			entry = &ConstantLongInfo{Value: int64(v)}
			i++ // long 占两个槽位

		case ConstantDouble:
			v, err := r.readU64()
			if err != nil {
				return nil, err
			}
			entry = &ConstantDoubleInfo{Value: math.Float64frombits(v)}
			i++ // double 占两个槽位

		case ConstantClass:
			idx, err := r.readU16()
			if err != nil {
				return nil, err
			}
			entry = &ConstantClassInfo{NameIndex: idx}

		case ConstantString:
			idx, err := r.readU16()
			if err != nil {
				return nil, err
			}
			entry = &ConstantStringInfo{StringIndex: idx}

		case ConstantFieldref, ConstantMethodref, ConstantInterfaceMethodref:
			classIdx, err := r.readU16()
			if err != nil {
				return nil, err
			}
			natIdx, err := r.readU16()
			if err != nil {
				return nil, err
			}
			entry = &ConstantRefInfo{RefTag: tag, ClassIndex: classIdx, NameAndTypeIndex: natIdx}

		case ConstantNameAndType:
			nameIdx, err := r.readU16()
			if err != nil {
				return nil, err
			}
			descIdx, err := r.readU16()
			if err != nil {
				return nil, err
			}
			entry = &ConstantNameAndTypeInfo{NameIndex: nameIdx, DescriptorIndex: descIdx}

		case ConstantMethodHandle:
			b, err := r.readBytes(3)
			if err != nil {
				return nil, err
			}
			// 占位条目，保持索引对齐，JIT 不消费
			entry = &ConstantRawInfo{RawTag: tag, Data: append([]byte(nil), b...)}

		case ConstantMethodType:
			b, err := r.readBytes(2)
			if err != nil {
				return nil, err
			}
			entry = &ConstantRawInfo{RawTag: tag, Data: append([]byte(nil), b...)}

		case ConstantInvokeDynamic:
			b, err := r.readBytes(4)
			if err != nil {
				return nil, err
			}
			entry = &ConstantRawInfo{RawTag: tag, Data: append([]byte(nil), b...)}

		default:
			return nil, r.fail("unknown constant pool tag %d", tag)
		}

		cp.Add(entry)
	}

	return cp, nil
}

// className 解析常量池中的类名
func className(cp *ConstantPool, index uint16) (string, error) {
	entry, err := cp.Entry(int(index))
	if err != nil {
		return "", err
	}
	classInfo, ok := entry.(*ConstantClassInfo)
	if !ok {
		return "", fmt.Errorf("constant pool entry %d is not a class (tag=%d)", index, entry.Tag())
	}
	return cp.Utf8(int(classInfo.NameIndex))
}

// parseField 解析字段
func parseField(r *byteReader, cp *ConstantPool) (*Field, error) {
	flags, err := r.readU16()
	if err != nil {
		return nil, err
	}
	nameIdx, err := r.readU16()
	if err != nil {
		return nil, err
	}
	descIdx, err := r.readU16()
	if err != nil {
		return nil, err
	}

	field := &Field{AccessFlags: flags}
	if field.Name, err = cp.Utf8(int(nameIdx)); err != nil {
		return nil, err
	}
	if field.Descriptor, err = cp.Utf8(int(descIdx)); err != nil {
		return nil, err
	}

	if err := skipAttributes(r); err != nil {
		return nil, err
	}
	return field, nil
}

// parseMethod 解析方法及其 Code 属性
func parseMethod(r *byteReader, cp *ConstantPool) (*Method, error) {
	flags, err := r.readU16()
	if err != nil {
		return nil, err
	}
	nameIdx, err := r.readU16()
	if err != nil {
		return nil, err
	}
	descIdx, err := r.readU16()
	if err != nil {
		return nil, err
	}

	method := &Method{AccessFlags: flags}
	if method.Name, err = cp.Utf8(int(nameIdx)); err != nil {
		return nil, err
	}
	if method.Descriptor, err = cp.Utf8(int(descIdx)); err != nil {
		return nil, err
	}

	attrCount, err := r.readU16()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(attrCount); i++ {
		attrNameIdx, err := r.readU16()
		if err != nil {
			return nil, err
		}
		attrLen, err := r.readU32()
		if err != nil {
			return nil, err
		}
		attrName, err := cp.Utf8(int(attrNameIdx))
		if err != nil {
			return nil, err
		}
		body, err := r.readBytes(int(attrLen))
		if err != nil {
			return nil, err
		}

		if attrName == "Code" {
			code, err := parseCodeAttribute(body)
			if err != nil {
				return nil, err
			}
			method.Code = code
		}
	}

	return method, nil
}

// parseCodeAttribute 解析 Code 属性体
func parseCodeAttribute(body []byte) (*CodeAttribute, error) {
	r := &byteReader{data: body}

	code := &CodeAttribute{}
	var err error
	if code.MaxStack, err = r.readU16(); err != nil {
		return nil, err
	}
	if code.MaxLocals, err = r.readU16(); err != nil {
		return nil, err
	}

	codeLen, err := r.readU32()
	if err != nil {
		return nil, err
	}
	raw, err := r.readBytes(int(codeLen))
	if err != nil {
		return nil, err
	}
	code.Code = append([]byte(nil), raw...)

	// 异常表
	excCount, err := r.readU16()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(excCount); i++ {
		var entry ExceptionTableEntry
		if entry.StartPC, err = r.readU16(); err != nil {
			return nil, err
		}
		if entry.EndPC, err = r.readU16(); err != nil {
			return nil, err
		}
		if entry.HandlerPC, err = r.readU16(); err != nil {
			return nil, err
		}
		if entry.CatchType, err = r.readU16(); err != nil {
			return nil, err
		}
		code.ExceptionTable = append(code.ExceptionTable, entry)
	}

	// Code 属性的子属性 (LineNumberTable 等)：跳过
	if err := skipAttributes(r); err != nil {
		return nil, err
	}

	return code, nil
}

// skipAttributes 跳过一个属性表
func skipAttributes(r *byteReader) error {
	count, err := r.readU16()
	if err != nil {
		return err
	}
	for i := 0; i < int(count); i++ {
		if _, err := r.readU16(); err != nil {
			return err
		}
		length, err := r.readU32()
		if err != nil {
			return err
		}
		if _, err := r.readBytes(int(length)); err != nil {
			return err
		}
	}
	return nil
}
