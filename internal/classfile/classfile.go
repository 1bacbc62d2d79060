// Package classfile 实现 JVM class 文件的数据模型与读写
package classfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Class 文件常量
const (
	ClassFileMagic    = 0xCAFEBABE
	ClassMajorVersion = 52 // Java 8
	ClassMinorVersion = 0
)

// 常量池标签
const (
	ConstantUtf8               = 1
	ConstantInteger            = 3
	ConstantFloat              = 4
	ConstantLong               = 5
	ConstantDouble             = 6
	ConstantClass              = 7
	ConstantString             = 8
	ConstantFieldref           = 9
	ConstantMethodref          = 10
	ConstantInterfaceMethodref = 11
	ConstantNameAndType        = 12
	ConstantMethodHandle       = 15
	ConstantMethodType         = 16
	ConstantInvokeDynamic      = 18
)

// 访问标志
const (
	AccPublic     = 0x0001
	AccPrivate    = 0x0002
	AccProtected  = 0x0004
	AccStatic     = 0x0008
	AccFinal      = 0x0010
	AccSuper      = 0x0020
	AccNative     = 0x0100
	AccInterface  = 0x0200
	AccAbstract   = 0x0400
	AccSynthetic  = 0x1000
	AccAnnotation = 0x2000
	AccEnum       = 0x4000
)

// ============================================================================
// 常量池
// ============================================================================

// ConstantPoolEntry 常量池条目
type ConstantPoolEntry interface {
	Tag() uint8
	Write(w io.Writer) error
}

// ConstantUtf8Info UTF8 字符串常量
type ConstantUtf8Info struct {
	Value string
}

func (c *ConstantUtf8Info) Tag() uint8 { return ConstantUtf8 }
func (c *ConstantUtf8Info) Write(w io.Writer) error {
	binary.Write(w, binary.BigEndian, c.Tag())
	binary.Write(w, binary.BigEndian, uint16(len(c.Value)))
	_, err := w.Write([]byte(c.Value))
	return err
}

// ConstantIntegerInfo int 常量
type ConstantIntegerInfo struct {
	Value int32
}

func (c *ConstantIntegerInfo) Tag() uint8 { return ConstantInteger }
func (c *ConstantIntegerInfo) Write(w io.Writer) error {
	binary.Write(w, binary.BigEndian, c.Tag())
	return binary.Write(w, binary.BigEndian, uint32(c.Value))
}

// ConstantFloatInfo float 常量
type ConstantFloatInfo struct {
	Value float32
}

func (c *ConstantFloatInfo) Tag() uint8 { return ConstantFloat }
func (c *ConstantFloatInfo) Write(w io.Writer) error {
	binary.Write(w, binary.BigEndian, c.Tag())
	return binary.Write(w, binary.BigEndian, math.Float32bits(c.Value))
}

// ConstantLongInfo long 常量 (占两个常量池槽位)
type ConstantLongInfo struct {
	Value int64
}

func (c *ConstantLongInfo) Tag() uint8 { return ConstantLong }
func (c *ConstantLongInfo) Write(w io.Writer) error {
	binary.Write(w, binary.BigEndian, c.Tag())
	return binary.Write(w, binary.BigEndian, uint64(c.Value))
}

// ConstantDoubleInfo double 常量 (占两个常量池槽位)
type ConstantDoubleInfo struct {
	Value float64
}

func (c *ConstantDoubleInfo) Tag() uint8 { return ConstantDouble }
func (c *ConstantDoubleInfo) Write(w io.Writer) error {
	binary.Write(w, binary.BigEndian, c.Tag())
	return binary.Write(w, binary.BigEndian, math.Float64bits(c.Value))
}

// ConstantClassInfo 类引用常量
type ConstantClassInfo struct {
	NameIndex uint16
}

func (c *ConstantClassInfo) Tag() uint8 { return ConstantClass }
func (c *ConstantClassInfo) Write(w io.Writer) error {
	binary.Write(w, binary.BigEndian, c.Tag())
	return binary.Write(w, binary.BigEndian, c.NameIndex)
}

// ConstantStringInfo 字符串常量
type ConstantStringInfo struct {
	StringIndex uint16
}

func (c *ConstantStringInfo) Tag() uint8 { return ConstantString }
func (c *ConstantStringInfo) Write(w io.Writer) error {
	binary.Write(w, binary.BigEndian, c.Tag())
	return binary.Write(w, binary.BigEndian, c.StringIndex)
}

// ConstantRefInfo 字段/方法/接口方法引用常量
type ConstantRefInfo struct {
	RefTag           uint8 // ConstantFieldref / ConstantMethodref / ConstantInterfaceMethodref
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (c *ConstantRefInfo) Tag() uint8 { return c.RefTag }
func (c *ConstantRefInfo) Write(w io.Writer) error {
	binary.Write(w, binary.BigEndian, c.Tag())
	binary.Write(w, binary.BigEndian, c.ClassIndex)
	return binary.Write(w, binary.BigEndian, c.NameAndTypeIndex)
}

// ConstantNameAndTypeInfo 名称和类型描述符常量
type ConstantNameAndTypeInfo struct {
	NameIndex       uint16
	DescriptorIndex uint16
}

func (c *ConstantNameAndTypeInfo) Tag() uint8 { return ConstantNameAndType }
func (c *ConstantNameAndTypeInfo) Write(w io.Writer) error {
	binary.Write(w, binary.BigEndian, c.Tag())
	binary.Write(w, binary.BigEndian, c.NameIndex)
	return binary.Write(w, binary.BigEndian, c.DescriptorIndex)
}

// ConstantRawInfo 未解析的常量池条目 (MethodHandle 等)
// 只为保持索引对齐而保留原始字节
type ConstantRawInfo struct {
	RawTag uint8
	Data   []byte
}

func (c *ConstantRawInfo) Tag() uint8 { return c.RawTag }
func (c *ConstantRawInfo) Write(w io.Writer) error {
	binary.Write(w, binary.BigEndian, c.Tag())
	_, err := w.Write(c.Data)
	return err
}

// ConstantPool 常量池
// 索引从 1 开始，long/double 占两个槽位 (后一个槽位为 nil)
type ConstantPool struct {
	entries []ConstantPoolEntry // entries[0] 恒为 nil
}

// NewConstantPool 创建空常量池
func NewConstantPool() *ConstantPool {
	return &ConstantPool{entries: make([]ConstantPoolEntry, 1)}
}

// Count 返回常量池计数 (槽位数 + 1，与 class 文件格式一致)
func (cp *ConstantPool) Count() int {
	return len(cp.entries)
}

// Entry 返回指定索引的常量池条目
func (cp *ConstantPool) Entry(index int) (ConstantPoolEntry, error) {
	if index <= 0 || index >= len(cp.entries) || cp.entries[index] == nil {
		return nil, fmt.Errorf("constant pool index %d out of range (count=%d)", index, len(cp.entries))
	}
	return cp.entries[index], nil
}

// Utf8 返回指定索引的 UTF8 字符串
func (cp *ConstantPool) Utf8(index int) (string, error) {
	entry, err := cp.Entry(index)
	if err != nil {
		return "", err
	}
	utf8, ok := entry.(*ConstantUtf8Info)
	if !ok {
		return "", fmt.Errorf("constant pool entry %d is not Utf8 (tag=%d)", index, entry.Tag())
	}
	return utf8.Value, nil
}

// Add 追加常量池条目，返回分配的索引
// long/double 自动占用两个槽位
func (cp *ConstantPool) Add(entry ConstantPoolEntry) uint16 {
	index := uint16(len(cp.entries))
	cp.entries = append(cp.entries, entry)
	if entry.Tag() == ConstantLong || entry.Tag() == ConstantDouble {
		cp.entries = append(cp.entries, nil)
	}
	return index
}

// AddUtf8 追加 UTF8 常量
func (cp *ConstantPool) AddUtf8(s string) uint16 {
	return cp.Add(&ConstantUtf8Info{Value: s})
}

// AddInteger 追加 int 常量
func (cp *ConstantPool) AddInteger(v int32) uint16 {
	return cp.Add(&ConstantIntegerInfo{Value: v})
}

// AddFloat 追加 float 常量
func (cp *ConstantPool) AddFloat(v float32) uint16 {
	return cp.Add(&ConstantFloatInfo{Value: v})
}

// AddLong 追加 long 常量
func (cp *ConstantPool) AddLong(v int64) uint16 {
	return cp.Add(&ConstantLongInfo{Value: v})
}

// AddDouble 追加 double 常量
func (cp *ConstantPool) AddDouble(v float64) uint16 {
	return cp.Add(&ConstantDoubleInfo{Value: v})
}

// ============================================================================
// Class 文件结构
// ============================================================================

// ExceptionTableEntry 异常表条目
type ExceptionTableEntry struct {
	StartPC   uint16
	EndPC     uint16
	HandlerPC uint16
	CatchType uint16
}

// CodeAttribute 方法的 Code 属性
// MaxStack/MaxLocals 来自字节码校验器，这里不做重新推导
type CodeAttribute struct {
	MaxStack       uint16
	MaxLocals      uint16
	Code           []byte
	ExceptionTable []ExceptionTableEntry
}

// Method 解析后的方法视图
type Method struct {
	AccessFlags uint16
	Name        string
	Descriptor  string
	Code        *CodeAttribute // native/abstract 方法为 nil
}

// IsStatic 检查方法是否是静态方法
func (m *Method) IsStatic() bool {
	return m.AccessFlags&AccStatic != 0
}

// IsNative 检查方法是否是 native 方法
func (m *Method) IsNative() bool {
	return m.AccessFlags&AccNative != 0
}

// IsAbstract 检查方法是否是抽象方法
func (m *Method) IsAbstract() bool {
	return m.AccessFlags&AccAbstract != 0
}

// Field 解析后的字段视图
type Field struct {
	AccessFlags uint16
	Name        string
	Descriptor  string
}

// ClassFile JVM class 文件
type ClassFile struct {
	MinorVersion uint16
	MajorVersion uint16
	ConstantPool *ConstantPool
	AccessFlags  uint16
	ThisClass    string
	SuperClass   string
	Interfaces   []string
	Fields       []*Field
	Methods      []*Method
}

// FindMethod 按名称和描述符查找方法
// descriptor 为空串时只按名称匹配第一个
func (cf *ClassFile) FindMethod(name, descriptor string) *Method {
	for _, m := range cf.Methods {
		if m.Name == name && (descriptor == "" || m.Descriptor == descriptor) {
			return m
		}
	}
	return nil
}
