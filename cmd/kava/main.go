package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/tangzhangming/kava/internal/classfile"
	"github.com/tangzhangming/kava/internal/jit"
	"github.com/tangzhangming/kava/internal/project"
)

const (
	Version = "0.1.0"
)

func main() {
	args := os.Args[1:]

	if len(args) < 1 {
		printUsage()
		os.Exit(0)
	}

	command := args[0]

	switch command {
	case "run":
		cmdRun(args[1:])
	case "dump":
		cmdDump(args[1:])
	case "init":
		cmdInit(args[1:])
	case "version", "-v", "--version":
		cmdVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf("Kava JIT compiler v%s\n\n", Version)
	fmt.Println("Usage:")
	fmt.Println("  kava <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run <file.class> <method> <descriptor> [args...]   compile and execute a static method")
	fmt.Println("  dump <file.class>                                  disassemble method bytecode")
	fmt.Println("  init                                               write a default kava.toml")
	fmt.Println("  version                                            print version")
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "kava: "+format+"\n", args...)
	os.Exit(1)
}

// loadClass 读取并解析类文件
func loadClass(path string) *classfile.ClassFile {
	data, err := os.ReadFile(path)
	if err != nil {
		fatal("%v", err)
	}
	cf, err := classfile.Parse(data)
	if err != nil {
		fatal("%v", err)
	}
	return cf
}

// compilerConfig 从 kava.toml 读配置，不存在时用默认值
func compilerConfig() *jit.Config {
	cfg := jit.DefaultConfig()

	proj, err := project.Load(project.ConfigFileName)
	if err != nil {
		return cfg
	}
	cfg.HeapSize = proj.Runtime.HeapSize
	cfg.DisableBoundsChecks = !proj.Jit.BoundsChecks
	cfg.DisableCache = !proj.Jit.Cache
	cfg.TargetISA = proj.Jit.TargetISA
	return cfg
}

// cmdRun 编译并执行一个静态方法
func cmdRun(args []string) {
	if len(args) < 3 {
		fatal("usage: kava run <file.class> <method> <descriptor> [args...]")
	}
	cf := loadClass(args[0])

	method := cf.FindMethod(args[1], args[2])
	if method == nil {
		fatal("method %s%s not found in %s", args[1], args[2], cf.ThisClass)
	}

	compiler, err := jit.NewCompiler(compilerConfig())
	if err != nil {
		fatal("%v", err)
	}
	defer compiler.Close()

	fn, err := compiler.Compile(method, cf.ConstantPool)
	if err != nil {
		fatal("%v", err)
	}

	callArgs, err := parseArgs(fn.Signature(), args[3:])
	if err != nil {
		fatal("%v", err)
	}

	result, err := fn.Execute(callArgs)
	if err != nil {
		fatal("%v", err)
	}
	if result != nil {
		fmt.Println(result)
	}
}

// parseArgs 按签名把命令行实参转成 JIT 值
func parseArgs(sig *jit.Signature, raw []string) ([]jit.Value, error) {
	if len(raw) != len(sig.Params) {
		return nil, fmt.Errorf("method takes %d arguments, got %d", len(sig.Params), len(raw))
	}

	out := make([]jit.Value, len(raw))
	for i, s := range raw {
		switch sig.Params[i] {
		case jit.Int32:
			v, err := strconv.ParseInt(s, 0, 32)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %v", i+1, err)
			}
			out[i] = jit.NewInt32(int32(v))
		case jit.Int64:
			v, err := strconv.ParseInt(s, 0, 64)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %v", i+1, err)
			}
			out[i] = jit.NewInt64(v)
		case jit.Float32:
			v, err := strconv.ParseFloat(s, 32)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %v", i+1, err)
			}
			out[i] = jit.NewFloat32(float32(v))
		case jit.Float64:
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %v", i+1, err)
			}
			out[i] = jit.NewFloat64(v)
		}
	}
	return out, nil
}

// cmdDump 反汇编类文件中所有方法的字节码
func cmdDump(args []string) {
	if len(args) != 1 {
		fatal("usage: kava dump <file.class>")
	}
	cf := loadClass(args[0])

	fmt.Printf("class %s (version %d.%d)\n", cf.ThisClass, cf.MajorVersion, cf.MinorVersion)
	for _, method := range cf.Methods {
		fmt.Printf("\n%s%s:\n", method.Name, method.Descriptor)
		if method.Code == nil {
			fmt.Println("  (no code)")
			continue
		}
		fmt.Printf("  max_stack=%d max_locals=%d\n", method.Code.MaxStack, method.Code.MaxLocals)

		instrs, err := classfile.Decode(method.Code.Code)
		if err != nil {
			fmt.Printf("  decode error: %v\n", err)
			continue
		}
		for _, in := range instrs {
			fmt.Printf("  %s\n", in)
		}
	}
}

// cmdInit 生成默认 kava.toml
func cmdInit(args []string) {
	if _, err := os.Stat(project.ConfigFileName); err == nil {
		fatal("%s already exists", project.ConfigFileName)
	}
	if err := project.Default().Save(project.ConfigFileName); err != nil {
		fatal("%v", err)
	}
	fmt.Printf("created %s\n", project.ConfigFileName)
}

func cmdVersion() {
	fmt.Printf("kava v%s\n", Version)
}
