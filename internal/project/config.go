// Package project 实现 Kava 项目配置相关功能
package project

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/tangzhangming/kava/internal/heap"
)

// 常量定义
const (
	ConfigFileName = "kava.toml" // 配置文件名
)

// Config 项目配置
type Config struct {
	Jit     JitConfig     `toml:"jit"`
	Runtime RuntimeConfig `toml:"runtime"`
}

// JitConfig JIT 编译配置
type JitConfig struct {
	// Enabled 是否启用 JIT 编译
	Enabled bool `toml:"enabled"`

	// BoundsChecks 是否启用数组边界检查
	BoundsChecks bool `toml:"bounds_checks"`

	// Cache 是否启用编译缓存
	Cache bool `toml:"cache"`

	// TargetISA 目标指令集（空串表示宿主）
	TargetISA string `toml:"target_isa,omitempty"`
}

// RuntimeConfig 运行时配置
type RuntimeConfig struct {
	// HeapSize 堆大小（字节）
	HeapSize int `toml:"heap_size"`
}

// Load 从文件加载配置
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if config.Runtime.HeapSize == 0 {
		config.Runtime.HeapSize = heap.DefaultArenaSize
	}

	return &config, nil
}

// Save 保存配置到文件
func (c *Config) Save(path string) error {
	// 生成带注释的配置文件内容
	content := generateConfigWithComments(c)

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// generateConfigWithComments 生成带注释的配置文件内容
func generateConfigWithComments(c *Config) string {
	var sb strings.Builder

	sb.WriteString("[jit]\n")
	sb.WriteString("# 是否启用 JIT 编译\n")
	sb.WriteString(fmt.Sprintf("enabled = %v\n\n", c.Jit.Enabled))
	sb.WriteString("# 是否启用数组边界检查\n")
	sb.WriteString(fmt.Sprintf("bounds_checks = %v\n\n", c.Jit.BoundsChecks))
	sb.WriteString("# 是否启用编译缓存\n")
	sb.WriteString(fmt.Sprintf("cache = %v\n\n", c.Jit.Cache))

	sb.WriteString("[runtime]\n")
	sb.WriteString("# 堆大小（字节）\n")
	sb.WriteString(fmt.Sprintf("heap_size = %d\n", c.Runtime.HeapSize))

	return sb.String()
}

// Default 生成默认配置
func Default() *Config {
	return &Config{
		Jit: JitConfig{
			Enabled:      true,
			BoundsChecks: true,
			Cache:        true,
		},
		Runtime: RuntimeConfig{
			HeapSize: heap.DefaultArenaSize,
		},
	}
}
