// Package config 定义一次训练/评估运行的 YAML 配置。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// GridPoint 是评估网格中的一组 (k, n)。
type GridPoint struct {
	K int `yaml:"k"`
	N int `yaml:"n"`
}

// Config 是一次运行的完整配置。
type Config struct {
	Dataset struct {
		Name    string  `yaml:"name"`    // 数据集名，参与模型命名；缺省取文件名
		Path    string  `yaml:"path"`    // 事件日志 CSV 路径
		Portion float64 `yaml:"portion"` // 只取前 portion 比例的事件，0 或缺省为全量
		Split   float64 `yaml:"split"`   // 训练集比例，其余为测试集
	} `yaml:"dataset"`

	Model struct {
		Family    string `yaml:"family"`     // usercf / itemcf / lfm
		K         int    `yaml:"k"`          // 参考的最相似用户（或物品）数
		N         int    `yaml:"n"`          // 最终推荐的物品数
		EnsureNew *bool  `yaml:"ensure_new"` // 过滤已交互物品，缺省开启
		IIF       bool   `yaml:"iif"`        // 热门抑制（usercf 为 IIF，itemcf 为 IUF）
		Workers   int    `yaml:"workers"`    // 共现统计的并发分片数
		Filter    string `yaml:"filter"`     // CEL 候选过滤表达式，可为空
	} `yaml:"model"`

	Eval struct {
		Grid    []GridPoint `yaml:"grid"`    // 逐组 (k, n) 评估；缺省只评估训练配置
		Workers int         `yaml:"workers"` // 并发评估的用户分片数
		Output  string      `yaml:"output"`  // 评估结果 CSV 路径
	} `yaml:"eval"`

	Store struct {
		Backend string `yaml:"backend"` // memory / redis
		Addr    string `yaml:"addr"`    // redis 地址
		DB      int    `yaml:"db"`      // redis db
	} `yaml:"store"`
}

// Load 从 YAML 文件加载配置，套用默认值并校验。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Dataset.Name == "" && c.Dataset.Path != "" {
		base := filepath.Base(c.Dataset.Path)
		c.Dataset.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if c.Dataset.Split == 0 {
		c.Dataset.Split = 0.8
	}
	if c.Model.Family == "" {
		c.Model.Family = "usercf"
	}
	if c.Model.K == 0 {
		c.Model.K = 80
	}
	if c.Model.N == 0 {
		c.Model.N = 20
	}
	if len(c.Eval.Grid) == 0 {
		c.Eval.Grid = []GridPoint{{K: c.Model.K, N: c.Model.N}}
	}
	if c.Eval.Output == "" {
		c.Eval.Output = fmt.Sprintf("evaluation_results/%s-%s.csv", c.Model.Family, c.Dataset.Name)
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "memory"
	}
}

// Validate 校验配置的合法性。
func (c *Config) Validate() error {
	if c.Dataset.Path == "" {
		return fmt.Errorf("dataset.path is required")
	}
	if c.Dataset.Split <= 0 || c.Dataset.Split >= 1 {
		return fmt.Errorf("dataset.split must be in (0, 1), got %v", c.Dataset.Split)
	}
	switch c.Model.Family {
	case "usercf", "itemcf", "lfm":
	default:
		return fmt.Errorf("unsupported model family %q (want usercf, itemcf or lfm)", c.Model.Family)
	}
	if c.Model.K <= 0 || c.Model.N <= 0 {
		return fmt.Errorf("model.k and model.n must be positive, got k=%d n=%d", c.Model.K, c.Model.N)
	}
	for _, g := range c.Eval.Grid {
		if g.K <= 0 || g.N <= 0 {
			return fmt.Errorf("eval.grid entries must have positive k and n, got k=%d n=%d", g.K, g.N)
		}
	}
	switch c.Store.Backend {
	case "memory":
	case "redis":
		if c.Store.Addr == "" {
			return fmt.Errorf("store.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unsupported store backend %q (want memory or redis)", c.Store.Backend)
	}
	return nil
}

// EnsureNewEnabled 返回 ensure_new 配置，缺省开启。
func (c *Config) EnsureNewEnabled() bool {
	if c.Model.EnsureNew == nil {
		return true
	}
	return *c.Model.EnsureNew
}

// ModelName 生成 {数据集}_{模型族}_n_{n} 形式的模型名，作为快照的 key 前缀。
func (c *Config) ModelName() string {
	return fmt.Sprintf("%s_%s_n_%d", c.Dataset.Name, c.Model.Family, c.Model.N)
}
