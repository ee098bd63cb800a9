// Package dsl 提供基于 CEL (Common Expression Language) 的候选过滤表达式。
// CEL 是 Google 开发的表达式语言，类型安全、高性能、线程安全。
package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

// initCELEnv 初始化 CEL 环境，声明表达式可用的变量
func initCELEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("id", cel.IntType),
		cel.Variable("score", cel.DoubleType),
	)
}

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = initCELEnv()
	})
	return celEnv, celEnvErr
}

// CandidateFilter 对排好分的候选物品逐个求值一个 CEL 表达式，
// 结果为 false 的候选在截断前被剔除。
//
// 表达式变量：
//   - id:    候选物品 id（int）
//   - score: 候选物品的聚合得分（double）
//
// 示例：
//   - `score > 0.5`
//   - `id != 404 && score >= 0.1`
type CandidateFilter struct {
	expr string
	prg  cel.Program
}

// NewCandidateFilter 编译表达式；编译产物可跨 goroutine 复用。
func NewCandidateFilter(expr string) (*CandidateFilter, error) {
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("init cel env: %w", err)
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compile filter expression: %w", iss.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build filter program: %w", err)
	}
	return &CandidateFilter{expr: expr, prg: prg}, nil
}

func (f *CandidateFilter) String() string { return f.expr }

// Keep 判断单个候选是否保留。
func (f *CandidateFilter) Keep(id int64, score float64) (bool, error) {
	out, _, err := f.prg.Eval(map[string]any{"id": id, "score": score})
	if err != nil {
		return false, fmt.Errorf("eval filter expression: %w", err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("filter expression must evaluate to bool, got %T", out.Value())
	}
	return b, nil
}

// Apply 就地过滤一张打分表，剔除表达式为 false 的候选。
func (f *CandidateFilter) Apply(scores map[int64]float64) error {
	for id, score := range scores {
		keep, err := f.Keep(id, score)
		if err != nil {
			return err
		}
		if !keep {
			delete(scores, id)
		}
	}
	return nil
}
