// Package eval 把训练好的模型放到一段与训练期不相交的测试事件上回放，
// 统计平均召回率、平均准确率与物品覆盖率。
package eval

import (
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/cfkit/core"
)

// Metrics 是一次评估的聚合结果。
type Metrics struct {
	Recall    float64
	Precision float64
	Coverage  float64

	ValidUsers int            // 成功生成推荐的用户数（recall/precision 的分母）
	TestUsers  int            // 测试集中的唯一用户数
	Skipped    map[string]int // 被跳过用户的错误代码计数（诊断用）
}

// Evaluator 驱动评估循环。
// 单个用户的可恢复失败（用户未见过、无相似用户、候选为空）只做剔除，
// 不计入任何指标的分母；结构性错误直接终止评估。
type Evaluator struct {
	// Workers 并发评估的用户分片数，<= 1 表示顺序执行。
	// 并行与顺序的聚合结果一致（浮点求和顺序除外）。
	Workers int
}

type userCase struct {
	userID    int64
	trueItems map[int64]struct{}
}

// partial 是单个分片的局部累加结果，评估结束后合并。
type partial struct {
	recall    float64
	precision float64
	valid     int
	covered   map[int64]struct{}
	skipped   map[string]int
	err       error
}

func newPartial() *partial {
	return &partial{
		covered: make(map[int64]struct{}),
		skipped: make(map[string]int),
	}
}

// Evaluate 对测试集中的每个唯一用户调用一次模型并聚合指标。
// 没有任何用户可评估时返回 NO_VALID_USERS，绝不产出 NaN。
func (e *Evaluator) Evaluate(model core.Recommender, test []core.Event) (*Metrics, error) {
	cases := groupByUser(test)

	workers := e.Workers
	var parts []*partial
	if workers <= 1 || len(cases) < workers {
		p := evaluateUsers(model, cases)
		if p.err != nil {
			return nil, p.err
		}
		parts = []*partial{p}
	} else {
		parts = make([]*partial, workers)
		chunk := (len(cases) + workers - 1) / workers
		var eg errgroup.Group
		for w := 0; w < workers; w++ {
			lo := w * chunk
			hi := lo + chunk
			if hi > len(cases) {
				hi = len(cases)
			}
			if lo >= hi {
				parts[w] = newPartial()
				continue
			}
			w, lo, hi := w, lo, hi
			eg.Go(func() error {
				parts[w] = evaluateUsers(model, cases[lo:hi])
				return parts[w].err
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}
	}

	merged := newPartial()
	for _, p := range parts {
		merged.recall += p.recall
		merged.precision += p.precision
		merged.valid += p.valid
		for id := range p.covered {
			merged.covered[id] = struct{}{}
		}
		for code, n := range p.skipped {
			merged.skipped[code] += n
		}
	}

	if merged.valid == 0 {
		return nil, core.NewDomainError(core.ModuleEval, core.ErrorCodeNoValidUsers,
			"eval: no test user could be evaluated, refusing to divide by zero")
	}

	return &Metrics{
		Recall:     merged.recall / float64(merged.valid),
		Precision:  merged.precision / float64(merged.valid),
		Coverage:   float64(len(merged.covered)) / float64(model.NumItems()),
		ValidUsers: merged.valid,
		TestUsers:  len(cases),
		Skipped:    merged.skipped,
	}, nil
}

// evaluateUsers 顺序评估一批用户，返回局部累加结果。
func evaluateUsers(model core.Recommender, cases []userCase) *partial {
	p := newPartial()
	for _, c := range cases {
		reco, err := model.MakeRecommendation(c.userID)
		if err != nil {
			if core.IsRecoverable(err) {
				p.skipped[core.GetDomainError(err).Code]++
				continue
			}
			p.err = err
			return p
		}
		hits := 0
		for _, itemID := range reco {
			if _, ok := c.trueItems[itemID]; ok {
				hits++
			}
			p.covered[itemID] = struct{}{}
		}
		p.recall += float64(hits) / float64(len(c.trueItems))
		p.precision += float64(hits) / float64(len(reco))
		p.valid++
	}
	return p
}

// groupByUser 把测试事件按用户聚合成真实物品集合，
// 用户顺序取首次出现的顺序，保证顺序与并行评估的用户集合一致。
func groupByUser(test []core.Event) []userCase {
	order := make([]int64, 0)
	byUser := make(map[int64]map[int64]struct{})
	for _, e := range test {
		items, ok := byUser[e.UserID]
		if !ok {
			items = make(map[int64]struct{})
			byUser[e.UserID] = items
			order = append(order, e.UserID)
		}
		items[e.ItemID] = struct{}{}
	}
	cases := make([]userCase, 0, len(order))
	for _, userID := range order {
		cases = append(cases, userCase{userID: userID, trueItems: byUser[userID]})
	}
	return cases
}
