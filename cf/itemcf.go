package cf

import (
	"fmt"
	"math"

	"github.com/rushteam/cfkit/core"
	"github.com/rushteam/cfkit/pkg/dsl"
)

// ItemCF 是基于物品的协同过滤模型（Item-based CF）。
//
// 核心思想："被同一批用户喜欢的物品，相互相似"
//
// 相似度矩阵建在物品维度：逐用户枚举其覆盖物品的两两组合累加共现，
// 再按两个物品热度的几何平均归一化。推荐时对目标用户的每个历史物品
// 取 TopK 相似物品，按相似度聚合打分。
//
// 与用户 CF 共享同一套数据与评估契约，可互换使用。
type ItemCF struct {
	// K 每个历史物品参考的最相似物品数
	K int
	// N 最终推荐的物品数
	N int
	// EnsureNew 过滤目标用户已经交互过的物品
	EnsureNew bool
	// IUF 用 1/ln(1+用户活跃度) 抑制重度用户的共现贡献
	IUF bool
	// Workers 共现统计的并发分片数，<= 1 表示顺序执行
	Workers int
	// Filter 可选的候选过滤表达式，作用于打分之后、截断之前
	Filter *dsl.CandidateFilter

	entities *core.EntityStore
	sim      map[int64]map[int64]float64
}

func NewItemCF(k, n int) *ItemCF {
	return &ItemCF{K: k, N: n, EnsureNew: true}
}

func (m *ItemCF) Name() string { return "itemcf" }

func (m *ItemCF) NumItems() int {
	if m.entities == nil {
		return 0
	}
	return len(m.entities.Items)
}

// Entities 返回模型持有的实体表（只读）。
func (m *ItemCF) Entities() *core.EntityStore { return m.entities }

// Similarity 返回物品-物品相似度矩阵（只读）。
func (m *ItemCF) Similarity() map[int64]map[int64]float64 { return m.sim }

// Fit 在一段训练事件上全量重建实体表与物品相似度矩阵。
// 归一化与越界检查的规则同用户 CF。
func (m *ItemCF) Fit(events []core.Event) error {
	strong := core.FilterStrong(events)
	m.entities = core.BuildEntityStore(strong)

	sim := make(map[int64]map[int64]float64, len(m.entities.Items))
	for id := range m.entities.Items {
		sim[id] = make(map[int64]float64)
	}

	counts := countCoOccurrence(itemGroups(m.entities.Users, m.IUF), m.Workers)
	for itemID, row := range counts {
		item := m.entities.Items[itemID]
		for otherID, c := range row {
			other := m.entities.Items[otherID]
			s := c / math.Sqrt(float64(len(item.CoveredUsers))*float64(len(other.CoveredUsers)))
			if s > 1+simEps {
				return core.NewDomainError(core.ModuleCF, core.ErrorCodeSimilarityBound,
					fmt.Sprintf("cf: similarity %.6f between item %d and item %d exceeds 1", s, itemID, otherID))
			}
			sim[itemID][otherID] = s
		}
	}
	m.sim = sim
	return nil
}

// MakeRecommendation 为目标用户生成至多 N 个推荐物品 id。
func (m *ItemCF) MakeRecommendation(userID int64) ([]int64, error) {
	if m.entities == nil {
		return nil, core.NewDomainError(core.ModuleCF, core.ErrorCodeInvalidInput,
			"cf: model has not been fitted")
	}
	target, ok := m.entities.Users[userID]
	if !ok {
		return nil, core.NewDomainError(core.ModuleCF, core.ErrorCodeUnknownUser,
			fmt.Sprintf("cf: user %d not seen in the training set", userID))
	}

	scores := make(map[int64]float64)
	hasNeighbor := false
	for itemID := range target.CoveredItems {
		related := m.sim[itemID]
		if len(related) == 0 {
			continue
		}
		hasNeighbor = true
		for _, nbID := range topIDs(related, m.K) {
			if m.EnsureNew {
				if _, seen := target.CoveredItems[nbID]; seen {
					continue
				}
			}
			scores[nbID] += related[nbID]
		}
	}
	if !hasNeighbor {
		return nil, core.NewDomainError(core.ModuleCF, core.ErrorCodeNoSimilarItems,
			fmt.Sprintf("cf: no item in user %d's history has any similar item", userID))
	}
	if len(scores) == 0 {
		return nil, core.NewDomainError(core.ModuleCF, core.ErrorCodeEmptyRanking,
			fmt.Sprintf("cf: every candidate item for user %d was filtered out", userID))
	}

	if m.Filter != nil {
		if err := m.Filter.Apply(scores); err != nil {
			return nil, err
		}
		if len(scores) == 0 {
			return nil, core.NewDomainError(core.ModuleCF, core.ErrorCodeEmptyRanking,
				fmt.Sprintf("cf: candidate filter rejected all items for user %d", userID))
		}
	}

	return topIDs(scores, m.N), nil
}

// Export 导出可持久化的模型状态（Sim 为物品-物品矩阵）。
func (m *ItemCF) Export() *State {
	if m.entities == nil {
		return nil
	}
	return &State{Users: m.entities.Users, Items: m.entities.Items, Sim: m.sim}
}

// Restore 从持久化状态恢复模型，替代一次 Fit。
func (m *ItemCF) Restore(st *State) {
	m.entities = &core.EntityStore{
		Users: st.Users,
		Items: st.Items,
		Tags:  make(map[int64]*core.Tag),
	}
	m.sim = st.Sim
}
