package cf

import (
	"fmt"
	"math"

	"github.com/rushteam/cfkit/core"
	"github.com/rushteam/cfkit/pkg/dsl"
)

// simEps 容忍归一化除法的浮点舍入；超出即判定计数逻辑有 bug。
const simEps = 1e-12

// UserCF 是基于用户的协同过滤模型（User-based CF）。
//
// 核心思想："兴趣相似的用户，喜欢相似的物品"
//
// 算法流程：
//  1. 过滤弱信号事件（浏览），扫描强信号交互构建实体表
//  2. 逐物品枚举其用户集合的两两组合，累加共现计数
//  3. 按两个用户覆盖物品数的几何平均归一化为余弦相似度
//  4. 推荐时取 TopK 相似用户，按相似度加权聚合候选物品，截取 TopN
//
// 相似度矩阵用 map 套 map 的稀疏结构表示：绝大多数用户对没有共同物品，
// 且用户 id 不必落在 0~N-1 的连续区间。矩阵每次 Fit 全量重建，
// 训练完成后只读。
type UserCF struct {
	// K 参与聚合的最相似用户数
	K int
	// N 最终推荐的物品数
	N int
	// EnsureNew 过滤目标用户已经交互过的物品
	EnsureNew bool
	// IIF 用 1/ln(1+物品热度) 抑制热门物品的共现贡献
	IIF bool
	// Workers 共现统计的并发分片数，<= 1 表示顺序执行
	Workers int
	// Filter 可选的候选过滤表达式，作用于打分之后、截断之前
	Filter *dsl.CandidateFilter

	declared []int64
	entities *core.EntityStore
	sim      map[int64]map[int64]float64
}

// NewUserCF 创建用户 CF 模型。
// allUserIDs 是预先声明的全量用户 id；即使其中某个用户没有任何
// 强信号交互，相似度矩阵也会为它保留一个空的子映射，而不是报错。
func NewUserCF(allUserIDs []int64, k, n int) *UserCF {
	return &UserCF{
		K:         k,
		N:         n,
		EnsureNew: true,
		declared:  append([]int64(nil), allUserIDs...),
	}
}

func (m *UserCF) Name() string { return "usercf" }

// NumItems 返回训练集中的物品总数（覆盖率的分母）。
func (m *UserCF) NumItems() int {
	if m.entities == nil {
		return 0
	}
	return len(m.entities.Items)
}

// Entities 返回模型持有的实体表（只读）。
func (m *UserCF) Entities() *core.EntityStore { return m.entities }

// Similarity 返回用户-用户相似度矩阵（只读）。
func (m *UserCF) Similarity() map[int64]map[int64]float64 { return m.sim }

// Fit 在一段训练事件上全量重建实体表与相似度矩阵。
// 浏览事件不参与共现统计；similarity(A,B) = 共现数 / sqrt(|A 物品数|·|B 物品数|)。
// 任何相似度超过 1 都说明计数有 bug（重复计数或分母未初始化），
// 直接失败而不是截断。
func (m *UserCF) Fit(events []core.Event) error {
	strong := core.FilterStrong(events)
	m.entities = core.BuildEntityStore(strong)

	sim := make(map[int64]map[int64]float64, len(m.declared)+len(m.entities.Users))
	for _, id := range m.declared {
		sim[id] = make(map[int64]float64)
	}
	for id := range m.entities.Users {
		if _, ok := sim[id]; !ok {
			sim[id] = make(map[int64]float64)
		}
	}

	counts := countCoOccurrence(userGroups(m.entities.Items, m.IIF), m.Workers)
	for userID, row := range counts {
		user := m.entities.Users[userID] // 计数来自实体表，必然存在
		for otherID, c := range row {
			other := m.entities.Users[otherID]
			s := c / math.Sqrt(float64(len(user.CoveredItems))*float64(len(other.CoveredItems)))
			if s > 1+simEps {
				return core.NewDomainError(core.ModuleCF, core.ErrorCodeSimilarityBound,
					fmt.Sprintf("cf: similarity %.6f between user %d and user %d exceeds 1", s, userID, otherID))
			}
			sim[userID][otherID] = s
		}
	}
	m.sim = sim
	return nil
}

// MakeRecommendation 为目标用户生成至多 N 个推荐物品 id。
// 纯读操作，不修改实体表与相似度矩阵。
func (m *UserCF) MakeRecommendation(userID int64) ([]int64, error) {
	if m.entities == nil {
		return nil, core.NewDomainError(core.ModuleCF, core.ErrorCodeInvalidInput,
			"cf: model has not been fitted")
	}
	target, ok := m.entities.Users[userID]
	if !ok {
		return nil, core.NewDomainError(core.ModuleCF, core.ErrorCodeUnknownUser,
			fmt.Sprintf("cf: user %d not seen in the training set", userID))
	}
	related := m.sim[userID]
	if len(related) == 0 {
		return nil, core.NewDomainError(core.ModuleCF, core.ErrorCodeNoSimilarUsers,
			fmt.Sprintf("cf: user %d has no common item with any other user", userID))
	}

	// TopK 相似用户；不足 K 个时全部参与
	neighbors := topIDs(related, m.K)

	// 隐式反馈的交互权重为 1，候选得分即各相似用户的相似度之和
	scores := make(map[int64]float64)
	for _, nbID := range neighbors {
		similarity := related[nbID]
		neighbor := m.entities.Users[nbID]
		for itemID := range neighbor.CoveredItems {
			if m.EnsureNew {
				if _, seen := target.CoveredItems[itemID]; seen {
					continue
				}
			}
			scores[itemID] += similarity
		}
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

// Export 导出可持久化的模型状态。
func (m *UserCF) Export() *State {
	if m.entities == nil {
		return nil
	}
	return &State{Users: m.entities.Users, Items: m.entities.Items, Sim: m.sim}
}

// Restore 从持久化状态恢复模型，替代一次 Fit。
func (m *UserCF) Restore(st *State) {
	m.entities = &core.EntityStore{
		Users: st.Users,
		Items: st.Items,
		Tags:  make(map[int64]*core.Tag),
	}
	m.sim = st.Sim
}
