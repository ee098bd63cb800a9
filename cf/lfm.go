package cf

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"github.com/rushteam/cfkit/core"
)

// LFM 是隐语义模型（Latent Factor Model）。
//
// 把用户-物品交互矩阵分解为用户隐向量 p 和物品隐向量 q，
// 预测分数 = sigmoid(p · q)。隐式反馈没有天然负样本，
// 按物品热度采样负例：热门却从未被交互过的物品，更可能是真的不感兴趣。
//
// 训练用 SGD 最小化带 L2 正则的平方损失，学习率逐轮衰减。
// 与 CF 模型共享同一套数据与评估契约。
type LFM struct {
	// N 最终推荐的物品数
	N int
	// Factors 隐向量维度
	Factors int
	// Epochs 训练轮数
	Epochs int
	// LearningRate 初始学习率
	LearningRate float64
	// Lambda L2 正则系数
	Lambda float64
	// NegRatio 每个正样本采样的负样本数
	NegRatio int
	// EnsureNew 过滤目标用户已经交互过的物品
	EnsureNew bool
	// Seed 随机种子；种子相同则训练结果可复现
	Seed int64

	entities *core.EntityStore
	p        map[int64][]float64
	q        map[int64][]float64
	pool     []int64 // 按热度重复的物品池，负采样用
}

func NewLFM(n int) *LFM {
	return &LFM{
		N:            n,
		Factors:      16,
		Epochs:       10,
		LearningRate: 0.02,
		Lambda:       0.01,
		NegRatio:     3,
		EnsureNew:    true,
		Seed:         1,
	}
}

func (m *LFM) Name() string { return "lfm" }

func (m *LFM) NumItems() int {
	if m.entities == nil {
		return 0
	}
	return len(m.entities.Items)
}

// Fit 在一段训练事件上训练隐向量。
// 用户与物品按 id 升序遍历，种子固定时两次训练结果完全一致。
func (m *LFM) Fit(events []core.Event) error {
	strong := core.FilterStrong(events)
	if len(strong) == 0 {
		return core.NewDomainError(core.ModuleCF, core.ErrorCodeInvalidInput,
			"cf: no strong-signal event to train on")
	}
	m.entities = core.BuildEntityStore(strong)

	rng := rand.New(rand.NewSource(m.Seed))
	scale := 1 / math.Sqrt(float64(m.Factors))

	userIDs := sortedUserKeys(m.entities.Users)
	itemIDs := sortedKeys(m.entities.Items)

	m.p = make(map[int64][]float64, len(userIDs))
	for _, id := range userIDs {
		m.p[id] = randomVector(rng, m.Factors, scale)
	}
	m.q = make(map[int64][]float64, len(itemIDs))
	for _, id := range itemIDs {
		m.q[id] = randomVector(rng, m.Factors, scale)
	}

	// 物品池里每条强信号交互出现一次，热门物品被采到的概率更高
	m.pool = make([]int64, 0, len(strong))
	for _, e := range strong {
		m.pool = append(m.pool, e.ItemID)
	}

	lr := m.LearningRate
	for epoch := 0; epoch < m.Epochs; epoch++ {
		for _, userID := range userIDs {
			user := m.entities.Users[userID]
			for _, s := range m.sampleTraining(user, rng) {
				pu, qi := m.p[userID], m.q[s.itemID]
				pred := sigmoid(floats.Dot(pu, qi))
				e := s.label - pred
				for f := 0; f < m.Factors; f++ {
					puf, qif := pu[f], qi[f]
					pu[f] += lr * (e*qif - m.Lambda*puf)
					qi[f] += lr * (e*puf - m.Lambda*qif)
				}
			}
		}
		lr *= 0.9
	}
	return nil
}

type lfmSample struct {
	itemID int64
	label  float64
}

// sampleTraining 为一个用户构造训练样本：全部正样本加上按热度采样的负样本。
// 采样次数有上限，物品池被该用户覆盖殆尽时负样本可以不足额。
func (m *LFM) sampleTraining(user *core.User, rng *rand.Rand) []lfmSample {
	positives := sortedIDs(user.CoveredItems)
	samples := make([]lfmSample, 0, len(positives)*(1+m.NegRatio))
	for _, itemID := range positives {
		samples = append(samples, lfmSample{itemID: itemID, label: 1})
	}

	want := len(positives) * m.NegRatio
	picked := make(map[int64]struct{}, want)
	for attempt := 0; attempt < want*3 && len(picked) < want; attempt++ {
		itemID := m.pool[rng.Intn(len(m.pool))]
		if _, seen := user.CoveredItems[itemID]; seen {
			continue
		}
		if _, dup := picked[itemID]; dup {
			continue
		}
		picked[itemID] = struct{}{}
		samples = append(samples, lfmSample{itemID: itemID, label: 0})
	}
	return samples
}

// MakeRecommendation 为目标用户对全量候选物品做点积打分，截取 TopN。
func (m *LFM) MakeRecommendation(userID int64) ([]int64, error) {
	if m.entities == nil {
		return nil, core.NewDomainError(core.ModuleCF, core.ErrorCodeInvalidInput,
			"cf: model has not been fitted")
	}
	pu, ok := m.p[userID]
	if !ok {
		return nil, core.NewDomainError(core.ModuleCF, core.ErrorCodeUnknownUser,
			fmt.Sprintf("cf: user %d not seen in the training set", userID))
	}
	user := m.entities.Users[userID]

	scores := make(map[int64]float64, len(m.q))
	for itemID, qi := range m.q {
		if m.EnsureNew {
			if _, seen := user.CoveredItems[itemID]; seen {
				continue
			}
		}
		scores[itemID] = floats.Dot(pu, qi)
	}
	if len(scores) == 0 {
		return nil, core.NewDomainError(core.ModuleCF, core.ErrorCodeEmptyRanking,
			fmt.Sprintf("cf: every candidate item for user %d was filtered out", userID))
	}
	return topIDs(scores, m.N), nil
}

func randomVector(rng *rand.Rand, dim int, scale float64) []float64 {
	v := make([]float64, dim)
	for i := range v {
		v[i] = rng.NormFloat64() * scale
	}
	return v
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
