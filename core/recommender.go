package core

// Recommender 是各召回模型（用户 CF / 物品 CF / LFM）共享的离线推荐契约。
// 实现必须是纯读操作：模型一旦训练完成即视为不可变，评估期间只读。
type Recommender interface {
	// Name 返回模型名（用于诊断输出与结果归档）
	Name() string

	// MakeRecommendation 为目标用户生成至多 n 个推荐物品 id（降序）。
	// 可恢复错误：UNKNOWN_USER / NO_SIMILAR_USERS / NO_SIMILAR_ITEMS / EMPTY_RANKING，
	// 评估层跳过该用户即可。
	MakeRecommendation(userID int64) ([]int64, error)

	// NumItems 返回训练集中的物品总数（覆盖率的分母）
	NumItems() int
}
