package cf

import "github.com/rushteam/cfkit/core"

// State 是 CF 模型的可持久化状态：用户表、物品表、相似度矩阵。
// 用户 CF 的 Sim 键是用户 id，物品 CF 的 Sim 键是物品 id，
// 三个部分各自独立序列化（见 snapshot 包）。
type State struct {
	Users map[int64]*core.User           `json:"users"`
	Items map[int64]*core.Item           `json:"items"`
	Sim   map[int64]map[int64]float64    `json:"sim"`
}
