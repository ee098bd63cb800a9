// Package cfkit 是一个离线协同过滤推荐工具包（Collaborative Filtering Kit）。
//
// 设计要点：
// - 离线批处理：全量数据载入内存后一次性训练，模型训练完成即只读
// - 稀疏优先：相似度矩阵用 map 套 map 表示，不做 N×N 稠密分配
// - 契约统一：用户 CF / 物品 CF / LFM 共享同一套数据与评估契约
package cfkit

import "github.com/rushteam/cfkit/core"

// 轻量 facade：便于用户直接 import "cfkit" 使用核心抽象。
type Event = core.Event
type EventType = core.EventType
type Recommender = core.Recommender

const (
	EventView        = core.EventView
	EventAddToCart   = core.EventAddToCart
	EventTransaction = core.EventTransaction
)
