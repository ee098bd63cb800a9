package core

import "fmt"

// EventType 表示一次隐式交互的类型。
// Retailrocket 风格的事件日志只有三种行为：浏览、加购、成交。
type EventType int

const (
	EventView        EventType = iota + 1 // 浏览
	EventAddToCart                        // 加入购物车
	EventTransaction                      // 成交
)

// ParseEventType 解析事件日志中的行为字段。
// 未知的行为值视为脏数据，直接报错而不是静默丢弃。
func ParseEventType(s string) (EventType, error) {
	switch s {
	case "view":
		return EventView, nil
	case "addtocart":
		return EventAddToCart, nil
	case "transaction":
		return EventTransaction, nil
	default:
		return 0, fmt.Errorf("unknown event type %q", s)
	}
}

func (t EventType) String() string {
	switch t {
	case EventView:
		return "view"
	case EventAddToCart:
		return "addtocart"
	case EventTransaction:
		return "transaction"
	default:
		return fmt.Sprintf("event(%d)", int(t))
	}
}

// Strong 判断该行为是否为强信号。
// 浏览只代表曝光，不参与相似度计算；加购和成交才进入共现统计。
func (t EventType) Strong() bool {
	return t == EventAddToCart || t == EventTransaction
}

// Event 是一条用户-物品交互记录。
// 它只在构建实体表与相似度矩阵时短暂使用，不会被长期持有。
type Event struct {
	UserID    int64
	ItemID    int64
	Type      EventType
	Timestamp int64
}

// FilterStrong 返回强信号事件子集，保持原有顺序。
func FilterStrong(events []Event) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if e.Type.Strong() {
			out = append(out, e)
		}
	}
	return out
}
