package core

import "sort"

// User 是训练集中的一个用户记录。
// CoveredItems 记录该用户交互过的物品 id 及最近一次交互的时间戳。
// 只关心"是否交互过"时，直接做成员判断即可，时间戳不参与。
type User struct {
	ID           int64           `json:"id"`
	CoveredItems map[int64]int64 `json:"covered_items"`

	// TagsCount 记录该用户对各标签的使用次数（仅标签数据存在时填充）
	TagsCount map[int64]int `json:"tags_count,omitempty"`
}

// Item 是训练集中的一个物品记录。
// CoveredUsers 与 User.CoveredItems 互为镜像：
// 用户 U ∈ 物品 I 的 CoveredUsers ⟺ 物品 I ∈ 用户 U 的 CoveredItems。
type Item struct {
	ID           int64           `json:"id"`
	CoveredUsers map[int64]int64 `json:"covered_users"`

	TagsCount map[int64]int `json:"tags_count,omitempty"`
}

// TagItemCount 是标签维度下单个物品的使用计数。
type TagItemCount struct {
	ItemID int64 `json:"item_id"`
	Count  int   `json:"count"`
}

// Tag 是一个标签记录：总使用次数与按物品聚合的使用计数。
type Tag struct {
	ID         int64         `json:"id"`
	NUsed      int           `json:"n_used"`
	ItemsCount map[int64]int `json:"items_count"`

	// TopItems 是 ItemsCount 按计数降序的排序视图，由 Finalize 填充。
	// Go 的 map 无序，排序结果单独存一份。
	TopItems []TagItemCount `json:"top_items,omitempty"`
}

// EntityStore 持有训练集扫描出来的全部用户/物品/标签记录。
// 记录在首次出现时惰性创建，之后只增不删；
// User/Item 的所有权属于 EntityStore，相似度矩阵只保存 id。
type EntityStore struct {
	Users map[int64]*User `json:"users"`
	Items map[int64]*Item `json:"items"`
	Tags  map[int64]*Tag  `json:"tags,omitempty"`
}

func NewEntityStore() *EntityStore {
	return &EntityStore{
		Users: make(map[int64]*User),
		Items: make(map[int64]*Item),
		Tags:  make(map[int64]*Tag),
	}
}

// Add 记录一条交互：惰性创建 User/Item，并在两个方向写入交叉引用。
// 同一对 (用户, 物品) 多次交互时保留最近的时间戳；
// 新时间戳不严格更晚时保持原值不动。
func (s *EntityStore) Add(e Event) {
	user, ok := s.Users[e.UserID]
	if !ok {
		user = &User{ID: e.UserID, CoveredItems: make(map[int64]int64)}
		s.Users[e.UserID] = user
	}
	item, ok := s.Items[e.ItemID]
	if !ok {
		item = &Item{ID: e.ItemID, CoveredUsers: make(map[int64]int64)}
		s.Items[e.ItemID] = item
	}
	updateLatest(user.CoveredItems, e.ItemID, e.Timestamp)
	updateLatest(item.CoveredUsers, e.UserID, e.Timestamp)
}

// updateLatest 只在 ts 严格更晚时覆盖已记录的时间戳。
func updateLatest(dic map[int64]int64, id, ts int64) {
	if old, ok := dic[id]; ok && ts <= old {
		return
	}
	dic[id] = ts
}

// AddTagged 在 Add 的基础上额外累计标签用量：
// 标签总次数、标签下物品的次数、用户与物品各自的标签次数。
func (s *EntityStore) AddTagged(e Event, tagID int64) {
	s.Add(e)
	tag, ok := s.Tags[tagID]
	if !ok {
		tag = &Tag{ID: tagID, ItemsCount: make(map[int64]int)}
		s.Tags[tagID] = tag
	}
	tag.NUsed++
	tag.ItemsCount[e.ItemID]++

	user := s.Users[e.UserID]
	if user.TagsCount == nil {
		user.TagsCount = make(map[int64]int)
	}
	user.TagsCount[tagID]++

	item := s.Items[e.ItemID]
	if item.TagsCount == nil {
		item.TagsCount = make(map[int64]int)
	}
	item.TagsCount[tagID]++
}

// Finalize 在全量扫描结束后生成各标签的物品排序视图，
// 按计数降序，计数相同按物品 id 升序，保证结果可复现。
func (s *EntityStore) Finalize() {
	for _, tag := range s.Tags {
		top := make([]TagItemCount, 0, len(tag.ItemsCount))
		for itemID, count := range tag.ItemsCount {
			top = append(top, TagItemCount{ItemID: itemID, Count: count})
		}
		sort.Slice(top, func(i, j int) bool {
			if top[i].Count != top[j].Count {
				return top[i].Count > top[j].Count
			}
			return top[i].ItemID < top[j].ItemID
		})
		tag.TopItems = top
	}
}

// BuildEntityStore 扫描一段有序的事件序列并构建实体表。
// 调用方负责预先过滤脏数据与弱信号事件。
func BuildEntityStore(events []Event) *EntityStore {
	s := NewEntityStore()
	for _, e := range events {
		s.Add(e)
	}
	return s
}
