package cf

import (
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/cfkit/core"
)

// accumulator 是两两共现权重的稀疏累加器。
// 显式创建、独立累加、最后合并，分片并行时每个分片持有自己的局部实例。
type accumulator map[int64]map[int64]float64

func (a accumulator) add(x, y int64, w float64) {
	row, ok := a[x]
	if !ok {
		row = make(map[int64]float64)
		a[x] = row
	}
	row[y] += w
}

func (a accumulator) merge(b accumulator) {
	for x, row := range b {
		for y, w := range row {
			a.add(x, y, w)
		}
	}
}

// pairGroup 是一次共现枚举的单位：组内成员两两共现一次，权重 weight。
// 用户 CF 的组是"一个物品的用户集合"，物品 CF 的组是"一个用户的物品集合"。
type pairGroup struct {
	members []int64
	weight  float64
}

// countPairs 枚举一批组内的全部无序对，向两个方向各累加一次。
// 复杂度是 Σ|组|²，物品热度（或用户活跃度）通常很小时远优于全量两两扫描。
func countPairs(groups []pairGroup) accumulator {
	acc := make(accumulator)
	for _, g := range groups {
		for i := 0; i < len(g.members)-1; i++ {
			for j := i + 1; j < len(g.members); j++ {
				a, b := g.members[i], g.members[j]
				acc.add(a, b, g.weight)
				acc.add(b, a, g.weight)
			}
		}
	}
	return acc
}

// countCoOccurrence 统计全部组的两两共现，workers > 1 时分片并行。
// 合并只是加法，分片结果与顺序版本一致（浮点求和顺序除外）。
func countCoOccurrence(groups []pairGroup, workers int) accumulator {
	if workers <= 1 || len(groups) < workers {
		return countPairs(groups)
	}

	parts := make([]accumulator, workers)
	chunk := (len(groups) + workers - 1) / workers
	var eg errgroup.Group
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > len(groups) {
			hi = len(groups)
		}
		if lo >= hi {
			parts[w] = make(accumulator)
			continue
		}
		w := w
		eg.Go(func() error {
			parts[w] = countPairs(groups[lo:hi])
			return nil
		})
	}
	_ = eg.Wait() // 分片闭包不产生错误

	acc := parts[0]
	for _, p := range parts[1:] {
		acc.merge(p)
	}
	return acc
}

// userGroups 把每个物品的用户集合转成共现组。
// IIF 时按 1/ln(1+物品热度) 衰减：热门物品说明不了两个用户兴趣相似。
// 物品与组内成员都按 id 升序排列，保证并行分片的切法稳定。
func userGroups(items map[int64]*core.Item, iif bool) []pairGroup {
	itemIDs := sortedKeys(items)
	groups := make([]pairGroup, 0, len(items))
	for _, id := range itemIDs {
		item := items[id]
		if len(item.CoveredUsers) < 2 {
			continue
		}
		w := 1.0
		if iif {
			w = 1 / math.Log(1+float64(len(item.CoveredUsers)))
		}
		groups = append(groups, pairGroup{members: sortedIDs(item.CoveredUsers), weight: w})
	}
	return groups
}

// itemGroups 把每个用户的物品集合转成共现组。
// IUF 时按 1/ln(1+用户活跃度) 衰减：重度用户的共现同样不可靠。
func itemGroups(users map[int64]*core.User, iuf bool) []pairGroup {
	userIDs := sortedUserKeys(users)
	groups := make([]pairGroup, 0, len(users))
	for _, id := range userIDs {
		user := users[id]
		if len(user.CoveredItems) < 2 {
			continue
		}
		w := 1.0
		if iuf {
			w = 1 / math.Log(1+float64(len(user.CoveredItems)))
		}
		groups = append(groups, pairGroup{members: sortedIDs(user.CoveredItems), weight: w})
	}
	return groups
}

func sortedKeys(m map[int64]*core.Item) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func sortedUserKeys(m map[int64]*core.User) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func sortedIDs(m map[int64]int64) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
