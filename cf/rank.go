package cf

import "sort"

type scored struct {
	id    int64
	score float64
}

// topIDs 把打分表按分数降序排序并截取前 n 个 id；n <= 0 表示不截断。
// 分数相同时按 id 升序，结果与 map 迭代顺序无关，保证可复现。
func topIDs(scores map[int64]float64, n int) []int64 {
	ranked := make([]scored, 0, len(scores))
	for id, s := range scores {
		ranked = append(ranked, scored{id: id, score: s})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].id < ranked[j].id
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	out := make([]int64, len(ranked))
	for i, r := range ranked {
		out[i] = r.id
	}
	return out
}
