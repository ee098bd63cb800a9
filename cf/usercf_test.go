package cf

import (
	"math"
	"reflect"
	"testing"

	"github.com/rushteam/cfkit/core"
)

const eps = 1e-9

func tx(userID, itemID int64) core.Event {
	return core.Event{UserID: userID, ItemID: itemID, Type: core.EventTransaction, Timestamp: 1}
}

func view(userID, itemID int64) core.Event {
	return core.Event{UserID: userID, ItemID: itemID, Type: core.EventView, Timestamp: 1}
}

// 三个用户、三个物品的基准场景：
// U1 覆盖 {101, 102}，U2 覆盖 {101, 102, 103}，U3 覆盖 {103}
func scenarioEvents() []core.Event {
	return []core.Event{
		tx(1, 101), tx(1, 102),
		tx(2, 101), tx(2, 102), tx(2, 103),
		tx(3, 103),
	}
}

func TestUserCF_SimilarityScenario(t *testing.T) {
	m := NewUserCF([]int64{1, 2, 3}, 80, 20)
	if err := m.Fit(scenarioEvents()); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	sim := m.Similarity()

	wantU1U2 := 2 / math.Sqrt(2*3)
	if got := sim[1][2]; math.Abs(got-wantU1U2) > eps {
		t.Errorf("sim(1,2) = %v, want %v", got, wantU1U2)
	}
	wantU2U3 := 1 / math.Sqrt(3*1)
	if got := sim[2][3]; math.Abs(got-wantU2U3) > eps {
		t.Errorf("sim(2,3) = %v, want %v", got, wantU2U3)
	}
	// 没有共同物品的用户对不存储相似度，缺席即 0
	if _, ok := sim[1][3]; ok {
		t.Errorf("sim(1,3) should be absent, got %v", sim[1][3])
	}
	// 对称性：sim(A,B) 与 sim(B,A) 完全相等
	for a, row := range sim {
		for b, s := range row {
			if back := sim[b][a]; back != s {
				t.Errorf("sim(%d,%d) = %v but sim(%d,%d) = %v", a, b, s, b, a, back)
			}
			if s <= 0 || s > 1+simEps {
				t.Errorf("sim(%d,%d) = %v out of (0, 1]", a, b, s)
			}
		}
	}
}

func TestUserCF_ViewEventsExcluded(t *testing.T) {
	// 只通过浏览共享物品的两个用户不产生相似度
	events := []core.Event{
		view(1, 101), view(2, 101),
		tx(1, 102), tx(2, 103),
	}
	m := NewUserCF([]int64{1, 2}, 10, 10)
	if err := m.Fit(events); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	if len(m.Similarity()[1]) != 0 || len(m.Similarity()[2]) != 0 {
		t.Errorf("view-only overlap produced similarity: %v", m.Similarity())
	}
}

func TestUserCF_DeclaredUserKeepsEmptyRow(t *testing.T) {
	// 用户 9 在声明的全量 id 集合里，但没有任何强信号事件
	m := NewUserCF([]int64{1, 2, 9}, 10, 10)
	if err := m.Fit(scenarioEvents()); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	row, ok := m.Similarity()[9]
	if !ok {
		t.Fatal("declared user 9 has no row in the similarity matrix")
	}
	if len(row) != 0 {
		t.Errorf("declared inactive user 9 has non-empty row: %v", row)
	}
}

func TestUserCF_FitIdempotent(t *testing.T) {
	m := NewUserCF([]int64{1, 2, 3}, 80, 20)
	if err := m.Fit(scenarioEvents()); err != nil {
		t.Fatalf("first Fit() error = %v", err)
	}
	first := m.Similarity()
	if err := m.Fit(scenarioEvents()); err != nil {
		t.Fatalf("second Fit() error = %v", err)
	}
	if !reflect.DeepEqual(first, m.Similarity()) {
		t.Error("rebuilding the similarity matrix from the same input changed the result")
	}
}

func TestUserCF_ParallelMatchesSequential(t *testing.T) {
	// 30 个用户、40 个物品的确定性交互模式
	var events []core.Event
	for u := int64(1); u <= 30; u++ {
		for i := int64(0); i < 6; i++ {
			events = append(events, tx(u, 1000+(u*3+i*7)%40))
		}
	}

	seq := NewUserCF(nil, 10, 10)
	if err := seq.Fit(events); err != nil {
		t.Fatalf("sequential Fit() error = %v", err)
	}
	par := NewUserCF(nil, 10, 10)
	par.Workers = 4
	if err := par.Fit(events); err != nil {
		t.Fatalf("parallel Fit() error = %v", err)
	}
	if !reflect.DeepEqual(seq.Similarity(), par.Similarity()) {
		t.Error("parallel co-occurrence accumulation diverged from the sequential reference")
	}
}

func TestUserCF_CoOccurrenceMatchesEnumeration(t *testing.T) {
	// 直接枚举验证：共现计数必须等于两个用户共同覆盖的物品数
	m := NewUserCF(nil, 10, 10)
	if err := m.Fit(scenarioEvents()); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	users := m.Entities().Users
	for a, row := range m.Similarity() {
		for b, s := range row {
			common := 0
			for itemID := range users[a].CoveredItems {
				if _, ok := users[b].CoveredItems[itemID]; ok {
					common++
				}
			}
			want := float64(common) / math.Sqrt(float64(len(users[a].CoveredItems))*float64(len(users[b].CoveredItems)))
			if math.Abs(s-want) > eps {
				t.Errorf("sim(%d,%d) = %v, want %v from direct enumeration", a, b, s, want)
			}
		}
	}
}

func TestUserCF_MakeRecommendationScenario(t *testing.T) {
	// k=1, n=2：U1 的 top-1 相似用户是 U2，
	// U2 的物品去掉 U1 已覆盖的 {101, 102} 后只剩 103
	m := NewUserCF([]int64{1, 2, 3}, 1, 2)
	if err := m.Fit(scenarioEvents()); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	got, err := m.MakeRecommendation(1)
	if err != nil {
		t.Fatalf("MakeRecommendation(1) error = %v", err)
	}
	if !reflect.DeepEqual(got, []int64{103}) {
		t.Errorf("MakeRecommendation(1) = %v, want [103]", got)
	}
}

func TestUserCF_RecommendationErrors(t *testing.T) {
	m := NewUserCF([]int64{1, 2, 3, 9}, 10, 10)
	if err := m.Fit(scenarioEvents()); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	t.Run("unknown user", func(t *testing.T) {
		_, err := m.MakeRecommendation(42)
		if !core.IsUnknownUser(err) {
			t.Errorf("MakeRecommendation(42) error = %v, want UNKNOWN_USER", err)
		}
		if !core.IsRecoverable(err) {
			t.Error("UNKNOWN_USER should be recoverable")
		}
	})

	t.Run("no similar users", func(t *testing.T) {
		// 用户 5 只交互过孤立物品，与任何人没有共同物品
		events := append(scenarioEvents(), tx(5, 999))
		m2 := NewUserCF(nil, 10, 10)
		if err := m2.Fit(events); err != nil {
			t.Fatalf("Fit() error = %v", err)
		}
		_, err := m2.MakeRecommendation(5)
		if !core.IsNoSimilarUsers(err) {
			t.Errorf("MakeRecommendation(5) error = %v, want NO_SIMILAR_USERS", err)
		}
	})

	t.Run("empty ranking after filtering", func(t *testing.T) {
		// U1 与 U4 覆盖完全相同的物品集合，开启 EnsureNew 后无可推荐
		events := []core.Event{
			tx(1, 101), tx(1, 102),
			tx(4, 101), tx(4, 102),
		}
		m2 := NewUserCF(nil, 10, 10)
		if err := m2.Fit(events); err != nil {
			t.Fatalf("Fit() error = %v", err)
		}
		_, err := m2.MakeRecommendation(1)
		if !core.IsEmptyRanking(err) {
			t.Errorf("MakeRecommendation(1) error = %v, want EMPTY_RANKING", err)
		}
	})

	t.Run("not fitted", func(t *testing.T) {
		m2 := NewUserCF(nil, 10, 10)
		if _, err := m2.MakeRecommendation(1); err == nil {
			t.Error("MakeRecommendation on an unfitted model should fail")
		}
	})
}

func TestUserCF_EnsureNewNeverRepeats(t *testing.T) {
	var events []core.Event
	for u := int64(1); u <= 10; u++ {
		for i := int64(0); i < 5; i++ {
			events = append(events, tx(u, 200+(u+i*3)%12))
		}
	}
	m := NewUserCF(nil, 5, 8)
	if err := m.Fit(events); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	for userID, user := range m.Entities().Users {
		reco, err := m.MakeRecommendation(userID)
		if err != nil {
			continue // 可恢复失败与本性质无关
		}
		if len(reco) > m.N {
			t.Errorf("user %d got %d items, more than n=%d", userID, len(reco), m.N)
		}
		for _, itemID := range reco {
			if _, seen := user.CoveredItems[itemID]; seen {
				t.Errorf("user %d was recommended already-covered item %d", userID, itemID)
			}
		}
	}
}

func TestUserCF_EnsureNewDisabled(t *testing.T) {
	m := NewUserCF(nil, 1, 10)
	m.EnsureNew = false
	if err := m.Fit(scenarioEvents()); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	got, err := m.MakeRecommendation(1)
	if err != nil {
		t.Fatalf("MakeRecommendation(1) error = %v", err)
	}
	// U2 的全部物品都可被推荐，包括 U1 已覆盖的
	if len(got) != 3 {
		t.Errorf("MakeRecommendation(1) = %v, want all 3 of U2's items", got)
	}
}

func TestUserCF_TieBreakAscendingID(t *testing.T) {
	// U2 与 U3 均只和 U1 共享一个物品且活跃度相同，得分并列，
	// 候选物品按 id 升序给出
	events := []core.Event{
		tx(1, 101), tx(1, 102),
		tx(2, 101), tx(2, 300),
		tx(3, 102), tx(3, 200),
	}
	m := NewUserCF(nil, 10, 10)
	if err := m.Fit(events); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	got, err := m.MakeRecommendation(1)
	if err != nil {
		t.Fatalf("MakeRecommendation(1) error = %v", err)
	}
	if !reflect.DeepEqual(got, []int64{200, 300}) {
		t.Errorf("MakeRecommendation(1) = %v, want [200 300] (score tie broken by id)", got)
	}
}

func TestUserCF_IIFDampensPopularItems(t *testing.T) {
	// U1 与 U2 只通过热门物品 101 关联；IIF 应把相似度压到普通共现之下
	events := []core.Event{
		tx(1, 101), tx(2, 101), tx(3, 101), tx(4, 101), tx(5, 101),
		tx(1, 102), tx(2, 103),
	}
	plain := NewUserCF(nil, 10, 10)
	if err := plain.Fit(events); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	iif := NewUserCF(nil, 10, 10)
	iif.IIF = true
	if err := iif.Fit(events); err != nil {
		t.Fatalf("IIF Fit() error = %v", err)
	}
	if got, want := iif.Similarity()[1][2], plain.Similarity()[1][2]; got >= want {
		t.Errorf("IIF similarity %v should be below plain similarity %v", got, want)
	}
}

func TestUserCF_ExportRestoreRoundTrip(t *testing.T) {
	m := NewUserCF([]int64{1, 2, 3}, 1, 2)
	if err := m.Fit(scenarioEvents()); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	want, err := m.MakeRecommendation(1)
	if err != nil {
		t.Fatalf("MakeRecommendation(1) error = %v", err)
	}

	restored := NewUserCF(nil, 1, 2)
	restored.Restore(m.Export())
	got, err := restored.MakeRecommendation(1)
	if err != nil {
		t.Fatalf("restored MakeRecommendation(1) error = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("restored model recommends %v, fitted model recommends %v", got, want)
	}
	if restored.NumItems() != m.NumItems() {
		t.Errorf("restored NumItems = %d, want %d", restored.NumItems(), m.NumItems())
	}
}
