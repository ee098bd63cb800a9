// Package dataset 负责事件日志的 CSV 摄取与训练/测试切分。
// 日志按时间排列时，顺序切分即保证训练与测试在时间上不相交。
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rushteam/cfkit/core"
)

// ReadEvents 从 r 解析 Retailrocket 风格的事件日志。
// 按表头定位 timestamp / visitorid / event / itemid 四列（列序任意），
// 行序保持输入顺序。脏行（非整数 id、未知行为）直接报错，
// 下游的建模代码因此可以假定输入干净。
func ReadEvents(r io.Reader) ([]core.Event, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, want := range []string{"timestamp", "visitorid", "event", "itemid"} {
		if _, ok := col[want]; !ok {
			return nil, fmt.Errorf("missing column %q in header %v", want, header)
		}
	}

	var events []core.Event
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		line++

		ts, err := strconv.ParseInt(strings.TrimSpace(rec[col["timestamp"]]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad timestamp: %w", line, err)
		}
		userID, err := strconv.ParseInt(strings.TrimSpace(rec[col["visitorid"]]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad visitorid: %w", line, err)
		}
		itemID, err := strconv.ParseInt(strings.TrimSpace(rec[col["itemid"]]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad itemid: %w", line, err)
		}
		typ, err := core.ParseEventType(strings.TrimSpace(rec[col["event"]]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		events = append(events, core.Event{
			UserID:    userID,
			ItemID:    itemID,
			Type:      typ,
			Timestamp: ts,
		})
	}
	return events, nil
}

// LoadEvents 从文件读取事件日志。
func LoadEvents(path string) ([]core.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open events file: %w", err)
	}
	defer f.Close()
	return ReadEvents(f)
}

// Portion 截取前 portion 比例的事件，内存受限时用小数据集调参。
// portion 不在 (0, 1) 区间时返回全量。
func Portion(events []core.Event, portion float64) []core.Event {
	if portion <= 0 || portion >= 1 {
		return events
	}
	return events[:int(float64(len(events))*portion)]
}

// Split 按比例顺序切分训练/测试集，训练集在前。
func Split(events []core.Event, frac float64) (train, test []core.Event) {
	if frac <= 0 {
		return nil, events
	}
	if frac >= 1 {
		return events, nil
	}
	cut := int(float64(len(events)) * frac)
	return events[:cut], events[cut:]
}

// UniqueUsers 返回事件序列中的唯一用户 id，按首次出现排序。
// 训练前用它声明全量用户集合，只有弱信号的用户也会在
// 相似度矩阵中保留一个空的子映射。
func UniqueUsers(events []core.Event) []int64 {
	seen := make(map[int64]struct{}, len(events))
	out := make([]int64, 0)
	for _, e := range events {
		if _, ok := seen[e.UserID]; ok {
			continue
		}
		seen[e.UserID] = struct{}{}
		out = append(out, e.UserID)
	}
	return out
}
