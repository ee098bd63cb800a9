package eval

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// Row 是评估结果归档的一行：一个 (k, n) 配置对应一条记录。
type Row struct {
	K int
	N int
	Metrics
	EnsureNew bool
}

// ResultWriter 以追加方式把评估结果写进 CSV 文件。
// 文件首次创建时写表头，之后每次评估追加一行，方便跨配置对比。
type ResultWriter struct {
	path string
}

func NewResultWriter(path string) *ResultWriter {
	return &ResultWriter{path: path}
}

// Append 追加一行评估结果。
func (w *ResultWriter) Append(row Row) error {
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open result file: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat result file: %w", err)
	}

	cw := csv.NewWriter(f)
	if st.Size() == 0 {
		header := []string{"k", "n", "recall", "precision", "coverage", "ensure_new"}
		if err := cw.Write(header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	rec := []string{
		strconv.Itoa(row.K),
		strconv.Itoa(row.N),
		strconv.FormatFloat(row.Recall, 'f', -1, 64),
		strconv.FormatFloat(row.Precision, 'f', -1, 64),
		strconv.FormatFloat(row.Coverage, 'f', -1, 64),
		strconv.FormatBool(row.EnsureNew),
	}
	if err := cw.Write(rec); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	cw.Flush()
	return cw.Error()
}
