// cfkit 命令行：在隐式反馈事件日志上训练协同过滤模型，并在
// 与训练期不相交的测试集上评估召回率/准确率/覆盖率。
//
// 用法：
//
//	cfkit -config run.yaml train         训练并保存模型快照
//	cfkit -config run.yaml -force train  忽略已有快照，强制重训
//	cfkit -config run.yaml eval          按配置的 (k, n) 网格评估
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rushteam/cfkit/cf"
	"github.com/rushteam/cfkit/config"
	"github.com/rushteam/cfkit/core"
	"github.com/rushteam/cfkit/dataset"
	"github.com/rushteam/cfkit/eval"
	"github.com/rushteam/cfkit/pkg/dsl"
	"github.com/rushteam/cfkit/snapshot"
	"github.com/rushteam/cfkit/store"
)

func main() {
	configPath := flag.String("config", "cfkit.yaml", "运行配置文件路径")
	force := flag.Bool("force", false, "忽略已有快照，强制重新训练")
	flag.Parse()

	cmd := flag.Arg(0)
	if cmd == "" {
		fmt.Fprintln(os.Stderr, "usage: cfkit [-config file] [-force] train|eval")
		os.Exit(2)
	}

	if err := run(cmd, *configPath, *force); err != nil {
		fmt.Fprintln(os.Stderr, "cfkit:", err)
		os.Exit(1)
	}
}

func run(cmd, configPath string, force bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	switch cmd {
	case "train":
		return runTrain(cfg, st, force)
	case "eval":
		return runEval(cfg, st)
	default:
		return fmt.Errorf("unknown command %q (want train or eval)", cmd)
	}
}

func openStore(cfg *config.Config) (core.Store, error) {
	switch cfg.Store.Backend {
	case "redis":
		return store.NewRedisStore(cfg.Store.Addr, cfg.Store.DB)
	default:
		return store.NewMemoryStore(), nil
	}
}

// cfModel 是用户 CF 与物品 CF 共有的可训练、可持久化接口。
type cfModel interface {
	core.Recommender
	Fit(events []core.Event) error
	Export() *cf.State
	Restore(st *cf.State)
}

func buildCFModel(cfg *config.Config, train []core.Event, k, n int) (cfModel, error) {
	var filter *dsl.CandidateFilter
	if cfg.Model.Filter != "" {
		var err error
		filter, err = dsl.NewCandidateFilter(cfg.Model.Filter)
		if err != nil {
			return nil, err
		}
	}
	switch cfg.Model.Family {
	case "itemcf":
		m := cf.NewItemCF(k, n)
		m.EnsureNew = cfg.EnsureNewEnabled()
		m.IUF = cfg.Model.IIF
		m.Workers = cfg.Model.Workers
		m.Filter = filter
		return m, nil
	default: // usercf
		m := cf.NewUserCF(dataset.UniqueUsers(train), k, n)
		m.EnsureNew = cfg.EnsureNewEnabled()
		m.IIF = cfg.Model.IIF
		m.Workers = cfg.Model.Workers
		m.Filter = filter
		return m, nil
	}
}

func loadTrainTest(cfg *config.Config) (train, test []core.Event, err error) {
	events, err := dataset.LoadEvents(cfg.Dataset.Path)
	if err != nil {
		return nil, nil, err
	}
	events = dataset.Portion(events, cfg.Dataset.Portion)
	train, test = dataset.Split(events, cfg.Dataset.Split)
	return train, test, nil
}

func runTrain(cfg *config.Config, st core.Store, force bool) error {
	name := cfg.ModelName()
	train, _, err := loadTrainTest(cfg)
	if err != nil {
		return err
	}
	fmt.Printf("[%s] %d training events loaded from %s\n", name, len(train), cfg.Dataset.Path)

	if cfg.Model.Family == "lfm" {
		m := buildLFM(cfg, cfg.Model.N)
		if err := m.Fit(train); err != nil {
			return err
		}
		fmt.Printf("[%s] lfm trained on %d items; snapshots not supported, eval retrains in memory\n",
			name, m.NumItems())
		return nil
	}

	ctx := context.Background()
	snap := snapshot.New(st)
	if !force {
		if _, err := snap.Load(ctx, name); err == nil {
			fmt.Printf("[%s] previous trained model found, nothing to do (use -force to retrain)\n", name)
			return nil
		} else if !snapshot.IsModelNotFound(err) {
			return err
		}
		fmt.Printf("[%s] previous trained model not found, start training a new one...\n", name)
	}

	model, err := buildCFModel(cfg, train, cfg.Model.K, cfg.Model.N)
	if err != nil {
		return err
	}
	if err := model.Fit(train); err != nil {
		return err
	}
	if err := snap.Save(ctx, name, model.Export()); err != nil {
		return err
	}
	fmt.Printf("[%s] model trained and saved to %s store\n", name, st.Name())
	return nil
}

func buildLFM(cfg *config.Config, n int) *cf.LFM {
	m := cf.NewLFM(n)
	m.EnsureNew = cfg.EnsureNewEnabled()
	return m
}

func runEval(cfg *config.Config, st core.Store) error {
	name := cfg.ModelName()
	train, test, err := loadTrainTest(cfg)
	if err != nil {
		return err
	}
	fmt.Printf("[%s] %d training events, %d test events\n", name, len(train), len(test))

	if dir := filepath.Dir(cfg.Eval.Output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create result dir: %w", err)
		}
	}
	writer := eval.NewResultWriter(cfg.Eval.Output)
	evaluator := &eval.Evaluator{Workers: cfg.Eval.Workers}
	ctx := context.Background()

	// 相似度矩阵与 (k, n) 无关：状态只训练/加载一次，网格逐点复用
	var state *cf.State
	var lfm *cf.LFM
	if cfg.Model.Family == "lfm" {
		lfm = buildLFM(cfg, cfg.Model.N)
		if err := lfm.Fit(train); err != nil {
			return err
		}
	} else {
		snap := snapshot.New(st)
		state, err = snap.Load(ctx, name)
		if snapshot.IsModelNotFound(err) {
			fmt.Printf("[%s] previous trained model not found, start training a new one...\n", name)
			model, buildErr := buildCFModel(cfg, train, cfg.Model.K, cfg.Model.N)
			if buildErr != nil {
				return buildErr
			}
			if fitErr := model.Fit(train); fitErr != nil {
				return fitErr
			}
			if saveErr := snap.Save(ctx, name, model.Export()); saveErr != nil {
				return saveErr
			}
			state = model.Export()
		} else if err != nil {
			return err
		}
	}

	for _, g := range cfg.Eval.Grid {
		var model core.Recommender
		if lfm != nil {
			lfm.N = g.N
			model = lfm
		} else {
			m, err := buildCFModel(cfg, train, g.K, g.N)
			if err != nil {
				return err
			}
			m.Restore(state)
			model = m
		}

		metrics, err := evaluator.Evaluate(model, test)
		if err != nil {
			return err
		}
		row := eval.Row{K: g.K, N: g.N, Metrics: *metrics, EnsureNew: cfg.EnsureNewEnabled()}
		if err := writer.Append(row); err != nil {
			return err
		}
		fmt.Printf("[%s] k=%d n=%d recall=%.4f precision=%.4f coverage=%.4f (valid users %d/%d)\n",
			name, g.K, g.N, metrics.Recall, metrics.Precision, metrics.Coverage,
			metrics.ValidUsers, metrics.TestUsers)
		for code, count := range metrics.Skipped {
			fmt.Printf("[%s]   skipped %d users: %s\n", name, count, code)
		}
	}
	return nil
}
