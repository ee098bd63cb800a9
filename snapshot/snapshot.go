// Package snapshot 把训练好的模型状态持久化到任意 core.Store 后端。
//
// 一个模型拆成三个独立工件：用户表、物品表、相似度矩阵，
// 各自包一层带版本号的 JSON 信封。任何一个工件缺失都视为
// "没有训练过的模型"，由调用方决定从头训练。
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rushteam/cfkit/cf"
	"github.com/rushteam/cfkit/core"
)

// Version 是快照格式的当前版本号，schema 变更时递增。
const Version = 1

const (
	artifactUsers = "users"
	artifactItems = "items"
	artifactSim   = "sim"
)

// ErrModelNotFound 表示请求的模型快照不完整或不存在。
// 可恢复：调用方据此从头训练。
var ErrModelNotFound = core.NewDomainError(core.ModuleSnapshot, core.ErrorCodeNotFound,
	"snapshot: model artifacts not found")

// IsModelNotFound 检查错误是否为模型快照缺失
func IsModelNotFound(err error) bool {
	domainErr := core.GetDomainError(err)
	if domainErr != nil && domainErr.Module == core.ModuleSnapshot {
		return domainErr.Code == core.ErrorCodeNotFound
	}
	return false
}

// envelope 是带版本号的序列化信封，保证旧快照在实现重写后仍可读或被明确拒绝。
type envelope struct {
	Version int             `json:"version"`
	Model   string          `json:"model"`
	Payload json.RawMessage `json:"payload"`
}

// Snapshotter 在 core.Store 之上读写模型快照。
type Snapshotter struct {
	Store core.Store

	// Prefix 是存储 key 前缀，实际 key 为 {Prefix}:{model}:{artifact}
	Prefix string
}

func New(s core.Store) *Snapshotter {
	return &Snapshotter{Store: s, Prefix: "cfkit:model"}
}

func (s *Snapshotter) key(model, artifact string) string {
	return s.Prefix + ":" + model + ":" + artifact
}

// Save 持久化一个模型状态的三个工件。
func (s *Snapshotter) Save(ctx context.Context, model string, st *cf.State) error {
	if st == nil {
		return core.NewDomainError(core.ModuleSnapshot, core.ErrorCodeInvalidInput,
			"snapshot: nothing to save, model has no state")
	}
	parts := []struct {
		artifact string
		payload  any
	}{
		{artifactUsers, st.Users},
		{artifactItems, st.Items},
		{artifactSim, st.Sim},
	}
	kvs := make(map[string][]byte, len(parts))
	for _, p := range parts {
		payload, err := json.Marshal(p.payload)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", p.artifact, err)
		}
		env, err := json.Marshal(envelope{Version: Version, Model: model, Payload: payload})
		if err != nil {
			return fmt.Errorf("marshal %s envelope: %w", p.artifact, err)
		}
		kvs[s.key(model, p.artifact)] = env
	}
	return s.Store.BatchSet(ctx, kvs)
}

// Load 读取模型状态；任何工件缺失都返回 ErrModelNotFound。
func (s *Snapshotter) Load(ctx context.Context, model string) (*cf.State, error) {
	keys := []string{
		s.key(model, artifactUsers),
		s.key(model, artifactItems),
		s.key(model, artifactSim),
	}
	got, err := s.Store.BatchGet(ctx, keys)
	if err != nil {
		return nil, err
	}

	st := &cf.State{}
	targets := []struct {
		artifact string
		into     any
	}{
		{artifactUsers, &st.Users},
		{artifactItems, &st.Items},
		{artifactSim, &st.Sim},
	}
	for _, tgt := range targets {
		raw, ok := got[s.key(model, tgt.artifact)]
		if !ok {
			return nil, ErrModelNotFound
		}
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, fmt.Errorf("decode %s envelope: %w", tgt.artifact, err)
		}
		if env.Version != Version {
			return nil, fmt.Errorf("snapshot version %d not supported (want %d)", env.Version, Version)
		}
		if env.Model != model {
			return nil, fmt.Errorf("snapshot model %q does not match %q", env.Model, model)
		}
		if err := json.Unmarshal(env.Payload, tgt.into); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", tgt.artifact, err)
		}
	}
	return st, nil
}

// Delete 删除一个模型的全部工件。
func (s *Snapshotter) Delete(ctx context.Context, model string) error {
	for _, artifact := range []string{artifactUsers, artifactItems, artifactSim} {
		if err := s.Store.Delete(ctx, s.key(model, artifact)); err != nil {
			return err
		}
	}
	return nil
}
