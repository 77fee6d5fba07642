package saveflow

import (
	"context"
	"sync"
	"time"

	"promptlib/internal/apperr"
	"promptlib/internal/metrics"
	"promptlib/internal/permission"
	"promptlib/internal/retry"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Session 一个编辑器上下文的保存会话
//
// 持有重试计数器和进行中标记，同一会话内的保存串行执行。
type Session struct {
	id        string
	o         *Orchestrator
	counter   *retry.Counter
	onSuccess func(recordID string)

	mu        sync.Mutex
	saving    bool
	lastInput *Input
	last      *Outcome
	touched   time.Time
}

// SessionOption 会话选项
type SessionOption func(*Session)

// WithOnSuccess 保存成功后的回调，例如关闭编辑器并刷新列表
func WithOnSuccess(fn func(recordID string)) SessionOption {
	return func(s *Session) { s.onSuccess = fn }
}

// WithSessionID 指定会话 ID
func WithSessionID(id string) SessionOption {
	return func(s *Session) { s.id = id }
}

// NewSession 创建保存会话
func (o *Orchestrator) NewSession(opts ...SessionOption) *Session {
	s := &Session{
		o:       o,
		counter: retry.NewCounter(o.cfg.MaxAttempts),
		touched: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = uuid.New().String()
	}
	return s
}

// ID 会话 ID
func (s *Session) ID() string {
	return s.id
}

// Attempts 当前用户操作已使用的尝试次数
func (s *Session) Attempts() int {
	return s.counter.Attempts()
}

// Last 最近一次保存结果
func (s *Session) Last() *Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Save 处理一次新的用户保存操作，重试计数从零开始
func (s *Session) Save(ctx context.Context, in Input) (*Outcome, error) {
	if !s.begin() {
		return nil, ErrSaveInProgress
	}
	defer s.end()

	s.counter.Reset()
	return s.attempt(ctx, in)
}

// Retry 以上次的输入重新执行，仅在上次失败可重试时有效
func (s *Session) Retry(ctx context.Context) (*Outcome, error) {
	if !s.begin() {
		return nil, ErrSaveInProgress
	}
	defer s.end()

	s.mu.Lock()
	last, in := s.last, s.lastInput
	s.mu.Unlock()

	if last == nil || in == nil || last.Failure == nil || !last.Failure.CanRetry {
		return nil, ErrNothingToRetry
	}
	return s.attempt(ctx, *in)
}

// CheckPermission 使用当前操作者检查保存权限
func (s *Session) CheckPermission(ctx context.Context, recordID string) (*permission.SaveCheck, error) {
	actor, _ := s.o.deps.Actors.CurrentActor(ctx)
	return s.o.CheckPermission(ctx, actor, recordID)
}

func (s *Session) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saving {
		return false
	}
	s.saving = true
	s.touched = time.Now()
	return true
}

func (s *Session) end() {
	s.mu.Lock()
	s.saving = false
	s.touched = time.Now()
	s.mu.Unlock()
}

func (s *Session) attempt(ctx context.Context, in Input) (*Outcome, error) {
	var out *Outcome
	if !s.counter.IncrementAndRetry(func() { out = s.o.run(ctx, in) }) {
		metrics.SaveRetriesExhaustedTotal.Inc()
		return nil, ErrRetriesExhausted
	}
	out.Attempt = s.counter.Attempts()

	// 只有主记录写入失败提供重试
	if f := out.Failure; f != nil && out.State == StateFailed && apperr.Retryable(f.Kind) {
		f.CanRetry = s.counter.CanRetry()
		if f.CanRetry {
			f.Retry = s.Retry
		} else {
			metrics.SaveRetriesExhaustedTotal.Inc()
			s.o.logger.Warn("保存重试次数已用尽",
				zap.String("session_id", s.id),
				zap.Int("attempts", out.Attempt))
		}
	}

	s.mu.Lock()
	s.lastInput = &in
	s.last = out
	s.mu.Unlock()

	if out.Saved() && s.onSuccess != nil {
		s.onSuccess(out.RecordID)
	}
	return out, nil
}

func (s *Session) idleSince() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched, s.saving
}

// Registry 按客户端会话 ID 保存会话，用于 HTTP 驱动的重试
type Registry struct {
	o   *Orchestrator
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry 创建会话注册表，ttl <= 0 时为 30 分钟
func NewRegistry(o *Orchestrator, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Registry{
		o:        o,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Acquire 返回 id 对应的会话，不存在时创建；id 为空时生成新 ID
func (r *Registry) Acquire(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok && id != "" {
		return s
	}
	s := r.o.NewSession(WithSessionID(id))
	r.sessions[s.ID()] = s
	metrics.SaveSessionsActive.Set(float64(len(r.sessions)))
	return s
}

// Detached 创建不登记的会话，之后可用 Keep 登记
func (r *Registry) Detached(id string) *Session {
	return r.o.NewSession(WithSessionID(id))
}

// Keep 登记会话；同 ID 已存在时保留原会话
func (r *Registry) Keep(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID()]; ok {
		return
	}
	r.sessions[s.ID()] = s
	metrics.SaveSessionsActive.Set(float64(len(r.sessions)))
}

// Len 当前登记的会话数
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Get 查找已有会话
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Sweep 清理超过 TTL 未使用且不在保存中的会话，返回清理数量
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.ttl)
	removed := 0
	for id, s := range r.sessions {
		touched, saving := s.idleSince()
		if !saving && touched.Before(cutoff) {
			delete(r.sessions, id)
			removed++
		}
	}
	metrics.SaveSessionsActive.Set(float64(len(r.sessions)))
	return removed
}

// Run 定期清理过期会话，直到 ctx 结束
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.o.logger.Debug("清理过期保存会话", zap.Int("removed", n))
			}
		}
	}
}
