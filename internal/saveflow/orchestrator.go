// Package saveflow 编排 Prompt 的保存流程：校验、权限、冲突检测、写入与附属步骤
package saveflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"promptlib/internal/apperr"
	"promptlib/internal/conflict"
	"promptlib/internal/metrics"
	"promptlib/internal/notification"
	"promptlib/internal/permission"
	"promptlib/internal/prompt"
	"promptlib/internal/retry"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var (
	ErrSaveInProgress   = errors.New("saveflow: a save is already in progress")
	ErrNothingToRetry   = errors.New("saveflow: nothing to retry")
	ErrRetriesExhausted = errors.New("saveflow: retry budget exhausted")

	errSnapshotNotCreated = errors.New("saveflow: snapshot collaborator reported no success")
)

// FormValidator 表单校验
type FormValidator interface {
	Validate(ctx context.Context, f *prompt.Form) error
}

// RecordMutator 主记录写入
type RecordMutator interface {
	Create(ctx context.Context, ownerID string, p *prompt.Prompt) (*prompt.Prompt, error)
	Update(ctx context.Context, id string, patch *prompt.Patch) error
}

// RecordReader 读取权威记录
type RecordReader interface {
	FetchByID(ctx context.Context, id string) (*prompt.Prompt, error)
}

// ShareLister 列出显式共享
type ShareLister interface {
	ListByPrompt(ctx context.Context, promptID string) ([]prompt.Share, error)
}

// VariableReplacer 整组替换变量
type VariableReplacer interface {
	ReplaceAll(ctx context.Context, promptID string, vars []prompt.Variable) error
}

// SnapshotCreator 创建首个版本快照，服务端保证幂等
type SnapshotCreator interface {
	CreateInitial(ctx context.Context, promptID, content string, vars []prompt.Variable) (*prompt.SnapshotResult, error)
}

// ActorSource 当前操作者
type ActorSource interface {
	CurrentActor(ctx context.Context) (string, bool)
}

// ActorFunc 函数形式的 ActorSource
type ActorFunc func(ctx context.Context) (string, bool)

func (f ActorFunc) CurrentActor(ctx context.Context) (string, bool) { return f(ctx) }

// Invalidator 保存成功后失效列表等查询缓存
type Invalidator interface {
	Invalidate(ctx context.Context, promptID string) error
}

// RepairQueue 快照失败后延迟补建，content 与 vars 为首次写入时的内容
type RepairQueue interface {
	EnqueueSnapshotRepair(ctx context.Context, promptID, userID, content string, vars []prompt.Variable) error
}

// Deps 编排器依赖，Validator、Records、Reader、Actors 必填
type Deps struct {
	Validator   FormValidator
	Records     RecordMutator
	Reader      RecordReader
	Shares      ShareLister
	Variables   VariableReplacer
	Snapshots   SnapshotCreator
	Actors      ActorSource
	Notifier    notification.Notifier
	Invalidator Invalidator
	Repairs     RepairQueue
	Logger      *zap.Logger
}

// Config 超时与重试配置
type Config struct {
	MaxAttempts      int
	LookupTimeout    time.Duration
	PersistTimeout   time.Duration
	VariablesTimeout time.Duration
	SnapshotTimeout  time.Duration
	// SnapshotBackoff 快照重试的初始间隔
	SnapshotBackoff time.Duration
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		MaxAttempts:      retry.MaxAttempts,
		LookupTimeout:    5 * time.Second,
		PersistTimeout:   10 * time.Second,
		VariablesTimeout: 10 * time.Second,
		SnapshotTimeout:  10 * time.Second,
		SnapshotBackoff:  200 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.LookupTimeout <= 0 {
		c.LookupTimeout = d.LookupTimeout
	}
	if c.PersistTimeout <= 0 {
		c.PersistTimeout = d.PersistTimeout
	}
	if c.VariablesTimeout <= 0 {
		c.VariablesTimeout = d.VariablesTimeout
	}
	if c.SnapshotTimeout <= 0 {
		c.SnapshotTimeout = d.SnapshotTimeout
	}
	if c.SnapshotBackoff <= 0 {
		c.SnapshotBackoff = d.SnapshotBackoff
	}
	return c
}

// Orchestrator 保存流程编排器，长生命周期，可被多个 Session 共享
type Orchestrator struct {
	deps   Deps
	cfg    Config
	guard  *conflict.Guard
	logger *zap.Logger
	tracer trace.Tracer
}

// New 创建编排器
func New(deps Deps, cfg Config) (*Orchestrator, error) {
	if deps.Validator == nil || deps.Records == nil || deps.Reader == nil || deps.Actors == nil {
		return nil, fmt.Errorf("saveflow: validator, records, reader and actors are required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	return &Orchestrator{
		deps:   deps,
		cfg:    cfg,
		guard:  conflict.NewGuard(deps.Reader, deps.Logger, cfg.LookupTimeout),
		logger: deps.Logger,
		tracer: otel.Tracer("promptlib/internal/saveflow"),
	}, nil
}

// CheckPermission 编辑前检查 actor 能否保存 recordID
func (o *Orchestrator) CheckPermission(ctx context.Context, actor, recordID string) (*permission.SaveCheck, error) {
	if actor == "" {
		check := permission.CheckSave("", nil, nil)
		return &check, nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, o.cfg.LookupTimeout)
	defer cancel()

	record, err := o.deps.Reader.FetchByID(lookupCtx, recordID)
	if err != nil {
		if errors.Is(err, prompt.ErrNotFound) {
			check := permission.CheckSave(actor, nil, nil)
			return &check, nil
		}
		return nil, fmt.Errorf("load prompt: %w", err)
	}

	var shares []prompt.Share
	if o.deps.Shares != nil {
		shares, err = o.deps.Shares.ListByPrompt(lookupCtx, recordID)
		if err != nil {
			return nil, fmt.Errorf("load shares: %w", err)
		}
	}

	check := permission.CheckSave(actor, record, shares)
	return &check, nil
}

// run 执行一次完整的保存尝试
func (o *Orchestrator) run(ctx context.Context, in Input) *Outcome {
	out := &Outcome{Mode: in.Mode, RecordID: in.RecordID}

	ctx, span := o.tracer.Start(ctx, "saveflow.Save")
	defer span.End()
	span.SetAttributes(
		attribute.String("save.mode", string(in.Mode)),
		attribute.String("save.record_id", in.RecordID),
	)

	actor, _ := o.deps.Actors.CurrentActor(ctx)
	log := o.logger.With(zap.String("mode", string(in.Mode)), zap.String("user_id", actor))
	if in.RecordID != "" {
		log = log.With(zap.String("prompt_id", in.RecordID))
	}

	defer func() {
		metrics.SaveAttemptsTotal.WithLabelValues(string(in.Mode), string(out.State)).Inc()
		if out.Failure != nil {
			metrics.SaveFailuresTotal.WithLabelValues(string(in.Mode), string(out.Failure.Kind)).Inc()
			span.SetStatus(codes.Error, string(out.Failure.Kind))
			if out.Failure.Err != nil {
				span.RecordError(out.Failure.Err)
			}
		}
		span.SetAttributes(attribute.String("save.state", string(out.State)))
	}()

	// VALIDATING
	o.enter(span, out, StateValidating)
	if f := o.validate(ctx, in, actor); f != nil {
		return o.abort(ctx, log, out, actor, f)
	}

	if in.Mode == ModeEdit {
		// PERMISSION_CHECK
		o.enter(span, out, StatePermissionCheck)
		check, err := o.CheckPermission(ctx, actor, in.RecordID)
		if err != nil {
			return o.abort(ctx, log, out, actor, failureFrom(err))
		}
		if !check.CanSave {
			return o.abort(ctx, log, out, actor, permissionFailure(check.Reason))
		}

		// CONFLICT_CHECK
		o.enter(span, out, StateConflictCheck)
		res := o.guard.Check(ctx, in.RecordID, in.ClientUpdatedAt)
		if res.HasConflict {
			return o.abort(ctx, log, out, actor, &Failure{
				Kind:            apperr.KindConflict,
				Message:         apperr.Message(apperr.KindConflict),
				ServerUpdatedAt: res.ServerUpdatedAt,
				ReloadRequired:  true,
				Err:             apperr.ErrConflict,
			})
		}
	}

	// PERSISTING
	o.enter(span, out, StatePersisting)
	recordID, err := o.persist(ctx, in, actor)
	if err != nil {
		o.enter(span, out, StateFailed)
		out.Failure = failureFrom(err)
		log.Warn("保存失败", zap.String("kind", string(out.Failure.Kind)), zap.Error(err))
		o.notifyError(ctx, actor, out)
		return out
	}
	out.RecordID = recordID
	out.Created = in.Mode == ModeCreate

	// SIDE_EFFECTS
	o.enter(span, out, StateSideEffects)
	o.sideEffects(ctx, log, out, in, actor)

	// DONE
	o.enter(span, out, StateDone)
	out.HighlightID = recordID
	log.Info("保存成功", zap.String("prompt_id", recordID), zap.Int("warnings", len(out.Warnings)))

	if ctx.Err() == nil && o.deps.Notifier != nil {
		o.deps.Notifier.Success(ctx, actor, notification.Notice{
			Title:    "Prompt saved",
			Message:  successMessage(out),
			PromptID: recordID,
		})
	}
	o.invalidate(ctx, log, out)
	return out
}

func (o *Orchestrator) validate(ctx context.Context, in Input, actor string) *Failure {
	if in.Form == nil {
		return &Failure{
			Kind:        apperr.KindValidation,
			Message:     apperr.Message(apperr.KindValidation),
			FieldErrors: map[string]string{"form": "form is required"},
		}
	}
	if in.Mode != ModeCreate && in.Mode != ModeEdit {
		return &Failure{
			Kind:        apperr.KindValidation,
			Message:     apperr.Message(apperr.KindValidation),
			FieldErrors: map[string]string{"mode": fmt.Sprintf("unknown save mode %q", in.Mode)},
		}
	}
	if in.Mode == ModeEdit && in.RecordID == "" {
		return &Failure{
			Kind:        apperr.KindValidation,
			Message:     apperr.Message(apperr.KindValidation),
			FieldErrors: map[string]string{"id": "record id is required when editing"},
		}
	}

	if err := o.deps.Validator.Validate(ctx, in.Form); err != nil {
		return failureFrom(err)
	}

	if actor == "" {
		return permissionFailure(permission.ReasonNotAuthenticated)
	}
	return nil
}

func (o *Orchestrator) persist(ctx context.Context, in Input, actor string) (string, error) {
	ctx, span := o.tracer.Start(ctx, "saveflow.persist")
	defer span.End()

	persistCtx, cancel := context.WithTimeout(ctx, o.cfg.PersistTimeout)
	defer cancel()

	if in.Mode == ModeCreate {
		rec, err := o.deps.Records.Create(persistCtx, actor, in.Form.Record())
		if err != nil {
			span.RecordError(err)
			return "", err
		}
		return rec.ID, nil
	}

	if err := o.deps.Records.Update(persistCtx, in.RecordID, in.Form.Patch()); err != nil {
		span.RecordError(err)
		return "", err
	}
	return in.RecordID, nil
}

// sideEffects 替换变量并在新建时创建首个快照，失败只记录告警
//
// 主记录已经写入，调用方离开后这些步骤仍需完成，因此脱离调用方的取消信号。
func (o *Orchestrator) sideEffects(ctx context.Context, log *zap.Logger, out *Outcome, in Input, actor string) {
	advisory := context.WithoutCancel(ctx)
	advisory, span := o.tracer.Start(advisory, "saveflow.sideEffects")
	defer span.End()

	vars := in.Form.VariableRecords()

	if o.deps.Variables != nil {
		start := time.Now()
		varCtx, cancel := context.WithTimeout(advisory, o.cfg.VariablesTimeout)
		err := o.deps.Variables.ReplaceAll(varCtx, out.RecordID, vars)
		cancel()
		metrics.SaveStepDuration.WithLabelValues(StepVariables).Observe(time.Since(start).Seconds())
		if err != nil {
			log.Warn("变量更新失败", zap.String("prompt_id", out.RecordID), zap.Error(err))
			o.warn(ctx, actor, out, StepVariables, "Prompt saved, but its variables could not be updated.", err)
		}
	}

	if in.Mode != ModeCreate || o.deps.Snapshots == nil {
		return
	}

	start := time.Now()
	result, err := o.createSnapshot(advisory, out.RecordID, in.Form.Content, vars)
	metrics.SaveStepDuration.WithLabelValues(StepSnapshot).Observe(time.Since(start).Seconds())
	switch {
	case err != nil:
		log.Warn("初始版本创建失败", zap.String("prompt_id", out.RecordID), zap.Error(err))
	case result == nil || (!result.Success && !result.Skipped):
		err = errSnapshotNotCreated
		log.Warn("初始版本未创建", zap.String("prompt_id", out.RecordID))
	case result.Skipped:
		log.Debug("初始版本已存在，跳过", zap.String("prompt_id", out.RecordID))
		return
	default:
		return
	}

	o.warn(ctx, actor, out, StepSnapshot, "Prompt saved, but the initial version could not be created.", err)
	if o.deps.Repairs != nil {
		if qerr := o.deps.Repairs.EnqueueSnapshotRepair(advisory, out.RecordID, actor, in.Form.Content, vars); qerr != nil {
			log.Warn("初始版本补建任务入队失败", zap.String("prompt_id", out.RecordID), zap.Error(qerr))
		}
	}
}

// createSnapshot 在快照超时内按指数退避重试可重试的错误
func (o *Orchestrator) createSnapshot(ctx context.Context, promptID, content string, vars []prompt.Variable) (*prompt.SnapshotResult, error) {
	snapCtx, cancel := context.WithTimeout(ctx, o.cfg.SnapshotTimeout)
	defer cancel()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = o.cfg.SnapshotBackoff
	policy.MaxElapsedTime = o.cfg.SnapshotTimeout

	var result *prompt.SnapshotResult
	op := func() error {
		res, err := o.deps.Snapshots.CreateInitial(snapCtx, promptID, content, vars)
		if err != nil {
			if !apperr.Retryable(apperr.Classify(err)) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = res
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(policy, snapCtx)); err != nil {
		return nil, err
	}
	return result, nil
}

func (o *Orchestrator) invalidate(ctx context.Context, log *zap.Logger, out *Outcome) {
	if o.deps.Invalidator == nil {
		return
	}
	advisory, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.LookupTimeout)
	defer cancel()
	if err := o.deps.Invalidator.Invalidate(advisory, out.RecordID); err != nil {
		metrics.SaveWarningsTotal.WithLabelValues(StepCache).Inc()
		log.Warn("查询缓存失效失败", zap.String("prompt_id", out.RecordID), zap.Error(err))
	}
}

func (o *Orchestrator) warn(ctx context.Context, actor string, out *Outcome, step, message string, err error) {
	out.warn(step, message, err)
	metrics.SaveWarningsTotal.WithLabelValues(step).Inc()
	if ctx.Err() != nil || o.deps.Notifier == nil {
		return
	}
	o.deps.Notifier.Warn(ctx, actor, notification.Notice{
		Title:    "Saved with warnings",
		Message:  message,
		PromptID: out.RecordID,
		Data:     map[string]any{"step": step},
	})
}

func (o *Orchestrator) abort(ctx context.Context, log *zap.Logger, out *Outcome, actor string, f *Failure) *Outcome {
	o.enter(trace.SpanFromContext(ctx), out, StateAborted)
	out.Failure = f
	log.Info("保存已中止", zap.String("kind", string(f.Kind)), zap.String("reason", string(f.Reason)))
	o.notifyError(ctx, actor, out)
	return out
}

func (o *Orchestrator) notifyError(ctx context.Context, actor string, out *Outcome) {
	if ctx.Err() != nil || o.deps.Notifier == nil || out.Failure == nil {
		return
	}
	data := map[string]any{"kind": string(out.Failure.Kind)}
	if out.Failure.Reason != "" {
		data["reason"] = string(out.Failure.Reason)
	}
	if out.Failure.ReloadRequired {
		data["reload"] = true
	}
	if out.Failure.ServerUpdatedAt != nil {
		data["server_updated_at"] = out.Failure.ServerUpdatedAt.Format(time.RFC3339Nano)
	}
	o.deps.Notifier.Error(ctx, actor, notification.Notice{
		Title:    "Save failed",
		Message:  out.Failure.Message,
		PromptID: out.RecordID,
		Data:     data,
	})
}

// enter 进入新状态并记录上一状态的耗时
func (o *Orchestrator) enter(span trace.Span, out *Outcome, st State) {
	now := time.Now()
	if len(out.Trail) > 0 && !out.enteredAt.IsZero() {
		prev := out.Trail[len(out.Trail)-1]
		metrics.SaveStepDuration.WithLabelValues(string(prev)).Observe(now.Sub(out.enteredAt).Seconds())
	}
	out.State = st
	out.Trail = append(out.Trail, st)
	out.enteredAt = now
	span.AddEvent(string(st))
}

func failureFrom(err error) *Failure {
	kind := apperr.Classify(err)
	f := &Failure{Kind: kind, Message: apperr.Message(kind), Err: err}

	var fe interface{ FieldErrors() map[string]string }
	if kind == apperr.KindValidation && errors.As(err, &fe) {
		f.FieldErrors = fe.FieldErrors()
	}
	if kind == apperr.KindConflict {
		f.ReloadRequired = true
	}
	return f
}

func permissionFailure(reason permission.Reason) *Failure {
	msg := apperr.Message(apperr.KindPermission)
	switch reason {
	case permission.ReasonNotAuthenticated:
		msg = "Sign in to save prompts."
	case permission.ReasonNotFound:
		msg = "This prompt no longer exists."
	}
	return &Failure{
		Kind:    apperr.KindPermission,
		Message: msg,
		Reason:  reason,
		Err:     apperr.ErrPermissionDenied,
	}
}

func successMessage(out *Outcome) string {
	if out.Created {
		if len(out.Warnings) > 0 {
			return "Prompt created with warnings."
		}
		return "Prompt created."
	}
	if len(out.Warnings) > 0 {
		return "Prompt updated with warnings."
	}
	return "Prompt updated."
}
