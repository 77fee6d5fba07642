// Package validator 提供按优先级排序的规则组合校验
package validator

import (
	"context"
	"sort"
	"strings"
)

const (
	// DefaultPriority 未指定优先级时的默认值
	DefaultPriority = 5
	// AsyncPriority 异步校验器的最低优先级，保证其在同步校验之后执行
	AsyncPriority = 8
)

// Context 校验上下文，通常为整条记录的字段视图，校验器只读
type Context map[string]any

// Get 读取上下文字段
func (c Context) Get(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c[key]
	return v, ok
}

// Result 单个校验器的执行结果
type Result struct {
	IsValid  bool
	Error    string
	Field    string
	Metadata map[string]any
}

// Pass 校验通过
func Pass() Result {
	return Result{IsValid: true}
}

// Fail 校验失败
func Fail(msg string) Result {
	return Result{IsValid: false, Error: msg}
}

// Func 校验函数签名
type Func func(ctx context.Context, value any, vctx Context) Result

// Validator 校验规则
//
// Priority 越小越先执行。字面量构造且未设置时视为 DefaultPriority，
// 经 WithPriority 显式设置的 0 保持为 0。
// StopOnFailure 为 true 时失败即终止后续所有校验。
type Validator struct {
	Name          string
	Priority      int
	StopOnFailure bool
	Async         bool
	Validate      Func

	prioritySet bool
}

// Option 校验器选项
type Option func(*Validator)

// WithPriority 设置优先级
func WithPriority(p int) Option {
	return func(v *Validator) {
		v.Priority = p
		v.prioritySet = true
	}
}

// StopOnFailure 失败后终止
func StopOnFailure() Option {
	return func(v *Validator) { v.StopOnFailure = true }
}

// New 创建校验器
func New(name string, fn Func, opts ...Option) Validator {
	v := Validator{Name: name, Priority: DefaultPriority, Validate: fn}
	for _, opt := range opts {
		opt(&v)
	}
	return v
}

func (v Validator) priority() int {
	if v.Priority == 0 && !v.prioritySet {
		return DefaultPriority
	}
	return v.Priority
}

// Outcome 组合校验结果
type Outcome struct {
	IsValid     bool
	Errors      map[string]string
	FailedNames []string
}

// Err 校验失败时返回 *Errors，否则返回 nil
func (o Outcome) Err() error {
	if o.IsValid {
		return nil
	}
	return &Errors{Fields: o.Errors, Failed: o.FailedNames}
}

// Errors 结构化的字段校验错误
type Errors struct {
	Fields map[string]string
	Failed []string
}

// Error 实现 error
func (e *Errors) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// FieldErrors 返回字段错误映射
func (e *Errors) FieldErrors() map[string]string {
	return e.Fields
}

// ordered 返回排序后的副本：同步校验在前，各组内按优先级稳定排序
func ordered(validators []Validator) []Validator {
	sorted := make([]Validator, len(validators))
	copy(sorted, validators)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Async != sorted[j].Async {
			return !sorted[i].Async
		}
		return sorted[i].priority() < sorted[j].priority()
	})
	return sorted
}
