package validator

import (
	"context"
	"sync"
	"time"
)

// Async 将校验器包装为异步校验器
//
// 异步校验器总是在同步校验器之后执行，优先级至少为 AsyncPriority。
// debounce 大于 0 时先等待该时长，期间 ctx 取消则按通过处理。
func Async(base Validator, debounce time.Duration) Validator {
	wrapped := base
	wrapped.Async = true
	if wrapped.priority() < AsyncPriority {
		wrapped.Priority = AsyncPriority
	}
	wrapped.Validate = func(ctx context.Context, value any, vctx Context) Result {
		if debounce > 0 {
			timer := time.NewTimer(debounce)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return Result{IsValid: true, Metadata: map[string]any{"cancelled": true}}
			case <-timer.C:
			}
		}
		return base.Validate(ctx, value, vctx)
	}
	return wrapped
}

// Debouncer 合并窗口期内的重复校验，只有最后一次调用真正执行
type Debouncer struct {
	wait time.Duration

	mu  sync.Mutex
	gen uint64
}

// NewDebouncer 创建 Debouncer
func NewDebouncer(wait time.Duration) *Debouncer {
	return &Debouncer{wait: wait}
}

// Wrap 返回一个经过防抖的异步校验器
//
// 被后续调用取代的校验直接返回通过，并在 Metadata 中标记 superseded。
func (d *Debouncer) Wrap(base Validator) Validator {
	wrapped := base
	wrapped.Async = true
	if wrapped.priority() < AsyncPriority {
		wrapped.Priority = AsyncPriority
	}
	wrapped.Validate = func(ctx context.Context, value any, vctx Context) Result {
		d.mu.Lock()
		d.gen++
		mine := d.gen
		d.mu.Unlock()

		timer := time.NewTimer(d.wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Result{IsValid: true, Metadata: map[string]any{"cancelled": true}}
		case <-timer.C:
		}

		d.mu.Lock()
		latest := d.gen
		d.mu.Unlock()
		if mine != latest {
			return Result{IsValid: true, Metadata: map[string]any{"superseded": true}}
		}
		return base.Validate(ctx, value, vctx)
	}
	return wrapped
}
