package validator

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Compose 按优先级顺序执行校验器并收集错误
//
// 每个字段只记录第一条错误；失败的 StopOnFailure 校验器会立即终止执行，
// 因此 "必填" 失败后长度类校验不会再对空值运行。
func Compose(ctx context.Context, value any, validators []Validator, vctx Context) Outcome {
	return composeField(ctx, "", value, validators, vctx)
}

func composeField(ctx context.Context, field string, value any, validators []Validator, vctx Context) Outcome {
	out := Outcome{IsValid: true, Errors: make(map[string]string)}

	for _, v := range ordered(validators) {
		if v.Validate == nil {
			continue
		}
		if v.Async && ctx.Err() != nil {
			break
		}

		res := v.Validate(ctx, value, vctx)
		if res.IsValid {
			continue
		}

		out.IsValid = false
		out.FailedNames = append(out.FailedNames, v.Name)

		key := res.Field
		if key == "" {
			key = field
		}
		if key == "" {
			key = v.Name
		}
		if _, exists := out.Errors[key]; !exists {
			msg := res.Error
			if msg == "" {
				msg = v.Name + " failed"
			}
			out.Errors[key] = msg
		}

		if v.StopOnFailure {
			break
		}
	}

	return out
}

// Field 字段级校验定义
type Field struct {
	Name       string
	Value      any
	Validators []Validator
}

// ComposeFieldValidators 对整条记录逐字段执行 Compose 并合并结果
//
// 各字段相互独立并发执行，合并顺序与 fields 的顺序一致。
func ComposeFieldValidators(ctx context.Context, fields []Field, vctx Context) Outcome {
	results := make([]Outcome, len(fields))

	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	for i, f := range fields {
		i, f := i, f
		g.Go(func() error {
			res := composeField(gctx, f.Name, f.Value, f.Validators, vctx)
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	merged := Outcome{IsValid: true, Errors: make(map[string]string)}
	for _, res := range results {
		if res.IsValid {
			continue
		}
		merged.IsValid = false
		merged.FailedNames = append(merged.FailedNames, res.FailedNames...)
		for k, msg := range res.Errors {
			if _, exists := merged.Errors[k]; !exists {
				merged.Errors[k] = msg
			}
		}
	}
	return merged
}
