package validator

import (
	"context"
	"fmt"

	"github.com/Knetic/govaluate"
)

// Predicate 基于记录上下文判断是否需要执行校验
type Predicate func(vctx Context) bool

// Conditional 仅当 predicate 为真时执行 base，否则视为通过
func Conditional(base Validator, predicate Predicate) Validator {
	wrapped := base
	wrapped.Validate = func(ctx context.Context, value any, vctx Context) Result {
		if predicate != nil && !predicate(vctx) {
			return Result{IsValid: true, Metadata: map[string]any{"skipped": true}}
		}
		return base.Validate(ctx, value, vctx)
	}
	return wrapped
}

// When 使用 govaluate 表达式作为条件，例如 `visibility == "SHARED"`
//
// 表达式中引用的变量从记录上下文读取，缺失的变量按 nil 处理。
func When(base Validator, expr string) (Validator, error) {
	expression, err := govaluate.NewEvaluableExpression(expr)
	if err != nil {
		return Validator{}, fmt.Errorf("parse condition %q: %w", expr, err)
	}

	predicate := func(vctx Context) bool {
		params := make(map[string]any, len(expression.Vars()))
		for _, name := range expression.Vars() {
			val, _ := vctx.Get(name)
			params[name] = val
		}
		result, err := expression.Evaluate(params)
		if err != nil {
			return false
		}
		ok, _ := result.(bool)
		return ok
	}

	return Conditional(base, predicate), nil
}

// MustWhen 同 When，表达式非法时 panic，用于包级规则定义
func MustWhen(base Validator, expr string) Validator {
	v, err := When(base, expr)
	if err != nil {
		panic(err)
	}
	return v
}
