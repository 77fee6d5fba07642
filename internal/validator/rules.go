package validator

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Required 必填校验，默认优先级 1 且失败即终止
func Required(msg string) Validator {
	return New("required", func(_ context.Context, value any, _ Context) Result {
		if isEmpty(value) {
			return Fail(msg)
		}
		return Pass()
	}, WithPriority(1), StopOnFailure())
}

// MinLength 最小字符数
func MinLength(n int, msg string) Validator {
	return New("min_length", func(_ context.Context, value any, _ Context) Result {
		s, ok := asString(value)
		if !ok || s == "" {
			return Pass()
		}
		if utf8.RuneCountInString(s) < n {
			return Fail(msg)
		}
		return Pass()
	}, WithPriority(2))
}

// MaxLength 最大字符数
func MaxLength(n int, msg string) Validator {
	return New("max_length", func(_ context.Context, value any, _ Context) Result {
		s, ok := asString(value)
		if !ok {
			return Pass()
		}
		if utf8.RuneCountInString(s) > n {
			return Fail(msg)
		}
		return Pass()
	}, WithPriority(2))
}

// Pattern 正则匹配，空值跳过
func Pattern(re *regexp.Regexp, msg string) Validator {
	return New("pattern", func(_ context.Context, value any, _ Context) Result {
		s, ok := asString(value)
		if !ok || s == "" {
			return Pass()
		}
		if !re.MatchString(s) {
			return Fail(msg)
		}
		return Pass()
	}, WithPriority(3))
}

// OneOf 枚举值校验
func OneOf(allowed []string, msg string) Validator {
	return New("one_of", func(_ context.Context, value any, _ Context) Result {
		s, ok := asString(value)
		if !ok || s == "" {
			return Pass()
		}
		for _, a := range allowed {
			if s == a {
				return Pass()
			}
		}
		return Fail(msg)
	}, WithPriority(3))
}

// MaxItems 切片最大长度
func MaxItems(n int, msg string) Validator {
	return New("max_items", func(_ context.Context, value any, _ Context) Result {
		if lengthOf(value) > n {
			return Fail(msg)
		}
		return Pass()
	}, WithPriority(2))
}

// EachMaxLength 字符串切片中每一项的最大字符数
func EachMaxLength(n int, msg string) Validator {
	return New("each_max_length", func(_ context.Context, value any, _ Context) Result {
		items, ok := value.([]string)
		if !ok {
			return Pass()
		}
		for i, item := range items {
			if utf8.RuneCountInString(item) > n {
				return Result{IsValid: false, Error: fmt.Sprintf("%s (item %d)", msg, i)}
			}
		}
		return Pass()
	}, WithPriority(3))
}

// Custom 自定义谓词校验
func Custom(name string, priority int, ok func(value any, vctx Context) bool, msg string) Validator {
	return New(name, func(_ context.Context, value any, vctx Context) Result {
		if ok(value, vctx) {
			return Pass()
		}
		return Fail(msg)
	}, WithPriority(priority))
}

func asString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case *string:
		if v == nil {
			return "", true
		}
		return *v, true
	case fmt.Stringer:
		return v.String(), true
	default:
		return "", false
	}
}

func isEmpty(value any) bool {
	if value == nil {
		return true
	}
	if s, ok := asString(value); ok {
		return strings.TrimSpace(s) == ""
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func lengthOf(value any) int {
	if value == nil {
		return 0
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array, reflect.String:
		return rv.Len()
	}
	return 0
}
