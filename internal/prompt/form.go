package prompt

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"promptlib/internal/validator"
)

// 表单字段长度限制
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 1000
	MaxContentLength     = 50000
	MaxTags              = 20
	MaxTagLength         = 50
)

var variableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// VariableInput 表单中的变量定义
type VariableInput struct {
	Name              string       `json:"name"`
	Type              VariableType `json:"type"`
	Required          bool         `json:"required"`
	DefaultValue      string       `json:"default_value"`
	HelpText          string       `json:"help_text"`
	ValidationPattern string       `json:"validation_pattern"`
	Options           []string     `json:"options"`
}

// Form 创建或编辑 Prompt 时提交的表单数据
type Form struct {
	Title            string          `json:"title"`
	Description      *string         `json:"description"`
	Content          string          `json:"content"`
	Tags             []string        `json:"tags"`
	Visibility       Visibility      `json:"visibility"`
	PublicPermission Permission      `json:"public_permission"`
	Status           Status          `json:"status"`
	Variables        []VariableInput `json:"variables"`
}

// Record 转换为待创建的 Prompt 记录
func (f *Form) Record() *Prompt {
	return &Prompt{
		Title:            strings.TrimSpace(f.Title),
		Description:      f.Description,
		Content:          f.Content,
		Tags:             append([]string{}, f.Tags...),
		Visibility:       f.Visibility,
		Status:           f.Status,
		PublicPermission: f.PublicPermission,
	}
}

// Patch 转换为编辑模式下的部分更新
func (f *Form) Patch() *Patch {
	title := strings.TrimSpace(f.Title)
	content := f.Content
	p := &Patch{
		Title:   &title,
		Content: &content,
		Tags:    append([]string{}, f.Tags...),
	}
	if f.Description == nil {
		p.ClearDescription = true
	} else {
		desc := *f.Description
		p.Description = &desc
	}
	if f.Visibility != "" {
		v := f.Visibility
		p.Visibility = &v
	}
	if f.Status != "" {
		s := f.Status
		p.Status = &s
	}
	if f.PublicPermission != "" {
		pp := f.PublicPermission
		p.PublicPermission = &pp
	}
	return p
}

// VariableRecords 转换为变量记录，OrderIndex 为表单中的顺序
func (f *Form) VariableRecords() []Variable {
	vars := make([]Variable, len(f.Variables))
	for i, in := range f.Variables {
		vars[i] = Variable{
			Name:              strings.TrimSpace(in.Name),
			Type:              in.Type,
			Required:          in.Required,
			DefaultValue:      in.DefaultValue,
			HelpText:          in.HelpText,
			ValidationPattern: in.ValidationPattern,
			Options:           append([]string(nil), in.Options...),
			OrderIndex:        i,
		}
	}
	return vars
}

// context 表单的只读校验上下文
func (f *Form) context() validator.Context {
	return validator.Context{
		"title":             f.Title,
		"content":           f.Content,
		"visibility":        string(f.Visibility),
		"public_permission": string(f.PublicPermission),
		"status":            string(f.Status),
		"tag_count":         len(f.Tags),
		"variable_count":    len(f.Variables),
	}
}

// TitleChecker 异步检查标题是否可用（例如同一所有者下重名）
type TitleChecker interface {
	TitleAvailable(ctx context.Context, title string) (bool, error)
}

// Schema Prompt 表单校验规则
type Schema struct {
	titles   TitleChecker
	debounce time.Duration
}

// SchemaOption Schema 选项
type SchemaOption func(*Schema)

// WithTitleChecker 启用异步标题检查
func WithTitleChecker(checker TitleChecker, debounce time.Duration) SchemaOption {
	return func(s *Schema) {
		s.titles = checker
		s.debounce = debounce
	}
}

// NewSchema 创建表单校验规则
func NewSchema(opts ...SchemaOption) *Schema {
	s := &Schema{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate 校验整个表单，失败时返回 *validator.Errors
func (s *Schema) Validate(ctx context.Context, f *Form) error {
	vctx := f.context()
	fields := []validator.Field{
		{Name: "title", Value: f.Title, Validators: s.titleRules()},
		{Name: "description", Value: f.Description, Validators: []validator.Validator{
			validator.MaxLength(MaxDescriptionLength, fmt.Sprintf("description must be at most %d characters", MaxDescriptionLength)),
		}},
		{Name: "content", Value: f.Content, Validators: []validator.Validator{
			validator.Required("content is required"),
			validator.MaxLength(MaxContentLength, fmt.Sprintf("content must be at most %d characters", MaxContentLength)),
		}},
		{Name: "tags", Value: f.Tags, Validators: []validator.Validator{
			validator.MaxItems(MaxTags, fmt.Sprintf("at most %d tags are allowed", MaxTags)),
			validator.EachMaxLength(MaxTagLength, fmt.Sprintf("tags must be at most %d characters", MaxTagLength)),
		}},
		{Name: "visibility", Value: string(f.Visibility), Validators: []validator.Validator{
			validator.OneOf([]string{string(VisibilityPrivate), string(VisibilityShared)}, "visibility must be PRIVATE or SHARED"),
		}},
		{Name: "public_permission", Value: string(f.PublicPermission), Validators: []validator.Validator{
			validator.MustWhen(validator.Required("public permission is required for shared prompts"), `visibility == "SHARED"`),
			validator.OneOf([]string{string(PermissionRead), string(PermissionWrite)}, "public permission must be READ or WRITE"),
		}},
		{Name: "status", Value: string(f.Status), Validators: []validator.Validator{
			validator.OneOf([]string{string(StatusDraft), string(StatusPublished), string(StatusArchived)}, "invalid status"),
		}},
	}

	seen := make(map[string]int, len(f.Variables))
	for i, v := range f.Variables {
		prefix := fmt.Sprintf("variables[%d]", i)
		name := strings.TrimSpace(v.Name)
		first, dup := seen[name]
		if !dup {
			seen[name] = i
		}

		varCtx := validator.Context{"type": string(v.Type)}
		for k, val := range vctx {
			varCtx[k] = val
		}

		varFields := []validator.Field{
			{Name: prefix + ".name", Value: name, Validators: []validator.Validator{
				validator.Required("variable name is required"),
				validator.Pattern(variableNamePattern, "variable name must start with a letter or underscore and contain only letters, digits and underscores"),
				validator.Custom("unique_name", 4, func(any, validator.Context) bool {
					return !dup || name == ""
				}, fmt.Sprintf("duplicate variable name (also at variables[%d])", first)),
			}},
			{Name: prefix + ".type", Value: string(v.Type), Validators: []validator.Validator{
				validator.Required("variable type is required"),
				validator.OneOf(variableTypes(), "unknown variable type"),
			}},
			{Name: prefix + ".options", Value: v.Options, Validators: []validator.Validator{
				validator.Conditional(validator.Required("options are required for enum variables"), func(c validator.Context) bool {
					return c["type"] == string(VariableEnum)
				}),
			}},
			{Name: prefix + ".default_value", Value: v, Validators: []validator.Validator{
				defaultValueRule(),
			}},
			{Name: prefix + ".validation_pattern", Value: v.ValidationPattern, Validators: []validator.Validator{
				validator.Custom("pattern_compiles", 3, func(value any, _ validator.Context) bool {
					pattern, _ := value.(string)
					if pattern == "" {
						return true
					}
					_, err := regexp.Compile(pattern)
					return err == nil
				}, "validation pattern is not a valid regular expression"),
			}},
		}
		// 变量字段使用各自的上下文
		for j := range varFields {
			varFields[j].Validators = bindContext(varFields[j].Validators, varCtx)
		}
		fields = append(fields, varFields...)
	}

	out := validator.ComposeFieldValidators(ctx, fields, vctx)
	return out.Err()
}

func (s *Schema) titleRules() []validator.Validator {
	rules := []validator.Validator{
		validator.Required("title is required"),
		validator.MaxLength(MaxTitleLength, fmt.Sprintf("title must be at most %d characters", MaxTitleLength)),
	}
	if s.titles == nil {
		return rules
	}

	checker := s.titles
	available := validator.New("title_available", func(ctx context.Context, value any, _ validator.Context) validator.Result {
		title, _ := value.(string)
		ok, err := checker.TitleAvailable(ctx, strings.TrimSpace(title))
		if err != nil {
			// 远端检查不可用时不阻塞保存
			return validator.Result{IsValid: true, Metadata: map[string]any{"error": err.Error()}}
		}
		if !ok {
			return validator.Fail("a prompt with this title already exists")
		}
		return validator.Pass()
	})
	return append(rules, validator.Async(available, s.debounce))
}

// bindContext 让校验器忽略外层上下文，改用变量自身的上下文
func bindContext(vs []validator.Validator, vctx validator.Context) []validator.Validator {
	bound := make([]validator.Validator, len(vs))
	for i, v := range vs {
		base := v.Validate
		v.Validate = func(ctx context.Context, value any, _ validator.Context) validator.Result {
			return base(ctx, value, vctx)
		}
		bound[i] = v
	}
	return bound
}

func defaultValueRule() validator.Validator {
	return validator.New("default_value_type", func(_ context.Context, value any, _ validator.Context) validator.Result {
		v, ok := value.(VariableInput)
		if !ok || v.DefaultValue == "" {
			return validator.Pass()
		}
		switch v.Type {
		case VariableNumber:
			if _, err := strconv.ParseFloat(v.DefaultValue, 64); err != nil {
				return validator.Fail("default value must be a number")
			}
		case VariableBoolean:
			if _, err := strconv.ParseBool(v.DefaultValue); err != nil {
				return validator.Fail("default value must be true or false")
			}
		case VariableDate:
			if _, err := time.Parse(time.DateOnly, v.DefaultValue); err != nil {
				return validator.Fail("default value must be a date (YYYY-MM-DD)")
			}
		case VariableEnum:
			for _, opt := range v.Options {
				if opt == v.DefaultValue {
					return validator.Pass()
				}
			}
			return validator.Fail("default value must be one of the options")
		}
		return validator.Pass()
	}, validator.WithPriority(4))
}

func variableTypes() []string {
	return []string{
		string(VariableString), string(VariableNumber), string(VariableBoolean),
		string(VariableDate), string(VariableEnum), string(VariableMultiString),
	}
}
