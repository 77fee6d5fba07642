// Package prompts 提供 Prompt 保存、详情与共享的 HTTP 接口
package prompts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"promptlib/api/handlers/common"
	"promptlib/internal/apperr"
	"promptlib/internal/auth"
	"promptlib/internal/permission"
	"promptlib/internal/prompt"
	"promptlib/internal/saveflow"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Records Prompt 主记录读取
type Records interface {
	FetchByID(ctx context.Context, id string) (*prompt.Prompt, error)
	ListByOwner(ctx context.Context, ownerID string, page, pageSize int) ([]prompt.Prompt, int64, error)
}

// Variables 变量读取
type Variables interface {
	ListByPrompt(ctx context.Context, promptID string) ([]prompt.Variable, error)
}

// Versions 版本读取
type Versions interface {
	ListByPrompt(ctx context.Context, promptID string) ([]prompt.Version, error)
}

// Shares 共享管理
type Shares interface {
	ListByPrompt(ctx context.Context, promptID string) ([]prompt.Share, error)
	Grant(ctx context.Context, actorID, promptID, userID string, perm prompt.Permission) (*prompt.Share, error)
	Revoke(ctx context.Context, actorID, promptID, userID string) error
}

// DetailCache 详情缓存
type DetailCache interface {
	Get(ctx context.Context, id string) ([]byte, bool)
	Set(ctx context.Context, id string, data []byte)
}

// Handler Prompt 接口
type Handler struct {
	sessions  *saveflow.Registry
	orch      *saveflow.Orchestrator
	records   Records
	variables Variables
	versions  Versions
	shares    Shares
	cache     DetailCache
	logger    *zap.Logger
}

// Deps Handler 依赖，cache 可为空
type Deps struct {
	Sessions  *saveflow.Registry
	Orch      *saveflow.Orchestrator
	Records   Records
	Variables Variables
	Versions  Versions
	Shares    Shares
	Cache     DetailCache
	Logger    *zap.Logger
}

// NewHandler 创建 Handler
func NewHandler(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Handler{
		sessions:  d.Sessions,
		orch:      d.Orch,
		records:   d.Records,
		variables: d.Variables,
		versions:  d.Versions,
		shares:    d.Shares,
		cache:     d.Cache,
		logger:    d.Logger,
	}
}

// Create 创建 Prompt
// @Summary 创建 Prompt
// @Tags Prompts
// @Accept json
// @Produce json
// @Param X-Save-Session header string false "编辑器会话 ID"
// @Param request body SaveRequest true "表单"
// @Success 201 {object} SaveResponse
// @Failure 422 {object} SaveResponse
// @Router /api/prompts [post]
func (h *Handler) Create(c *gin.Context) {
	h.save(c, saveflow.ModeCreate, "")
}

// Update 编辑 Prompt
// @Summary 编辑 Prompt
// @Tags Prompts
// @Accept json
// @Produce json
// @Param id path string true "Prompt ID"
// @Param X-Save-Session header string false "编辑器会话 ID"
// @Param request body SaveRequest true "表单与加载时的 updated_at"
// @Success 200 {object} SaveResponse
// @Failure 409 {object} SaveResponse
// @Router /api/prompts/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	h.save(c, saveflow.ModeEdit, c.Param("id"))
}

func (h *Handler) save(c *gin.Context, mode saveflow.Mode, id string) {
	actor, _ := auth.ActorFromContext(c.Request.Context())

	var req SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	in := saveflow.Input{Mode: mode, RecordID: id, Form: req.Form}
	if mode == saveflow.ModeEdit {
		if req.ClientUpdatedAt == nil {
			common.Fail(c, http.StatusBadRequest, "INVALID_REQUEST", "client_updated_at is required when editing")
			return
		}
		in.ClientUpdatedAt = *req.ClientUpdatedAt
	}

	// 客户端未带会话 ID 时，只有可重试的失败才登记会话
	sessionID := c.GetHeader(HeaderSaveSession)
	provided := sessionID != ""
	var session *saveflow.Session
	if provided {
		session = h.sessions.Acquire(sessionKey(actor, sessionID))
	} else {
		sessionID = uuid.New().String()
		session = h.sessions.Detached(sessionKey(actor, sessionID))
	}

	ctx := prompt.WithTitleScope(c.Request.Context(), actor, id)
	out, err := session.Save(ctx, in)
	if !provided {
		if err == nil && out.Failure != nil && out.Failure.CanRetry {
			h.sessions.Keep(session)
		} else {
			sessionID = ""
		}
	}
	h.respond(c, sessionID, out, err)
}

// Retry 以会话中上次的输入重试
// @Summary 重试上次失败的保存
// @Tags Prompts
// @Produce json
// @Param session_id path string true "编辑器会话 ID"
// @Success 200 {object} SaveResponse
// @Router /api/prompts/save-sessions/{session_id}/retry [post]
func (h *Handler) Retry(c *gin.Context) {
	actor, _ := auth.ActorFromContext(c.Request.Context())
	sessionID := c.Param("session_id")

	session, ok := h.sessions.Get(sessionKey(actor, sessionID))
	if !ok {
		common.Fail(c, http.StatusNotFound, "SESSION_NOT_FOUND", "save session not found or expired")
		return
	}

	ctx := c.Request.Context()
	if last := session.Last(); last != nil {
		ctx = prompt.WithTitleScope(ctx, actor, last.RecordID)
	}
	out, err := session.Retry(ctx)
	h.respond(c, sessionID, out, err)
}

func (h *Handler) respond(c *gin.Context, sessionID string, out *saveflow.Outcome, err error) {
	if sessionID != "" {
		c.Header(HeaderSaveSession, sessionID)
	}
	switch {
	case errors.Is(err, saveflow.ErrSaveInProgress):
		common.Fail(c, http.StatusConflict, "SAVE_IN_PROGRESS", "a save is already in progress for this editor")
		return
	case errors.Is(err, saveflow.ErrNothingToRetry):
		common.Fail(c, http.StatusConflict, "NOTHING_TO_RETRY", "the last save cannot be retried")
		return
	case errors.Is(err, saveflow.ErrRetriesExhausted):
		common.Fail(c, http.StatusTooManyRequests, "RETRIES_EXHAUSTED", "retry limit reached, submit the form again")
		return
	case err != nil:
		h.logger.Error("保存请求失败", zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, "INTERNAL", apperr.Message(apperr.KindServer))
		return
	}

	c.JSON(statusFor(out), SaveResponse{
		SessionID:     sessionID,
		Saved:         out.Saved(),
		NeedsFollowUp: out.NeedsFollowUp(),
		Outcome:       out,
	})
}

// statusFor 保存结果对应的 HTTP 状态码
func statusFor(out *saveflow.Outcome) int {
	if out.Saved() {
		if out.Created {
			return http.StatusCreated
		}
		return http.StatusOK
	}
	f := out.Failure
	if f == nil {
		return http.StatusInternalServerError
	}
	switch f.Kind {
	case apperr.KindValidation:
		return http.StatusUnprocessableEntity
	case apperr.KindPermission:
		switch f.Reason {
		case permission.ReasonNotAuthenticated:
			return http.StatusUnauthorized
		case permission.ReasonNotFound:
			return http.StatusNotFound
		}
		return http.StatusForbidden
	case apperr.KindConflict, apperr.KindDuplicate:
		return http.StatusConflict
	case apperr.KindNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func sessionKey(actor, sessionID string) string {
	return actor + "/" + sessionID
}

// Permission 编辑前检查保存权限
// @Summary 检查保存权限
// @Tags Prompts
// @Produce json
// @Param id path string true "Prompt ID"
// @Success 200 {object} permission.SaveCheck
// @Router /api/prompts/{id}/permission [get]
func (h *Handler) Permission(c *gin.Context) {
	actor, _ := auth.ActorFromContext(c.Request.Context())
	check, err := h.orch.CheckPermission(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.failLookup(c, err)
		return
	}
	c.JSON(http.StatusOK, check)
}

// Get Prompt 详情
// @Summary Prompt 详情
// @Tags Prompts
// @Produce json
// @Param id path string true "Prompt ID"
// @Success 200 {object} DetailResponse
// @Failure 404 {object} common.ErrorResponse
// @Router /api/prompts/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	actor, _ := auth.ActorFromContext(ctx)
	id := c.Param("id")

	detail, err := h.loadDetail(ctx, id)
	if err != nil {
		h.failLookup(c, err)
		return
	}

	var shares []prompt.Share
	if h.shares != nil {
		if shares, err = h.shares.ListByPrompt(ctx, id); err != nil {
			h.failLookup(c, err)
			return
		}
	}
	access := permission.Resolve(actor, detail.Prompt, shares)
	if access.Level == permission.LevelNone {
		// 无权访问时与不存在返回相同结果
		common.Fail(c, http.StatusNotFound, "NOT_FOUND", "prompt not found")
		return
	}

	c.JSON(http.StatusOK, DetailResponse{Prompt: detail.Prompt, Variables: detail.Variables, Access: access})
}

func (h *Handler) loadDetail(ctx context.Context, id string) (*cachedDetail, error) {
	if h.cache != nil {
		if data, ok := h.cache.Get(ctx, id); ok {
			var d cachedDetail
			if err := json.Unmarshal(data, &d); err == nil && d.Prompt != nil {
				return &d, nil
			}
		}
	}

	p, err := h.records.FetchByID(ctx, id)
	if err != nil {
		return nil, err
	}
	vars, err := h.variables.ListByPrompt(ctx, id)
	if err != nil {
		return nil, err
	}
	d := &cachedDetail{Prompt: p, Variables: vars}

	if h.cache != nil {
		if data, err := json.Marshal(d); err == nil {
			h.cache.Set(ctx, id, data)
		}
	}
	return d, nil
}

// List 当前用户的 Prompt 列表
// @Summary 我的 Prompt
// @Tags Prompts
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} common.ListResponse
// @Router /api/prompts [get]
func (h *Handler) List(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c.Request.Context())
	if !ok {
		common.Fail(c, http.StatusUnauthorized, "NOT_AUTHENTICATED", "login required")
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	items, total, err := h.records.ListByOwner(c.Request.Context(), actor, page, pageSize)
	if err != nil {
		h.failLookup(c, err)
		return
	}
	c.JSON(http.StatusOK, common.ListResponse{
		Items:      items,
		Pagination: common.NewPagination(page, pageSize, total),
	})
}

// Versions 版本历史，需要读权限
// @Summary 版本历史
// @Tags Prompts
// @Produce json
// @Param id path string true "Prompt ID"
// @Success 200 {array} prompt.Version
// @Router /api/prompts/{id}/versions [get]
func (h *Handler) Versions(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if !h.canRead(c, id) {
		return
	}
	versions, err := h.versions.ListByPrompt(ctx, id)
	if err != nil {
		h.failLookup(c, err)
		return
	}
	c.JSON(http.StatusOK, versions)
}

func (h *Handler) canRead(c *gin.Context, id string) bool {
	ctx := c.Request.Context()
	actor, _ := auth.ActorFromContext(ctx)

	p, err := h.records.FetchByID(ctx, id)
	if err != nil {
		h.failLookup(c, err)
		return false
	}
	shares, err := h.shares.ListByPrompt(ctx, id)
	if err != nil {
		h.failLookup(c, err)
		return false
	}
	if permission.Resolve(actor, p, shares).Level == permission.LevelNone {
		common.Fail(c, http.StatusNotFound, "NOT_FOUND", "prompt not found")
		return false
	}
	return true
}

// Share 授予指定用户访问权限，仅所有者可操作
// @Summary 共享 Prompt
// @Tags Prompts
// @Accept json
// @Produce json
// @Param id path string true "Prompt ID"
// @Param request body ShareRequest true "授权"
// @Success 200 {object} prompt.Share
// @Router /api/prompts/{id}/shares [post]
func (h *Handler) Share(c *gin.Context) {
	actor, _ := auth.ActorFromContext(c.Request.Context())
	var req ShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	share, err := h.shares.Grant(c.Request.Context(), actor, c.Param("id"), req.UserID, req.Permission)
	if err != nil {
		h.failLookup(c, err)
		return
	}
	c.JSON(http.StatusOK, share)
}

// Unshare 撤销指定用户的访问权限
// @Summary 撤销共享
// @Tags Prompts
// @Param id path string true "Prompt ID"
// @Param user_id path string true "用户 ID"
// @Success 204
// @Router /api/prompts/{id}/shares/{user_id} [delete]
func (h *Handler) Unshare(c *gin.Context) {
	actor, _ := auth.ActorFromContext(c.Request.Context())
	if err := h.shares.Revoke(c.Request.Context(), actor, c.Param("id"), c.Param("user_id")); err != nil {
		h.failLookup(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// failLookup 非保存接口的错误映射
func (h *Handler) failLookup(c *gin.Context, err error) {
	switch {
	case errors.Is(err, prompt.ErrNotFound):
		common.Fail(c, http.StatusNotFound, "NOT_FOUND", "prompt not found")
	case errors.Is(err, prompt.ErrNotOwner):
		common.Fail(c, http.StatusForbidden, "NOT_OWNER", "only the owner may manage shares")
	default:
		kind := apperr.Classify(err)
		status := http.StatusInternalServerError
		if kind == apperr.KindNetwork {
			status = http.StatusServiceUnavailable
		}
		h.logger.Warn("Prompt 查询失败", zap.String("kind", string(kind)), zap.Error(err))
		common.Fail(c, status, string(kind), apperr.Message(kind))
	}
}
