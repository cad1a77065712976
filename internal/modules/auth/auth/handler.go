package auth

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/nekotv/core/internal/middleware"
	"github.com/nekotv/core/internal/modules/auth/user"
	"github.com/nekotv/core/internal/pkg/response"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

// RegisterRoutes mounts the auth endpoints. The surrounding group
// already resolved the credential; authMW only requires that it did.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	a := rg.Group("/auth")
	a.POST("/login", h.login)
	a.POST("/register", h.register)
	a.GET("/session", h.session)
	a.GET("/devices", authMW, h.listDevices)
	a.DELETE("/devices", authMW, h.revokeDevice)
	a.POST("/devices/revoke-all", authMW, h.revokeAllDevices)

	rg.POST("/logout", h.logout)
	rg.POST("/change-password", authMW, h.changePassword)
}

func (h *Handler) login(c *gin.Context) {
	var dto LoginDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	cred, _, err := h.svc.Login(c.Request.Context(), dto.Username, dto.Password, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		if errors.Is(err, errAuthUserNotFound) {
			response.ForbiddenMsg(c, "用户名不正确")
			return
		}
		if errors.Is(err, errAuthWrongPassword) {
			response.ForbiddenMsg(c, "密码不正确")
			return
		}
		response.InternalError(c, err)
		return
	}
	setAuthCookie(c, cred, h.svc.sessions.TTL())
	response.OK(c, loginResponse{Token: cred})
}

func (h *Handler) register(c *gin.Context) {
	var dto RegisterDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	u, err := h.svc.users.Register(dto.Username, dto.Password, dto.Name)
	if err != nil {
		if errors.Is(err, user.ErrInvalidUsername) {
			response.BadRequest(c, "用户名仅允许字母、数字、下划线和连字符")
			return
		}
		if errors.Is(err, user.ErrUsernameTaken) {
			response.BadRequest(c, "用户名已被注册")
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Created(c, gin.H{"id": u.ID, "username": u.Username, "role": u.Role})
}

// logout revokes the current device's token. The cookie is cleared and
// the response is successful whether or not a live record existed.
func (h *Handler) logout(c *gin.Context) {
	h.svc.Logout(c.Request.Context(), middleware.ExtractCredential(c))
	clearAuthCookie(c)
	response.OK(c, gin.H{"ok": true})
}

func (h *Handler) session(c *gin.Context) {
	if !middleware.IsAuthenticated(c) {
		response.OK(c, nil)
		return
	}
	username := middleware.CurrentUsername(c)
	tokenID := middleware.CurrentTokenID(c)

	t, err := h.svc.sessions.Validate(c.Request.Context(), username, tokenID)
	if err != nil {
		response.OK(c, nil)
		return
	}
	u, err := h.svc.users.GetByUsername(username)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if u == nil {
		response.OK(c, nil)
		return
	}

	response.OK(c, gin.H{
		"session": gin.H{
			"tokenId":     t.TokenID,
			"deviceLabel": t.DeviceLabel,
			"ipAddress":   t.IP,
			"issuedAt":    t.IssuedAt,
			"lastSeenAt":  t.LastSeenAt,
			"expiresAt":   t.ExpiresAt,
		},
		"user": gin.H{
			"username": u.Username,
			"name":     u.Name,
			"role":     u.Role,
		},
	})
}

func (h *Handler) listDevices(c *gin.Context) {
	username := middleware.CurrentUsername(c)
	currentTokenID := middleware.CurrentTokenID(c)

	tokens, err := h.svc.sessions.ListDevices(c.Request.Context(), username)
	if err != nil {
		response.InternalError(c, err)
		return
	}

	items := make([]deviceResponse, 0, len(tokens))
	for _, t := range tokens {
		items = append(items, deviceResponse{
			TokenID:     t.TokenID,
			DeviceLabel: t.DeviceLabel,
			IP:          t.IP,
			IssuedAt:    t.IssuedAt,
			LastSeenAt:  t.LastSeenAt,
			IsCurrent:   t.TokenID == currentTokenID,
		})
	}
	response.OK(c, gin.H{"devices": items})
}

// revokeDevice revokes one of the authenticated user's own devices.
// Scoping by the resolved username means a token id belonging to
// another account is simply never found.
func (h *Handler) revokeDevice(c *gin.Context) {
	var dto RevokeDeviceDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "Token ID required")
		return
	}

	_, err := h.svc.sessions.RevokeOne(c.Request.Context(), middleware.CurrentUsername(c), dto.TokenID)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	// Revoking an absent or already-revoked token is a successful no-op.
	response.OK(c, gin.H{"ok": true})
}

func (h *Handler) revokeAllDevices(c *gin.Context) {
	username := middleware.CurrentUsername(c)
	res, err := h.svc.sessions.RevokeAllExcept(c.Request.Context(), username, "")
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if rerr := res.Err(); rerr != nil {
		h.svc.logger.Warn("revoke all devices incomplete",
			zap.String("username", username),
			zap.Int("revoked", res.Revoked),
			zap.Int("attempted", res.Attempted),
			zap.Error(rerr))
	}
	// The current device's token was included, so the local credential
	// goes too.
	clearAuthCookie(c)
	response.OK(c, gin.H{"ok": true, "revoked": res.Revoked})
}

func (h *Handler) changePassword(c *gin.Context) {
	if middleware.IsOwner(c) {
		response.ForbiddenMsg(c, "站长不能通过此接口修改密码")
		return
	}

	var dto ChangePasswordDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "新密码不得为空")
		return
	}

	err := h.svc.ChangePassword(c.Request.Context(),
		middleware.CurrentUsername(c), middleware.CurrentTokenID(c), dto.NewPassword)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFoundMsg(c, "用户不存在")
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"ok": true})
}
