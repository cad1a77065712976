package user

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nekotv/core/internal/middleware"
	"github.com/nekotv/core/internal/models"
	"github.com/nekotv/core/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	rg.GET("/user", authMW, h.profile)
}

type profileResponse struct {
	ID            string     `json:"id"`
	Username      string     `json:"username"`
	Name          string     `json:"name"`
	Avatar        string     `json:"avatar"`
	Role          string     `json:"role"`
	LastLoginTime *time.Time `json:"last_login_time"`
	LastLoginIP   string     `json:"last_login_ip"`
}

func toProfile(u *models.UserModel) *profileResponse {
	return &profileResponse{
		ID: u.ID, Username: u.Username, Name: u.Name, Avatar: u.Avatar,
		Role: u.Role, LastLoginTime: u.LastLoginTime, LastLoginIP: u.LastLoginIP,
	}
}

func (h *Handler) profile(c *gin.Context) {
	u, err := h.svc.GetByUsername(middleware.CurrentUsername(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if u == nil {
		response.NotFoundMsg(c, "用户不存在")
		return
	}
	response.OK(c, toProfile(u))
}
