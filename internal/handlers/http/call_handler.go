package http

import (
	"context"
	"net/http"

	"interviewroom/internal/core/domain"
	"interviewroom/internal/core/ports"
	"interviewroom/internal/core/services"
	"interviewroom/internal/infrastructure/middleware"
	"interviewroom/internal/infrastructure/signal"
	"interviewroom/internal/infrastructure/webrtc"
	"interviewroom/pkg/errors"
	"interviewroom/pkg/validation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ViewLister exposes what the renderer is currently showing.
type ViewLister interface {
	Views() []webrtc.ViewStats
}

type CallHandler struct {
	rooms  *services.RoomService
	status *signal.StatusServer
	views  ViewLister
	logger *zap.SugaredLogger
}

var _ ports.CallHTTPHandler = (*CallHandler)(nil)

func NewCallHandler(rooms *services.RoomService, status *signal.StatusServer, views ViewLister, logger *zap.SugaredLogger) *CallHandler {
	return &CallHandler{
		rooms:  rooms,
		status: status,
		views:  views,
		logger: logger,
	}
}

type SubmitCredentialRequest struct {
	Token string `json:"token" binding:"required"`
}

// OpenCall opens the call room of a meeting and starts joining it.
func (h *CallHandler) OpenCall(c *gin.Context) {
	user, ok := middleware.IdentityFrom(c)
	if !ok {
		c.Error(errors.NewUnauthorizedError("authorization required"))
		return
	}

	id := c.Param("id")
	if err := validation.ValidateMeetingID(id); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}

	ctrl, err := h.rooms.Open(c.Request.Context(), domain.MeetingID(id), user)
	if err != nil {
		c.Error(err)
		return
	}

	if ctrl.Status().State == domain.CallIdle {
		if err := ctrl.RequestJoin(c.Request.Context()); err != nil {
			c.Error(err)
			return
		}
	}

	h.logger.Infow("Call opened", "meeting_id", id, "user_id", user.ID)
	c.JSON(http.StatusAccepted, ctrl.Status())
}

func (h *CallHandler) GetCall(c *gin.Context) {
	ctrl, ok := h.active(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ctrl.Status())
}

func (h *CallHandler) SubmitCredential(c *gin.Context) {
	var req SubmitCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}
	if err := validation.ValidateCredentialToken(req.Token); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}

	h.command(c, func(ctrl *services.MediaSessionController, ctx context.Context) error {
		return ctrl.SubmitCredential(ctx, req.Token)
	})
}

func (h *CallHandler) ToggleCamera(c *gin.Context) {
	h.command(c, (*services.MediaSessionController).ToggleCamera)
}

func (h *CallHandler) ToggleMic(c *gin.Context) {
	h.command(c, (*services.MediaSessionController).ToggleMic)
}

func (h *CallHandler) Retry(c *gin.Context) {
	h.command(c, (*services.MediaSessionController).Retry)
}

func (h *CallHandler) LeaveCall(c *gin.Context) {
	h.command(c, (*services.MediaSessionController).Leave)
}

// StreamStatus upgrades to a websocket that carries every status change of the active call.
func (h *CallHandler) StreamStatus(c *gin.Context) {
	ctrl, ok := h.active(c)
	if !ok {
		return
	}
	h.status.Serve(c.Writer, c.Request, ctrl)
}

// MediaViews lists the remote tracks currently bound to views.
func (h *CallHandler) MediaViews(c *gin.Context) {
	if _, ok := h.active(c); !ok {
		return
	}
	views := []webrtc.ViewStats{}
	if h.views != nil {
		views = h.views.Views()
	}
	c.JSON(http.StatusOK, gin.H{"views": views})
}

// command runs fn against the caller's call and replies with the resulting status.
func (h *CallHandler) command(c *gin.Context, fn func(*services.MediaSessionController, context.Context) error) {
	ctrl, ok := h.active(c)
	if !ok {
		return
	}
	if err := fn(ctrl, c.Request.Context()); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, ctrl.Status())
}

// active resolves the running call and makes sure it belongs to the caller.
func (h *CallHandler) active(c *gin.Context) (*services.MediaSessionController, bool) {
	user, ok := middleware.IdentityFrom(c)
	if !ok {
		c.Error(errors.NewUnauthorizedError("authorization required"))
		return nil, false
	}

	ctrl, err := h.rooms.Active()
	if err != nil {
		c.Error(err)
		return nil, false
	}
	if ctrl.Identity().ID != user.ID {
		c.Error(errors.NewForbiddenError("the active call belongs to another user"))
		return nil, false
	}
	return ctrl, true
}
