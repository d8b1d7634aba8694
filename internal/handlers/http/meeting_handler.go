package http

import (
	"net/http"

	"interviewroom/internal/core/domain"
	"interviewroom/internal/core/ports"
	"interviewroom/internal/core/services"
	"interviewroom/internal/infrastructure/middleware"
	"interviewroom/pkg/errors"
	"interviewroom/pkg/validation"

	"github.com/gin-gonic/gin"
)

type MeetingHandler struct {
	feed     *services.FeedService
	meetings ports.MeetingRepository
	// strict hides meetings the caller does not take part in.
	strict bool
}

var _ ports.MeetingHTTPHandler = (*MeetingHandler)(nil)

func NewMeetingHandler(feed *services.FeedService, meetings ports.MeetingRepository, strict bool) *MeetingHandler {
	return &MeetingHandler{
		feed:     feed,
		meetings: meetings,
		strict:   strict,
	}
}

// ListMeetings returns the caller's dashboard: upcoming, ongoing and past meetings.
func (h *MeetingHandler) ListMeetings(c *gin.Context) {
	user, ok := middleware.IdentityFrom(c)
	if !ok {
		c.Error(errors.NewUnauthorizedError("authorization required"))
		return
	}

	dashboard, err := h.feed.Dashboard(c.Request.Context(), user)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

func (h *MeetingHandler) GetMeeting(c *gin.Context) {
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

	meeting, err := h.meetings.GetMeeting(c.Request.Context(), domain.MeetingID(id))
	if err != nil {
		c.Error(err)
		return
	}
	if h.strict && !h.feed.Visible(meeting, user) {
		c.Error(domain.ErrNotParticipant)
		return
	}

	c.JSON(http.StatusOK, h.feed.Entry(meeting, h.feed.Now()))
}
