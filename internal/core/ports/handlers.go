package ports

import (
	"github.com/gin-gonic/gin"
)

type MeetingHTTPHandler interface {
	ListMeetings(c *gin.Context)
	GetMeeting(c *gin.Context)
}

type CallHTTPHandler interface {
	OpenCall(c *gin.Context)
	GetCall(c *gin.Context)
	SubmitCredential(c *gin.Context)
	ToggleCamera(c *gin.Context)
	ToggleMic(c *gin.Context)
	Retry(c *gin.Context)
	LeaveCall(c *gin.Context)
	StreamStatus(c *gin.Context)
	MediaViews(c *gin.Context)
}
