package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prepwise/prepwise/internal/api/handlers"
	"github.com/prepwise/prepwise/internal/api/middleware"
)

type Deps struct {
	Auth      *handlers.AuthHandler
	Catalog   *handlers.CatalogHandler
	Interview *handlers.InterviewHandler
	Resume    *handlers.ResumeHandler
	WS        *handlers.WSHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	r.POST("/auth/register", d.Auth.Register)
	r.POST("/auth/login", d.Auth.Login)

	// Protected routes (JWT)
	auth := r.Group("/")
	auth.Use(middleware.JWTAuth())

	auth.GET("/jobs", d.Catalog.ListJobs)
	auth.GET("/skills", d.Catalog.ListSkills)

	auth.POST("/resume", d.Resume.Upload)
	auth.GET("/resume/latest", d.Resume.Latest)

	auth.POST("/interviews", d.Interview.Create)
	auth.GET("/interviews", d.Interview.List)
	auth.GET("/interviews/:session_id", d.Interview.Get)
	auth.POST("/interviews/:session_id/questions/:question_id/answer", d.Interview.SaveAnswer)
	auth.POST("/interviews/:session_id/advance", d.Interview.Advance)
	auth.POST("/interviews/:session_id/complete", d.Interview.Complete)

	// WebSocket
	auth.GET("/ws/interview/:session_id", d.WS.SessionWS)
}
