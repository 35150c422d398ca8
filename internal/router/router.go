package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/wafflestudio/waffice/api/handler"
	"github.com/wafflestudio/waffice/internal/middleware"
)

type Handlers struct {
	Users    *apiHandler.UserHandler
	Projects *apiHandler.ProjectHandler
	Health   *apiHandler.HealthHandler
}

// New wires routes. auth runs on every route except health and
// registration; it must authenticate the caller and resolve the principal.
func New(handlers Handlers, auth ...middleware.Middleware) *router.Router {
	r := router.New()
	protect := func(h fasthttp.RequestHandler) fasthttp.RequestHandler {
		return middleware.Chain(h, auth...)
	}

	r.GET("/health", handlers.Health.Check)

	r.POST("/api/v1/users", handlers.Users.Register)
	r.GET("/api/v1/users", protect(handlers.Users.List))

	users := r.Group("/api/v1/users")
	users.GET("/me", protect(handlers.Users.Me))
	users.PATCH("/me", protect(handlers.Users.UpdateMe))
	users.GET("/me/history", protect(handlers.Users.MyHistory))
	users.GET("/me/projects", protect(handlers.Users.MyProjects))
	users.GET("/pending", protect(handlers.Users.Pending))
	users.GET("/{id}", protect(handlers.Users.Get))
	users.PATCH("/{id}", protect(handlers.Users.Update))
	users.DELETE("/{id}", protect(handlers.Users.Delete))
	users.POST("/{id}/approve", protect(handlers.Users.Approve))
	users.GET("/{id}/history", protect(handlers.Users.History))

	r.GET("/api/v1/projects", protect(handlers.Projects.List))
	r.POST("/api/v1/projects", protect(handlers.Projects.Create))

	projects := r.Group("/api/v1/projects")
	projects.GET("/{id}", protect(handlers.Projects.Get))
	projects.PATCH("/{id}", protect(handlers.Projects.Update))
	projects.DELETE("/{id}", protect(handlers.Projects.Delete))
	projects.POST("/{id}/members", protect(handlers.Projects.AddMember))
	projects.PATCH("/{id}/members/{user_id}", protect(handlers.Projects.UpdateMember))
	projects.DELETE("/{id}/members/{user_id}", protect(handlers.Projects.RemoveMember))
	projects.GET("/{id}/members/{user_id}/history", protect(handlers.Projects.MemberHistory))

	return r
}
