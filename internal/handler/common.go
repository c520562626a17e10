package handler

import (
	"github.com/azadjordan/megadie-sub000/internal/middleware"
	"github.com/azadjordan/megadie-sub000/internal/service"
	"github.com/azadjordan/megadie-sub000/pkg/apperror"
	"github.com/azadjordan/megadie-sub000/pkg/response"

	"github.com/gin-gonic/gin"
)

// fail maps a service error to its HTTP status and writes the error envelope
func fail(c *gin.Context, err error) {
	status := apperror.Status(err)
	c.JSON(status, response.Error(status, err.Error()))
}

// actorFrom builds the service-level caller identity from the gin context
// populated by the auth middleware
func actorFrom(c *gin.Context) service.Actor {
	id, _ := middleware.UserIDFrom(c)
	return service.Actor{
		ID:      id,
		IsAdmin: middleware.IsAdminFrom(c),
	}
}
