package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
	"github.com/noah-isme/academic-records-api/pkg/response"
)

// ContextActorKey is the gin context key storing the resolved actor.
const ContextActorKey = "currentActor"

// Headers set by the upstream authentication layer.
const (
	HeaderActorID        = "X-Actor-ID"
	HeaderActorRole      = "X-Actor-Role"
	HeaderActorStudentID = "X-Actor-Student-ID"
)

// RequireActor resolves the acting identity from the upstream headers and rejects the
// request when it is missing or incomplete.
func RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFromHeaders(c)
		if !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "actor headers missing or invalid"))
			c.Abort()
			return
		}
		c.Set(ContextActorKey, actor)
		c.Next()
	}
}

// OptionalActor attaches the actor when the headers are present but does not block.
func OptionalActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if actor, ok := actorFromHeaders(c); ok {
			c.Set(ContextActorKey, actor)
		}
		c.Next()
	}
}

// ActorFromContext returns the actor stored by RequireActor or OptionalActor.
func ActorFromContext(c *gin.Context) (models.Actor, bool) {
	value, exists := c.Get(ContextActorKey)
	if !exists {
		return models.Actor{}, false
	}
	actor, ok := value.(models.Actor)
	return actor, ok
}

func actorFromHeaders(c *gin.Context) (models.Actor, bool) {
	actor := models.Actor{
		UserID:    strings.TrimSpace(c.GetHeader(HeaderActorID)),
		Role:      models.UserRole(strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderActorRole)))),
		StudentID: strings.TrimSpace(c.GetHeader(HeaderActorStudentID)),
	}
	if actor.Role != models.RoleParent {
		actor.StudentID = ""
	}
	return actor, actor.Valid()
}
