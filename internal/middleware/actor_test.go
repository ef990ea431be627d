package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-records-api/internal/models"
)

func TestRequireActor(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name    string
		headers map[string]string
		status  int
		actor   models.Actor
	}{
		{name: "missing", headers: nil, status: http.StatusUnauthorized},
		{name: "unknown role", headers: map[string]string{HeaderActorID: "1", HeaderActorRole: "janitor"}, status: http.StatusUnauthorized},
		{name: "parent without student", headers: map[string]string{HeaderActorID: "5", HeaderActorRole: "parent"}, status: http.StatusUnauthorized},
		{
			name:    "teacher",
			headers: map[string]string{HeaderActorID: "2", HeaderActorRole: "Teacher", HeaderActorStudentID: "3"},
			status:  http.StatusOK,
			actor:   models.Actor{UserID: "2", Role: models.RoleTeacher},
		},
		{
			name:    "parent",
			headers: map[string]string{HeaderActorID: "5", HeaderActorRole: "parent", HeaderActorStudentID: "3"},
			status:  http.StatusOK,
			actor:   models.Actor{UserID: "5", Role: models.RoleParent, StudentID: "3"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got models.Actor
			router := gin.New()
			router.GET("/", RequireActor(), func(c *gin.Context) {
				got, _ = ActorFromContext(c)
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			require.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.actor, got)
		})
	}
}

func TestResponseMetaCarriesCacheHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var meta map[string]interface{}
	router := gin.New()
	router.GET("/", WithResponseMeta(), func(c *gin.Context) {
		SetCacheHit(c, true)
		meta = ResponseMeta(c, time.Now())
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, true, meta[cacheHitKey])
	assert.Contains(t, meta, "processing_time_ms")
}
