package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/uniregistry/course_registration/internal/httperr"
	"github.com/uniregistry/course_registration/internal/models"
	"github.com/uniregistry/course_registration/internal/tokens"
)

const (
	ctxUserID = "userID"
	ctxRole   = "role"
)

// Guard resolves caller identity from the Authorization header. All token
// failures surface as a single FORBIDDEN: the client is not told whether
// the token was expired, forged or absent.
type Guard struct {
	DB     *gorm.DB
	Tokens *tokens.Service
}

func BearerToken(c echo.Context) (string, bool) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// RequireRoles gates a route group on a role set. ADMIN passes every
// gate. An empty role set means any authenticated caller.
func (g *Guard) RequireRoles(roles ...models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := BearerToken(c)
			if !ok {
				return httperr.Forbidden()
			}

			userID, role, err := g.Tokens.ValidateAccessToken(raw, time.Now())
			if err != nil {
				return httperr.Forbidden()
			}

			if !roleAllowed(role, roles) {
				return httperr.Forbidden()
			}

			c.Set(ctxUserID, userID)
			c.Set(ctxRole, role)
			return next(c)
		}
	}
}

func roleAllowed(role models.Role, allowed []models.Role) bool {
	if role == models.RoleAdmin || len(allowed) == 0 {
		return true
	}
	for _, r := range allowed {
		if role == r {
			return true
		}
	}
	return false
}

// CurrentUser is the identity-resolving path: unlike RequireRoles it
// loads the persisted user record, so a still-valid token for a deleted
// user is answered with NOT_FOUND rather than FORBIDDEN.
func (g *Guard) CurrentUser(c echo.Context) (*models.User, error) {
	raw, ok := BearerToken(c)
	if !ok {
		return nil, httperr.Forbidden()
	}

	userID, _, err := g.Tokens.ValidateAccessToken(raw, time.Now())
	if err != nil {
		return nil, httperr.Forbidden()
	}

	var user models.User
	if err := g.DB.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, httperr.NotFound("Could not find user")
		}
		return nil, httperr.Unknown()
	}
	return &user, nil
}

func (g *Guard) CurrentStudent(c echo.Context) (*models.Student, error) {
	user, err := g.CurrentUser(c)
	if err != nil {
		return nil, err
	}

	var student models.Student
	if err := g.DB.Where("for_user = ?", user.ID).First(&student).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, httperr.Forbidden()
		}
		return nil, httperr.Unknown()
	}
	return &student, nil
}

func (g *Guard) CurrentInstructor(c echo.Context) (*models.Instructor, error) {
	user, err := g.CurrentUser(c)
	if err != nil {
		return nil, err
	}

	var instructor models.Instructor
	if err := g.DB.Where("for_user = ?", user.ID).First(&instructor).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, httperr.Forbidden()
		}
		return nil, httperr.Unknown()
	}
	return &instructor, nil
}

func UserID(c echo.Context) uint {
	if v, ok := c.Get(ctxUserID).(uint); ok {
		return v
	}
	return 0
}

func UserRole(c echo.Context) models.Role {
	if v, ok := c.Get(ctxRole).(models.Role); ok {
		return v
	}
	return ""
}
