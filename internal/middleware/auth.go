package middleware

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/session"

	"makosite/internal/models"
)

// Session keys holding the signed-in identity.
const (
	sessionUserID    = "user_id"
	sessionUserEmail = "user_email"
	sessionUserName  = "user_name"
	sessionUserRole  = "user_role"
)

// SaveUser stores u in the session.
func SaveUser(sess *session.Middleware, u *models.User) {
	sess.Set(sessionUserID, u.ID)
	sess.Set(sessionUserEmail, u.Email)
	sess.Set(sessionUserName, u.Name)
	sess.Set(sessionUserRole, u.Role)
}

// SessionUser returns the identity stored in the session, or nil.
func SessionUser(sess *session.Middleware) *models.User {
	if sess == nil {
		return nil
	}
	id, _ := sess.Get(sessionUserID).(string)
	email, _ := sess.Get(sessionUserEmail).(string)
	if id == "" && email == "" {
		return nil
	}
	name, _ := sess.Get(sessionUserName).(string)
	role, _ := sess.Get(sessionUserRole).(string)
	return &models.User{ID: id, Email: email, Name: name, Role: role}
}

// CurrentUser returns the identity loaded by LoadUser, or nil.
func CurrentUser(c fiber.Ctx) *models.User {
	user, _ := c.Locals("user").(*models.User)
	return user
}

// LoadUser loads the user from the session if signed in. Anonymous requests
// pass through.
func LoadUser(c fiber.Ctx) error {
	if user := SessionUser(session.FromContext(c)); user != nil {
		c.Locals("user", user)
	}
	return c.Next()
}

// RequireAdmin rejects requests without the admin role.
func RequireAdmin(c fiber.Ctx) error {
	user := CurrentUser(c)
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"status": "error",
			"error":  "sign in required",
		})
	}
	if !user.IsAdmin() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"status": "error",
			"error":  "admin access required",
		})
	}
	return c.Next()
}
