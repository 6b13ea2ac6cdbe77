package handler

import (
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"collabboard/internal/auth"
	"collabboard/internal/config"
	"collabboard/internal/model"
)

// AuthHandler serves the credential exchange endpoints.
type AuthHandler struct {
	db         *gorm.DB
	jwtManager *auth.JWTManager
	google     *auth.GoogleAuthenticator
	cfg        config.AuthConfig
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(db *gorm.DB, jwtManager *auth.JWTManager, google *auth.GoogleAuthenticator, cfg config.AuthConfig) *AuthHandler {
	return &AuthHandler{
		db:         db,
		jwtManager: jwtManager,
		google:     google,
		cfg:        cfg,
	}
}

// GoogleLoginRequest is the credential exchange body.
type GoogleLoginRequest struct {
	IDToken string `json:"id_token"`
}

// AuthResponse carries the issued access token and user profile.
type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// UserResponse is the public user profile.
type UserResponse struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Nickname   string `json:"nickname"`
	ProfileImg string `json:"profile_img,omitempty"`
}

// GoogleLogin verifies a Google ID token, upserts the user and issues
// application tokens. The refresh token goes out as an HTTP-only cookie.
func (h *AuthHandler) GoogleLogin(c *fiber.Ctx) error {
	var req GoogleLoginRequest
	if err := c.BodyParser(&req); err != nil || req.IDToken == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "id_token is required",
		})
	}

	info, err := h.google.VerifyIDToken(c.Context(), req.IDToken)
	if err != nil {
		log.Printf("[Auth] google token rejected: %v", err)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "invalid google credential",
		})
	}

	user, err := h.upsertUser(info)
	if err != nil {
		log.Printf("[Auth] upsert %s failed: %v", info.Email, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to save user",
		})
	}

	return h.issueTokens(c, user)
}

// RefreshToken exchanges the refresh cookie for a new access token.
func (h *AuthHandler) RefreshToken(c *fiber.Ctx) error {
	refreshToken := c.Cookies("refresh_token")
	if refreshToken == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "refresh token missing",
		})
	}

	userID, err := h.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			h.clearRefreshCookie(c)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "refresh token expired",
				"code":  "TOKEN_EXPIRED",
			})
		}
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "invalid refresh token",
		})
	}

	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "invalid refresh token",
		})
	}

	var user model.User
	if err := h.db.First(&user, id).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "user not found",
		})
	}

	return h.issueTokens(c, &user)
}

// Logout clears the refresh cookie.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	h.clearRefreshCookie(c)
	return c.JSON(fiber.Map{
		"message": "logged out",
	})
}

// GetMe returns the authenticated user's profile.
func (h *AuthHandler) GetMe(c *fiber.Ctx) error {
	userID, _ := c.Locals("userID").(string)
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "unauthorized",
		})
	}

	var user model.User
	if err := h.db.First(&user, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "user not found",
		})
	}

	return c.JSON(toUserResponse(&user))
}

func (h *AuthHandler) upsertUser(info *auth.GoogleUserInfo) (*model.User, error) {
	var user model.User
	err := h.db.First(&user, "email = ?", info.Email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		provider := "google"
		user = model.User{
			Email:      info.Email,
			Nickname:   info.Name,
			Provider:   &provider,
			ProviderID: &info.ID,
		}
		if info.Picture != "" {
			user.ProfileImg = &info.Picture
		}
		if user.Nickname == "" {
			user.Nickname = info.Email
		}
		if err := h.db.Create(&user).Error; err != nil {
			return nil, err
		}
		log.Printf("[Auth] new user %s (id=%d)", user.Email, user.ID)
		return &user, nil
	}
	if err != nil {
		return nil, err
	}

	// Keep the profile image fresh on each login.
	if info.Picture != "" && (user.ProfileImg == nil || *user.ProfileImg != info.Picture) {
		user.ProfileImg = &info.Picture
		if err := h.db.Save(&user).Error; err != nil {
			return nil, err
		}
	}
	return &user, nil
}

func (h *AuthHandler) issueTokens(c *fiber.Ctx, user *model.User) error {
	userID := strconv.FormatInt(user.ID, 10)

	accessToken, err := h.jwtManager.GenerateAccessToken(userID, user.Email, user.Nickname)
	if err != nil {
		log.Printf("[Auth] access token for %s failed: %v", user.Email, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to issue token",
		})
	}

	refreshToken, err := h.jwtManager.GenerateRefreshToken(userID)
	if err != nil {
		log.Printf("[Auth] refresh token for %s failed: %v", user.Email, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to issue token",
		})
	}

	c.Cookie(&fiber.Cookie{
		Name:     "refresh_token",
		Value:    refreshToken,
		Expires:  time.Now().Add(h.cfg.RefreshTokenExpiry),
		HTTPOnly: true,
		Secure:   h.cfg.SecureCookie,
		SameSite: "Lax",
		Path:     "/api/v1/auth",
	})

	return c.JSON(AuthResponse{
		Token: accessToken,
		User:  toUserResponse(user),
	})
}

func (h *AuthHandler) clearRefreshCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     "refresh_token",
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		Secure:   h.cfg.SecureCookie,
		SameSite: "Lax",
		Path:     "/api/v1/auth",
	})
}

func toUserResponse(u *model.User) UserResponse {
	resp := UserResponse{
		ID:       strconv.FormatInt(u.ID, 10),
		Email:    u.Email,
		Nickname: u.Nickname,
	}
	if u.ProfileImg != nil {
		resp.ProfileImg = *u.ProfileImg
	}
	return resp
}
