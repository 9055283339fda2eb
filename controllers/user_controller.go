package controller

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"casedesk/models"
	"casedesk/utils"
)

type UserController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewUserController(db *gorm.DB, logger *log.Logger) *UserController {
	return &UserController{
		DB:     db,
		Logger: logger,
	}
}

type CreateUserInput struct {
	ID          string  `json:"id"`
	Email       string  `json:"email" validate:"required,email"`
	DisplayName string  `json:"display_name" validate:"required,min=1,max=100"`
	Role        string  `json:"role" validate:"omitempty,oneof=admin member viewer"`
	Avatar      *string `json:"avatar"`
}

// GetUsers returns all users ordered by display name.
func (uc *UserController) GetUsers(c *fiber.Ctx) error {
	var users []models.User
	if err := uc.DB.WithContext(c.Context()).Order("display_name ASC").Find(&users).Error; err != nil {
		uc.Logger.Printf("Failed to list users: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch users", err)
	}
	return c.JSON(users)
}

// GetUser returns a single user by ID.
func (uc *UserController) GetUser(c *fiber.Ctx) error {
	var user models.User
	err := uc.DB.WithContext(c.Context()).First(&user, "id = ?", c.Params("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "User not found", nil)
	}
	if err != nil {
		uc.Logger.Printf("Failed to fetch user %s: %v", c.Params("id"), err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch user", err)
	}
	return c.JSON(user)
}

// CreateUser creates a user row.
func (uc *UserController) CreateUser(c *fiber.Ctx) error {
	var input CreateUserInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	role := input.Role
	if role == "" {
		role = "member"
	}
	user := models.User{
		ID:          input.ID,
		Email:       &input.Email,
		DisplayName: input.DisplayName,
		Role:        role,
		Avatar:      input.Avatar,
	}
	if err := uc.DB.WithContext(c.Context()).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return utils.ErrorResponse(c, fiber.StatusConflict, "Email already registered", nil)
		}
		uc.Logger.Printf("Failed to create user: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create user", err)
	}

	return c.Status(fiber.StatusCreated).JSON(user)
}

// UpdateUser patches user fields. The id and created_at stay fixed.
func (uc *UserController) UpdateUser(c *fiber.Ctx) error {
	id := c.Params("id")

	var body map[string]interface{}
	if err := c.BodyParser(&body); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	updates := map[string]interface{}{}
	for key, value := range body {
		switch key {
		case "email", "display_name", "role", "avatar", "status", "is_active", "is_online":
			updates[key] = value
		case "displayName":
			updates["display_name"] = value
		case "isActive":
			updates["is_active"] = value
		case "isOnline":
			updates["is_online"] = value
		case "last_seen", "lastSeen":
			if s, ok := value.(string); ok {
				if t, err := time.Parse(time.RFC3339, s); err == nil {
					updates["last_seen"] = t
				}
			}
		}
	}
	if len(updates) == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "No updatable fields in request", nil)
	}

	result := uc.DB.WithContext(c.Context()).Model(&models.User{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		uc.Logger.Printf("Failed to update user %s: %v", id, result.Error)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update user", result.Error)
	}
	if result.RowsAffected == 0 {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "User not found", nil)
	}

	var user models.User
	if err := uc.DB.WithContext(c.Context()).First(&user, "id = ?", id).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch user", err)
	}
	return c.JSON(user)
}

// DeleteUser removes a user row. Deleting a missing id still succeeds.
func (uc *UserController) DeleteUser(c *fiber.Ctx) error {
	if err := uc.DB.WithContext(c.Context()).Delete(&models.User{}, "id = ?", c.Params("id")).Error; err != nil {
		uc.Logger.Printf("Failed to delete user %s: %v", c.Params("id"), err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete user", err)
	}
	return c.JSON(fiber.Map{"success": true})
}
