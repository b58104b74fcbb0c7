package handlers

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/PashamDhanushReddy/TalentLink/internal/models"
)

// ContractHandler exposes the minimum contract surface the chat flow needs:
// create one and list your own. Full contract management lives elsewhere.
type ContractHandler struct {
	DB *gorm.DB
}

func NewContractHandler(db *gorm.DB) *ContractHandler {
	return &ContractHandler{DB: db}
}

type createContractReq struct {
	Title        string `json:"title"`
	FreelancerID string `json:"freelancer_id"`
}

func (h *ContractHandler) Create(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var req createContractReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid request"})
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Title is required"})
	}

	freelancerUUID, err := uuid.Parse(req.FreelancerID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid freelancer ID"})
	}

	var freelancer models.User
	if err := h.DB.First(&freelancer, "id = ? AND role = ?", freelancerUUID, models.RoleFreelancer).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": "Freelancer not found"})
	}

	contract := models.Contract{
		Title:        title,
		ClientID:     userUUID,
		FreelancerID: freelancerUUID,
		Status:       models.ContractStatusActive,
	}
	if err := h.DB.Create(&contract).Error; err != nil {
		log.Println("Error creating contract:", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to create contract"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": contract})
}

func (h *ContractHandler) ListMine(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var contracts []models.Contract
	if err := h.DB.
		Preload("Client").
		Preload("Freelancer").
		Where("client_id = ? OR freelancer_id = ?", userUUID, userUUID).
		Order("created_at DESC").
		Find(&contracts).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to fetch contracts"})
	}

	return c.JSON(fiber.Map{"success": true, "data": contracts})
}
