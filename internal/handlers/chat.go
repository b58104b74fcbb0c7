package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/PashamDhanushReddy/TalentLink/internal/models"
	"github.com/PashamDhanushReddy/TalentLink/internal/notify"
)

type ChatHandler struct {
	DB       *gorm.DB
	Notifier *notify.Publisher
}

func NewChatHandler(db *gorm.DB, notifier *notify.Publisher) *ChatHandler {
	return &ChatHandler{DB: db, Notifier: notifier}
}

// MessageOut is the wire shape chat clients consume.
type MessageOut struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversation"`
	SenderID       string          `json:"sender"`
	SenderName     string          `json:"sender_name,omitempty"`
	MessageType    string          `json:"message_type"`
	Text           string          `json:"text"`
	IsRead         bool            `json:"is_read"`
	ReadAt         *time.Time      `json:"read_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	ReplyingTo     json.RawMessage `json:"replying_to,omitempty"`
}

type ConversationOut struct {
	ID                string      `json:"id"`
	ContractID        string      `json:"contract"`
	Participants      []string    `json:"participants"`
	ParticipantsNames []string    `json:"participants_names,omitempty"`
	UnreadCount       int64       `json:"unread_count"`
	LastMessage       *MessageOut `json:"last_message,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

func toMessageOut(msg *models.Message) *MessageOut {
	out := &MessageOut{
		ID:             msg.ID.String(),
		ConversationID: msg.ConversationID.String(),
		SenderID:       msg.SenderID.String(),
		MessageType:    msg.Type,
		Text:           msg.Text,
		IsRead:         msg.IsRead,
		ReadAt:         msg.ReadAt,
		CreatedAt:      msg.CreatedAt,
	}
	if msg.Sender != nil {
		out.SenderName = msg.Sender.Name
	}
	if len(msg.ReplyingTo) > 0 {
		out.ReplyingTo = json.RawMessage(msg.ReplyingTo)
	}
	return out
}

// loadConversation fetches the conversation and enforces membership. The
// bool result distinguishes "responded already" for the caller.
func (h *ChatHandler) loadConversation(c *fiber.Ctx, userID uuid.UUID) (*models.Conversation, bool) {
	convUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid conversation ID",
		})
		return nil, false
	}

	var conv models.Conversation
	if err := h.DB.First(&conv, "id = ?", convUUID).Error; err != nil {
		_ = c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Conversation not found",
		})
		return nil, false
	}

	if !conv.IsParticipant(userID) {
		_ = c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"message": "You are not a participant in this conversation",
		})
		return nil, false
	}

	return &conv, true
}

// CreateOrGetConversation binds a contract to its conversation. Create is
// idempotent: if the conversation already exists the existing row is returned
// with 200, never a duplicate.
func (h *ChatHandler) CreateOrGetConversation(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var req struct {
		ContractID string `json:"contract_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.ContractID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "contract_id is required",
		})
	}

	contractUUID, err := uuid.Parse(req.ContractID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid contract ID",
		})
	}

	var contract models.Contract
	if err := h.DB.First(&contract, "id = ?", contractUUID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Contract not found",
		})
	}

	if !contract.IsParty(userUUID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"message": "You are not a party to this contract",
		})
	}

	var conv models.Conversation
	err = h.DB.Where("contract_id = ?", contractUUID).First(&conv).Error
	if err == nil {
		return c.JSON(fiber.Map{"success": true, "data": h.conversationOut(&conv, userUUID)})
	}
	if err != gorm.ErrRecordNotFound {
		log.Println("Error fetching conversation:", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to fetch conversation",
		})
	}

	conv = models.Conversation{
		ContractID:    contractUUID,
		ClientID:      contract.ClientID,
		FreelancerID:  contract.FreelancerID,
		LastMessageAt: time.Now(),
	}
	createErr := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&conv).Error; err != nil {
			return err
		}
		opener := models.Message{
			ConversationID: conv.ID,
			SenderID:       userUUID,
			Type:           models.MessageTypeSystem,
			Text:           fmt.Sprintf("Contract conversation started for '%s'", contract.Title),
		}
		return tx.Create(&opener).Error
	})
	if createErr != nil {
		// A concurrent create may have won the unique-index race; return the
		// winner instead of failing.
		if err := h.DB.Where("contract_id = ?", contractUUID).First(&conv).Error; err == nil {
			return c.JSON(fiber.Map{"success": true, "data": h.conversationOut(&conv, userUUID)})
		}
		log.Println("Error creating conversation:", createErr)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to create conversation",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": h.conversationOut(&conv, userUUID)})
}

func (h *ChatHandler) conversationOut(conv *models.Conversation, userID uuid.UUID) ConversationOut {
	var unreadCount int64
	h.DB.Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id != ? AND is_read = false", conv.ID, userID).
		Count(&unreadCount)

	var lastPtr *MessageOut
	var last models.Message
	if err := h.DB.
		Preload("Sender").
		Where("conversation_id = ?", conv.ID).
		Order("created_at DESC").
		Limit(1).
		First(&last).Error; err == nil {
		lastPtr = toMessageOut(&last)
	}

	var names []string
	var users []models.User
	if err := h.DB.Where("id IN ?", []uuid.UUID{conv.ClientID, conv.FreelancerID}).Find(&users).Error; err == nil {
		for _, u := range users {
			names = append(names, u.Name)
		}
	}

	return ConversationOut{
		ID:                conv.ID.String(),
		ContractID:        conv.ContractID.String(),
		Participants:      []string{conv.ClientID.String(), conv.FreelancerID.String()},
		ParticipantsNames: names,
		UnreadCount:       unreadCount,
		LastMessage:       lastPtr,
		CreatedAt:         conv.CreatedAt,
		UpdatedAt:         conv.LastMessageAt,
	}
}

// GetConversations returns the caller's conversations, most recent first.
func (h *ChatHandler) GetConversations(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var convs []models.Conversation
	if err := h.DB.
		Where("client_id = ? OR freelancer_id = ?", userUUID, userUUID).
		Order("last_message_at DESC").
		Find(&convs).Error; err != nil {
		log.Println("Error fetching conversations:", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to fetch conversations"})
	}

	out := make([]ConversationOut, 0, len(convs))
	for i := range convs {
		out = append(out, h.conversationOut(&convs[i], userUUID))
	}

	return c.JSON(fiber.Map{"success": true, "data": out})
}

// GetMessages returns the conversation history oldest first and marks the
// other party's messages read. That read receipt is what a sender's next poll
// observes as is_read=true.
func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	conv, ok := h.loadConversation(c, userUUID)
	if !ok {
		return nil
	}

	var messages []models.Message
	if err := h.DB.
		Preload("Sender").
		Where("conversation_id = ?", conv.ID).
		Order("created_at ASC").
		Find(&messages).Error; err != nil {
		log.Println("Error fetching messages:", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to fetch messages",
		})
	}

	if err := h.markRead(conv.ID, userUUID); err != nil {
		// Reading history still succeeds; the receipt lands on a later fetch.
		log.Println("Error marking messages as read:", err)
	}

	out := make([]*MessageOut, 0, len(messages))
	for i := range messages {
		out = append(out, toMessageOut(&messages[i]))
	}

	return c.JSON(fiber.Map{"success": true, "data": out})
}

func (h *ChatHandler) markRead(convID, readerID uuid.UUID) error {
	return h.DB.Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id != ? AND is_read = false", convID, readerID).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": time.Now(),
		}).Error
}

// MarkAsRead marks every message from the other party as read.
func (h *ChatHandler) MarkAsRead(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	conv, ok := h.loadConversation(c, userUUID)
	if !ok {
		return nil
	}

	if err := h.markRead(conv.ID, userUUID); err != nil {
		log.Println("Error marking messages as read:", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to mark messages as read",
		})
	}

	return c.JSON(fiber.Map{"success": true})
}

type sendMessageReq struct {
	Text        string `json:"text"`
	MessageType string `json:"message_type"`
	ReplyingTo  *struct {
		ID         string `json:"id"`
		Text       string `json:"text"`
		SenderName string `json:"sender_name"`
	} `json:"replying_to"`
}

// SendMessage persists a message and notifies the recipient.
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	conv, ok := h.loadConversation(c, userUUID)
	if !ok {
		return nil
	}

	var req sendMessageReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request",
		})
	}

	if req.MessageType == "" {
		req.MessageType = models.MessageTypeText
	}
	if req.MessageType != models.MessageTypeText {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Unsupported message type",
		})
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Text is required",
		})
	}

	var sender models.User
	if err := h.DB.First(&sender, "id = ?", userUUID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "User not found",
		})
	}

	msg := models.Message{
		ConversationID: conv.ID,
		SenderID:       userUUID,
		Type:           models.MessageTypeText,
		Text:           text,
		IsRead:         false,
	}
	if req.ReplyingTo != nil {
		snapshot, err := json.Marshal(req.ReplyingTo)
		if err == nil {
			msg.ReplyingTo = datatypes.JSON(snapshot)
		}
	}

	if err := h.DB.Create(&msg).Error; err != nil {
		log.Println("Error creating message:", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to send message",
		})
	}

	_ = h.DB.Model(&models.Conversation{}).
		Where("id = ?", conv.ID).
		Update("last_message_at", msg.CreatedAt).Error

	msg.Sender = &sender
	out := toMessageOut(&msg)

	h.Notifier.NewMessage(c.Context(), conv.OtherParticipant(userUUID), notify.MessageEvent{
		ConversationID: conv.ID.String(),
		SenderID:       userUUID.String(),
		SenderName:     sender.Name,
		Text:           text,
	})

	return c.JSON(fiber.Map{"success": true, "data": out})
}

// ClearChat empties the conversation history. The conversation itself is
// never deleted.
func (h *ChatHandler) ClearChat(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	conv, ok := h.loadConversation(c, userUUID)
	if !ok {
		return nil
	}

	if err := h.DB.Where("conversation_id = ?", conv.ID).Delete(&models.Message{}).Error; err != nil {
		log.Println("Error clearing chat:", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to clear chat",
		})
	}

	return c.JSON(fiber.Map{"success": true})
}

// GetUnreadTotal returns the unread count across all of the caller's
// conversations, for the navbar badge.
func (h *ChatHandler) GetUnreadTotal(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var count int64
	err = h.DB.Model(&models.Message{}).
		Joins("JOIN conversations ON messages.conversation_id = conversations.id").
		Where("(conversations.client_id = ? OR conversations.freelancer_id = ?) AND messages.sender_id != ? AND messages.is_read = false",
			userUUID, userUUID, userUUID).
		Count(&count).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to count unread messages"})
	}

	return c.JSON(fiber.Map{"success": true, "data": count})
}
