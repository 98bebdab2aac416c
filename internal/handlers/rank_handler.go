package handlers

import (
	"context"
	"errors"
	"log"
	"time"

	"rank-service/internal/service"

	"github.com/gofiber/fiber/v3"
)

type RankHandler struct {
	promotionService *service.PromotionService
}

func NewRankHandler(promotionService *service.PromotionService) *RankHandler {
	return &RankHandler{
		promotionService: promotionService,
	}
}

func (h *RankHandler) RegisterRoutes(app *fiber.App) {
	app.Get("/health", h.HealthCheck)

	protected := app.Group("/protected/rank", RequireUser, Recover)
	protected.Get("/quiz/eligibility", h.CheckEligibility)
	protected.Post("/quiz", h.StartQuiz)
	protected.Post("/quiz/answer", h.SubmitAnswer)
}

// RequireUser rejects requests the gateway forwarded without an
// authenticated member ID.
func RequireUser(c fiber.Ctx) error {
	if c.Get("X-User-ID") == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
			"code":  "MISSING_USER_ID",
		})
	}
	return c.Next()
}

// Recover converts a panicking handler into a generic retry answer so one
// malformed interaction cannot take the process down.
func Recover(c fiber.Ctx) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic handling %s %s: %v", c.Method(), c.Path(), r)
			err = c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Something went wrong. Try again or contact leadership.",
			})
		}
	}()
	return c.Next()
}

func (h *RankHandler) HealthCheck(c fiber.Ctx) error {
	return c.Status(fiber.StatusOK).SendString("Rank Service is healthy")
}

func (h *RankHandler) CheckEligibility(c fiber.Ctx) error {
	memberID := c.Get("X-User-ID")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	denial, err := h.promotionService.Eligibility(ctx, memberID)
	if err != nil {
		log.Printf("Failed to check eligibility for member %s: %v", memberID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Something went wrong. Try again or contact leadership.",
		})
	}
	if denial != nil {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"eligible": false,
			"code":     denial.Code,
			"message":  denial.Message,
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"eligible": true})
}

func (h *RankHandler) StartQuiz(c fiber.Ctx) error {
	memberID := c.Get("X-User-ID")
	guildID := c.Get("X-Guild-ID")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	prompt, err := h.promotionService.StartQuiz(ctx, memberID, guildID)
	if err != nil {
		return denialOrError(c, memberID, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Promotion quiz started",
		"data": fiber.Map{
			"question": prompt,
		},
	})
}

type answerRequest struct {
	Key    string `json:"key"`
	Choice int    `json:"choice"`
}

func (h *RankHandler) SubmitAnswer(c fiber.Ctx) error {
	memberID := c.Get("X-User-ID")

	var req answerRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	outcome, err := h.promotionService.SubmitAnswer(ctx, memberID, req.Key, req.Choice)
	if err != nil {
		return denialOrError(c, memberID, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": outcome,
	})
}

// denialOrError keeps the two error families apart: denials are answers to
// the requester, anything else is a system failure.
func denialOrError(c fiber.Ctx, memberID string, err error) error {
	var denial *service.Denial
	if errors.As(err, &denial) {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"denied":  true,
			"code":    denial.Code,
			"message": denial.Message,
		})
	}
	log.Printf("Quiz interaction failed for member %s: %v", memberID, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Something went wrong. Try again or contact leadership.",
	})
}
