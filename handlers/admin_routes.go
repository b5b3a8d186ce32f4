// handlers/admin_routes.go
package handlers

import (
	"habit-progression-engine/models"
	"habit-progression-engine/services"

	"github.com/gofiber/fiber/v2"
)

// SetupAdminRoutes mounts content management under an already role-gated router.
func SetupAdminRoutes(admin fiber.Router, catalogService *services.CatalogService, petService *services.PetService) {
	admin.Post("/daily-challenges", func(c *fiber.Ctx) error {
		type Req struct {
			Title      string `json:"title"`
			XPReward   int64  `json:"xp_reward"`
			GoldReward int64  `json:"gold_reward"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
		ch, err := catalogService.CreateDailyChallenge(c.UserContext(), req.Title, req.XPReward, req.GoldReward)
		if err != nil {
			return respondError(c, err, "failed to create daily challenge")
		}
		return c.Status(fiber.StatusCreated).JSON(ch)
	})

	admin.Post("/dungeons", func(c *fiber.Ctx) error {
		type Req struct {
			Name          string                  `json:"name"`
			Description   string                  `json:"description"`
			ThemeRewardID *string                 `json:"theme_reward_id"`
			Missions      []services.MissionInput `json:"missions"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
		dungeon, err := catalogService.CreateDungeon(c.UserContext(), req.Name, req.Description, req.ThemeRewardID, req.Missions)
		if err != nil {
			return respondError(c, err, "failed to create dungeon")
		}
		return c.Status(fiber.StatusCreated).JSON(dungeon)
	})

	admin.Patch("/dungeons/:id", func(c *fiber.Ctx) error {
		type Req struct {
			IsActive bool `json:"is_active"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
		if err := catalogService.SetDungeonActive(c.UserContext(), c.Params("id"), req.IsActive); err != nil {
			return respondError(c, err, "failed to update dungeon")
		}
		return c.JSON(fiber.Map{"id": c.Params("id"), "is_active": req.IsActive})
	})

	admin.Post("/pets", func(c *fiber.Ctx) error {
		type Req struct {
			UserID string           `json:"user_id"`
			Name   string           `json:"name"`
			Rarity models.PetRarity `json:"rarity"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
		pet, err := petService.GrantPet(c.UserContext(), req.UserID, req.Name, req.Rarity)
		if err != nil {
			return respondError(c, err, "failed to grant pet")
		}
		return c.Status(fiber.StatusCreated).JSON(pet)
	})
}
