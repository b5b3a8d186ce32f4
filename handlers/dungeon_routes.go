// handlers/dungeon_routes.go
package handlers

import (
	"habit-progression-engine/middleware"
	"habit-progression-engine/services"

	"github.com/gofiber/fiber/v2"
)

func SetupDungeonRoutes(secured fiber.Router, dungeonService *services.DungeonService, petService *services.PetService) {
	secured.Get("/dungeons/:id", func(c *fiber.Ctx) error {
		status, err := dungeonService.GetDungeonStatus(c.UserContext(), middleware.UserID(c), c.Params("id"))
		if err != nil {
			return respondError(c, err, "failed to get dungeon")
		}
		return c.JSON(status)
	})

	secured.Post("/dungeons/:id/missions/:mission_id/complete", func(c *fiber.Ctx) error {
		res, err := dungeonService.CompleteDungeonMission(c.UserContext(), middleware.UserID(c), c.Params("id"), c.Params("mission_id"))
		if err != nil {
			return respondError(c, err, "mission completion failed")
		}
		return respondCompletion(c, res.CompletionResult, fiber.Map{
			"xp_reward":      res.XPAwarded,
			"gold_reward":    res.GoldAwarded,
			"levels_gained":  res.LevelsGained,
			"theme_unlocked": res.ThemeUnlocked,
		})
	})

	secured.Get("/user/themes", func(c *fiber.Ctx) error {
		themes, err := dungeonService.ListUnlockedThemes(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err, "failed to list themes")
		}
		return c.JSON(themes)
	})

	// Companions
	secured.Get("/pets", func(c *fiber.Ctx) error {
		pets, err := petService.ListPets(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err, "failed to list pets")
		}
		return c.JSON(pets)
	})

	secured.Post("/pets/:id/activate", func(c *fiber.Ctx) error {
		pet, err := petService.ActivatePet(c.UserContext(), middleware.UserID(c), c.Params("id"))
		if err != nil {
			return respondError(c, err, "pet activation failed")
		}
		return c.JSON(pet)
	})
}
