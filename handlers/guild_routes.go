// handlers/guild_routes.go
package handlers

import (
	"habit-progression-engine/middleware"
	"habit-progression-engine/services"

	"github.com/gofiber/fiber/v2"
)

func SetupGuildRoutes(secured fiber.Router, guildService *services.GuildService, treasuryService *services.TreasuryService, raidService *services.RaidService) {
	secured.Post("/guilds", func(c *fiber.Ctx) error {
		type Req struct {
			Name string `json:"name"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
		guild, err := guildService.CreateGuild(c.UserContext(), middleware.UserID(c), req.Name)
		if err != nil {
			return respondError(c, err, "failed to create guild")
		}
		return c.Status(fiber.StatusCreated).JSON(guild)
	})

	// Registered before /guilds/:id so "treasury" is never read as a guild id.
	secured.Post("/guilds/treasury/donate", func(c *fiber.Ctx) error {
		type Req struct {
			Amount int64 `json:"amount"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
		res, err := treasuryService.Donate(c.UserContext(), middleware.UserID(c), req.Amount)
		if err != nil {
			return respondError(c, err, "donation failed")
		}
		return c.JSON(fiber.Map{
			"success":       true,
			"guild_id":      res.GuildID,
			"user_gold":     res.UserGold,
			"treasury_gold": res.TreasuryGold,
		})
	})

	secured.Get("/guilds/upgrades/catalog", func(c *fiber.Ctx) error {
		return c.JSON(services.UpgradeCatalog)
	})

	secured.Get("/guilds/:id", func(c *fiber.Ctx) error {
		guild, err := guildService.GetGuild(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, err, "failed to get guild")
		}
		return c.JSON(guild)
	})

	secured.Post("/guilds/:id/join", func(c *fiber.Ctx) error {
		member, err := guildService.JoinGuild(c.UserContext(), middleware.UserID(c), c.Params("id"))
		if err != nil {
			return respondError(c, err, "failed to join guild")
		}
		return c.JSON(member)
	})

	// Upgrades
	secured.Get("/guilds/:id/upgrades", func(c *fiber.Ctx) error {
		upgrades, err := treasuryService.ActiveUpgrades(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, err, "failed to list upgrades")
		}
		return c.JSON(upgrades)
	})

	secured.Post("/guilds/:id/upgrades", func(c *fiber.Ctx) error {
		type Req struct {
			UpgradeID string `json:"upgrade_id"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
		upgrade, err := treasuryService.BuyUpgrade(c.UserContext(), middleware.UserID(c), c.Params("id"), req.UpgradeID)
		if err != nil {
			return respondError(c, err, "upgrade purchase failed")
		}
		return c.JSON(fiber.Map{
			"success":    true,
			"upgrade_id": upgrade.UpgradeID,
			"expires_at": upgrade.ExpiresAt,
		})
	})

	// Raids
	secured.Get("/guilds/:id/raids", func(c *fiber.Ctx) error {
		raids, err := raidService.ListRaids(c.UserContext(), middleware.UserID(c), c.Params("id"))
		if err != nil {
			return respondError(c, err, "failed to list raids")
		}
		return c.JSON(raids)
	})

	secured.Post("/guilds/:id/raids", func(c *fiber.Ctx) error {
		type Req struct {
			Title    string `json:"title"`
			XPReward int64  `json:"xp_reward"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
		raid, err := raidService.CreateRaid(c.UserContext(), middleware.UserID(c), c.Params("id"), req.Title, req.XPReward)
		if err != nil {
			return respondError(c, err, "failed to create raid")
		}
		return c.Status(fiber.StatusCreated).JSON(raid)
	})

	secured.Post("/raids/:id/participate", func(c *fiber.Ctx) error {
		res, err := raidService.ParticipateInRaid(c.UserContext(), middleware.UserID(c), c.Params("id"))
		if err != nil {
			return respondError(c, err, "raid participation failed")
		}
		return c.JSON(res)
	})
}
