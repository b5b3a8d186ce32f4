// handlers/progression_routes.go
package handlers

import (
	"strconv"

	"habit-progression-engine/middleware"
	"habit-progression-engine/models"
	"habit-progression-engine/services"

	"github.com/gofiber/fiber/v2"
)

func SetupProgressionRoutes(secured fiber.Router, progressionService *services.ProgressionService, badgeService *services.BadgeService, catalogService *services.CatalogService) {
	secured.Get("/user/progress", func(c *fiber.Ctx) error {
		userID := middleware.UserID(c)
		snap := progressionService.GetProgress(c.UserContext(), userID)
		prog := snap.Progress

		return c.JSON(fiber.Map{
			"id":                prog.ID,
			"user_id":           userID,
			"xp":                prog.TotalXP,
			"level":             prog.Level,
			"xp_in_level":       prog.XPInLevel,
			"xp_to_next":        prog.XPToNext,
			"hp":                prog.HP,
			"max_hp":            models.MaxHP,
			"gold":              prog.Gold,
			"streak":            prog.Streak,
			"longest_streak":    prog.LongestStreak,
			"total_completions": prog.TotalCompletions,
			"last_level_up_at":  prog.LastLevelUpAt,
			"degraded":          snap.Degraded,
		})
	})

	secured.Get("/user/progress/stream", progressionService.StreamCompletionsSSE)

	secured.Get("/user/progress/recent", func(c *fiber.Ctx) error {
		days, _ := strconv.Atoi(c.Query("days", "7"))
		rows, err := progressionService.GetRecentCompletions(c.UserContext(), middleware.UserID(c), days)
		if err != nil {
			return respondError(c, err, "failed to get recent completions")
		}
		return c.JSON(fiber.Map{"completions": rows})
	})

	secured.Get("/user/progress/badges", func(c *fiber.Ctx) error {
		badges, err := badgeService.ListBadges(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err, "failed to get badges")
		}
		return c.JSON(badges)
	})

	// Tasks
	secured.Get("/tasks", func(c *fiber.Ctx) error {
		tasks, err := catalogService.ListTasks(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err, "failed to list tasks")
		}
		return c.JSON(tasks)
	})

	secured.Post("/tasks", func(c *fiber.Ctx) error {
		type Req struct {
			Title      string            `json:"title"`
			XPReward   int64             `json:"xp_reward"`
			GoldReward int64             `json:"gold_reward"`
			Repeat     models.TaskRepeat `json:"repeat"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
		task, err := catalogService.CreateTask(c.UserContext(), middleware.UserID(c), req.Title, req.XPReward, req.GoldReward, req.Repeat)
		if err != nil {
			return respondError(c, err, "failed to create task")
		}
		return c.Status(fiber.StatusCreated).JSON(task)
	})

	secured.Post("/tasks/:id/complete", func(c *fiber.Ctx) error {
		res, err := progressionService.CompleteTask(c.UserContext(), middleware.UserID(c), c.Params("id"))
		if err != nil {
			return respondError(c, err, "task completion failed")
		}
		return respondCompletion(c, res, res)
	})

	// Daily challenges
	secured.Get("/daily", func(c *fiber.Ctx) error {
		challenges, err := catalogService.ListDailyChallenges(c.UserContext())
		if err != nil {
			return respondError(c, err, "failed to list daily challenges")
		}
		ids := make([]string, len(challenges))
		for i, ch := range challenges {
			ids[i] = ch.ID
		}
		done, err := progressionService.CompletedToday(c.UserContext(), middleware.UserID(c), ids)
		if err != nil {
			return respondError(c, err, "failed to check daily completions")
		}

		items := make([]fiber.Map, 0, len(challenges))
		for _, ch := range challenges {
			items = append(items, fiber.Map{
				"id":              ch.ID,
				"title":           ch.Title,
				"xp_reward":       ch.XPReward,
				"gold_reward":     ch.GoldReward,
				"completed_today": done[ch.ID],
			})
		}
		return c.JSON(fiber.Map{
			"day":        progressionService.Clock().Today(),
			"challenges": items,
		})
	})

	secured.Post("/daily/:id/complete", func(c *fiber.Ctx) error {
		res, err := progressionService.CompleteDailyChallenge(c.UserContext(), middleware.UserID(c), c.Params("id"))
		if err != nil {
			return respondError(c, err, "daily challenge completion failed")
		}
		return respondCompletion(c, res, fiber.Map{
			"xp_reward":      res.XPAwarded,
			"gold_reward":    res.GoldAwarded,
			"levels_gained":  res.LevelsGained,
			"badges_awarded": res.BadgesAwarded,
			"window":         res.Window,
		})
	})
}
