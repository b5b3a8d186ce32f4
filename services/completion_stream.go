package services

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"habit-progression-engine/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// StreamInterval is how often the completion stream polls the ledger.
var StreamInterval = 2 * time.Second

// completionEvent is one streamed ledger row plus the progress it produced.
type completionEvent struct {
	Record models.CompletionRecord `json:"completion"`
	Level  int                     `json:"level"`
	Gold   int64                   `json:"gold"`
	HP     int                     `json:"hp"`
}

// StreamCompletionsSSE streams the authenticated user's new ledger rows as
// server-sent events. Clients re-read nothing; every event carries the new totals.
func (s *ProgressionService) StreamCompletionsSSE(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	ctx := c.Context()

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(StreamInterval)
		defer ticker.Stop()

		cursor := s.clock.Now()
		var latest models.CompletionRecord
		err := s.DB.Where("user_id = ?", userID).Order("completed_at DESC").First(&latest).Error
		switch {
		case err == nil:
			cursor = latest.CompletedAt
		case !errors.Is(err, gorm.ErrRecordNotFound):
			s.log.Warn("SSE init failed", "user_id", userID, "error", err)
		}

		// Initial keepalive (comment event)
		w.WriteString(":\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case <-ticker.C:
				var rows []models.CompletionRecord
				if err := s.DB.
					Where("user_id = ? AND completed_at > ?", userID, cursor).
					Order("completed_at ASC").
					Find(&rows).Error; err != nil {
					s.log.Warn("SSE query failed", "user_id", userID, "error", err)
					continue
				}
				if len(rows) == 0 {
					w.WriteString(":\n\n")
					if err := w.Flush(); err != nil {
						return
					}
					continue
				}
				cursor = rows[len(rows)-1].CompletedAt

				var prog models.UserProgress
				if err := s.DB.Where("user_id = ?", userID).First(&prog).Error; err != nil {
					prog = DefaultProgress(userID)
				}
				for _, r := range rows {
					payload, _ := json.Marshal(completionEvent{Record: r, Level: prog.Level, Gold: prog.Gold, HP: prog.HP})
					fmt.Fprintf(w, "event: completion\ndata: %s\n\n", payload)
				}
				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}

			case <-ctx.Done():
				return
			}
		}
	})

	return nil
}
