package api

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/example/wordsrs/internal/backup"
	"github.com/example/wordsrs/internal/database"
	"github.com/example/wordsrs/internal/scheduler"
	"github.com/example/wordsrs/internal/spaced_repetition"
	"github.com/example/wordsrs/internal/streak"
	"github.com/example/wordsrs/pkg/models"
)

const maxStatsDays = 90

type UserHandler struct {
	users *database.UserRepository
	model *spaced_repetition.SM2
	now   func() time.Time
}

func NewUserHandler(model *spaced_repetition.SM2, now func() time.Time) *UserHandler {
	return &UserHandler{users: database.NewUserRepository(), model: model, now: now}
}

// userStore resolves the :id parameter to the store of a registered user.
// It writes the error response itself and returns nil on failure.
func (h *UserHandler) userStore(c *gin.Context) *database.UserStore {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return nil
	}
	if _, err := h.users.GetByID(c.Request.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return nil
		}
		h.internalError(c, err)
		return nil
	}
	return database.NewUserStore(id)
}

func (h *UserHandler) internalError(c *gin.Context, err error) {
	log.Printf("Error handling %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

// Due returns how many review cards the user will be shown today
func (h *UserHandler) Due(c *gin.Context) {
	store := h.userStore(c)
	if store == nil {
		return
	}

	now := h.now()
	count, err := scheduler.CountDueReviews(c.Request.Context(), store, h.model, now)
	if err != nil {
		h.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"userId": store.UserID(),
		"date":   models.DateOf(now),
		"due":    count,
	})
}

// Streak returns the current study streak
func (h *UserHandler) Streak(c *gin.Context) {
	store := h.userStore(c)
	if store == nil {
		return
	}

	current, err := streak.NewTracker(store).WithClock(h.now).Current(c.Request.Context())
	if err != nil {
		h.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, current)
}

// Stats returns card counts, recent reviews and the due forecast
func (h *UserHandler) Stats(c *gin.Context) {
	store := h.userStore(c)
	if store == nil {
		return
	}

	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days < 1 || days > maxStatsDays {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("days must be between 1 and %d", maxStatsDays)})
		return
	}

	stats, err := store.GetStatistics(c.Request.Context(), h.now(), days)
	if err != nil {
		h.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Export downloads a backup of everything the user studied
func (h *UserHandler) Export(c *gin.Context) {
	store := h.userStore(c)
	if store == nil {
		return
	}

	now := h.now()
	env, err := backup.Export(c.Request.Context(), store, now)
	if err != nil {
		h.internalError(c, err)
		return
	}
	var buf bytes.Buffer
	if err := backup.Write(&buf, env); err != nil {
		h.internalError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", backup.FileName(now)))
	c.Data(http.StatusOK, "application/json", buf.Bytes())
}
