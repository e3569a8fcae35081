// Package devserver is a local stand-in for the HR backend's chat, employee
// and request endpoints, backed by SQLite. It reproduces the server-side
// behaviour the console relies on: unread counts raised for everyone but
// the sender, mark-read resets and the denormalized group preview.
package devserver

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/srmsweets/hrportal/internal/logging"
	"github.com/srmsweets/hrportal/internal/models"
)

// Server serves the backend API over a Store.
type Server struct {
	store  *Store
	router *gin.Engine
	logger zerolog.Logger
}

// NewServer builds the router.
func NewServer(store *Store) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		store:  store,
		router: gin.New(),
		logger: logging.Component("devserver"),
	}
	s.router.Use(gin.Recovery(), s.requestLogger())
	s.registerRoutes(s.router)
	return s
}

// Handler exposes the router, for httptest and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("dev server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		s.logger.Info().Msg("dev server stopped")
		return nil
	}
}

func (s *Server) registerRoutes(r *gin.Engine) {
	chat := r.Group("/api/chat")

	// GET /api/chat/groups/:id -> groups of user :id
	chat.GET("/groups/:id", s.listGroups)
	chat.POST("/groups", s.createGroup)
	chat.DELETE("/groups/:id", s.deleteGroup)
	chat.GET("/groups/:id/messages", s.listMessages)
	chat.POST("/groups/:id/messages", s.sendMessage)
	chat.POST("/groups/:id/read", s.markRead)

	api := r.Group("/api")
	api.GET("/employees", s.listEmployees)
	api.GET("/requests", s.listRequests)
}

type sendMessageRequest struct {
	SenderID   string `json:"senderId" binding:"required"`
	SenderName string `json:"senderName"`
	Content    string `json:"content" binding:"required"`
}

type createGroupRequest struct {
	Name      string   `json:"name"`
	Members   []string `json:"members"`
	CreatedBy string   `json:"createdBy" binding:"required"`
}

type markReadRequest struct {
	UserID string `json:"userId" binding:"required"`
}

func (s *Server) listGroups(c *gin.Context) {
	groups, err := s.store.ListGroups(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, groups)
}

func (s *Server) createGroup(c *gin.Context) {
	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		reject(c, http.StatusBadRequest, err.Error())
		return
	}
	input, err := models.ValidateCreateGroup(req.Name, req.Members, req.CreatedBy)
	if err != nil {
		reject(c, http.StatusBadRequest, err.Error())
		return
	}
	group, err := s.store.CreateGroup(c.Request.Context(), input)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.logger.Info().Str("group_id", group.ID).Str("name", group.Name).Msg("group created")
	ok(c, http.StatusCreated, group)
}

func (s *Server) deleteGroup(c *gin.Context) {
	if err := s.store.DeleteGroup(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Group deleted"})
}

func (s *Server) listMessages(c *gin.Context) {
	msgs, err := s.store.ListMessages(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, msgs)
}

func (s *Server) sendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		reject(c, http.StatusBadRequest, err.Error())
		return
	}
	content, err := models.ValidateMessageContent(req.Content)
	if err != nil {
		reject(c, http.StatusBadRequest, err.Error())
		return
	}
	name := strings.TrimSpace(req.SenderName)
	if name == "" {
		name = req.SenderID
	}
	msg, err := s.store.SendMessage(c.Request.Context(), c.Param("id"), req.SenderID, name, content)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, msg)
}

func (s *Server) markRead(c *gin.Context) {
	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		reject(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.MarkRead(c.Request.Context(), c.Param("id"), req.UserID); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Marked as read"})
}

func (s *Server) listEmployees(c *gin.Context) {
	employees, err := s.store.ListEmployees(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"employees": employees})
}

func (s *Server) listRequests(c *gin.Context) {
	requests, err := s.store.ListRequests(c.Request.Context(), c.Query("status"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func reject(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrGroupNotFound):
		reject(c, http.StatusNotFound, "Group not found")
	case errors.Is(err, ErrNotMember):
		reject(c, http.StatusForbidden, err.Error())
	default:
		s.logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		reject(c, http.StatusInternalServerError, "Internal server error")
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("request_id", c.GetHeader("X-Request-ID")).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(started)).
			Msg("request")
	}
}
