// Package server exposes the HTTP boundary: account registration and
// login, authenticated generation and feedback, and a websocket chat
// stream.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/dynamem/dynamem/core"
	"github.com/dynamem/dynamem/engine"
	"github.com/dynamem/dynamem/store"
)

// Per-user request budgets. Feedback is tighter because each request can
// trigger a fine-tuning step on the shared model.
const (
	generateLimit = 10
	feedbackLimit = 5
	limitWindow   = time.Minute
)

// Generator is the engine surface the server needs.
// Implementations: engine.Engine.
type Generator interface {
	Generate(ctx context.Context, ownerID, userInput string) (*engine.GenerateOutput, error)
	Feedback(ctx context.Context, ownerID string, in engine.FeedbackInput) (*engine.FeedbackOutput, error)
}

// Auth is the account and token surface the server needs.
// Implementations: store.Store.
type Auth interface {
	CreateUser(ctx context.Context, email, passwordHash string) (*core.User, error)
	GetUserByEmail(ctx context.Context, email string) (*core.User, error)
	CreateToken(ctx context.Context, userID string, ttl time.Duration) (string, error)
	ResolveToken(ctx context.Context, token string) (string, error)
}

// Server wires the engine and store behind a gin router.
type Server struct {
	engine Generator
	auth   Auth
	router *gin.Engine

	generateRL *rateLimiter
	feedbackRL *rateLimiter
}

// New builds a server with all routes registered.
func New(gen Generator, auth Auth) *Server {
	s := &Server{
		engine:     gen,
		auth:       auth,
		generateRL: newRateLimiter(generateLimit, limitWindow),
		feedbackRL: newRateLimiter(feedbackLimit, limitWindow),
	}

	router := gin.New()
	router.Use(gin.Recovery(), corsMiddleware())

	router.GET("/healthz", s.handleHealth)
	router.POST("/register", s.handleRegister)
	router.POST("/login", s.handleLogin)

	authed := router.Group("/", s.authMiddleware())
	authed.POST("/generate", s.rateLimit(s.generateRL), s.handleGenerate)
	authed.POST("/feedback", s.rateLimit(s.feedbackRL), s.handleFeedback)
	authed.GET("/ws", s.handleChatSocket)

	s.router = router
	return s
}

// Handler returns the router as an http.Handler, for serving and for
// tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	log.Printf("[SERVER] Listening on %s", addr)
	return s.router.Run(addr)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

const userIDKey = "userID"

func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		userID, err := s.auth.ResolveToken(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, store.ErrTokenInvalid) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token lookup failed"})
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

func (s *Server) rateLimit(rl *rateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow(c.GetString(userIDKey)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password"})
		return
	}

	user, err := s.auth.CreateUser(c.Request.Context(), req.Email, string(hash))
	if err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		log.Printf("[SERVER] Register failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create user"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": user.ID, "email": user.Email})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	user, err := s.auth.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "look up user"})
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := s.auth.CreateToken(c.Request.Context(), user.ID, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

type generateRequest struct {
	Input string `json:"input" binding:"required"`
}

func (s *Server) handleGenerate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "input is required"})
		return
	}

	out, err := s.engine.Generate(c.Request.Context(), c.GetString(userIDKey), req.Input)
	if err != nil {
		log.Printf("[SERVER] Generate failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generation failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"response": out.Response, "cached": out.FromCache})
}

type feedbackRequest struct {
	Input             string `json:"input" binding:"required"`
	ModelResponse     string `json:"model_response"`
	CorrectedResponse string `json:"corrected_response" binding:"required"`
}

func (s *Server) handleFeedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "input and corrected_response are required"})
		return
	}

	out, err := s.engine.Feedback(c.Request.Context(), c.GetString(userIDKey), engine.FeedbackInput{
		UserInput:         req.Input,
		ModelResponse:     req.ModelResponse,
		CorrectedResponse: req.CorrectedResponse,
	})
	if err != nil {
		if errors.Is(err, engine.ErrAdaptationUnavailable) {
			c.JSON(http.StatusNotImplemented, gin.H{"error": "active learning not available"})
			return
		}
		log.Printf("[SERVER] Feedback failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "feedback failed"})
		return
	}

	if out.Tuned {
		c.JSON(http.StatusOK, gin.H{"status": "Model fine-tuned", "loss": out.Loss})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "No fine-tuning needed"})
}
