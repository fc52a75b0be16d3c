package http

import (
	"fmt"
	"log/slog"
	"time"

	"forum/internal/config"
	"forum/internal/delivery/http/controllers"
	"forum/internal/delivery/http/controllers/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type AuthService interface {
	controllers.AuthService
	middleware.AuthService
}

type Services struct {
	Auth    AuthService
	Forum   controllers.ForumService
	Storage controllers.Pinger
}

func InitRoutes(log *slog.Logger, cfg config.HTTPServerConfig, s Services) (*gin.Engine, error) {
	r := gin.New()
	r.Use(gin.Recovery())

	// The login limiter keys on ClientIP; forwarded headers count only when
	// they come from a configured proxy.
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	healthController := controllers.NewHealthHandler(log, s.Storage)
	userController := controllers.NewUserHandler(log, s.Auth, !cfg.InsecureCookies)
	questionController := controllers.NewQuestionHandler(log, s.Forum)
	authProvider := middleware.NewAuthMiddlewareProvider(log, s.Auth)
	limiter := middleware.NewRateLimiter(cfg.LoginRPS, cfg.LoginBurst)

	v1 := r.Group("/api/v1", middleware.LoggingMiddleware(log))
	{
		v1.GET("/healthcheck", healthController.Healthcheck)

		users := v1.Group("/users")
		{
			users.POST("/register", userController.Register)
			users.POST("/login", limiter.Middleware, userController.Login)
			users.POST("/refresh-token", limiter.Middleware, userController.Refresh)

			secured := users.Group("", authProvider.AuthMiddleware)
			{
				secured.POST("/logout", userController.Logout)
				secured.GET("/current-user", userController.CurrentUser)
				secured.POST("/change-password", userController.ChangePassword)
				secured.PATCH("/update-account", userController.UpdateAccount)
			}
		}

		questions := v1.Group("/questions")
		{
			questions.GET("", questionController.List)
			questions.GET("/:id", questionController.Get)
			questions.GET("/:id/answers", questionController.Answers)

			secured := questions.Group("", authProvider.AuthMiddleware)
			{
				secured.POST("", questionController.Ask)
				secured.POST("/:id/answers", questionController.Answer)
				secured.POST("/:id/vote", questionController.VoteQuestion)
			}
		}

		v1.POST("/answers/:id/vote", authProvider.AuthMiddleware, questionController.VoteAnswer)
	}

	return r, nil
}
