package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/feastly/feastly-web/internal/app/cart"
	"github.com/feastly/feastly-web/internal/app/domain/account"
	"github.com/feastly/feastly-web/internal/app/domain/admin"
	"github.com/feastly/feastly-web/internal/app/domain/auth"
	"github.com/feastly/feastly-web/internal/app/domain/restaurants"
	"github.com/feastly/feastly-web/internal/app/middleware"
	"github.com/feastly/feastly-web/internal/app/session"
	"github.com/feastly/feastly-web/internal/pkg/config"
	"github.com/feastly/feastly-web/internal/pkg/upstream"
)

type AppHandlers struct {
	Auth        *auth.AuthHandlers
	Account     *account.AccountHandlers
	Admin       *admin.AdminHandlers
	Restaurants *restaurants.RestaurantsHandlers
	Cart        *cart.CartHandlers

	Sessions    *session.Manager
	RoleChecker *middleware.RoleChecker
	AuthLimiter *middleware.AuthRateLimiter
	AuthClient  *upstream.Client
}

// Setup wires dependencies and registers all routes.
func Setup(r *gin.Engine, cfg *config.Config, authClient, catalogClient *upstream.Client, log *zap.Logger) {
	handlers := setupDependencies(cfg, authClient, catalogClient, log)
	setupRouter(r, handlers, log)
}

func setupDependencies(cfg *config.Config, authClient, catalogClient *upstream.Client, log *zap.Logger) *AppHandlers {
	sessionManager := session.NewManager(log)
	cartStore := cart.NewStore()

	authService := auth.NewAuthService(authClient, log)
	accountService := account.NewService(authClient, log)
	catalogService := restaurants.NewService(catalogClient, cfg.Cache.CatalogTTL, log)

	return &AppHandlers{
		Auth:        auth.NewAuthHandlers(authService, sessionManager, log),
		Account:     account.NewAccountHandlers(accountService, sessionManager, log),
		Admin:       admin.NewAdminHandlers(authClient, sessionManager, log),
		Restaurants: restaurants.NewRestaurantsHandlers(catalogService, log),
		Cart:        cart.NewCartHandlers(cartStore, sessionManager, log),

		Sessions:    sessionManager,
		RoleChecker: middleware.NewRoleChecker(authClient, sessionManager, cfg.Cache.RoleTTL, log),
		AuthLimiter: middleware.NewAuthRateLimiter(cfg.RateLimit.AuthPerSecond, cfg.RateLimit.AuthBurst),
		AuthClient:  authClient,
	}
}

func setupRouter(r *gin.Engine, h *AppHandlers, log *zap.Logger) {
	// Navigation entry points. The presentation layer is replaceable; these
	// answer with page descriptors so the guards have somewhere to land.
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"page": "home"})
	})
	r.GET("/login", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"page": "login"})
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authGroup := r.Group("/auth", h.AuthLimiter.Middleware())
	{
		authGroup.POST("/register", h.Auth.RegisterHandler)
		authGroup.POST("/verify-email", h.Auth.VerifyEmailHandler)
		authGroup.POST("/resend-verification", h.Auth.ResendVerificationHandler)
		authGroup.POST("/login", h.Auth.LoginHandler)
		authGroup.POST("/logout", h.Auth.LogoutHandler)
		authGroup.POST("/password-reset", h.Auth.ForgotPasswordHandler)
		authGroup.POST("/password-reset/verify", h.Auth.ResetPasswordHandler)
		authGroup.POST("/password-change", middleware.RequireAuth(h.Sessions), h.Auth.ChangePasswordHandler)
	}

	api := r.Group("/api", middleware.SessionHydration(h.AuthClient, h.Sessions, log))
	{
		api.GET("/session", h.Account.SessionHandler)

		api.GET("/restaurants", h.Restaurants.ListHandler)
		api.GET("/restaurants/:id/menu", h.Restaurants.MenuHandler)

		api.GET("/cart", h.Cart.GetCart)
		api.POST("/cart/items", h.Cart.AddItem)
		api.POST("/cart/items/:id/increment", h.Cart.IncrementItem)
		api.POST("/cart/items/:id/decrement", h.Cart.DecrementItem)
		api.DELETE("/cart", h.Cart.ClearCart)

		authenticated := api.Group("", middleware.RequireAuth(h.Sessions))
		{
			authenticated.GET("/profile", h.Account.GetProfileHandler)
			authenticated.PUT("/profile", h.Account.UpdateProfileHandler)
		}

		adminGroup := api.Group("/admin", h.RoleChecker.RequireAdmin())
		{
			adminGroup.GET("/dashboard", h.Admin.DashboardHandler)
			adminGroup.GET("/users", h.Admin.ListUsersHandler)
			adminGroup.PUT("/users/:id", h.Admin.UpdateUserHandler)
			adminGroup.DELETE("/users/:id", h.Admin.DeleteUserHandler)
			adminGroup.GET("/activity", h.Admin.ActivityHandler)
		}
	}
}
