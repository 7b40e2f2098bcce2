package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/pharmacy-marketplace/config"
	"github.com/yeremiapane/pharmacy-marketplace/controllers"
	"github.com/yeremiapane/pharmacy-marketplace/middlewares"
	"github.com/yeremiapane/pharmacy-marketplace/models"
	"github.com/yeremiapane/pharmacy-marketplace/realtime"
	"github.com/yeremiapane/pharmacy-marketplace/services"
	"github.com/yeremiapane/pharmacy-marketplace/utils"
	"gorm.io/gorm"
)

// Dependencies are the long lived services the handlers share.
type Dependencies struct {
	DB            *gorm.DB
	JWT           *utils.JWTManager
	Hub           *realtime.Hub
	Audit         *services.AuditService
	Payments      *services.PaymentService
	Statements    *services.StatementService
	Notifications *services.NotificationService
	Sales         *services.SaleService
	Supply        *services.SupplyService
	Sweep         *services.ExpirationSweep
}

func SetupRouter(cfg *config.Config, deps Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.LoggerMiddleware())
	r.Use(middlewares.SecurityHeaders(cfg.CookieSecure))
	r.Use(middlewares.CORSMiddleware(cfg.FrontendURL))

	auth := middlewares.NewAuthenticator(deps.DB, deps.JWT, cfg.CookieName)
	authLimiter := middlewares.NewRateLimiter(cfg.RateLimit.AuthPerMin, time.Minute)
	paymentLimiter := middlewares.NewIPRateLimiter(cfg.RateLimit.PaymentRPS, cfg.RateLimit.PaymentBurst)

	authCtrl := controllers.NewAuthController(deps.DB, deps.JWT, deps.Audit, cfg.CookieName, cfg.CookieSecure)
	paymentCtrl := controllers.NewPaymentController(deps.Payments, deps.Statements)
	notificationCtrl := controllers.NewNotificationController(deps.Notifications)
	wsCtrl := controllers.NewWSController(deps.Hub, deps.Notifications, cfg.FrontendURL)
	cashierCtrl := controllers.NewCashierController(deps.Sales)
	supplyCtrl := controllers.NewSupplyController(deps.Supply)
	adminCtrl := controllers.NewAdminController(deps.Sweep, deps.Notifications)

	r.GET("/health", func(c *gin.Context) {
		utils.RespondJSON(c, http.StatusOK, "ok", gin.H{
			"time":              time.Now().UTC(),
			"connected_clients": deps.Hub.ConnectedCount(),
		})
	})

	r.GET("/ws/notifications", auth.WebSocketAuthMiddleware(), wsCtrl.Serve)

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/login", authLimiter.RateLimit(), authCtrl.Login)
		authGroup.POST("/signup", authLimiter.RateLimit(), authCtrl.Signup)
		authGroup.POST("/logout", auth.AuthMiddleware(), authCtrl.Logout)
		authGroup.GET("/me", auth.AuthMiddleware(), authCtrl.Me)
		authGroup.POST("/register", auth.AuthMiddleware(), middlewares.RequireRoles(models.RoleAdmin), authCtrl.Register)
	}

	payments := api.Group("/payments")
	payments.Use(auth.AuthMiddleware(), middlewares.PaymentSecurityHeaders(), middlewares.LogPaymentRequest())
	{
		limited := payments.Group("", paymentLimiter.Middleware())
		limited.POST("/client/purchase/initiate", middlewares.RequireRoles(models.RoleCashier), paymentCtrl.InitiateClientPurchase)
		limited.POST("/client/purchase/verify", middlewares.RequireRoles(models.RoleClient), paymentCtrl.VerifyClientPurchase())
		limited.POST("/pharmacy/wholesaler/initiate", middlewares.RequireRoles(models.RolePharmacyOwner), paymentCtrl.InitiatePharmacyToWholesaler)
		limited.POST("/pharmacy/wholesaler/verify", middlewares.RequireRoles(models.RolePharmacyOwner), paymentCtrl.VerifyPharmacyToWholesaler())
		limited.POST("/logistics/initiate", middlewares.RequireRoles(models.RoleWholesaler), paymentCtrl.InitiateLogistics)
		limited.POST("/logistics/verify", middlewares.RequireRoles(models.RoleWholesaler), paymentCtrl.VerifyLogistics())
		limited.POST("/receipt/email", paymentCtrl.EmailReceipt)

		payments.GET("/receipt/:order_number", middlewares.ReceiptLoggerMiddleware(), paymentCtrl.GetReceipt)
		payments.GET("/history", paymentCtrl.History)
		payments.GET("/history/export", paymentCtrl.ExportHistory)
		payments.GET("/statistics",
			middlewares.RequireRoles(models.RoleAdmin, models.RolePharmacyOwner, models.RoleWholesaler),
			paymentCtrl.Statistics)

		admin := payments.Group("/admin", middlewares.RequireRoles(models.RoleAdmin))
		admin.GET("/overview", paymentCtrl.AdminOverview)
		admin.GET("/transactions", paymentCtrl.AdminTransactions)
	}

	notifications := api.Group("/notifications", auth.AuthMiddleware())
	{
		notifications.GET("", notificationCtrl.List)
		notifications.GET("/unread-count", notificationCtrl.UnreadCount)
		notifications.PATCH("/read-all", notificationCtrl.MarkAllRead)
		notifications.PATCH("/:id/read", notificationCtrl.MarkRead)
	}

	cashier := api.Group("/cashier", auth.AuthMiddleware(), middlewares.RequireRoles(models.RoleCashier))
	cashier.POST("/sales", cashierCtrl.RecordSale)

	pharmacy := api.Group("/pharmacy", auth.AuthMiddleware(), middlewares.RequireRoles(models.RolePharmacyOwner))
	{
		pharmacy.POST("/purchase-orders", supplyCtrl.CreatePurchaseOrder)
		pharmacy.GET("/purchase-orders", supplyCtrl.ListPurchaseOrders)
	}

	wholesaler := api.Group("/wholesaler", auth.AuthMiddleware(), middlewares.RequireRoles(models.RoleWholesaler))
	{
		wholesaler.GET("/purchase-orders", supplyCtrl.ListPurchaseOrders)
		wholesaler.PATCH("/purchase-orders/:id/status", supplyCtrl.UpdatePurchaseOrderStatus)
		wholesaler.POST("/transport-requests", supplyCtrl.CreateTransportRequest)
		wholesaler.PATCH("/stock/:id", supplyCtrl.UpdateStock)
	}

	logistics := api.Group("/logistics", auth.AuthMiddleware(), middlewares.RequireRoles(models.RoleLogistics, models.RoleAdmin))
	{
		logistics.GET("/transport-requests", supplyCtrl.ListTransportRequests)
		logistics.POST("/transport-requests/:id/confirm", supplyCtrl.ConfirmDelivery)
	}

	adminGroup := api.Group("/admin", auth.AuthMiddleware(), middlewares.RequireRoles(models.RoleAdmin))
	{
		adminGroup.POST("/expiration-sweep", adminCtrl.RunExpirationSweep)
		adminGroup.POST("/notifications/broadcast", adminCtrl.Broadcast)
	}

	return r
}
