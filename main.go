package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/mrmartin1998/e-commerce-platform-sub000/internal/auth"
	"github.com/mrmartin1998/e-commerce-platform-sub000/internal/checkout"
	"github.com/mrmartin1998/e-commerce-platform-sub000/internal/config"
	"github.com/mrmartin1998/e-commerce-platform-sub000/internal/database"
	"github.com/mrmartin1998/e-commerce-platform-sub000/internal/events"
	"github.com/mrmartin1998/e-commerce-platform-sub000/internal/handlers"
	"github.com/mrmartin1998/e-commerce-platform-sub000/internal/middleware"
	"github.com/mrmartin1998/e-commerce-platform-sub000/internal/payments"
	"github.com/mrmartin1998/e-commerce-platform-sub000/internal/store"
)

func main() {
	config.Load()
	config.AppEnv.MustValidate()

	client, err := database.Connect(config.AppEnv.MongoURI)
	if err != nil {
		log.Fatal(err)
	}

	db := client.Database(config.AppEnv.DBName)

	log.Println("MongoDB connected to:", db.Name())

	if err := database.EnsureUserIndexes(db); err != nil {
		log.Printf("user index warning: %v", err)
	}
	if err := database.EnsureProductIndexes(db); err != nil {
		log.Printf("product index warning: %v", err)
	}
	if err := database.EnsureOrderIndexes(db); err != nil {
		log.Printf("order index warning: %v", err)
	}
	if err := database.EnsureReviewIndexes(db); err != nil {
		log.Printf("review index warning: %v", err)
	}
	if err := database.EnsureCartIndexes(db); err != nil {
		log.Printf("cart index warning: %v", err)
	}

	var blacklist auth.TokenBlacklist = auth.NoopBlacklist{}
	if config.AppEnv.RedisAddr != "" {
		blacklist = auth.NewRedisBlacklist(config.AppEnv.RedisAddr)
		log.Println("token blacklist backed by redis at", config.AppEnv.RedisAddr)
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(config.AppEnv.KafkaBrokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(config.AppEnv.KafkaBrokers)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
		log.Println("order events published to kafka at", config.AppEnv.KafkaBrokers)
	}

	stripeClient, err := payments.NewStripeClient(config.AppEnv.StripeSecretKey)
	if err != nil {
		log.Fatal(err)
	}

	finalizer := checkout.NewFinalizer(
		stripeClient,
		store.NewMongoProductStore(db),
		store.NewMongoOrderStore(db),
		store.NewMongoTxRunner(client),
	)

	sessionCfg := checkout.SessionConfig{
		ShippingRate: config.AppEnv.ShippingRate,
		SuccessURL:   config.AppEnv.CheckoutSuccessURL,
		CancelURL:    config.AppEnv.CheckoutCancelURL,
	}

	jwtSecret := config.AppEnv.JWTSecret
	accessTTL := config.AppEnv.AccessTokenTTL
	refreshTTL := config.AppEnv.RefreshTokenTTL

	r := gin.Default()

	r.POST("/auth/register", handlers.Register(db, jwtSecret, accessTTL, refreshTTL))
	r.POST("/auth/login", handlers.Login(db, jwtSecret, accessTTL, refreshTTL))
	r.POST("/auth/refresh", handlers.Refresh(db, jwtSecret, accessTTL, refreshTTL))
	r.POST("/auth/logout", handlers.Logout(db, blacklist, jwtSecret))
	r.GET("/auth/me", middleware.UserAuth(jwtSecret, blacklist), handlers.GetMe(db))

	r.GET("/api/products", handlers.GetProducts(db))
	r.GET("/api/products/:id", handlers.GetProduct(db))
	r.GET("/api/products/:id/reviews", handlers.GetProductReviews(db))
	r.GET("/api/categories", handlers.GetCategories(db))

	if config.AppEnv.StripeWebhookSecret != "" {
		r.POST("/api/webhooks/stripe", handlers.StripeWebhook(db, config.AppEnv.StripeWebhookSecret))
	} else {
		log.Println("STRIPE_WEBHOOK_SECRET not set, webhook endpoint disabled")
	}

	api := r.Group("/api")
	api.Use(middleware.UserAuth(jwtSecret, blacklist))
	{
		api.GET("/cart", handlers.GetCart(db))
		api.POST("/cart/items", handlers.AddCartItem(db))
		api.PUT("/cart", handlers.UpdateCart(db))
		api.DELETE("/cart", handlers.ClearCart(db))

		api.POST("/checkout/session", handlers.CreateCheckoutSession(db, stripeClient, sessionCfg))
		api.GET("/checkout/verify", handlers.VerifyCheckout(db, finalizer, publisher))

		api.GET("/orders", handlers.GetMyOrders(db))
		api.GET("/orders/:id", handlers.GetOrder(db))

		api.POST("/products/:id/reviews", handlers.CreateReview(db))
	}

	user := r.Group("/user")
	user.Use(middleware.UserAuth(jwtSecret, blacklist))
	{
		user.GET("/addresses", handlers.GetUserAddresses(db))
		user.POST("/addresses", handlers.CreateUserAddress(db))
		user.PUT("/addresses/:id", handlers.UpdateUserAddress(db))
		user.DELETE("/addresses/:id", handlers.DeleteUserAddress(db))
	}

	admin := r.Group("/admin/api")
	admin.Use(middleware.UserAuth(jwtSecret, blacklist), middleware.AdminAuth(jwtSecret, blacklist))
	{
		admin.GET("/products", handlers.GetAllProducts(db))
		admin.POST("/products", handlers.CreateProduct(db))
		admin.PUT("/products/:id", handlers.UpdateProduct(db))
		admin.PUT("/products/:id/stock", handlers.UpdateProductStock(db))
		admin.DELETE("/products/:id", handlers.DeleteProduct(db))

		admin.GET("/categories", handlers.GetAllCategories(db))
		admin.POST("/categories", handlers.CreateCategory(db))
		admin.PUT("/categories/:id", handlers.UpdateCategory(db))
		admin.DELETE("/categories/:id", handlers.DeleteCategory(db))

		admin.GET("/orders", handlers.GetAllOrders(db))
		admin.PUT("/orders/:id/status", handlers.UpdateOrderStatus(db, publisher))
		admin.DELETE("/orders/:id", handlers.DeleteOrder(db))
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	r.Run(":" + port)
}
