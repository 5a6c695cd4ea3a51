// main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-farmmarket/controllers"
	"go-farmmarket/relay"
	"go-farmmarket/routes"
	"go-farmmarket/store"
	"go-farmmarket/utils"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

func main() {
	cfg, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// Set the JWT secret key
	utils.JwtKey = []byte(cfg.JWTSecret)
	utils.TokenTTL = cfg.JWTExpiresIn
	utils.ExposeErrors = cfg.IsDevelopment()

	emailService, err := utils.NewEmailService(cfg)
	if err != nil {
		log.Fatalf("email: %v", err)
	}

	var s *store.Store
	switch cfg.StoreBackend {
	case "memory":
		log.Println("Using in-memory store; data is lost on restart")
		s = store.NewMemoryStore()
	default:
		client, err := utils.ConnectDB(cfg.MongoURI)
		if err != nil {
			log.Fatal(err)
		}
		defer func() {
			if err := client.Disconnect(context.TODO()); err != nil {
				log.Printf("mongo disconnect: %v", err)
			}
		}()
		db := client.Database(cfg.MongoDB)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := store.EnsureIndexes(ctx, db); err != nil {
			log.Fatal(err)
		}
		cancel()
		s = store.NewMongoStore(db)
	}

	hub := relay.NewHub(s.Orders, s.Chats)

	// Initialize controllers
	userController := controllers.NewUserController(s.Users, emailService, cfg.PublicURL)
	productController := controllers.NewProductController(s.Products)
	orderController := controllers.NewOrderController(s, emailService, hub)
	chatController := controllers.NewChatController(s.Chats, s.Users, hub)
	farmerController := controllers.NewFarmerController(s.Farmers)

	// Set up the router
	router := mux.NewRouter()
	routes.RegisterRoutes(router, userController, productController, orderController, chatController, farmerController, hub.ServeWS)

	handler := handlers.CORS(
		handlers.AllowedOrigins(cfg.CORSOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
	)(router)
	handler = handlers.RecoveryHandler(handlers.PrintRecoveryStack(cfg.IsDevelopment()))(handler)
	handler = handlers.CombinedLoggingHandler(os.Stdout, handler)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server is running on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
