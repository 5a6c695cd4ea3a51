// routes/routes.go
package routes

import (
	"net/http"

	"go-farmmarket/controllers"
	"go-farmmarket/middleware"
	"go-farmmarket/models"

	"github.com/gorilla/mux"
)

func authed(h http.HandlerFunc) http.Handler {
	return middleware.AuthMiddleware(h)
}

func withRole(h http.HandlerFunc, roles ...models.Role) http.Handler {
	return middleware.AuthMiddleware(middleware.RequireRole(roles...)(h))
}

// RegisterRoutes sets up all the routes for the application
func RegisterRoutes(router *mux.Router, userController *controllers.UserController, productController *controllers.ProductController, orderController *controllers.OrderController, chatController *controllers.ChatController, farmerController *controllers.FarmerController, socket http.HandlerFunc) {
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Real-time relay; authenticates inside the socket handshake
	router.HandleFunc("/ws", socket)

	api := router.PathPrefix("/api").Subrouter()

	// Auth routes
	api.HandleFunc("/auth/register", userController.Register).Methods("POST")
	api.HandleFunc("/auth/login", userController.Login).Methods("POST")
	api.HandleFunc("/auth/verify", userController.VerifyEmail).Methods("GET")
	api.Handle("/auth/me", authed(userController.GetProfile)).Methods("GET")
	api.Handle("/auth/profile", authed(userController.UpdateProfile)).Methods("PUT")
	api.Handle("/auth/device-token", authed(userController.UpdateDeviceToken)).Methods("PUT")

	// Product routes
	api.HandleFunc("/products", productController.GetProducts).Methods("GET")
	api.Handle("/products", withRole(productController.CreateProduct, models.RoleFarmer)).Methods("POST")
	api.Handle("/products/mine", withRole(productController.GetMyProducts, models.RoleFarmer)).Methods("GET")
	api.Handle("/products/mine/export", withRole(productController.ExportMyProducts, models.RoleFarmer)).Methods("GET")
	api.HandleFunc("/products/{id}", productController.GetProductByID).Methods("GET")
	api.Handle("/products/{id}", withRole(productController.UpdateProduct, models.RoleFarmer)).Methods("PUT")
	api.Handle("/products/{id}", withRole(productController.DeleteProduct, models.RoleFarmer)).Methods("DELETE")
	api.Handle("/products/{id}/rate", authed(productController.RateProduct)).Methods("POST")

	// Order routes
	api.Handle("/orders", withRole(orderController.CreateOrder, models.RoleBuyer)).Methods("POST")
	api.Handle("/orders/my-orders", authed(orderController.GetMyOrders)).Methods("GET")
	api.Handle("/orders/{id}", authed(orderController.GetOrder)).Methods("GET")
	api.Handle("/orders/{id}/accept", authed(orderController.AcceptOrder)).Methods("PUT")
	api.Handle("/orders/{id}/reject", authed(orderController.RejectOrder)).Methods("PUT")
	api.Handle("/orders/{id}/shipped", authed(orderController.ShipOrder)).Methods("PUT")
	api.Handle("/orders/{id}/delivered", authed(orderController.DeliverOrder)).Methods("PUT")
	api.Handle("/orders/{id}/cancel", authed(orderController.CancelOrder)).Methods("PUT")
	api.Handle("/orders/{id}/rate", withRole(orderController.RateOrder, models.RoleBuyer)).Methods("PUT")

	// Chat routes
	api.Handle("/chats", authed(chatController.GetChats)).Methods("GET")
	api.Handle("/chats", authed(chatController.OpenChat)).Methods("POST")
	api.Handle("/chats/with/{userId}", authed(chatController.GetChatWith)).Methods("GET")
	api.Handle("/chats/{chatId}/messages", authed(chatController.GetMessages)).Methods("GET")
	api.Handle("/chats/{chatId}/messages", authed(chatController.SendMessage)).Methods("POST")
	api.Handle("/chats/{chatId}/messages/search", authed(chatController.SearchMessages)).Methods("GET")
	api.Handle("/chats/{chatId}/messages/{messageId}", authed(chatController.DeleteMessage)).Methods("DELETE")
	api.Handle("/chats/{chatId}/read", authed(chatController.MarkAsRead)).Methods("PUT")
	api.Handle("/chats/{chatId}/settings", authed(chatController.UpdateSettings)).Methods("PUT")

	// Farmer profile routes
	api.Handle("/farmers/profile", withRole(farmerController.UpsertProfile, models.RoleFarmer)).Methods("PUT")
	api.HandleFunc("/farmers/{id}/profile", farmerController.GetProfile).Methods("GET")
}
