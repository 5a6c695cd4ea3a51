package controllers

import (
	"errors"
	"log"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"go-farmmarket/middleware"
	"go-farmmarket/models"
	"go-farmmarket/store"
	"go-farmmarket/utils"

	"github.com/google/uuid"
)

// UserController handles registration, login and profile requests
type UserController struct {
	Users  store.UserStore
	Mailer utils.Mailer
	// PublicURL prefixes the verification link sent at registration
	PublicURL string
}

// NewUserController creates a new UserController
func NewUserController(users store.UserStore, mailer utils.Mailer, publicURL string) *UserController {
	return &UserController{Users: users, Mailer: mailer, PublicURL: publicURL}
}

type registerRequest struct {
	Name     string         `json:"name"`
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Role     models.Role    `json:"role"`
	Phone    string         `json:"phone"`
	Address  models.Address `json:"address"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Register handles user registration
func (uc *UserController) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid input", err)
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if req.Role == "" {
		req.Role = models.RoleBuyer
	}
	switch {
	case req.Name == "":
		utils.WriteError(w, http.StatusBadRequest, "Name is required", nil)
		return
	case !validEmail(req.Email):
		utils.WriteError(w, http.StatusBadRequest, "A valid email is required", nil)
		return
	case len(req.Password) < 6:
		utils.WriteError(w, http.StatusBadRequest, "Password must be at least 6 characters", nil)
		return
	case req.Role != models.RoleFarmer && req.Role != models.RoleBuyer:
		utils.WriteError(w, http.StatusBadRequest, "Role must be farmer or buyer", nil)
		return
	}

	// Hash the password
	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Error hashing password", err)
		return
	}

	now := time.Now().UTC()
	user := &models.User{
		Name:      req.Name,
		Email:     req.Email,
		Password:  hashedPassword,
		Phone:     req.Phone,
		Address:   req.Address,
		Role:      req.Role,
		CreatedAt: now,
		UpdatedAt: now,

		VerificationToken: uuid.NewString(),
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	if err := uc.Users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			utils.WriteError(w, http.StatusBadRequest, "User already exists", nil)
			return
		}
		utils.WriteError(w, http.StatusBadRequest, "Error creating user", err)
		return
	}

	token, err := utils.GenerateJWT(user.ID.Hex(), user.Email, string(user.Role))
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Error generating token", err)
		return
	}

	go func(u models.User) {
		subject, body := utils.VerificationEmail(&u, uc.PublicURL)
		if err := uc.Mailer.SendEmail(u.Email, subject, body); err != nil {
			log.Printf("Failed to send email to %s: %v", u.Email, err)
		}
	}(*user)

	utils.WriteJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

// Login handles user authentication. Unknown email and wrong password get the same answer.
func (uc *UserController) Login(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &creds); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid input", err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	user, err := uc.Users.FindUserByEmail(ctx, strings.ToLower(strings.TrimSpace(creds.Email)))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		utils.WriteError(w, http.StatusInternalServerError, "Database error", err)
		return
	}
	if user == nil || !utils.CheckPassword(user.Password, creds.Password) {
		utils.WriteError(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}

	token, err := utils.GenerateJWT(user.ID.Hex(), user.Email, string(user.Role))
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Error generating token", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

// VerifyEmail handles email verification
func (uc *UserController) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		utils.WriteError(w, http.StatusBadRequest, "Verification token missing", nil)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	if _, err := uc.Users.VerifyUser(ctx, token); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.WriteError(w, http.StatusBadRequest, "Invalid or already used verification token", nil)
			return
		}
		utils.WriteError(w, http.StatusInternalServerError, "Error updating user verification status", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "Email verified successfully"})
}

// GetProfile retrieves the authenticated user's profile
func (uc *UserController) GetProfile(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFrom(r)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	user, err := uc.Users.FindUserByID(ctx, caller.ID)
	if err != nil {
		writeStoreError(w, "User not found", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, user)
}

// UpdateProfile changes the caller's name, phone or address
func (uc *UserController) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFrom(r)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	var update models.UserUpdate
	if err := decodeBody(r, &update); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid input", err)
		return
	}
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		utils.WriteError(w, http.StatusBadRequest, "Name cannot be empty", nil)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	user, err := uc.Users.UpdateUser(ctx, caller.ID, update)
	if err != nil {
		writeStoreError(w, "User not found", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, user)
}

// UpdateDeviceToken stores the push notification token of the caller's device
func (uc *UserController) UpdateDeviceToken(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFrom(r)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	var req struct {
		DeviceToken string `json:"device_token"`
	}
	if err := decodeBody(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid input", err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	if _, err := uc.Users.UpdateUser(ctx, caller.ID, models.UserUpdate{DeviceToken: &req.DeviceToken}); err != nil {
		writeStoreError(w, "User not found", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "Device token updated"})
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
