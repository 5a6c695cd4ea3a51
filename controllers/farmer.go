package controllers

import (
	"net/http"
	"strings"

	"go-farmmarket/middleware"
	"go-farmmarket/models"
	"go-farmmarket/store"
	"go-farmmarket/utils"
)

// FarmerController serves farmer profiles
type FarmerController struct {
	Farmers store.FarmerStore
}

// NewFarmerController creates a new FarmerController
func NewFarmerController(farmers store.FarmerStore) *FarmerController {
	return &FarmerController{Farmers: farmers}
}

// GetProfile returns the farm profile of the {id} farmer
func (fc *FarmerController) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid farmer ID", err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	profile, err := fc.Farmers.FindFarmerProfile(ctx, userID)
	if err != nil {
		writeStoreError(w, "Farmer profile not found", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, profile)
}

// UpsertProfile creates or replaces the calling farmer's profile
func (fc *FarmerController) UpsertProfile(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFrom(r)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	var req models.FarmerProfile
	if err := decodeBody(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid input", err)
		return
	}
	if strings.TrimSpace(req.FarmName) == "" {
		utils.WriteError(w, http.StatusBadRequest, "Farm name is required", nil)
		return
	}
	req.UserID = caller.ID

	ctx, cancel := requestContext(r)
	defer cancel()
	profile, err := fc.Farmers.UpsertFarmerProfile(ctx, &req)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Failed to save profile", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, profile)
}
