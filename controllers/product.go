package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go-farmmarket/middleware"
	"go-farmmarket/models"
	"go-farmmarket/store"
	"go-farmmarket/utils"

	"github.com/tealeg/xlsx"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProductController handles product-related requests
type ProductController struct {
	Products store.ProductStore
}

// NewProductController creates a new ProductController
func NewProductController(products store.ProductStore) *ProductController {
	return &ProductController{Products: products}
}

type productRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Price       float64    `json:"price"`
	Unit        string     `json:"unit"`
	Category    string     `json:"category"`
	Images      []string   `json:"images"`
	Stock       int        `json:"stock"`
	IsOrganic   bool       `json:"is_organic"`
	HarvestDate *time.Time `json:"harvest_date"`
	Tags        []string   `json:"tags"`
}

// CreateProduct handles adding a new product (farmers only)
func (pc *ProductController) CreateProduct(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFrom(r)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	var req productRequest
	if err := decodeBody(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid input", err)
		return
	}
	if strings.TrimSpace(req.Name) == "" || req.Price <= 0 || req.Stock < 0 {
		utils.WriteError(w, http.StatusBadRequest, "Name, a positive price and a non-negative stock are required", nil)
		return
	}

	now := time.Now().UTC()
	product := &models.Product{
		FarmerID:    caller.ID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Price:       req.Price,
		Unit:        req.Unit,
		Category:    req.Category,
		Images:      nonNil(req.Images),
		Stock:       req.Stock,
		IsOrganic:   req.IsOrganic,
		HarvestDate: req.HarvestDate,
		Tags:        nonNil(req.Tags),
		Ratings:     []models.ProductRating{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	if err := pc.Products.CreateProduct(ctx, product); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Error creating product", err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, product)
}

// GetProducts lists products matching the query filters
func (pc *ProductController) GetProducts(w http.ResponseWriter, r *http.Request) {
	filter, err := parseProductFilter(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	products, err := pc.Products.ListProducts(ctx, filter)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Error fetching products", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, products)
}

// GetMyProducts lists the calling farmer's products
func (pc *ProductController) GetMyProducts(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFrom(r)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	products, err := pc.Products.ListProducts(ctx, models.ProductFilter{FarmerID: caller.ID})
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Error fetching products", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, products)
}

// GetProductByID retrieves a single product by ID
func (pc *ProductController) GetProductByID(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid product ID", err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	product, err := pc.Products.FindProductByID(ctx, id)
	if err != nil {
		writeStoreError(w, "Product not found", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, product)
}

// UpdateProduct handles updating a product (owning farmer only)
func (pc *ProductController) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFrom(r)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid product ID", err)
		return
	}

	var update models.ProductUpdate
	if err := decodeBody(r, &update); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid input", err)
		return
	}
	if (update.Price != nil && *update.Price <= 0) || (update.Stock != nil && *update.Stock < 0) {
		utils.WriteError(w, http.StatusBadRequest, "Price must be positive and stock non-negative", nil)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	if !pc.ownsProduct(w, r, caller, id) {
		return
	}
	product, err := pc.Products.UpdateProduct(ctx, id, update)
	if err != nil {
		writeStoreError(w, "Product not found", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, product)
}

// DeleteProduct handles deleting a product (owning farmer only)
func (pc *ProductController) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFrom(r)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid product ID", err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	if !pc.ownsProduct(w, r, caller, id) {
		return
	}
	if err := pc.Products.DeleteProduct(ctx, id); err != nil {
		writeStoreError(w, "Product not found", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "Product deleted"})
}

// RateProduct records the caller's 1-5 rating, replacing an earlier one
func (pc *ProductController) RateProduct(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFrom(r)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid product ID", err)
		return
	}

	var req ratingRequest
	if err := decodeBody(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid input", err)
		return
	}
	if req.Value < 1 || req.Value > 5 {
		utils.WriteError(w, http.StatusBadRequest, "Rating must be between 1 and 5", nil)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	product, err := pc.Products.FindProductByID(ctx, id)
	if err != nil {
		writeStoreError(w, "Product not found", err)
		return
	}

	ratings := make([]models.ProductRating, 0, len(product.Ratings)+1)
	for _, existing := range product.Ratings {
		if existing.UserID != caller.ID {
			ratings = append(ratings, existing)
		}
	}
	ratings = append(ratings, models.ProductRating{
		UserID:    caller.ID,
		Value:     req.Value,
		Review:    req.Review,
		CreatedAt: time.Now().UTC(),
	})

	product, err = pc.Products.SetProductRatings(ctx, id, ratings, utils.AverageRating(ratings))
	if err != nil {
		writeStoreError(w, "Product not found", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, product)
}

// ExportMyProducts sends the calling farmer's products as an Excel sheet
func (pc *ProductController) ExportMyProducts(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFrom(r)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	products, err := pc.Products.ListProducts(ctx, models.ProductFilter{FarmerID: caller.ID})
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Failed to fetch products", err)
		return
	}

	file, err := productsWorkbook(products)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Failed to create Excel sheet", err)
		return
	}

	w.Header().Set("Content-Disposition", "attachment; filename=products.xlsx")
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := file.Write(w); err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Failed to write Excel file", err)
	}
}

func productsWorkbook(products []models.Product) (*xlsx.File, error) {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Products")
	if err != nil {
		return nil, err
	}

	headers := []string{
		"ID", "Name", "Category", "Price", "Unit", "Stock",
		"Organic", "HarvestDate", "Tags", "AverageRating", "UpdatedAt",
	}
	headerRow := sheet.AddRow()
	for _, h := range headers {
		headerRow.AddCell().SetValue(h)
	}

	for _, p := range products {
		row := sheet.AddRow()
		row.AddCell().SetValue(p.ID.Hex())
		row.AddCell().SetValue(p.Name)
		row.AddCell().SetValue(p.Category)
		row.AddCell().SetValue(p.Price)
		row.AddCell().SetValue(p.Unit)
		row.AddCell().SetValue(p.Stock)
		row.AddCell().SetValue(p.IsOrganic)
		harvest := ""
		if p.HarvestDate != nil {
			harvest = p.HarvestDate.Format("2006-01-02")
		}
		row.AddCell().SetValue(harvest)
		row.AddCell().SetValue(strings.Join(p.Tags, ","))
		row.AddCell().SetValue(p.AverageRating)
		row.AddCell().SetValue(p.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return file, nil
}

// ownsProduct writes 404/403 and returns false unless the caller owns the product
func (pc *ProductController) ownsProduct(w http.ResponseWriter, r *http.Request, caller middleware.Caller, id primitive.ObjectID) bool {
	ctx, cancel := requestContext(r)
	defer cancel()
	product, err := pc.Products.FindProductByID(ctx, id)
	if err != nil {
		writeStoreError(w, "Product not found", err)
		return false
	}
	if product.FarmerID != caller.ID {
		utils.WriteError(w, http.StatusForbidden, "Only the owning farmer can change this product", nil)
		return false
	}
	return true
}

func parseProductFilter(r *http.Request) (models.ProductFilter, error) {
	q := r.URL.Query()
	filter := models.ProductFilter{
		Category: q.Get("category"),
		Query:    q.Get("q"),
	}
	if farmer := q.Get("farmer"); farmer != "" {
		id, err := primitive.ObjectIDFromHex(farmer)
		if err != nil {
			return filter, fmt.Errorf("farmer: %w", err)
		}
		filter.FarmerID = id
	}
	if organic := q.Get("organic"); organic != "" {
		b, err := strconv.ParseBool(organic)
		if err != nil {
			return filter, fmt.Errorf("organic: %w", err)
		}
		filter.Organic = &b
	}
	for key, dst := range map[string]**float64{"min_price": &filter.MinPrice, "max_price": &filter.MaxPrice} {
		if v := q.Get(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return filter, fmt.Errorf("%s: %w", key, err)
			}
			*dst = &f
		}
	}
	return filter, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
