package handlers

import (
	"context"
	"log"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mrmartin1998/e-commerce-platform-sub000/internal/models"
)

type ProductCreateRequest struct {
	Name        string   `json:"name" binding:"required"`
	SKU         string   `json:"sku"`
	Description string   `json:"description"`
	Price       int64    `json:"price" binding:"required,gt=0"`
	SaleEnabled bool     `json:"saleEnabled"`
	SalePrice   *int64   `json:"salePrice"`
	Categories  []string `json:"categories" binding:"required,min=1"`
	Images      []string `json:"images"`
	Stock       *int     `json:"stock" binding:"required"`
	Status      string   `json:"status"`
}

type ProductUpdateRequest struct {
	Name        *string   `json:"name"`
	SKU         *string   `json:"sku"`
	Description *string   `json:"description"`
	Price       *int64    `json:"price"`
	SaleEnabled *bool     `json:"saleEnabled"`
	SalePrice   *int64    `json:"salePrice"`
	Categories  *[]string `json:"categories"`
	Images      *[]string `json:"images"`
	Status      *string   `json:"status"`
}

type StockUpdateRequest struct {
	Stock *int `json:"stock" binding:"required"`
}

func normalizeCategories(values []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0)

	for _, v := range values {
		name := strings.TrimSpace(v)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func isProductStatus(s string) bool {
	switch s {
	case models.ProductStatusDraft, models.ProductStatusPublished, models.ProductStatusOutOfStock:
		return true
	}
	return false
}

/*
GET /admin/api/products
- paginated; drafts and outOfStock included, soft-deleted excluded
*/
func GetAllProducts(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		filter := bson.M{
			"isDeleted": bson.M{"$ne": true},
		}

		if category := strings.TrimSpace(c.Query("category")); category != "" {
			filter["categories"] = bson.M{"$in": []string{category}}
		}

		if search := strings.TrimSpace(c.Query("search")); search != "" {
			filter["$or"] = []bson.M{
				{"name": bson.M{"$regex": search, "$options": "i"}},
				{"sku": bson.M{"$regex": search, "$options": "i"}},
				{"description": bson.M{"$regex": search, "$options": "i"}},
			}
		}

		if status := strings.TrimSpace(c.Query("status")); status != "" {
			filter["status"] = status
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		total, err := db.Collection("products").CountDocuments(ctx, filter)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}
		totalPages := int64(0)
		if total > 0 {
			totalPages = int64(math.Ceil(float64(total) / float64(limit)))
		}

		opts := options.Find().
			SetSkip((page - 1) * limit).
			SetLimit(limit).
			SetSort(bson.D{{Key: "createdAt", Value: -1}})

		cursor, err := db.Collection("products").Find(ctx, filter, opts)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}
		defer cursor.Close(ctx)

		products, err := decodeProducts(ctx, cursor)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "decode error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"data": products,
			"pagination": gin.H{
				"page":       page,
				"limit":      limit,
				"total":      total,
				"totalPages": totalPages,
			},
		})
	}
}

/*
POST /admin/api/products
*/
func CreateProduct(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ProductCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		salePrice := int64(0)
		if req.SalePrice != nil {
			salePrice = *req.SalePrice
		}
		if err := models.ValidateSaleFields(req.Price, req.SaleEnabled, salePrice, req.SalePrice != nil); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		categories := normalizeCategories(req.Categories)
		if len(categories) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "categories required"})
			return
		}

		if *req.Stock < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "stock must be zero or greater"})
			return
		}

		status := models.ProductStatusDraft
		if req.Status != "" {
			if !isProductStatus(req.Status) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
				return
			}
			status = req.Status
		}

		now := time.Now()
		product := models.Product{
			Name:        strings.TrimSpace(req.Name),
			SKU:         strings.TrimSpace(req.SKU),
			Description: strings.TrimSpace(req.Description),
			Price:       req.Price,
			SaleEnabled: req.SaleEnabled,
			SalePrice:   salePrice,
			Categories:  categories,
			Images:      req.Images,
			Stock:       *req.Stock,
			Status:      status,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		res, err := db.Collection("products").InsertOne(ctx, product)
		if mongo.IsDuplicateKeyError(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "sku already exists"})
			return
		}
		if err != nil {
			log.Println("CreateProduct insert error:", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		product.ID, _ = res.InsertedID.(primitive.ObjectID)
		finalizeProductView(&product)
		c.JSON(http.StatusCreated, product)
	}
}

/*
PUT /admin/api/products/:id
- partial update; sale fields validated against the merged result
*/
func UpdateProduct(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		var req ProductUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var existing models.Product
		err = db.Collection("products").FindOne(ctx, bson.M{
			"_id":       id,
			"isDeleted": bson.M{"$ne": true},
		}).Decode(&existing)
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		update := bson.M{}

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "name cannot be empty"})
				return
			}
			update["name"] = name
		}
		if req.SKU != nil {
			update["sku"] = strings.TrimSpace(*req.SKU)
		}
		if req.Description != nil {
			update["description"] = strings.TrimSpace(*req.Description)
		}

		price := existing.Price
		if req.Price != nil {
			if *req.Price <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid price"})
				return
			}
			price = *req.Price
			update["price"] = price
		}

		saleEnabled := existing.SaleEnabled
		if req.SaleEnabled != nil {
			saleEnabled = *req.SaleEnabled
			update["saleEnabled"] = saleEnabled
			if !saleEnabled {
				update["salePrice"] = int64(0)
			}
		}
		salePrice := existing.SalePrice
		salePriceSet := existing.SalePrice > 0
		if req.SalePrice != nil {
			salePrice = *req.SalePrice
			salePriceSet = true
			update["salePrice"] = salePrice
		}
		if err := models.ValidateSaleFields(price, saleEnabled, salePrice, salePriceSet); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if req.Categories != nil {
			categories := normalizeCategories(*req.Categories)
			if len(categories) == 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "categories cannot be empty"})
				return
			}
			update["categories"] = categories
		}
		if req.Images != nil {
			update["images"] = *req.Images
		}
		if req.Status != nil {
			if !isProductStatus(*req.Status) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
				return
			}
			update["status"] = *req.Status
		}

		if len(update) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
			return
		}
		update["updatedAt"] = time.Now()

		var updated models.Product
		err = db.Collection("products").FindOneAndUpdate(
			ctx,
			bson.M{"_id": id},
			bson.M{"$set": update},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated)
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		if mongo.IsDuplicateKeyError(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "sku already exists"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		finalizeProductView(&updated)
		c.JSON(http.StatusOK, updated)
	}
}

/*
PUT /admin/api/products/:id/stock
- absolute restock; clears the derived outOfStock status when stock returns
*/
func UpdateProductStock(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		var req StockUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		if *req.Stock < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "stock must be zero or greater"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		update := bson.M{
			"stock":     *req.Stock,
			"updatedAt": time.Now(),
		}

		var existing models.Product
		err = db.Collection("products").FindOne(ctx, bson.M{
			"_id":       id,
			"isDeleted": bson.M{"$ne": true},
		}).Decode(&existing)
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		if *req.Stock > 0 && existing.Status == models.ProductStatusOutOfStock {
			update["status"] = models.ProductStatusPublished
		}
		if *req.Stock == 0 && existing.Status == models.ProductStatusPublished {
			update["status"] = models.ProductStatusOutOfStock
		}

		var updated models.Product
		err = db.Collection("products").FindOneAndUpdate(
			ctx,
			bson.M{"_id": id},
			bson.M{"$set": update},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		finalizeProductView(&updated)
		c.JSON(http.StatusOK, updated)
	}
}

/*
DELETE /admin/api/products/:id
- soft delete
*/
func DeleteProduct(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		now := time.Now()
		result, err := db.Collection("products").UpdateOne(
			ctx,
			bson.M{"_id": id, "isDeleted": bson.M{"$ne": true}},
			bson.M{"$set": bson.M{
				"isDeleted": true,
				"deletedAt": now,
				"updatedAt": now,
			}},
		)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}
		if result.MatchedCount == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}

		c.Status(http.StatusNoContent)
	}
}
