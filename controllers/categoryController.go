package controllers

import (
	"errors"
	"strings"

	"github.com/Kariqs/amexan-marketplace/initializers"
	"github.com/Kariqs/amexan-marketplace/models"
	"github.com/Kariqs/amexan-marketplace/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type categoryRequest struct {
	Name        string `json:"name" binding:"required,min=2,max=120"`
	Description string `json:"description" binding:"max=1000"`
	ParentID    *uint  `json:"parentId"`
}

func findCategory(ctx *gin.Context) (models.Category, error) {
	var category models.Category
	id, err := utils.ParamID(ctx, "id")
	if err != nil {
		return category, err
	}
	if err := initializers.DB.First(&category, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return category, utils.NotFound("Category not found")
		}
		return category, err
	}
	return category, nil
}

func categoryConflict(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return utils.Conflict("A category with this name already exists")
	}
	return err
}

func GetCategories(ctx *gin.Context) {
	var categories []models.Category
	if err := initializers.DB.Order("name ASC").Find(&categories).Error; err != nil {
		utils.RespondError(ctx, err)
		return
	}
	utils.RespondOK(ctx, "Categories fetched", categories)
}

func GetCategory(ctx *gin.Context) {
	category, err := findCategory(ctx)
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}
	utils.RespondOK(ctx, "Category fetched", category)
}

func CreateCategory(ctx *gin.Context) {
	var req categoryRequest
	if !bindJSON(ctx, &req) {
		return
	}

	category := models.Category{
		Name:        strings.TrimSpace(req.Name),
		Slug:        utils.Slugify(req.Name),
		Description: req.Description,
		ParentID:    req.ParentID,
	}
	if err := initializers.DB.Create(&category).Error; err != nil {
		utils.RespondError(ctx, categoryConflict(err))
		return
	}
	utils.RespondCreated(ctx, "Category created", category)
}

func UpdateCategory(ctx *gin.Context) {
	var req categoryRequest
	if !bindJSON(ctx, &req) {
		return
	}
	category, err := findCategory(ctx)
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}
	if req.ParentID != nil && *req.ParentID == category.ID {
		utils.RespondError(ctx, utils.ValidationFailed(map[string]string{"parentId": "cannot be the category itself"}))
		return
	}

	category.Name = strings.TrimSpace(req.Name)
	category.Slug = utils.Slugify(req.Name)
	category.Description = req.Description
	category.ParentID = req.ParentID
	if err := initializers.DB.Save(&category).Error; err != nil {
		utils.RespondError(ctx, categoryConflict(err))
		return
	}
	utils.RespondOK(ctx, "Category updated", category)
}

// DeleteCategory refuses while products still reference the category.
func DeleteCategory(ctx *gin.Context) {
	category, err := findCategory(ctx)
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}

	var products int64
	if err := initializers.DB.Model(&models.Product{}).Where("category_id = ?", category.ID).Count(&products).Error; err != nil {
		utils.RespondError(ctx, err)
		return
	}
	if products > 0 {
		utils.RespondError(ctx, utils.Conflict("Category still has products"))
		return
	}

	err = initializers.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Category{}).Where("parent_id = ?", category.ID).Update("parent_id", nil).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&category).Error
	})
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}
	utils.RespondOK(ctx, "Category deleted", nil)
}
