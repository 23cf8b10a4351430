package controllers

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"

	"github.com/Kariqs/amexan-marketplace/initializers"
	"github.com/Kariqs/amexan-marketplace/models"
	"github.com/Kariqs/amexan-marketplace/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	maxUploadFiles = 10
	maxUploadSize  = 5 << 20
)

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

type uploadResponse struct {
	URLs   []string `json:"urls"`
	Failed []string `json:"failed,omitempty"`
}

// sniffImage detects the content type from the file header rather than
// trusting the client supplied one.
func sniffImage(file multipart.File) (string, error) {
	head := make([]byte, 512)
	n, err := file.Read(head)
	if err != nil && err != io.EOF {
		return "", err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(head[:n]), nil
}

// UploadImages stores product images in object storage. When productId is
// sent the images are attached to that product.
func UploadImages(ctx *gin.Context) {
	if initializers.Storage == nil {
		utils.RespondError(ctx, utils.Internal("File storage is not configured", nil))
		return
	}
	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, maxUploadFiles*maxUploadSize+(1<<20))

	form, err := ctx.MultipartForm()
	if err != nil {
		utils.RespondError(ctx, utils.BadRequest("Invalid form data"))
		return
	}
	files := form.File["images"]
	if len(files) == 0 {
		utils.RespondError(ctx, utils.ValidationFailed(map[string]string{"images": "is required"}))
		return
	}
	if len(files) > maxUploadFiles {
		utils.RespondError(ctx, utils.ValidationFailed(map[string]string{"images": fmt.Sprintf("must contain at most %d files", maxUploadFiles)}))
		return
	}

	user := utils.MustCurrentUser(ctx)
	var product *models.Product
	if raw := ctx.PostForm("productId"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			utils.RespondError(ctx, utils.ValidationFailed(map[string]string{"productId": "must be a number"}))
			return
		}
		query := initializers.DB.Where("id = ?", id)
		if user.Role != models.RoleAdmin {
			query = query.Where("seller_id = ?", user.EffectiveStoreID())
		}
		var p models.Product
		if err := query.First(&p).Error; err != nil {
			utils.RespondError(ctx, utils.NotFound("Product not found"))
			return
		}
		product = &p
	}

	log := initializers.Log.WithField("user_id", user.ID)
	resp := uploadResponse{URLs: []string{}}
	for _, fh := range files {
		if fh.Size > maxUploadSize {
			resp.Failed = append(resp.Failed, fh.Filename)
			continue
		}
		url, err := storeImage(ctx, fh, user.EffectiveStoreID())
		if err != nil {
			log.WithError(err).WithField("file", fh.Filename).Warn("Image upload failed")
			resp.Failed = append(resp.Failed, fh.Filename)
			continue
		}
		resp.URLs = append(resp.URLs, url)
	}

	if product != nil && len(resp.URLs) > 0 {
		var position int64
		initializers.DB.Model(&models.ProductImage{}).Where("product_id = ?", product.ID).Count(&position)
		images := make([]models.ProductImage, len(resp.URLs))
		for i, u := range resp.URLs {
			images[i] = models.ProductImage{ProductID: product.ID, URL: u, Position: int(position) + i}
		}
		if err := initializers.DB.Create(&images).Error; err != nil {
			utils.RespondError(ctx, err)
			return
		}
	}

	if len(resp.URLs) == 0 {
		ctx.JSON(http.StatusBadRequest, utils.Envelope{
			Success: false,
			Message: "No images were uploaded",
			Data:    resp,
			Error:   &utils.ErrorBody{Code: utils.CodeValidation},
		})
		return
	}
	utils.RespondCreated(ctx, "Files processed", resp)
}

func storeImage(ctx *gin.Context, fh *multipart.FileHeader, storeID uint) (string, error) {
	file, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer file.Close()

	contentType, err := sniffImage(file)
	if err != nil {
		return "", err
	}
	ext, ok := imageExtensions[contentType]
	if !ok {
		return "", fmt.Errorf("unsupported content type %s", contentType)
	}

	key := path.Join(initializers.Config.S3Prefix, strconv.FormatUint(uint64(storeID), 10), uuid.NewString()+ext)
	return initializers.Storage.Upload(ctx.Request.Context(), key, file, contentType)
}
