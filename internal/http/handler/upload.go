package handler

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"mediaapi/internal/model"
	"mediaapi/internal/service"
)

const msgTooLarge = "file exceeds the upload size limit"

// responseKey is the JSON field carrying the stored name for each category.
var responseKey = map[model.Category]string{
	model.CategoryImages:    "imgName",
	model.CategoryDocuments: "docName",
}

// UploadFile handles a multipart upload (field name: file) for one category.
//
// @Summary      Upload a file
// @Description  Images (jpeg, jpg, png) are stored as a re-encoded <ms>.jpg. Documents (pdf) are stored as <ms>.pdf.
// @Tags         uploads
// @Accept       multipart/form-data
// @Produce      json
// @Param        category  path      string  true  "Upload category"  Enums(images, documents)
// @Param        file      formData  file    true  "File to upload"
// @Success      201       {object}  map[string]string
// @Failure      400       {object}  errorPayload
// @Failure      413       {object}  errorPayload
// @Failure      500       {object}  errorPayload
// @Security     BearerAuth
// @Router       /uploads/{category} [post]
func UploadFile(svc service.UploadService, cat model.Category) fiber.Handler {
	key := responseKey[cat]
	if key == "" {
		key = "name"
	}

	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}

		stored, err := svc.Upload(c.UserContext(), cat, f, fh.Filename, ct, fh.Size)
		if err != nil {
			return uploadError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{key: stored.Filename})
	}
}

func uploadError(c *fiber.Ctx, err error) error {
	var ve *service.ValidationError
	var te *service.TranscodeError
	switch {
	case errors.As(err, &ve):
		return writeError(c, fiber.StatusBadRequest, "UNSUPPORTED_FILE_TYPE", ve.Message)
	case errors.Is(err, service.ErrPayloadTooLarge):
		return writeError(c, fiber.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", msgTooLarge)
	case errors.As(err, &te):
		return writeError(c, fiber.StatusInternalServerError, "TRANSCODE_FAILED", "image could not be processed")
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// ListFiles returns the stored names for one category as a JSON array.
//
// @Summary      List stored files
// @Tags         uploads
// @Produce      json
// @Param        category  path      string  true  "Upload category"  Enums(images, documents)
// @Success      200       {array}   string
// @Failure      500       {object}  errorPayload
// @Security     BearerAuth
// @Router       /uploads/{category} [get]
func ListFiles(svc service.UploadService, cat model.Category) fiber.Handler {
	return func(c *fiber.Ctx) error {
		names, err := svc.List(c.UserContext(), cat)
		if err != nil {
			var de *service.DirectoryReadError
			if errors.As(err, &de) {
				return writeError(c, fiber.StatusInternalServerError, "DIRECTORY_READ_FAILED", fmt.Sprintf("Error reading %s directory", cat))
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		if names == nil {
			names = []string{}
		}
		return c.JSON(names)
	}
}
