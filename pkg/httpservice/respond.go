package httpservice

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/yourorg/go-blob-kit/pkg/blobclient"
)

var validate = validator.New()

// ValidateJSON binds and validates a JSON request body. It writes the error
// response itself and returns false when validation fails.
func ValidateJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid JSON: " + err.Error(),
			"code":  blobclient.CodeConfiguration,
		})
		return false
	}
	if err := validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Validation failed: " + err.Error(),
			"code":  blobclient.CodeConfiguration,
		})
		return false
	}
	return true
}

// ValidateQuery binds and validates query parameters.
func ValidateQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters: " + err.Error(),
			"code":  blobclient.CodeConfiguration,
		})
		return false
	}
	if err := validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Validation failed: " + err.Error(),
			"code":  blobclient.CodeConfiguration,
		})
		return false
	}
	return true
}

// StatusForError maps a storage error to an HTTP status code.
func StatusForError(err error) int {
	var typed *blobclient.Error
	if !errors.As(err, &typed) {
		return http.StatusInternalServerError
	}
	switch typed.Code {
	case blobclient.CodeBlobNotFound, blobclient.CodeContainerNotFound:
		return http.StatusNotFound
	case blobclient.CodeConfiguration:
		return http.StatusBadRequest
	case blobclient.CodeAuthentication:
		return http.StatusUnauthorized
	case blobclient.CodeBlobUpload, blobclient.CodeBlobDownload,
		blobclient.CodeContainerOperation, blobclient.CodeStorage:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// HandleError writes a storage error as a JSON response and aborts.
func HandleError(c *gin.Context, err error) {
	status := StatusForError(err)
	body := gin.H{"error": err.Error()}
	var typed *blobclient.Error
	if errors.As(err, &typed) {
		body["code"] = typed.Code
		if typed.BlobName != "" {
			body["blob"] = typed.BlobName
		}
	}
	c.AbortWithStatusJSON(status, body)
}

// SuccessResponse sends a success response.
func SuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"data": data})
}

// CreatedResponse sends a created response.
func CreatedResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, gin.H{"data": data})
}
