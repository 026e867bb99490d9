package objectstore

import (
	"errors"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// IsNotFound reports whether err means the upload or object is gone
// (HTTP 404, NoSuchUpload, NoSuchKey).
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}

	var noSuchUpload *types.NoSuchUpload
	if errors.As(err, &noSuchUpload) {
		return true
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchUpload", "NoSuchKey", "NotFound":
			return true
		}
	}

	return hasHTTPStatus(err, http.StatusNotFound)
}

// IsAccessDenied reports whether err is an authorization failure (HTTP 403).
// The expiration sweeper falls back to aborting uploads it is not allowed to
// complete.
func IsAccessDenied(err error) bool {
	if err == nil {
		return false
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "AccessDenied" {
		return true
	}

	return hasHTTPStatus(err, http.StatusForbidden)
}

func hasHTTPStatus(err error, status int) bool {
	var respErr *smithyhttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == status
}
