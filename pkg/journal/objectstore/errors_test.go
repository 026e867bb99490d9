package objectstore

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
)

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(&types.NoSuchUpload{}))
	assert.True(t, IsNotFound(&types.NoSuchKey{}))
	assert.True(t, IsNotFound(&smithy.GenericAPIError{Code: "NoSuchUpload"}))
	assert.True(t, IsNotFound(fmt.Errorf("wrapped: %w", &types.NoSuchUpload{})))

	assert.False(t, IsNotFound(nil))
	assert.False(t, IsNotFound(errors.New("boom")))
	assert.False(t, IsNotFound(&smithy.GenericAPIError{Code: "SlowDown"}))
}

func TestIsAccessDenied(t *testing.T) {
	assert.True(t, IsAccessDenied(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.True(t, IsAccessDenied(fmt.Errorf("wrapped: %w", &smithy.GenericAPIError{Code: "AccessDenied"})))

	assert.False(t, IsAccessDenied(nil))
	assert.False(t, IsAccessDenied(&smithy.GenericAPIError{Code: "NoSuchUpload"}))
}
