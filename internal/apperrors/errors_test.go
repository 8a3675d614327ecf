package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("loading product: %w", New(NotFound, "product not found"))

	assert.Equal(t, NotFound, KindOf(err))
	assert.Equal(t, http.StatusNotFound, KindOf(err).Status())
	assert.Equal(t, "product not found", PublicMessage(err))
}

func TestPublicMessageHidesInternals(t *testing.T) {
	assert.Equal(t, "internal server error", PublicMessage(errors.New("socket closed")))
	assert.Equal(t, "object storage request failed",
		PublicMessage(Wrap(BlobStoreFailure, "put products/x.png", errors.New("403"))))
}

func TestStatusMapping(t *testing.T) {
	cases := map[Kind]int{
		ValidationFailed:       http.StatusBadRequest,
		UnsupportedImageFormat: http.StatusBadRequest,
		NotFound:               http.StatusNotFound,
		DuplicateKey:           http.StatusConflict,
		BlobStoreFailure:       http.StatusInternalServerError,
		Internal:               http.StatusInternalServerError,
	}
	for kind, status := range cases {
		assert.Equal(t, status, kind.Status(), kind.String())
	}
}

func TestFromMongoDuplicateKey(t *testing.T) {
	raw := mongo.WriteException{WriteErrors: mongo.WriteErrors{{
		Code:    11000,
		Message: `E11000 duplicate key error collection: backoffice.products index: variations.sku_1 dup key: { variations.sku: "TEE-RED-S" }`,
	}}}

	err := FromMongo(raw)

	var appErr *Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, DuplicateKey, appErr.Kind)
	assert.Equal(t, []string{"variations.sku"}, appErr.Fields)
	assert.Equal(t, "duplicate value for variations.sku", appErr.Message)
}

func TestFromMongoPassThrough(t *testing.T) {
	plain := errors.New("timeout")
	assert.Same(t, plain, FromMongo(plain))
	assert.NoError(t, FromMongo(nil))
}
