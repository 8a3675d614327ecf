package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"shop-backoffice/internal/apperrors"
	"shop-backoffice/internal/models"
)

const ns = "backoffice.products"

func productDoc(id primitive.ObjectID) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "type", Value: "variable"},
		{Key: "title", Value: "Tee"},
		{Key: "variations", Value: bson.A{
			bson.D{{Key: "sku", Value: "TEE-R"}, {Key: "quantity", Value: 3}},
		}},
	}
}

func TestProductRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("find by id", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(1, ns, mtest.FirstBatch, productDoc(id)))

		p, err := NewProductRepository(mt.Coll).FindByID(context.Background(), id.Hex())

		require.NoError(mt, err)
		assert.Equal(mt, id, p.ID)
		assert.Equal(mt, models.TypeVariable, p.Type)
		assert.Equal(mt, "TEE-R", p.Variations[0].SKU)
	})

	mt.Run("find by id not found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := NewProductRepository(mt.Coll).FindByID(context.Background(), primitive.NewObjectID().Hex())

		assert.ErrorIs(mt, err, ErrProductNotFound)
	})

	mt.Run("find by malformed id", func(mt *mtest.T) {
		_, err := NewProductRepository(mt.Coll).FindByID(context.Background(), "nope")

		assert.ErrorIs(mt, err, ErrProductNotFound)
		assert.Equal(mt, apperrors.NotFound, apperrors.KindOf(err))
	})

	mt.Run("create sets id and timestamps", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		p := &models.Product{Type: models.TypeSimple, Title: "Mug", SKU: "MUG"}

		require.NoError(mt, NewProductRepository(mt.Coll).Create(context.Background(), p))

		assert.False(mt, p.ID.IsZero())
		assert.False(mt, p.CreatedAt.IsZero())
		assert.Equal(mt, p.CreatedAt, p.UpdatedAt)
	})

	mt.Run("create duplicate sku", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: `E11000 duplicate key error collection: backoffice.products index: sku_1 dup key: { sku: "MUG" }`,
		}))

		err := NewProductRepository(mt.Coll).Create(context.Background(), &models.Product{SKU: "MUG"})

		var appErr *apperrors.Error
		require.ErrorAs(mt, err, &appErr)
		assert.Equal(mt, apperrors.DuplicateKey, appErr.Kind)
		assert.Equal(mt, []string{"sku"}, appErr.Fields)
	})

	mt.Run("replace missing document", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		err := NewProductRepository(mt.Coll).Replace(context.Background(), &models.Product{ID: primitive.NewObjectID()})

		assert.ErrorIs(mt, err, ErrProductNotFound)
	})

	mt.Run("replace", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))
		p := &models.Product{ID: primitive.NewObjectID()}

		require.NoError(mt, NewProductRepository(mt.Coll).Replace(context.Background(), p))
		assert.False(mt, p.UpdatedAt.IsZero())
	})

	mt.Run("update variation quantity", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		updated := productDoc(id)
		updated[3] = bson.E{Key: "variations", Value: bson.A{
			bson.D{{Key: "sku", Value: "TEE-R"}, {Key: "quantity", Value: 9}},
		}}
		mt.AddMockResponses(
			mtest.CreateCursorResponse(1, ns, mtest.FirstBatch, productDoc(id)),
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: updated}),
		)

		p, err := NewProductRepository(mt.Coll).UpdateVariationQuantity(context.Background(), id.Hex(), "TEE-R", 9)

		require.NoError(mt, err)
		assert.Equal(mt, 9, p.Variations[0].Quantity)
	})

	mt.Run("update quantity malformed id", func(mt *mtest.T) {
		_, err := NewProductRepository(mt.Coll).UpdateQuantity(context.Background(), "nope", 1)

		assert.ErrorIs(mt, err, ErrProductNotFound)
	})

	mt.Run("update variation quantity unknown product", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := NewProductRepository(mt.Coll).UpdateVariationQuantity(context.Background(), primitive.NewObjectID().Hex(), "TEE-R", 1)

		assert.ErrorIs(mt, err, ErrProductNotFound)
	})

	mt.Run("delete", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))

		assert.NoError(mt, NewProductRepository(mt.Coll).Delete(context.Background(), primitive.NewObjectID()))
	})

	mt.Run("delete missing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))

		err := NewProductRepository(mt.Coll).Delete(context.Background(), primitive.NewObjectID())

		assert.ErrorIs(mt, err, ErrProductNotFound)
	})
}
