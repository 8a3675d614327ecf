// Package service orchestrates product writes: it loads the stored product,
// lets the reconciler upload new images, saves the document and only then
// removes the images the product no longer references.
package service

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"shop-backoffice/internal/apperrors"
	"shop-backoffice/internal/models"
	"shop-backoffice/internal/naming"
	"shop-backoffice/internal/reconcile"
	"shop-backoffice/internal/repository"
	"shop-backoffice/internal/requests"
	"shop-backoffice/internal/storage"
)

type ProductStore interface {
	Create(ctx context.Context, product *models.Product) error
	FindByID(ctx context.Context, id string) (*models.Product, error)
	FindAll(ctx context.Context, f repository.ListFilter) ([]*models.Product, int64, error)
	Replace(ctx context.Context, product *models.Product) error
	UpdateQuantity(ctx context.Context, id string, quantity int) (*models.Product, error)
	UpdateVariationQuantity(ctx context.Context, id, sku string, quantity int) (*models.Product, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type ProductService struct {
	repo       ProductStore
	store      storage.Store
	reconciler *reconcile.Reconciler
	logger     *zap.Logger
}

func NewProductService(repo ProductStore, store storage.Store, reconciler *reconcile.Reconciler, logger *zap.Logger) *ProductService {
	return &ProductService{
		repo:       repo,
		store:      store,
		reconciler: reconciler,
		logger:     logger,
	}
}

func (s *ProductService) Get(ctx context.Context, id string) (*models.Product, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *ProductService) List(ctx context.Context, f repository.ListFilter) ([]*models.Product, int64, error) {
	return s.repo.FindAll(ctx, f)
}

// Create uploads the payload's images into a fresh folder and inserts the product.
func (s *ProductService) Create(ctx context.Context, payload requests.ProductPayload) (*models.Product, error) {
	product := &models.Product{
		Type:        payload.Type(),
		ImageFolder: naming.ProductFolder(),
	}
	plan, err := s.plan(ctx, product, payload)
	if err != nil {
		return nil, err
	}
	apply(product, payload, plan)

	if err := s.repo.Create(ctx, product); err != nil {
		s.reconciler.Discard(context.WithoutCancel(ctx), plan)
		return nil, err
	}
	s.logger.Info("product created",
		zap.String("id", product.ID.Hex()),
		zap.String("type", string(product.Type)),
		zap.Int("images", len(plan.Uploaded)),
	)
	return product, nil
}

// Update replaces a product with the payload. Images are uploaded before the
// save and obsolete images are deleted after it, so a failed save leaves the
// stored product and its images untouched.
func (s *ProductService) Update(ctx context.Context, id string, payload requests.ProductPayload) (*models.Product, error) {
	product, err := s.load(ctx, id, payload.Type())
	if err != nil {
		return nil, err
	}
	if product.ImageFolder == "" {
		product.ImageFolder = naming.ProductFolder()
	}

	plan, err := s.plan(ctx, product, payload)
	if err != nil {
		return nil, err
	}
	apply(product, payload, plan)

	if err := s.repo.Replace(ctx, product); err != nil {
		s.reconciler.Discard(context.WithoutCancel(ctx), plan)
		return nil, err
	}

	if err := s.store.DeleteMany(context.WithoutCancel(ctx), plan.Obsolete); err != nil {
		// The product is saved; the leftover blobs are unreferenced.
		s.logger.Warn("failed to delete obsolete images",
			zap.String("id", id), zap.Strings("urls", plan.Obsolete), zap.Error(err))
	}
	s.logger.Info("product updated",
		zap.String("id", id),
		zap.Int("uploaded", len(plan.Uploaded)),
		zap.Int("deleted", len(plan.Obsolete)),
	)
	return product, nil
}

// Delete removes every image of the product, then the document. It returns
// the deleted product.
func (s *ProductService) Delete(ctx context.Context, id string, kind models.ProductType) (*models.Product, error) {
	product, err := s.load(ctx, id, kind)
	if err != nil {
		return nil, err
	}
	if err := s.store.DeleteMany(ctx, product.AllImages()); err != nil {
		return nil, err
	}
	if err := s.repo.Delete(ctx, product.ID); err != nil {
		return nil, err
	}
	s.logger.Info("product deleted", zap.String("id", id))
	return product, nil
}

func (s *ProductService) SetQuantity(ctx context.Context, id string, quantity int) (*models.Product, error) {
	return s.repo.UpdateQuantity(ctx, id, quantity)
}

func (s *ProductService) SetVariationQuantity(ctx context.Context, id, sku string, quantity int) (*models.Product, error) {
	return s.repo.UpdateVariationQuantity(ctx, id, sku, quantity)
}

func (s *ProductService) load(ctx context.Context, id string, kind models.ProductType) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if product.Type != kind {
		return nil, apperrors.Validation(
			fmt.Sprintf("product %s is a %s product, not %s", id, product.Type, kind), "type")
	}
	return product, nil
}

// plan runs the reconciler matching the payload's product type against the
// product's current images.
func (s *ProductService) plan(ctx context.Context, product *models.Product, payload requests.ProductPayload) (*reconcile.Plan, error) {
	switch p := payload.(type) {
	case *requests.SimplePayload:
		return s.reconciler.ReconcileFlat(ctx, product.ImageFolder, product.Images, p.RetainedImages, p.NewImages)
	case *requests.VariablePayload:
		in := reconcile.Input{
			Folder:             product.ImageFolder,
			OriginalBaseImages: product.BaseImages,
			OriginalVariations: product.Variations,
			RetainedBaseImages: p.RetainedBaseImages,
			NewBaseImages:      p.NewBaseImages,
			VariantImages:      p.VariantImages,
		}
		for _, v := range p.Variations {
			in.Variations = append(in.Variations, reconcile.VariationInput{
				SKU:                    v.SKU,
				Attributes:             v.Attributes,
				Price:                  v.Price,
				DiscountPrice:          v.DiscountPrice,
				Quantity:               v.Quantity,
				RetainedVariantImages:  v.RetainedVariantImages,
				NewVariantImageIndexes: v.VariantImageIndexes,
			})
		}
		return s.reconciler.Reconcile(ctx, in)
	default:
		return nil, fmt.Errorf("unhandled product payload %T", payload)
	}
}

// apply copies the payload fields and the planned images onto product.
func apply(product *models.Product, payload requests.ProductPayload, plan *reconcile.Plan) {
	common := payload.Base()
	product.Title = common.Title
	product.ShortDescription = common.ShortDescription
	product.LongDescription = common.LongDescription
	product.Categories = common.Categories
	product.Featured = common.Featured
	product.Status = common.Status

	switch p := payload.(type) {
	case *requests.SimplePayload:
		product.SKU = p.SKU
		product.Price = p.Price
		product.DiscountPrice = p.DiscountPrice
		product.Quantity = p.Quantity
		product.Attributes = p.Attributes
		product.Images = plan.BaseImages
	case *requests.VariablePayload:
		product.BaseImages = plan.BaseImages
		product.Variations = plan.Variations
	}
}
