// Package reconcile computes the next image state of a product from its
// stored state and an update request. New images are uploaded while the plan
// is built; images that fall out of the product are only collected, and the
// caller deletes them once the document has been saved.
package reconcile

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"shop-backoffice/internal/models"
	"shop-backoffice/internal/naming"
	"shop-backoffice/internal/storage"
	"shop-backoffice/internal/transcode"
)

// uploadConcurrency bounds how many variations upload at once.
const uploadConcurrency = 4

// File is one uploaded image as received from the client.
type File struct {
	Name string
	Data []byte
}

// VariationInput is a submitted variation with its image selections.
type VariationInput struct {
	SKU           string
	Attributes    []models.AttributeSelection
	Price         float64
	DiscountPrice float64
	Quantity      int
	// RetainedVariantImages are stored URLs of this variation to keep.
	RetainedVariantImages []string
	// NewVariantImageIndexes index into Input.VariantImages.
	NewVariantImageIndexes []int
}

// Input is the stored image state of a product together with the update request.
type Input struct {
	Folder string

	OriginalBaseImages []string
	OriginalVariations []models.Variation

	RetainedBaseImages []string
	NewBaseImages      []File

	Variations    []VariationInput
	VariantImages []File
}

// Plan is the outcome of a reconciliation: the product's new image lists
// and the blob side effects around the save.
type Plan struct {
	BaseImages []string
	Variations []models.Variation
	// Uploaded lists every URL written while building the plan.
	Uploaded []string
	// Obsolete lists stored URLs no longer referenced by the product.
	Obsolete []string
}

// Reconciler plans image changes against a blob store.
type Reconciler struct {
	store     storage.Store
	transcode func([]byte) ([]byte, error)
	logger    *zap.Logger
}

// New returns a Reconciler that stores images transcoded with the product policy.
func New(store storage.Store, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		store: store,
		transcode: func(raw []byte) ([]byte, error) {
			return transcode.Transcode(raw, transcode.ProductPolicy)
		},
		logger: logger,
	}
}

// stored is one original variation's folder. used flips when a payload
// variation resolves to the same identity key.
type stored struct {
	key    string
	images []string
	used   bool
}

// variationWork is the per-variation result of the planning pass.
type variationWork struct {
	key      string
	match    *stored
	retained []string
	files    []int
	urls     []string
}

// Reconcile uploads the request's new images and returns the resulting plan.
// On error every blob it wrote has already been removed again.
func (r *Reconciler) Reconcile(ctx context.Context, in Input) (*Plan, error) {
	originals := make([]*stored, 0, len(in.OriginalVariations))
	for _, v := range in.OriginalVariations {
		originals = append(originals, &stored{
			key:    naming.VariationFolder(v.Attributes),
			images: v.VariantImages,
		})
	}

	// A file index belongs to the first variation that claims it.
	consumed := make(map[int]struct{}, len(in.VariantImages))
	work := make([]*variationWork, len(in.Variations))
	for i, v := range in.Variations {
		w := &variationWork{key: naming.VariationFolder(v.Attributes)}
		w.match = firstByKey(originals, w.key)
		if w.match != nil {
			w.match.used = true
		}
		w.files = selectFiles(v.NewVariantImageIndexes, len(in.VariantImages), consumed)
		// Retained images only count when the variation also gets new files.
		if len(w.files) > 0 && w.match != nil {
			w.retained = intersect(v.RetainedVariantImages, w.match.images)
		}
		work[i] = w
	}

	// Decode everything before the first upload so a bad file leaves the
	// store untouched.
	baseRendered, err := r.renderAll(in.NewBaseImages)
	if err != nil {
		return nil, err
	}
	variantRendered := make(map[int][]byte)
	for _, w := range work {
		for _, idx := range w.files {
			out, err := r.render(in.VariantImages[idx])
			if err != nil {
				return nil, err
			}
			variantRendered[idx] = out
		}
	}

	plan := &Plan{}
	var uploaded uploadLog

	baseRetained := intersect(in.RetainedBaseImages, in.OriginalBaseImages)
	plan.BaseImages = baseRetained
	for _, data := range baseRendered {
		url, err := r.put(ctx, naming.BaseImageKey(in.Folder, naming.ImageID()), data, &uploaded)
		if err != nil {
			return nil, r.abort(ctx, &uploaded, err)
		}
		plan.BaseImages = append(plan.BaseImages, url)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)
	for _, w := range work {
		if len(w.files) == 0 {
			continue
		}
		w := w
		g.Go(func() error {
			for _, idx := range w.files {
				key := naming.VariantImageKey(in.Folder, w.key, naming.ImageID())
				url, err := r.put(gctx, key, variantRendered[idx], &uploaded)
				if err != nil {
					return err
				}
				w.urls = append(w.urls, url)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, r.abort(ctx, &uploaded, err)
	}
	plan.Uploaded = uploaded.list()

	live := make(map[string]struct{})
	for _, u := range plan.BaseImages {
		live[u] = struct{}{}
	}

	plan.Variations = make([]models.Variation, len(in.Variations))
	for i, v := range in.Variations {
		w := work[i]
		images := make([]string, 0, len(w.retained)+len(w.urls))
		if len(w.files) > 0 {
			images = append(images, w.retained...)
			images = append(images, w.urls...)
		}
		for _, u := range images {
			live[u] = struct{}{}
		}
		plan.Variations[i] = models.Variation{
			SKU:           v.SKU,
			Attributes:    v.Attributes,
			Price:         v.Price,
			DiscountPrice: v.DiscountPrice,
			Quantity:      v.Quantity,
			VariantImages: images,
		}
	}

	var removed []string
	removed = append(removed, difference(in.OriginalBaseImages, baseRetained)...)
	for _, w := range work {
		if w.match != nil {
			removed = append(removed, difference(w.match.images, w.retained)...)
		}
	}
	for _, o := range originals {
		if !o.used {
			removed = append(removed, o.images...)
		}
	}
	plan.Obsolete = withoutLive(removed, live)

	r.logger.Debug("reconciled product images",
		zap.String("folder", in.Folder),
		zap.Int("uploaded", len(plan.Uploaded)),
		zap.Int("obsolete", len(plan.Obsolete)),
	)
	return plan, nil
}

// ReconcileFlat handles a simple product's single image list under
// products/{folder}/{id}.png.
func (r *Reconciler) ReconcileFlat(ctx context.Context, folder string, original, retained []string, files []File) (*Plan, error) {
	rendered, err := r.renderAll(files)
	if err != nil {
		return nil, err
	}

	plan := &Plan{}
	var uploaded uploadLog
	kept := intersect(retained, original)
	images := append([]string{}, kept...)
	for _, data := range rendered {
		url, err := r.put(ctx, naming.SimpleImageKey(folder, naming.ImageID()), data, &uploaded)
		if err != nil {
			return nil, r.abort(ctx, &uploaded, err)
		}
		images = append(images, url)
	}
	plan.BaseImages = images
	plan.Uploaded = uploaded.list()
	plan.Obsolete = difference(original, kept)
	return plan, nil
}

// Discard removes the blobs a plan uploaded. Used when the plan's document
// could not be saved.
func (r *Reconciler) Discard(ctx context.Context, plan *Plan) {
	if plan == nil || len(plan.Uploaded) == 0 {
		return
	}
	if err := r.store.DeleteMany(ctx, plan.Uploaded); err != nil {
		r.logger.Warn("failed to discard uploaded images",
			zap.Strings("urls", plan.Uploaded), zap.Error(err))
	}
}

func (r *Reconciler) render(f File) ([]byte, error) {
	out, err := r.transcode(f.Data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Name, err)
	}
	return out, nil
}

func (r *Reconciler) renderAll(files []File) ([][]byte, error) {
	out := make([][]byte, 0, len(files))
	for _, f := range files {
		data, err := r.render(f)
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}

func (r *Reconciler) put(ctx context.Context, key string, data []byte, log *uploadLog) (string, error) {
	url, err := r.store.Put(ctx, key, data, transcode.ContentType)
	if err != nil {
		return "", err
	}
	log.add(url)
	return url, nil
}

func (r *Reconciler) abort(ctx context.Context, log *uploadLog, cause error) error {
	r.Discard(context.WithoutCancel(ctx), &Plan{Uploaded: log.list()})
	return cause
}

func firstByKey(originals []*stored, key string) *stored {
	for _, o := range originals {
		if o.key == key {
			return o
		}
	}
	return nil
}

// selectFiles drops out of range indexes and indexes already in consumed,
// then marks the selected ones consumed.
func selectFiles(indexes []int, n int, consumed map[int]struct{}) []int {
	var out []int
	for _, idx := range indexes {
		if idx < 0 || idx >= n {
			continue
		}
		if _, taken := consumed[idx]; taken {
			continue
		}
		consumed[idx] = struct{}{}
		out = append(out, idx)
	}
	return out
}

// intersect keeps the members of want that are in have, in want's order.
func intersect(want, have []string) []string {
	set := toSet(have)
	out := []string{}
	seen := make(map[string]struct{}, len(want))
	for _, u := range want {
		if _, ok := set[u]; !ok {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// difference returns the members of all that are not in keep.
func difference(all, keep []string) []string {
	set := toSet(keep)
	var out []string
	for _, u := range all {
		if _, ok := set[u]; !ok {
			out = append(out, u)
		}
	}
	return out
}

func withoutLive(urls []string, live map[string]struct{}) []string {
	seen := make(map[string]struct{}, len(urls))
	var out []string
	for _, u := range urls {
		if _, ok := live[u]; ok {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

func toSet(urls []string) map[string]struct{} {
	set := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		set[u] = struct{}{}
	}
	return set
}

// uploadLog collects uploaded URLs from concurrent variation workers.
type uploadLog struct {
	mu   sync.Mutex
	urls []string
}

func (l *uploadLog) add(url string) {
	l.mu.Lock()
	l.urls = append(l.urls, url)
	l.mu.Unlock()
}

func (l *uploadLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.urls...)
}
