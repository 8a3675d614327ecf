// Package requests decodes product requests into typed payloads. Product
// forms mix plain fields, JSON encoded arrays and image files; everything is
// decoded and validated here before any handler logic runs.
package requests

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"shop-backoffice/internal/apperrors"
	"shop-backoffice/internal/models"
	"shop-backoffice/internal/reconcile"
)

const (
	MaxImageSize       = 2 << 20
	MaxBaseImages      = 5
	MaxVariantImages   = 20
	maxMultipartMemory = 32 << 20
)

type Mode int

const (
	Create Mode = iota
	Update
)

// ProductPayload is implemented by *SimplePayload and *VariablePayload.
type ProductPayload interface {
	Type() models.ProductType
	Base() *Common
}

type Common struct {
	Title            string               `json:"title" validate:"required,max=200"`
	ShortDescription string               `json:"shortDescription" validate:"max=500"`
	LongDescription  string               `json:"longDescription"`
	Categories       []primitive.ObjectID `json:"categories" validate:"dive,required"`
	Featured         bool                 `json:"featured"`
	Status           models.Status        `json:"status" validate:"required,oneof=draft public private"`
}

type SimplePayload struct {
	Common
	SKU            string                            `json:"sku" validate:"required"`
	Price          float64                           `json:"price" validate:"gte=0"`
	DiscountPrice  float64                           `json:"discountPrice" validate:"gte=0,ltefield=Price"`
	Quantity       int                               `json:"quantity" validate:"gte=0"`
	Attributes     []models.SimpleAttributeSelection `json:"attributes" validate:"dive"`
	RetainedImages []string                          `json:"retainedImages"`
	NewImages      []reconcile.File                  `json:"images" validate:"max=5"`
}

func (p *SimplePayload) Type() models.ProductType { return models.TypeSimple }
func (p *SimplePayload) Base() *Common            { return &p.Common }

type VariationPayload struct {
	SKU                   string                      `json:"sku" validate:"required"`
	Attributes            []models.AttributeSelection `json:"attributes" validate:"required,min=1,dive"`
	Price                 float64                     `json:"price" validate:"gte=0"`
	DiscountPrice         float64                     `json:"discountPrice" validate:"gte=0,ltefield=Price"`
	Quantity              int                         `json:"quantity" validate:"gte=0"`
	RetainedVariantImages []string                    `json:"retainedVariantImages"`
	VariantImageIndexes   []int                       `json:"variantImageIndexes"`
}

type VariablePayload struct {
	Common
	RetainedBaseImages []string           `json:"retainedBaseImages"`
	NewBaseImages      []reconcile.File   `json:"baseImages" validate:"max=5"`
	Variations         []VariationPayload `json:"variations" validate:"required,min=1,dive"`
	VariantImages      []reconcile.File   `json:"variantImages" validate:"max=20"`
}

func (p *VariablePayload) Type() models.ProductType { return models.TypeVariable }
func (p *VariablePayload) Base() *Common            { return &p.Common }

// Decode reads a multipart product form for the given product type.
func Decode(c *gin.Context, kind models.ProductType, mode Mode) (ProductPayload, error) {
	if err := c.Request.ParseMultipartForm(maxMultipartMemory); err != nil {
		return nil, apperrors.Validation("request must be multipart/form-data")
	}
	form := c.Request.MultipartForm

	var payload ProductPayload
	var err error
	switch kind {
	case models.TypeSimple:
		payload, err = decodeSimple(form, mode)
	case models.TypeVariable:
		payload, err = decodeVariable(form, mode)
	default:
		return nil, apperrors.Validation(fmt.Sprintf("unknown product type %q", kind), "type")
	}
	if err != nil {
		return nil, err
	}
	if err := Validate(payload); err != nil {
		return nil, err
	}
	if v, ok := payload.(*VariablePayload); ok {
		if err := uniqueSKUs(v.Variations); err != nil {
			return nil, err
		}
	}
	return payload, nil
}

// uniqueSKUs catches repeats inside one product; the unique index only
// guards across documents.
func uniqueSKUs(variations []VariationPayload) error {
	seen := make(map[string]struct{}, len(variations))
	for i, v := range variations {
		if _, dup := seen[v.SKU]; dup {
			field := fmt.Sprintf("variations[%d].sku", i)
			return apperrors.Validation("duplicate variation sku "+v.SKU, field)
		}
		seen[v.SKU] = struct{}{}
	}
	return nil
}

func decodeCommon(form *multipart.Form) (Common, error) {
	c := Common{
		Title:            value(form, "title"),
		ShortDescription: value(form, "shortDescription"),
		LongDescription:  value(form, "longDescription"),
		Status:           models.Status(value(form, "status")),
	}
	if c.Status == "" {
		c.Status = models.StatusDraft
	}
	if raw := value(form, "featured"); raw != "" {
		featured, err := strconv.ParseBool(raw)
		if err != nil {
			return c, apperrors.Validation("featured must be a boolean", "featured")
		}
		c.Featured = featured
	}
	if err := jsonField(form, "categories", &c.Categories); err != nil {
		return c, err
	}
	return c, nil
}

func decodeSimple(form *multipart.Form, mode Mode) (*SimplePayload, error) {
	common, err := decodeCommon(form)
	if err != nil {
		return nil, err
	}
	p := &SimplePayload{Common: common, SKU: value(form, "sku")}
	if p.Price, err = floatField(form, "price"); err != nil {
		return nil, err
	}
	if p.DiscountPrice, err = floatField(form, "discountPrice"); err != nil {
		return nil, err
	}
	if p.Quantity, err = intField(form, "quantity"); err != nil {
		return nil, err
	}
	if err := jsonField(form, "attributes", &p.Attributes); err != nil {
		return nil, err
	}

	filesField := "images"
	if mode == Update {
		filesField = "newImages"
		if err := jsonField(form, "retainedImages", &p.RetainedImages); err != nil {
			return nil, err
		}
	}
	if p.NewImages, err = files(form, filesField, MaxBaseImages); err != nil {
		return nil, err
	}
	return p, nil
}

func decodeVariable(form *multipart.Form, mode Mode) (*VariablePayload, error) {
	common, err := decodeCommon(form)
	if err != nil {
		return nil, err
	}
	p := &VariablePayload{Common: common}
	if err := jsonField(form, "variations", &p.Variations); err != nil {
		return nil, err
	}

	baseField, variantField := "baseImages", "variantImages"
	if mode == Update {
		baseField, variantField = "newBaseImages", "newVariantImages"
		if err := jsonField(form, "retainedBaseImages", &p.RetainedBaseImages); err != nil {
			return nil, err
		}
	} else {
		// Nothing is stored yet, so there is nothing to retain.
		for i := range p.Variations {
			p.Variations[i].RetainedVariantImages = nil
		}
	}
	if p.NewBaseImages, err = files(form, baseField, MaxBaseImages); err != nil {
		return nil, err
	}
	if p.VariantImages, err = files(form, variantField, MaxVariantImages); err != nil {
		return nil, err
	}
	return p, nil
}

func value(form *multipart.Form, name string) string {
	if v := form.Value[name]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func jsonField(form *multipart.Form, name string, dst any) error {
	raw := value(form, name)
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return apperrors.Validation(name+" must be valid JSON: "+err.Error(), name)
	}
	return nil
}

func floatField(form *multipart.Form, name string) (float64, error) {
	raw := value(form, name)
	if raw == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, apperrors.Validation(name+" must be a number", name)
	}
	return f, nil
}

func intField(form *multipart.Form, name string) (int, error) {
	raw := value(form, name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.Validation(name+" must be an integer", name)
	}
	return n, nil
}

// files reads and checks the uploaded images of one form field.
func files(form *multipart.Form, name string, limit int) ([]reconcile.File, error) {
	headers := form.File[name]
	if len(headers) > limit {
		return nil, apperrors.Validation(fmt.Sprintf("%s accepts at most %d files", name, limit), name)
	}
	out := make([]reconcile.File, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > MaxImageSize {
			return nil, apperrors.Validation(fmt.Sprintf("%s: %s exceeds 2 MB", name, fh.Filename), name)
		}
		data, err := readFile(fh)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ValidationFailed, name+": unreadable file "+fh.Filename, err)
		}
		if !allowedImage(data) {
			return nil, apperrors.Validation(fmt.Sprintf("%s: %s must be a JPEG or PNG image", name, fh.Filename), name)
		}
		out = append(out, reconcile.File{Name: fh.Filename, Data: data})
	}
	return out, nil
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func allowedImage(data []byte) bool {
	mt := mimetype.Detect(data)
	return mt.Is("image/jpeg") || mt.Is("image/png")
}

// QuantityPatch is the JSON body of the quantity-only endpoints.
type QuantityPatch struct {
	Quantity *int `json:"quantity" validate:"required,gte=0"`
}

func DecodeQuantity(c *gin.Context) (int, error) {
	var body QuantityPatch
	if err := c.ShouldBindJSON(&body); err != nil {
		return 0, apperrors.Validation("invalid JSON body: "+err.Error())
	}
	if err := Validate(&body); err != nil {
		return 0, err
	}
	return *body.Quantity, nil
}
