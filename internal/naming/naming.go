// Package naming derives the object store key segments used for product images.
package naming

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	nanoid "github.com/jaevor/go-nanoid"

	"shop-backoffice/internal/models"
)

// BaseImagesFolder holds the images shared by every variation of a product.
const BaseImagesFolder = "BASE_IMAGES"

var (
	nonWordOrSpace = regexp.MustCompile(`[^A-Za-z0-9 ]+`)
	spaceRun       = regexp.MustCompile(`\s+`)

	folderSuffix func() string
	imageID      func() string
)

func init() {
	var err error
	folderSuffix, err = nanoid.CustomASCII("abcdefghijklmnopqrstuvwxyz", 6)
	if err != nil {
		panic(err)
	}
	imageID, err = nanoid.Standard(12)
	if err != nil {
		panic(err)
	}
}

// VariationFolder is the identity key of a variation. Values are normalized
// and joined in the order given; two orderings of the same values produce
// different keys.
func VariationFolder(selections []models.AttributeSelection) string {
	parts := make([]string, 0, len(selections))
	for _, s := range selections {
		parts = append(parts, Normalize(s.Value))
	}
	return strings.Join(parts, "_")
}

// Normalize turns one attribute value into a key segment: characters other
// than letters, digits and spaces are dropped, the rest is uppercased and
// whitespace runs become underscores.
func Normalize(value string) string {
	v := nonWordOrSpace.ReplaceAllString(value, "")
	v = strings.TrimSpace(strings.ToUpper(v))
	return spaceRun.ReplaceAllString(v, "_")
}

// ProductFolder returns a new opaque folder name rooting all of a product's images.
func ProductFolder() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" + folderSuffix()
}

// ImageID returns a short unique name for one uploaded file.
func ImageID() string {
	return imageID()
}

// BaseImageKey is products/{folder}/BASE_IMAGES/{id}.png.
func BaseImageKey(folder, id string) string {
	return "products/" + folder + "/" + BaseImagesFolder + "/" + id + ".png"
}

// VariantImageKey is products/{folder}/{identityKey}/{id}.png.
func VariantImageKey(folder, identityKey, id string) string {
	return "products/" + folder + "/" + identityKey + "/" + id + ".png"
}

// SimpleImageKey is products/{folder}/{id}.png.
func SimpleImageKey(folder, id string) string {
	return "products/" + folder + "/" + id + ".png"
}
