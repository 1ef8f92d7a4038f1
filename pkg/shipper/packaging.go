package shipper

import (
	"strings"
)

// packagingKeywords is checked in order; the first keyword contained in the
// package type name wins.
var packagingKeywords = []struct {
	keyword string
	unit    PackagingUnit
}{
	{"europalette", UnitEuropalette},
	{"einwegpalette", UnitEinwegpalette},
	{"halbpalette", UnitHalbpalette},
	{"sperrgutpaket", UnitSperrgutpaket},
	{"gitterbox", UnitGitterbox},
}

// ClassifyPackagingUnit maps a free-text package type name to a packaging
// unit by case-insensitive substring match. Unknown names map to UnitPaket.
func ClassifyPackagingUnit(name string) PackagingUnit {
	normalized := strings.ToLower(name)
	for _, k := range packagingKeywords {
		if strings.Contains(normalized, k.keyword) {
			return k.unit
		}
	}
	return UnitPaket
}

// NormalizeWeight converts grams to kilograms.
func NormalizeWeight(grams float64) float64 {
	return grams / 1000
}

// Dimensions returns the package type's length, width and height, or three
// nils if any of them is not positive.
func Dimensions(t *PackageType) (length, width, height *float64) {
	if t == nil || t.Length <= 0 || t.Width <= 0 || t.Height <= 0 {
		return nil, nil, nil
	}
	l, w, h := t.Length, t.Width, t.Height
	return &l, &w, &h
}

// NewPackageSpec builds the carrier package description for a host package.
// Colli defaults to 1.
func NewPackageSpec(pkg OrderPackage, t *PackageType) PackageSpec {
	spec := PackageSpec{
		Unit:     UnitPaket,
		Weight:   NormalizeWeight(pkg.Weight),
		Colli:    pkg.Colli,
		Contents: pkg.Contents,
	}
	if spec.Colli <= 0 {
		spec.Colli = 1
	}
	if t != nil {
		spec.Unit = ClassifyPackagingUnit(t.Name)
	}
	spec.Length, spec.Width, spec.Height = Dimensions(t)
	return spec
}
