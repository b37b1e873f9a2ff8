// Package materials is the closed catalog of construction-waste classes the
// backend classifier can predict, together with their display metadata.
package materials

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
)

// ErrUnknownClass is returned when an identifier is outside the catalog.
var ErrUnknownClass = errors.New("unknown material class")

// Class is one material category. The order matches the classifier's
// training order and fixes the chart palette slot of each class.
type Class int

const (
	Hormigon Class = iota
	Ceramico
	Piedra
	Yeso
	Asfaltico
	BasuraGeneral
)

type info struct {
	id        string
	emoji     string
	cardColor string
	name      string
}

var catalog = [...]info{
	Hormigon:      {id: "hormigon", emoji: "🏗️", cardColor: "#7f8c8d", name: "Hormigón"},
	Ceramico:      {id: "ceramico", emoji: "🧱", cardColor: "#d35400", name: "Cerámico"},
	Piedra:        {id: "piedra", emoji: "🏛️", cardColor: "#8e44ad", name: "Piedra"},
	Yeso:          {id: "yeso", emoji: "🎨", cardColor: "#f39c12", name: "Yeso"},
	Asfaltico:     {id: "asfaltico", emoji: "🛣️", cardColor: "#34495e", name: "Asfáltico"},
	BasuraGeneral: {id: "basura_general", emoji: "🗑️", cardColor: "#e74c3c", name: "Basura General"},
}

// chartPalette is indexed by slot, not by class identity.
var chartPalette = [...]string{"#7f8c8d", "#d35400", "#8e44ad", "#f39c12", "#34495e", "#e74c3c"}

// All returns every class in catalog order.
func All() []Class {
	out := make([]Class, len(catalog))
	for i := range catalog {
		out[i] = Class(i)
	}
	return out
}

// IDs returns the identifiers of every class in catalog order.
func IDs() []string {
	out := make([]string, len(catalog))
	for i, c := range catalog {
		out[i] = c.id
	}
	return out
}

// Parse maps a backend identifier onto its Class.
func Parse(id string) (Class, error) {
	for i, c := range catalog {
		if c.id == id {
			return Class(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownClass, id)
}

// Valid reports whether c is inside the catalog.
func (c Class) Valid() bool {
	return c >= 0 && int(c) < len(catalog)
}

func (c Class) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Class(%d)", int(c))
	}
	return catalog[c].id
}

// ID returns the backend identifier, e.g. "basura_general".
func (c Class) ID() string { return c.String() }

func (c Class) Emoji() string {
	if !c.Valid() {
		return ""
	}
	return catalog[c].emoji
}

// CardColor is the background used for result cards of this class.
func (c Class) CardColor() string {
	if !c.Valid() {
		return ""
	}
	return catalog[c].cardColor
}

// DisplayName is the untranslated name, used when no catalog entry exists.
func (c Class) DisplayName() string {
	if !c.Valid() {
		return ""
	}
	return catalog[c].name
}

// TranslationKey is the i18n key holding the localized class name.
func (c Class) TranslationKey() string {
	return "classes." + c.String()
}

// ChartColor returns the palette color for the given chart slot.
func ChartColor(slot int) string {
	return chartPalette[slot%len(chartPalette)]
}

// ConfidenceColor grades a percentage the way result cards do.
func ConfidenceColor(percent float64) string {
	switch {
	case percent >= 80:
		return "#27ae60"
	case percent >= 50:
		return "#f39c12"
	default:
		return "#e74c3c"
	}
}

var gradcamName = regexp.MustCompile(`^gradcam_(.+)\.jpg$`)

// ParseGradCAMURL recovers the class encoded in a heatmap URL such as
// /gradcam_outputs/gradcam_120755_basura_general.jpg. The stem may itself
// contain underscores, so the longest catalog suffix wins.
func ParseGradCAMURL(rawURL string) (Class, error) {
	name := path.Base(rawURL)
	m := gradcamName.FindStringSubmatch(name)
	if m == nil {
		return 0, fmt.Errorf("%w: unrecognised heatmap name %q", ErrUnknownClass, name)
	}
	body := m[1]
	best, found := Class(0), false
	for _, c := range All() {
		if !strings.HasSuffix(body, "_"+c.ID()) {
			continue
		}
		if !found || len(c.ID()) > len(best.ID()) {
			best, found = c, true
		}
	}
	if !found {
		return 0, fmt.Errorf("%w: unrecognised heatmap name %q", ErrUnknownClass, name)
	}
	return best, nil
}
