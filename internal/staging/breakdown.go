package staging

import (
	"fmt"
	"strings"

	"github.com/tjfontaine/roomstage/internal/core/domain"
)

// Derive computes the furnishing breakdown for a room type, style and
// free-text prompt. It never fails: unknown room types fall back to generic
// furniture and unknown styles leave colors, materials, lighting and decor
// empty. Identical inputs always produce identical output.
func Derive(roomType, style, prompt string) domain.Breakdown {
	room := roomTable(ParseRoomType(roomType))
	palette := styleTable(ParseStyle(style))

	b := domain.Breakdown{
		Furniture:   appendLabels(nil, room.furniture),
		Decor:       appendLabels(nil, palette.decor),
		Lighting:    appendLabels(nil, palette.lighting),
		Colors:      appendLabels(nil, palette.colors),
		Materials:   appendLabels(nil, palette.materials),
		Accessories: appendLabels(nil, room.accessories),
	}

	lower := strings.ToLower(prompt)
	for _, t := range triggers {
		if !strings.Contains(lower, t.keyword) {
			continue
		}
		switch t.category {
		case categoryDecor:
			b.Decor = appendLabels(b.Decor, t.labels)
		default:
			b.Accessories = appendLabels(b.Accessories, t.labels)
		}
	}

	b.PromptEnhancement = enhancement(b)
	return b
}

// appendLabels copies labels onto dst so callers never share backing arrays
// with the static tables. The result is never nil.
func appendLabels(dst, labels []string) []string {
	if dst == nil {
		dst = make([]string, 0, len(labels))
	}
	return append(dst, labels...)
}

// enhancement renders the fixed-shape sentence appended to the provider
// prompt. Accessories are not part of it.
func enhancement(b domain.Breakdown) string {
	return fmt.Sprintf("Include: %s, %s, %s, using %s color palette with %s materials",
		strings.Join(b.Furniture, ", "),
		strings.Join(b.Decor, ", "),
		strings.Join(b.Lighting, ", "),
		strings.Join(b.Colors, ", "),
		strings.Join(b.Materials, ", "),
	)
}
