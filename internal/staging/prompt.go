package staging

import (
	"fmt"

	"github.com/tjfontaine/roomstage/internal/core/domain"
)

// referenceImagesClause is appended when the caller supplied reference images.
const referenceImagesClause = " Use the provided reference images as style and design inspiration."

// Compose builds the instruction text sent to the image provider.
func Compose(userPrompt, roomType, style string, b domain.Breakdown, hasReferenceImages bool) string {
	prompt := fmt.Sprintf("%s. Transform this %s with %s style furniture and decor. Professional interior design, well-lit, modern staging. %s",
		userPrompt, roomType, style, b.PromptEnhancement)
	if hasReferenceImages {
		prompt += referenceImagesClause
	}
	return prompt
}
