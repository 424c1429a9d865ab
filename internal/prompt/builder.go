package prompt

import (
	"fmt"
	"strings"

	"atlas-service/internal/models"
)

// NoDataMarker is rendered instead of an average when the selection is
// empty.
const NoDataMarker = "no data"

// Build formats the bounded system context for an assistant call: up to
// sampleLimit rows in selection order, then the total row count and the
// mean rating over the entire selection. Deterministic for the same
// selection and limit, and never fails — an empty selection yields zero
// rows and the no-data marker.
func Build(sel *models.Selection, sampleLimit int) string {
	var b strings.Builder

	b.WriteString("You are an AI assistant analyzing customer reviews.\n\n")
	b.WriteString("Here are the selected reviews to analyze:\n\n")

	n := len(sel.Rows)
	if sampleLimit >= 0 && n > sampleLimit {
		n = sampleLimit
	}
	for i := 0; i < n; i++ {
		row := sel.Rows[i]
		fmt.Fprintf(&b, "Review %d (Rating: %g): %s\n\n", i+1, row.Rating, row.Text)
	}

	fmt.Fprintf(&b, "Total reviews selected: %d\n", len(sel.Rows))
	if mean, ok := sel.MeanRating(); ok {
		fmt.Fprintf(&b, "Average rating: %.2f\n", mean)
	} else {
		fmt.Fprintf(&b, "Average rating: %s\n", NoDataMarker)
	}

	b.WriteString("\nPlease answer the user's question based on these reviews.")

	return b.String()
}
