// =============================================================================
// Charges to Invoice - Main Entry Point
// =============================================================================
//
// USAGE:
//   invoicegen generate    - Turn a charges export into a PDF invoice
//   invoicegen check       - Validate an export and print its totals
//   invoicegen serve       - Run the HTTP upload surface
//   invoicegen version     - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Ingest, validation, aggregation, layout and rendering
//   - pkg/           : Shared file utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/charges-to-invoice/cmd"
)

func main() {
	cmd.Execute()
}
