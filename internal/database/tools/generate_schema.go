// generate_schema writes internal/database/schema.sql from the embedded
// migrations. Run it from the repository root.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"studylink/internal/database"
	"studylink/internal/database/migrations"
)

func main() {
	schema, err := migrations.RenderSchema()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render schema: %v\n", err)
		os.Exit(1)
	}

	// The rendered text must also load cleanly on its own.
	db, err := database.OpenConnection(":memory:")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()
	if _, err := db.Exec(schema); err != nil {
		fmt.Fprintf(os.Stderr, "Rendered schema does not apply: %v\n", err)
		os.Exit(1)
	}

	outPath := filepath.Join("internal", "database", "schema.sql")
	if err := os.WriteFile(outPath, []byte(schema), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write schema file: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Generated %s from migrations\n", outPath)
}
