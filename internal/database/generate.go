package database

// schema.sql mirrors the up migrations; TestSchema_MatchesMigrations fails
// when it drifts.
//go:generate sh -c "cd ../.. && go run internal/database/tools/generate_schema.go"
