// Package services implements the driving port interfaces.
// Services contain the core business logic: document ingestion,
// retrieval-augmented chat turns and settings. They orchestrate
// calls to driven ports (adapters) and never import adapters directly.
package services
