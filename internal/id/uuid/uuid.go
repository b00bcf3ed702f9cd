// Package uuid provides a UUID-backed scrape.IDGenerator.
package uuid

import (
	"fmt"

	guuid "github.com/google/uuid"
)

// Generator produces random UUID identifiers.
type Generator struct{}

// NewID implements scrape.IDGenerator.
func (Generator) NewID() (string, error) {
	id, err := guuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return id.String(), nil
}
