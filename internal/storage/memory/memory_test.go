package memory

import (
	"testing"

	"fintrack/internal/storage"
	"fintrack/internal/storage/storagetest"
)

func TestConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store { return New() })
}
