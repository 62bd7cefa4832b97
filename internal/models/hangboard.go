package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Hangboard is a training board with a fixed layout of holds.
type Hangboard struct {
	ID        uuid.UUID `json:"id"`
	UserID    int       `json:"user_id,omitempty"`
	Name      string    `json:"name"`
	ImageURL  string    `json:"image_url"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	CreatedAt time.Time `json:"created_at"`
	Holds     []Hold    `json:"holds"`
}

// Hold is a single edge or pocket on a hangboard. X and Y are positions in
// board image coordinates.
type Hold struct {
	ID          uuid.UUID `json:"id"`
	Index       int       `json:"index"`
	FingerCount int       `json:"finger_count"`
	DepthMM     float64   `json:"depth_mm"`
	X           float64   `json:"x"`
	Y           float64   `json:"y"`
}

// Validate checks board dimensions and hold finger counts.
func (b *Hangboard) Validate() error {
	if b.Name == "" {
		return fmt.Errorf("name is required")
	}
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("board dimensions must be positive, got %dx%d", b.Width, b.Height)
	}
	for _, h := range b.Holds {
		if h.FingerCount < 1 || h.FingerCount > 4 {
			return fmt.Errorf("hold %d: finger_count must be 1-4, got %d", h.Index, h.FingerCount)
		}
	}
	return nil
}
