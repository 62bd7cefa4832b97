package trainer

import "github.com/meltforce/hangtime/internal/models"

// cursor tracks the active set and how many of its reps are left,
// counting the rep in progress.
type cursor struct {
	sets      []models.Set
	index     int
	remaining int
}

func newCursor(sets []models.Set) cursor {
	return cursor{sets: sets, remaining: sets[0].Reps}
}

func (c *cursor) set() models.Set { return c.sets[c.index] }

func (c *cursor) firstRep() bool { return c.remaining >= c.set().Reps }

// advanceSet moves to the next set with its full rep count. It returns
// false, leaving the cursor untouched, when there is no next set.
func (c *cursor) advanceSet() bool {
	if c.index+1 >= len(c.sets) {
		return false
	}
	c.index++
	c.remaining = c.set().Reps
	return true
}

// retreatSet moves to the previous set with its full rep count.
func (c *cursor) retreatSet() bool {
	if c.index == 0 {
		return false
	}
	c.index--
	c.remaining = c.set().Reps
	return true
}

// advanceRep skips one rep. It returns false when none are left.
func (c *cursor) advanceRep() bool {
	if c.remaining <= 0 {
		return false
	}
	c.remaining--
	return true
}

// retreatRep gives back one rep. It returns false at the first rep.
func (c *cursor) retreatRep() bool {
	if c.firstRep() {
		return false
	}
	c.remaining++
	return true
}

// repIndex is the zero-based position of the rep in progress.
func (c *cursor) repIndex() int {
	i := c.set().Reps - c.remaining
	if i >= c.set().Reps {
		i = c.set().Reps - 1
	}
	return i
}
