package gallery

import "github.com/audiolibrelab/voicecards/internal/media"

// Carousel is a circular selection over an ordered, read-only list of items.
type Carousel struct {
	items  []media.MediaItem
	active int
}

// NewCarousel returns a carousel positioned on the first item.
func NewCarousel(items []media.MediaItem) Carousel {
	return Carousel{items: items}
}

// SetItems replaces the backing list. The selection resets to the first item when it
// falls outside the new list.
func (c *Carousel) SetItems(items []media.MediaItem) {
	c.items = items
	if c.active >= len(items) || c.active < 0 {
		c.active = 0
	}
}

// Len returns the number of items.
func (c Carousel) Len() int { return len(c.items) }

// Items returns the backing list.
func (c Carousel) Items() []media.MediaItem { return c.items }

// Index returns the selected position.
func (c Carousel) Index() int { return c.active }

// Active returns the selected item. It returns false when the list is empty.
func (c Carousel) Active() (media.MediaItem, bool) {
	if len(c.items) == 0 {
		return media.MediaItem{}, false
	}
	return c.items[c.active], true
}

// Next advances, wrapping from the last item to the first.
func (c *Carousel) Next() {
	if len(c.items) <= 1 {
		return
	}
	c.active = (c.active + 1) % len(c.items)
}

// Previous retreats, wrapping from the first item to the last.
func (c *Carousel) Previous() {
	if len(c.items) <= 1 {
		return
	}
	c.active = (c.active - 1 + len(c.items)) % len(c.items)
}

// GoTo selects index i. Out-of-range indexes are ignored.
func (c *Carousel) GoTo(i int) bool {
	if i < 0 || i >= len(c.items) {
		return false
	}
	c.active = i
	return true
}
