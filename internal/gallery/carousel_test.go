package gallery

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/audiolibrelab/voicecards/internal/media"
)

func makeItems(n int) []media.MediaItem {
	items := make([]media.MediaItem, n)
	for i := range items {
		items[i] = media.MediaItem{ID: fmt.Sprintf("item-%d", i), Label: fmt.Sprintf("Item %d", i), ImageRef: "image/x.png"}
	}
	return items
}

func TestCarousel_Circularity(t *testing.T) {
	c := NewCarousel(makeItems(3))

	c.Previous()
	assert.Equal(t, 2, c.Index(), "previous before the first item wraps to the last")

	c.Next()
	assert.Equal(t, 0, c.Index(), "next after the last item wraps to the first")

	c.Next()
	c.Next()
	assert.Equal(t, 2, c.Index())
}

func TestCarousel_IndexStaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for n := 1; n <= 7; n++ {
		c := NewCarousel(makeItems(n))
		expected := 0
		for step := 0; step < 500; step++ {
			if rng.Intn(2) == 0 {
				c.Next()
				if n > 1 {
					expected = (expected + 1) % n
				}
			} else {
				c.Previous()
				if n > 1 {
					expected = (expected - 1 + n) % n
				}
			}
			if c.Index() < 0 || c.Index() >= n {
				t.Fatalf("index %d out of range for length %d", c.Index(), n)
			}
			assert.Equal(t, expected, c.Index())
		}
	}
}

func TestCarousel_SingleItemIsNoOp(t *testing.T) {
	c := NewCarousel(makeItems(1))
	c.Next()
	c.Previous()
	assert.Equal(t, 0, c.Index())

	empty := NewCarousel(nil)
	empty.Next()
	empty.Previous()
	assert.Equal(t, 0, empty.Index())
	_, ok := empty.Active()
	assert.False(t, ok)
}

func TestCarousel_GoTo(t *testing.T) {
	c := NewCarousel(makeItems(4))

	assert.True(t, c.GoTo(3))
	assert.Equal(t, 3, c.Index())

	for _, i := range []int{-1, 4, 100} {
		assert.False(t, c.GoTo(i))
		assert.Equal(t, 3, c.Index(), "goTo(%d) must leave the index unchanged", i)
	}
}

func TestCarousel_SetItemsRevalidates(t *testing.T) {
	c := NewCarousel(makeItems(5))
	c.GoTo(4)

	c.SetItems(makeItems(5))
	assert.Equal(t, 4, c.Index(), "index kept while still in range")

	c.SetItems(makeItems(3))
	assert.Equal(t, 0, c.Index())
	item, ok := c.Active()
	assert.True(t, ok)
	assert.Equal(t, "item-0", item.ID)

	c.SetItems(nil)
	_, ok = c.Active()
	assert.False(t, ok)
}
