package gallery

const (
	defaultWidth  = 80
	defaultHeight = 24

	controlWidth = 3

	playButton       = "[ Play ]"
	fullscreenButton = "[ Full ]"
	windowedButton   = "[ Exit ]"
	buttonGap        = 1
	indicatorSpacing = 2
	minContentHeight = 3
)

// span is a half-open column range [from, to).
type span struct {
	from, to int
}

func (s span) contains(x int) bool {
	return x >= s.from && x < s.to
}

// layout is the screen geometry shared by rendering and mouse hit-testing.
//
//	row 0                 top bar: label, play and fullscreen buttons
//	rows mainTop..mainEnd main display area, with prev/next columns when there are several items
//	row indicatorRow      one segment per item when there are several items
//	last row              key help
type layout struct {
	width, height int

	playButton       span
	fullscreenButton span

	mainTop, mainEnd int
	controls         bool
	previous, next   span

	indicatorRow int
	segments     []span
}

func computeLayout(width, height, count int) layout {
	if width <= 0 {
		width = defaultWidth
	}
	if height <= 0 {
		height = defaultHeight
	}
	if height < minContentHeight+3 {
		height = minContentHeight + 3
	}

	l := layout{
		width:        width,
		height:       height,
		mainTop:      1,
		mainEnd:      height - 2,
		indicatorRow: height - 2,
		controls:     count > 1,
	}

	fullStart := width - len(fullscreenButton)
	playStart := fullStart - buttonGap - len(playButton)
	if playStart < 0 {
		playStart = 0
	}
	l.playButton = span{playStart, playStart + len(playButton)}
	l.fullscreenButton = span{fullStart, width}

	if l.controls {
		l.previous = span{0, controlWidth}
		l.next = span{width - controlWidth, width}

		total := count + (count-1)*(indicatorSpacing-1)
		start := (width - total) / 2
		if start < 0 {
			start = 0
		}
		l.segments = make([]span, count)
		for i := range l.segments {
			x := start + i*indicatorSpacing
			l.segments[i] = span{x, x + 1}
		}
	}

	return l
}

// target is what a click landed on.
type target int

const (
	targetNone target = iota
	targetMain
	targetPlay
	targetFullscreen
	targetPrevious
	targetNext
	targetSegment
)

// hit resolves a click position. For targetSegment the segment index is returned as well.
func (l layout) hit(x, y int) (target, int) {
	switch {
	case y == 0:
		if l.playButton.contains(x) {
			return targetPlay, 0
		}
		if l.fullscreenButton.contains(x) {
			return targetFullscreen, 0
		}
		return targetNone, 0

	case y >= l.mainTop && y < l.mainEnd:
		if l.controls && l.previous.contains(x) {
			return targetPrevious, 0
		}
		if l.controls && l.next.contains(x) {
			return targetNext, 0
		}
		return targetMain, 0

	case y == l.indicatorRow:
		for i, s := range l.segments {
			if s.contains(x) {
				return targetSegment, i
			}
		}
		return targetNone, 0
	}

	return targetNone, 0
}
