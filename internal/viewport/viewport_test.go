package viewport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-live-preview/internal/contracts"
	"go-live-preview/internal/store"
)

// A page of 72pt height is 96px at scale 1.
func pages(t *testing.T, n int) []*store.Page {
	t.Helper()
	var batch []contracts.PagePatch
	for i := 0; i < n; i++ {
		batch = append(batch, contracts.PagePatch{
			PageIndex: i,
			PageSize:  contracts.PageSize{W: 72, H: 72},
		})
	}
	s := store.MergePatch(store.Empty(), batch, nil)
	require.Equal(t, n, s.Len())
	return s.Pages()
}

func TestLayoutOffsets(t *testing.T) {
	l := NewLayout(pages(t, 3), 1)

	slots := l.Slots()
	require.Len(t, slots, 3)
	assert.InDelta(t, 0, slots[0].Top, 1e-9)
	assert.InDelta(t, 96+PageGap, slots[1].Top, 1e-9)
	assert.InDelta(t, 2*(96+PageGap), slots[2].Top, 1e-9)
	assert.InDelta(t, 3*96+2*PageGap, l.Total(), 1e-9)
	assert.InDelta(t, 96, slots[0].Width, 1e-9)
}

func TestLayoutScale(t *testing.T) {
	l := NewLayout(pages(t, 2), 0.5)
	assert.InDelta(t, 2*48+PageGap, l.Total(), 1e-9)
}

func TestVisibleWindow(t *testing.T) {
	// 20 pages of 96px with 24px gaps: page i spans [120i, 120i+96].
	l := NewLayout(pages(t, 20), 1)

	tests := []struct {
		name       string
		scrollTop  float64
		viewHeight float64
		buffer     float64
		want       []int
	}{
		{"top no buffer", 0, 130, 0, []int{0, 1}},
		{"middle no buffer", 250, 50, 0, []int{2}},
		{"gap only", 100, 10, 0, nil},
		{"buffer reaches neighbours", 250, 50, 40, []int{1, 2}},
		{"start clamped at zero", 10, 10, 600, []int{0, 1, 2, 3, 4, 5}},
		{"edge touch is inclusive", 96, 0, 0, []int{0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := l.Visible(tt.scrollTop, tt.viewHeight, tt.buffer, nil)
			assert.ElementsMatch(t, tt.want, keys(got))
		})
	}
}

func TestVisibleForcesActivePage(t *testing.T) {
	l := NewLayout(pages(t, 20), 1)
	forced := 15

	got := l.Visible(0, 100, Buffer, &forced)
	assert.True(t, got[15])
	assert.True(t, got[0])
	assert.False(t, got[14])

	missing := 99
	got = l.Visible(0, 100, 0, &missing)
	assert.False(t, got[99])
}

func TestFramesConserveHeight(t *testing.T) {
	l := NewLayout(pages(t, 12), 1.3)

	for _, scrollTop := range []float64{0, 200, 777, 1500, 5000} {
		visible := l.Visible(scrollTop, 400, Buffer, nil)
		frames := l.Frames(visible)
		require.Len(t, frames, 12)

		total := 0.0
		for i, f := range frames {
			if i > 0 {
				total += PageGap
			}
			total += f.Height
			assert.Equal(t, !visible[f.Index], f.Placeholder)
		}
		assert.InDelta(t, l.Total(), total, 1e-6, "scrollTop %v", scrollTop)
	}
}

func TestBlockStyleAndTop(t *testing.T) {
	style := BlockStyle(store.BBox{X: 72, Y: 36, W: 144, H: 18}, 2)
	assert.InDelta(t, 192, style.Left, 1e-9)
	assert.InDelta(t, 96, style.Top, 1e-9)
	assert.InDelta(t, 384, style.Width, 1e-9)
	assert.InDelta(t, 48, style.Height, 1e-9)

	l := NewLayout(pages(t, 2), 1)
	top, ok := l.BlockTop(1, &store.BBox{Y: 36})
	require.True(t, ok)
	assert.InDelta(t, 120+48, top, 1e-9)

	top, ok = l.BlockTop(1, nil)
	require.True(t, ok)
	assert.InDelta(t, 120, top, 1e-9)

	_, ok = l.BlockTop(5, nil)
	assert.False(t, ok)
}

func keys(m map[int]bool) []int {
	var out []int
	for k := range m {
		out = append(out, k)
	}
	return out
}
