// Package grid places poems onto a room's character grid.
package grid

import "poemgrid/internal/models"

// Place writes poem characters into g starting at the poem's start position,
// advancing x for horizontal poems and y for vertical ones. Characters whose
// target square falls outside the grid are dropped; the rest of the poem is
// still placed. Clipping is the policy, not an error.
func Place(g models.Grid, p models.Poem) {
	x, y := p.StartPosition.X, p.StartPosition.Y
	i := 0
	for _, ch := range p.Text {
		cx, cy := x, y
		if p.Direction == models.DirHorizontal {
			cx = x + i
		} else {
			cy = y + i
		}
		i++
		if cx < 0 || cx >= models.GridSize || cy < 0 || cy >= models.GridSize {
			continue
		}
		g[cy][cx] = &models.Cell{
			Char:   string(ch),
			PoemID: p.ID,
			Color:  p.Color,
		}
	}
}
