package postgres

// clampPosition bounds a requested slot to the live dense range of the target
// scope: the last occupied slot when reordering in place, one past it when the
// row enters a new scope. count is the number of rows already in the scope,
// including the moving row when it stays.
func clampPosition(position, count int, entering bool) int {
	top := count
	if !entering {
		top = count - 1
	}
	if position > top {
		position = top
	}
	if position < 0 {
		position = 0
	}
	return position
}
