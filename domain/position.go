package domain

// Midpoint returns an ordering key strictly between two neighbor keys.
// Repeated insertion between the same fixed neighbors converges toward the
// limits of float64 precision; this is accepted and not renormalized.
func Midpoint(before, after float64) float64 {
	return (before + after) / 2
}

// PositionBefore returns an ordering key placed ahead of the given neighbor.
func PositionBefore(neighbor float64) float64 {
	return neighbor - 1.0
}

// PositionAfter returns an ordering key placed behind the given neighbor.
func PositionAfter(neighbor float64) float64 {
	return neighbor + 1.0
}

// AppendPosition returns the ordering key for appending to a column holding
// the given tasks: one past the largest existing key, or 1.0 when empty.
// Existing tasks never need renumbering.
func AppendPosition(tasks []Task) float64 {
	if len(tasks) == 0 {
		return 1.0
	}
	max := tasks[0].Position
	for _, t := range tasks[1:] {
		if t.Position > max {
			max = t.Position
		}
	}
	return max + 1.0
}
