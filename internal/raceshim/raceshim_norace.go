//go:build !race

package raceshim

// Enabled is true when this binary was built with -race.
const Enabled = false
