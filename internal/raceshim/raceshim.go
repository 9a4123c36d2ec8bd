// Package raceshim reports whether the running binary was built with the
// race detector, the way race/api.go in the instrumentation detector
// pack reports its own "is this build instrumented" capability. evcbench
// uses it to label its output so benchmark numbers taken under -race
// aren't mistaken for unincumbered ones.
package raceshim
