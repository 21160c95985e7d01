// Package spline implements the immutable cubic Bezier curve used to bound
// lane surfaces. Curves are values: every operation returns a new curve and
// never modifies its receiver.
package spline
