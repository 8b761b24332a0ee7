// Package problem holds the benchmark evaluation functions: the traveling
// salesman problem in route and sort encodings, and the two colors objective.
package problem
