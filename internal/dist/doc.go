// Package dist provides distributions over discrete instances: uniform vectors,
// uniform permutations and the dependency-tree model MIMIC refits every step.
package dist
