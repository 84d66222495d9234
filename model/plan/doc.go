// Package plan models an objective decomposed into ordered steps whose
// dependencies form an acyclic graph. Construction and every dependency
// mutation re-validate the graph; step transitions recompute plan status.
package plan
