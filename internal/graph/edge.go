// Package graph provides an immutable labelled directed graph used to model
// scene transitions and merged narrative state spaces.
package graph

// Edge is a labelled directed connection between two nodes. The label carries
// domain metadata (transition kind, choice text) and takes no part in edge
// identity.
type Edge[N comparable, L any] struct {
	From  N
	To    N
	Label L
}
