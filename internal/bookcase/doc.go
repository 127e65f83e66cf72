// Package bookcase resolves themed navigation keys against a fixed ordered
// catalog of shelves and computes back/next sibling links between them.
package bookcase
