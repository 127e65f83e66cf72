// Package library composes reader pages: chapter content rendered from
// markdown plus previous/next navigation within the episode sequence.
package library
