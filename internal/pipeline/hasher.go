package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
)

// ArtifactHash is the deterministic identity of one extraction: a change to
// the artifact's content, its id, or the generator configuration produces a
// different hash, and nothing else does.
type ArtifactHash string

// String returns the string representation of the ArtifactHash.
func (h ArtifactHash) String() string {
	return string(h)
}

// ArtifactHasher computes extraction-cache keys.
//
// The computation is content-based and ordered: every component is
// length-prefixed before hashing so no concatenation is ambiguous.
type ArtifactHasher struct{}

// NewArtifactHasher creates a new ArtifactHasher.
func NewArtifactHasher() *ArtifactHasher {
	return &ArtifactHasher{}
}

// HashInput contains all components contributing to extraction identity.
type HashInput struct {
	// ArtifactID is the artifact's stable identity.
	ArtifactID string

	// ConfigFingerprint is the generator configuration fingerprint; a
	// changed container name, marker or suffix must invalidate cached
	// extractions even when source content is unchanged.
	ConfigFingerprint string

	// Content is the normalized source content.
	Content []byte
}

// ComputeHash computes the ArtifactHash for the given input.
func (h *ArtifactHasher) ComputeHash(input HashInput) ArtifactHash {
	hasher := sha256.New()

	writeField := func(data []byte) {
		length := uint64(len(data))
		hasher.Write([]byte{
			byte(length >> 56),
			byte(length >> 48),
			byte(length >> 40),
			byte(length >> 32),
			byte(length >> 24),
			byte(length >> 16),
			byte(length >> 8),
			byte(length),
		})
		hasher.Write(data)
	}

	writeField([]byte(input.ArtifactID))
	writeField([]byte(input.ConfigFingerprint))
	writeField(input.Content)

	return ArtifactHash(hex.EncodeToString(hasher.Sum(nil)))
}
