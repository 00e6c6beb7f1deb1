// ABOUTME: PATCH support via JSON merge patch and JSON patch documents
// ABOUTME: Also computes the JSON diff of an update for debug logging

package server

import (
	"errors"
	"fmt"
	"mime"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/wI2L/jsondiff"
)

// Patch media types
const (
	mediaMergePatch = "application/merge-patch+json"
	mediaJSONPatch  = "application/json-patch+json"
)

var errUnsupportedPatchType = errors.New("unsupported patch content type")

// applyPatch applies patch to doc according to contentType. A missing or
// plain JSON content type is treated as a merge patch.
func applyPatch(contentType string, doc, patch []byte) ([]byte, error) {
	mediaType := ""
	if contentType != "" {
		var err error
		mediaType, _, err = mime.ParseMediaType(contentType)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errUnsupportedPatchType, err)
		}
	}

	switch mediaType {
	case "", "application/json", mediaMergePatch:
		patched, err := jsonpatch.MergePatch(doc, patch)
		if err != nil {
			return nil, fmt.Errorf("applying merge patch: %w", err)
		}
		return patched, nil
	case mediaJSONPatch:
		ops, err := jsonpatch.DecodePatch(patch)
		if err != nil {
			return nil, fmt.Errorf("decoding json patch: %w", err)
		}
		patched, err := ops.Apply(doc)
		if err != nil {
			return nil, fmt.Errorf("applying json patch: %w", err)
		}
		return patched, nil
	default:
		return nil, fmt.Errorf("%w %q", errUnsupportedPatchType, mediaType)
	}
}

// describeChanges renders the RFC 6902 operations turning before into after.
func describeChanges(before, after []byte) (string, error) {
	ops, err := jsondiff.CompareJSON(before, after)
	if err != nil {
		return "", fmt.Errorf("comparing documents: %w", err)
	}
	if len(ops) == 0 {
		return "", nil
	}
	return ops.String(), nil
}
