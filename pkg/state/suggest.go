package state

import (
	"github.com/agnivade/levenshtein"
)

// specKeys are the recognized top-level fields of a BootstrapConfig spec.
var specKeys = []string{
	"externalEndpoint",
	"namespace",
	"roleName",
	"bindingName",
	"serviceAccount",
	"credentialTTL",
	"controllerURL",
	"tunnelAddress",
	"podTemplate",
}

// maxSuggestDistance bounds how far a typo may be from a known key before we
// stop guessing.
const maxSuggestDistance = 4

func knownSpecKey(key string) bool {
	for _, k := range specKeys {
		if k == key {
			return true
		}
	}
	return false
}

// suggestSpecKey returns the known spec key closest to the given unknown key,
// or "" if nothing is plausibly close.
func suggestSpecKey(key string) string {
	best := ""
	bestDist := maxSuggestDistance + 1

	for _, candidate := range specKeys {
		dist := levenshtein.ComputeDistance(key, candidate)
		if dist < bestDist {
			best = candidate
			bestDist = dist
		}
	}

	if bestDist > maxSuggestDistance {
		return ""
	}
	return best
}
