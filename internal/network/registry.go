package network

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"

	reviewerr "github.com/reviewchain/reviewchain/pkg/errors"
)

// maxSuggestDistance bounds how different a typo may be from a network id.
const maxSuggestDistance = 3

// Registry is an immutable set of network profiles with one default.
type Registry struct {
	profiles  []Profile
	byID      map[string]int
	byChainID map[uint64]int
	def       int
}

// NewRegistry validates profiles and builds a registry. IDs and chain IDs
// must be unique and defaultID must name one of the profiles.
func NewRegistry(profiles []Profile, defaultID string) (*Registry, error) {
	if len(profiles) == 0 {
		return nil, reviewerr.Newf(reviewerr.ErrConfigInvalid, "no networks configured")
	}

	r := &Registry{
		profiles:  make([]Profile, len(profiles)),
		byID:      make(map[string]int, len(profiles)),
		byChainID: make(map[uint64]int, len(profiles)),
		def:       -1,
	}
	copy(r.profiles, profiles)

	for i, p := range r.profiles {
		id := strings.ToLower(strings.TrimSpace(p.ID))
		if id == "" {
			return nil, reviewerr.Newf(reviewerr.ErrConfigInvalid, "network %d has no id", i)
		}
		if p.ChainID == 0 {
			return nil, reviewerr.Newf(reviewerr.ErrConfigInvalid, "network %s has no chain id", id)
		}
		if _, dup := r.byID[id]; dup {
			return nil, reviewerr.Newf(reviewerr.ErrConfigInvalid, "duplicate network id %s", id)
		}
		if _, dup := r.byChainID[p.ChainID]; dup {
			return nil, reviewerr.Newf(reviewerr.ErrConfigInvalid, "duplicate chain id %d", p.ChainID)
		}
		r.profiles[i].ID = id
		r.byID[id] = i
		r.byChainID[p.ChainID] = i
	}

	idx, ok := r.byID[strings.ToLower(strings.TrimSpace(defaultID))]
	if !ok {
		return nil, reviewerr.Newf(reviewerr.ErrConfigInvalid, "default network %q is not configured", defaultID)
	}
	r.def = idx

	return r, nil
}

// Default returns the default network profile.
func (r *Registry) Default() Profile {
	return r.profiles[r.def]
}

// ByChainID looks a profile up by numeric chain id.
func (r *Registry) ByChainID(chainID uint64) (Profile, bool) {
	i, ok := r.byChainID[chainID]
	if !ok {
		return Profile{}, false
	}
	return r.profiles[i], true
}

// ByID looks a profile up by id ("amoy") or by decimal chain id ("80002").
// Unknown ids return ErrUnknownNetwork with a close match suggested when
// one exists.
func (r *Registry) ByID(id string) (Profile, error) {
	key := strings.ToLower(strings.TrimSpace(id))
	if i, ok := r.byID[key]; ok {
		return r.profiles[i], nil
	}
	if n, err := strconv.ParseUint(key, 10, 64); err == nil {
		if p, ok := r.ByChainID(n); ok {
			return p, nil
		}
	}

	err := reviewerr.WithDetails(reviewerr.ErrUnknownNetwork, map[string]string{"network": id})
	if s := r.Suggest(key); s != "" {
		return Profile{}, reviewerr.WithSuggestion(err, fmt.Sprintf("did you mean %q?", s))
	}
	return Profile{}, reviewerr.WithSuggestion(err, "run 'reviewchain networks list' to see configured networks")
}

// Resolve picks the profile whose contracts a wallet on chainID should
// use. The second result is true when chainID itself is a known network
// with deployed contracts. Otherwise the default profile is returned so
// the caller can direct the user there.
func (r *Registry) Resolve(chainID uint64) (Profile, bool) {
	if p, ok := r.ByChainID(chainID); ok && p.IsContractsDeployed() {
		return p, true
	}
	return r.Default(), false
}

// All returns every profile ordered by id.
func (r *Registry) All() []Profile {
	out := make([]Profile, len(r.profiles))
	copy(out, r.profiles)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Suggest returns the configured id closest to input, or "" when nothing
// is close enough.
func (r *Registry) Suggest(input string) string {
	best, bestDist := "", maxSuggestDistance+1
	for id := range r.byID {
		d := levenshtein.ComputeDistance(input, id)
		if d < bestDist || (d == bestDist && id < best) {
			best, bestDist = id, d
		}
	}
	return best
}
