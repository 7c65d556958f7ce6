package cron

import (
	"errors"

	apperrors "github.com/cfd24/hoyolab-auto/internal/errors"
)

var errConflictingFilters = errors.New("cannot have both a blacklist and a whitelist for crons")

// ApplyFilter returns the definitions enabled by the blacklist/whitelist
// pair, in declaration order. List items may use either the identifier
// ("howl-scratch-card") or the mapped name ("howlScratchCard").
//
// Both lists non-empty is a ConflictingFilters ConfigError.
func ApplyFilter(defs []Definition, blacklist, whitelist []string) ([]Definition, error) {
	if len(blacklist) > 0 && len(whitelist) > 0 {
		return nil, apperrors.NewConfigError(apperrors.ConflictingFilters, "", errConflictingFilters)
	}

	black := toSet(blacklist)
	white := toSet(whitelist)

	active := make([]Definition, 0, len(defs))
	for _, d := range defs {
		listed := func(set map[string]struct{}) bool {
			_, byID := set[d.Identifier]
			_, byName := set[d.Name()]
			return byID || byName
		}

		if len(black) > 0 && listed(black) {
			continue
		}
		if len(white) > 0 && !listed(white) {
			continue
		}
		active = append(active, d)
	}

	return active, nil
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item != "" {
			set[item] = struct{}{}
		}
	}
	return set
}
