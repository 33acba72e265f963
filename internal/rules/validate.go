package rules

import "fmt"

// ValidationError marks a rule-set violation that must surface to the
// user instead of being silently corrected. Session start aborts on it.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// basicSites are the two oldest exchange sites. They carry a single theme
// (Stadium), rank only Race maps, and predate the equal-distribution
// search options.
const basicSites = SiteTMNF | SiteNations

// siteFamily groups sites by the themes their exchange actually hosts.
// When the environment or vehicle filter is restricted at all, at least
// one anchor theme per selected family must remain in the set; otherwise
// the query can only return maps the site does not have.
type siteFamily struct {
	name    string
	sites   Site
	anchors []Environment
}

var siteFamilies = []siteFamily{
	{name: "Stadium", sites: SiteTMNF | SiteNations, anchors: []Environment{EnvStadium}},
	{name: "Sunrise", sites: SiteSunrise, anchors: []Environment{EnvIsland, EnvBay, EnvCoast}},
	{name: "Original", sites: SiteOriginal, anchors: []Environment{EnvSpeed, EnvAlpine, EnvRally}},
}

// Validate checks the rule set against the per-site compatibility
// constraints of the exchange taxonomy. Checks run in a fixed order and
// the first violation is returned as a *ValidationError.
func (r RuleSet) Validate() error {
	if r.TimeLimit <= 0 {
		return validationErrorf("time limit must be greater than zero")
	}
	if r.TimeLimit > MaxTimeLimit {
		return validationErrorf("time limit must not exceed 9:59:59")
	}

	req := r.Request
	selected := req.Sites
	if selected == SiteAny {
		selected = SiteTMNF | SiteTMUF | SiteNations | SiteSunrise | SiteOriginal
	}

	if req.PrimaryType != nil && *req.PrimaryType != TypeRace && selected&basicSites != 0 {
		return validationErrorf(
			"primary type %s is not available on TMNF/Nations; restrict the site selection or use Race",
			*req.PrimaryType)
	}

	if len(req.Environments) > 0 {
		for _, fam := range siteFamilies {
			if selected&fam.sites == 0 {
				continue
			}
			if !containsAnyEnvironment(req.Environments, fam.anchors) {
				return validationErrorf(
					"environment filter excludes every %s theme; include at least one of %v or drop the %s sites",
					fam.name, fam.anchors, fam.name)
			}
		}
	}

	if len(req.Vehicles) > 0 {
		for _, fam := range siteFamilies {
			if selected&fam.sites == 0 {
				continue
			}
			if !containsAnyVehicle(req.Vehicles, fam.anchors) {
				return validationErrorf(
					"vehicle filter excludes every %s vehicle; include at least one of %v or drop the %s sites",
					fam.name, fam.anchors, fam.name)
			}
		}
	}

	if req.EnvironmentEqualDistribution && req.VehicleEqualDistribution && selected != SiteTMUF {
		return validationErrorf("combined environment and vehicle equal distribution is only supported on TMUF")
	}
	if (req.EnvironmentEqualDistribution || req.VehicleEqualDistribution) && selected&basicSites != 0 {
		return validationErrorf("equal distribution is not supported on TMNF/Nations")
	}

	return nil
}

func containsAnyEnvironment(set []Environment, anchors []Environment) bool {
	for _, e := range set {
		for _, a := range anchors {
			if e == a {
				return true
			}
		}
	}
	return false
}

// Vehicles mirror environments ordinal-for-ordinal, so the same anchor
// table applies.
func containsAnyVehicle(set []Vehicle, anchors []Environment) bool {
	for _, v := range set {
		for _, a := range anchors {
			if Environment(v) == a {
				return true
			}
		}
	}
	return false
}
