// Package rules holds the declarative description of which maps a session
// may request from the exchange, and turns it into randomized queries.
package rules

import (
	"time"
)

// Site is a bit-flag set over the supported exchange sites.
type Site uint8

const (
	SiteTMNF Site = 1 << iota
	SiteTMUF
	SiteNations
	SiteSunrise
	SiteOriginal

	// SiteAny means "no preference"; ToURL treats it as the full set.
	SiteAny Site = 0
)

// AllSites enumerates every concrete site in declaration order.
var AllSites = []Site{SiteTMNF, SiteTMUF, SiteNations, SiteSunrise, SiteOriginal}

// siteHosts maps each site to its exchange host. These are fixed wire
// contracts with the exchange service.
var siteHosts = map[Site]string{
	SiteTMNF:     "tmnforever.tm-exchange.com",
	SiteTMUF:     "united.tm-exchange.com",
	SiteNations:  "nations.tm-exchange.com",
	SiteSunrise:  "sunrise.tm-exchange.com",
	SiteOriginal: "original.tm-exchange.com",
}

// Has reports whether the flag set contains the given site.
func (s Site) Has(site Site) bool {
	return s&site != 0
}

// Sites returns the concrete sites contained in the flag set, in
// declaration order. An empty flag set yields all sites.
func (s Site) Sites() []Site {
	if s == SiteAny {
		return AllSites
	}
	out := make([]Site, 0, len(AllSites))
	for _, site := range AllSites {
		if s.Has(site) {
			out = append(out, site)
		}
	}
	return out
}

// Host returns the exchange host for a single concrete site.
func (s Site) Host() string {
	return siteHosts[s]
}

func (s Site) String() string {
	switch s {
	case SiteTMNF:
		return "TMNF"
	case SiteTMUF:
		return "TMUF"
	case SiteNations:
		return "Nations"
	case SiteSunrise:
		return "Sunrise"
	case SiteOriginal:
		return "Original"
	}
	return "Any"
}

// Environment is a map theme.
type Environment int

const (
	EnvAlpine Environment = iota // Snow theme; "Alpine" is the exchange's name for it
	EnvBay
	EnvCoast
	EnvIsland
	EnvRally
	EnvSpeed // Desert theme
	EnvStadium
)

var environmentNames = map[Environment]string{
	EnvAlpine:  "Alpine",
	EnvBay:     "Bay",
	EnvCoast:   "Coast",
	EnvIsland:  "Island",
	EnvRally:   "Rally",
	EnvSpeed:   "Speed",
	EnvStadium: "Stadium",
}

func (e Environment) String() string { return environmentNames[e] }

// Vehicle mirrors Environment; each theme has a matching car.
type Vehicle int

const (
	VehicleAlpine Vehicle = iota
	VehicleBay
	VehicleCoast
	VehicleIsland
	VehicleRally
	VehicleSpeed
	VehicleStadium
)

func (v Vehicle) String() string { return environmentNames[Environment(v)] + "Car" }

// PrimaryType is the map's game mode category.
type PrimaryType int

const (
	TypeRace PrimaryType = iota
	TypePuzzle
	TypePlatform
	TypeStunts
)

func (t PrimaryType) String() string {
	switch t {
	case TypeRace:
		return "Race"
	case TypePuzzle:
		return "Puzzle"
	case TypePlatform:
		return "Platform"
	case TypeStunts:
		return "Stunts"
	}
	return "Unknown"
}

// LeaderboardType filters by how a map is ranked on the exchange.
type LeaderboardType int

const (
	LBAll LeaderboardType = iota
	LBStandard
	LBClassic
	LBNadeo
)

// Difficulty is the author-declared difficulty tier.
type Difficulty int

const (
	DiffBeginner Difficulty = iota
	DiffIntermediate
	DiffExpert
	DiffLunatic
)

// Route describes the track topology.
type Route int

const (
	RouteSingle Route = iota
	RouteMulti
	RouteSymmetric
)

// Mood is the time-of-day lighting set.
type Mood int

const (
	MoodSunrise Mood = iota
	MoodDay
	MoodSunset
	MoodNight
)

// TagMode selects how the tag list filters maps.
type TagMode int

const (
	TagInclusive TagMode = iota
	TagExclusive
)

// TagRange bounds the exchange's numeric tag ordinals, inclusive on
// both ends.
type TagRange struct {
	From int
	To   int
}

// MaxTimeLimit is the largest session time limit the rule set accepts.
const MaxTimeLimit = 9*time.Hour + 59*time.Minute + 59*time.Second

// RequestRules describes the filters applied to the randomized exchange
// query. Zero values mean "no filter" and are skipped during emission.
type RequestRules struct {
	Sites Site

	AuthorName      string
	TrackName       string
	PrimaryType     *PrimaryType
	LeaderboardType *LeaderboardType

	Tags    []string
	TagMode TagMode

	// TagRangeIn keeps only maps whose tag ordinals fall inside the
	// range; TagRangeOut drops those inside it.
	TagRangeIn  *TagRange
	TagRangeOut *TagRange

	UploadedAfter  *time.Time
	UploadedBefore *time.Time

	AuthorTimeMin time.Duration
	AuthorTimeMax time.Duration

	Environments []Environment
	Vehicles     []Vehicle
	Difficulties []Difficulty
	Routes       []Route
	Moods        []Mood

	// Equal distribution emits one random element instead of the full
	// set, so each chosen theme is equally likely regardless of how many
	// maps exist per theme.
	EnvironmentEqualDistribution bool
	VehicleEqualDistribution     bool
}

// RuleSet is the complete per-session configuration: the request filters
// plus the session-level play constraints. It is validated once when a
// session starts; interactive edits may hold transiently invalid values.
type RuleSet struct {
	TimeLimit   time.Duration
	NoUnlimiter bool
	Request     RequestRules
}

// Default returns the rule set used when the config file carries none:
// a one-hour TMNF session with the Unlimiter excluded.
func Default() RuleSet {
	return RuleSet{
		TimeLimit:   time.Hour,
		NoUnlimiter: true,
		Request:     RequestRules{Sites: SiteTMNF},
	}
}
