package rules

import (
	"math/rand"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// queryParam is one emitted key/value pair. Parameters are collected into
// an ordered slice rather than url.Values because the exchange's query
// parser is order-sensitive for some filter combinations; emission order
// is a wire contract and must follow field declaration order.
type queryParam struct {
	key   string
	value string
}

// ToURL renders the rules into a randomized trackrandom query. One site is
// picked pseudo-randomly from the flag set (the full enumeration when the
// set is empty). The result is deterministic for a fixed random source.
func (r RequestRules) ToURL(rnd *rand.Rand) string {
	sites := r.Sites.Sites()
	site := sites[rnd.Intn(len(sites))]

	var params []queryParam
	add := func(key, value string) {
		if value != "" {
			params = append(params, queryParam{key, value})
		}
	}

	add("author", r.AuthorName)
	add("trackname", r.TrackName)
	if r.PrimaryType != nil {
		add("primarytype", strconv.Itoa(int(*r.PrimaryType)))
	}
	if r.LeaderboardType != nil {
		add("lbtype", strconv.Itoa(int(*r.LeaderboardType)))
	}
	add("tags", strings.Join(r.Tags, ","))
	if len(r.Tags) > 0 {
		add("tagmode", strconv.Itoa(int(r.TagMode)))
	}
	if r.TagRangeIn != nil {
		add("tagrangein", rangeParam(*r.TagRangeIn))
	}
	if r.TagRangeOut != nil {
		add("tagrangeout", rangeParam(*r.TagRangeOut))
	}
	if r.UploadedAfter != nil {
		add("uploadedafter", r.UploadedAfter.Format("2006-01-02"))
	}
	if r.UploadedBefore != nil {
		add("uploadedbefore", r.UploadedBefore.Format("2006-01-02"))
	}
	if r.AuthorTimeMin > 0 {
		add("authortimemin", millis(r.AuthorTimeMin))
	}
	if r.AuthorTimeMax > 0 {
		add("authortimemax", millis(r.AuthorTimeMax))
	}
	add("environments", environmentParam(r.Environments, r.EnvironmentEqualDistribution, rnd))
	add("vehicles", vehicleParam(r.Vehicles, r.VehicleEqualDistribution, rnd))
	add("difficulties", joinOrdinals(r.Difficulties))
	add("routes", joinOrdinals(r.Routes))
	add("moods", joinOrdinals(r.Moods))

	var b strings.Builder
	b.WriteString("https://")
	b.WriteString(site.Host())
	b.WriteString("/trackrandom")
	for i, p := range params {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(p.key)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.value))
	}
	return b.String()
}

func millis(d time.Duration) string {
	return strconv.FormatInt(d.Milliseconds(), 10)
}

func rangeParam(r TagRange) string {
	return strconv.Itoa(r.From) + "," + strconv.Itoa(r.To)
}

// environmentParam emits the environment set, or a single random element
// when equal distribution is enabled. An empty set emits nothing either way.
func environmentParam(envs []Environment, equal bool, rnd *rand.Rand) string {
	if len(envs) == 0 {
		return ""
	}
	if equal {
		return strconv.Itoa(int(envs[rnd.Intn(len(envs))]))
	}
	return joinOrdinals(envs)
}

func vehicleParam(vehicles []Vehicle, equal bool, rnd *rand.Rand) string {
	if len(vehicles) == 0 {
		return ""
	}
	if equal {
		return strconv.Itoa(int(vehicles[rnd.Intn(len(vehicles))]))
	}
	return joinOrdinals(vehicles)
}

// joinOrdinals serializes an enum set as comma-joined underlying ordinals.
func joinOrdinals[T ~int](values []T) string {
	if len(values) == 0 {
		return ""
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(int(v))
	}
	return strings.Join(parts, ",")
}
