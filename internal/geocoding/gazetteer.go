package geocoding

import (
	"strings"

	"github.com/econav360/econav/internal/geo"
)

// Place is a named gazetteer entry. Names are stored lowercase.
type Place struct {
	Name       string
	Coordinate geo.Coordinate
}

// Gazetteer is an ordered list of known places. Order is significant: partial
// matches return the first entry that matches.
type Gazetteer []Place

// Normalize lowercases and trims a query the way gazetteer keys are stored.
func Normalize(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// Exact returns the entry whose name equals the normalized query.
func (g Gazetteer) Exact(query string) (Place, bool) {
	q := Normalize(query)
	for _, p := range g {
		if p.Name == q {
			return p, true
		}
	}
	return Place{}, false
}

// Partial returns the first entry whose name contains the normalized query or
// is contained in it.
// TODO: short queries such as "engineering" match many departments; revisit
// once product decides between first-match and best-match.
func (g Gazetteer) Partial(query string) (Place, bool) {
	q := Normalize(query)
	if q == "" {
		return Place{}, false
	}
	for _, p := range g {
		if strings.Contains(p.Name, q) || strings.Contains(q, p.Name) {
			return p, true
		}
	}
	return Place{}, false
}

func place(name string, lat, lng float64) Place {
	return Place{Name: name, Coordinate: geo.Coordinate{Lat: lat, Lng: lng}}
}

// DefaultGazetteer returns the built-in list of major Indian cities and
// IIT Roorkee campus locations.
func DefaultGazetteer() Gazetteer {
	return Gazetteer{
		place("delhi", 28.6139, 77.2090),
		place("dehradun", 30.3165, 78.0322),
		place("mumbai", 19.0760, 72.8777),
		place("chennai", 13.0827, 80.2707),
		place("kolkata", 22.5726, 88.3639),
		place("bangalore", 12.9716, 77.5946),
		place("hyderabad", 17.3850, 78.4867),
		place("pune", 18.5204, 73.8567),
		place("ahmedabad", 23.0225, 72.5714),
		place("jaipur", 26.9124, 75.7873),
		place("lucknow", 26.8467, 80.9462),
		place("kanpur", 26.4499, 80.3319),
		place("nagpur", 21.1458, 79.0882),
		place("surat", 21.1702, 72.8311),
		place("patna", 25.5941, 85.1376),
		place("indore", 22.7196, 75.8577),
		place("thane", 19.2183, 72.9781),
		place("bhopal", 23.2599, 77.4126),
		place("visakhapatnam", 17.6868, 83.2185),
		place("chandigarh", 30.7333, 76.7794),

		place("iit roorkee", 29.8645, 77.8966),
		place("iit roorkee main gate", 29.8645, 77.8966),
		place("iit roorkee guest house", 29.8652, 77.8959),
		place("department of paper technology", 29.8658, 77.8947),
		place("department of chemical engineering", 29.8659, 77.8961),
		place("department of biosciences", 29.8657, 77.8963),
		place("department of electrical engineering", 29.8660, 77.8965),
		place("department of civil engineering", 29.8662, 77.8968),
		place("department of mechanical engineering", 29.8664, 77.8970),
		place("department of computer science", 29.8666, 77.8972),
		place("department of mathematics", 29.8668, 77.8974),
		place("department of physics", 29.8670, 77.8976),
		place("department of chemistry", 29.8672, 77.8978),
		place("department of architecture", 29.8674, 77.8980),
		place("department of management studies", 29.8676, 77.8982),
		place("department of earthquake engineering", 29.8678, 77.8984),
		place("department of water resources", 29.8680, 77.8986),
		place("department of metallurgical engineering", 29.8682, 77.8988),
		place("mahatma gandhi central library", 29.8654, 77.8958),
		place("iit basketball court", 29.8661, 77.8952),
		place("cricket and football ground", 29.8665, 77.8954),
		place("paper technology", 29.8658, 77.8947),
		place("chemical engineering", 29.8659, 77.8961),
		place("biosciences", 29.8657, 77.8963),
		place("electrical engineering", 29.8660, 77.8965),
		place("civil engineering", 29.8662, 77.8968),
		place("mechanical engineering", 29.8664, 77.8970),
		place("computer science", 29.8666, 77.8972),
		place("mathematics", 29.8668, 77.8974),
		place("physics", 29.8670, 77.8976),
		place("chemistry", 29.8672, 77.8978),
		place("architecture", 29.8674, 77.8980),
		place("management studies", 29.8676, 77.8982),
		place("earthquake engineering", 29.8678, 77.8984),
		place("water resources", 29.8680, 77.8986),
		place("metallurgical engineering", 29.8682, 77.8988),
		place("library", 29.8654, 77.8958),
	}
}
