package scoring

import "github.com/couchcryptid/eventrank/internal/domain"

// Rule is one keyword rule: any matching keyword applies Delta once.
// Keywords are matched against the folded title, description and category;
// a trailing '*' matches a word prefix.
type Rule struct {
	Name     string
	Keywords []string
	Delta    int
}

// Keyword groups shared across profiles.
var (
	educationalKeywords = []string{
		"educational", "workshop", "science", "learn*", "museum", "exhibition",
		"vzdelav*", "dilna", "dilnicka", "veda", "vedeck*", "muze*", "vystav*",
	}
	interactiveKeywords = []string{
		"interactive", "hands on", "play", "game*", "creative",
		"interaktiv*", "hra", "hry", "hrani", "tvor*", "vyrab*",
	}
	seasonalKeywords = []string{
		"festival", "limited", "premiere", "special", "one off", "one time",
		"festival*", "premier*", "jedinecn*", "vyjimecn*", "specialni", "slavnost*", "jarmark",
	}
)

// ProfileRules holds the enumerated type rules for one audience profile.
type ProfileRules struct {
	Affinities []Rule
	Unsuitable []Rule
}

// rulesByProfile is the keyword rule table. Affinities add affinityBonus each;
// any unsuitable match applies the profile's penalty once per rule.
var rulesByProfile = map[domain.AudienceProfile]ProfileRules{
	domain.ProfileInfant: {
		Affinities: []Rule{
			{Name: "playground", Keywords: []string{"playground", "detske hriste", "hrist*", "herna", "play area"}, Delta: affinityBonus},
			{Name: "puppet", Keywords: []string{"puppet*", "lout*", "marionet*"}, Delta: affinityBonus},
			{Name: "toddler", Keywords: []string{"toddler*", "baby", "babies", "batol*", "miminka", "nejmensi", "predskol*"}, Delta: affinityBonus},
			{Name: "animals", Keywords: []string{"petting zoo", "farm*", "zviratk*", "statek"}, Delta: affinityBonus},
			{Name: "music for little ones", Keywords: []string{"lullaby", "ukolebav*", "pisnick*", "rikank*"}, Delta: affinityBonus},
		},
		Unsuitable: []Rule{
			{Name: "nightlife", Keywords: []string{"nightlife", "nightclub", "club night", "party", "disco", "nocni klub", "diskotek*", "nocni"}, Delta: -10},
			{Name: "lecture", Keywords: []string{"lecture", "talk", "seminar", "prednask*", "konference"}, Delta: -10},
			{Name: "adult", Keywords: []string{"adults only", "beer", "wine", "pivn*", "vinobrani", "degustac*", "pro dospele"}, Delta: -10},
			{Name: "loud", Keywords: []string{"rock", "metal", "punk", "techno"}, Delta: -10},
		},
	},
	domain.ProfileChild: {
		Affinities: []Rule{
			{Name: "museum", Keywords: []string{"museum", "muze*", "planetar*", "observator*", "hvezdar*"}, Delta: affinityBonus},
			{Name: "sport", Keywords: []string{"sport*", "football", "climbing", "fotbal", "lezen*", "bruslen*", "plavan*", "kolo", "cyklo*"}, Delta: affinityBonus},
			{Name: "science", Keywords: []string{"science", "robot*", "experiment*", "technik*", "veda", "vedeck*"}, Delta: affinityBonus},
			{Name: "theatre", Keywords: []string{"theatre", "theater", "divadl*", "pohadk*"}, Delta: affinityBonus},
			{Name: "adventure", Keywords: []string{"adventure", "treasure hunt", "dobrodruz*", "stezk*", "bojovk*", "drakiad*"}, Delta: affinityBonus},
		},
		Unsuitable: []Rule{
			{Name: "nightlife", Keywords: []string{"nightlife", "nightclub", "club night", "disco", "nocni klub", "diskotek*"}, Delta: -8},
			{Name: "lecture", Keywords: []string{"lecture", "seminar", "prednask*", "konference"}, Delta: -8},
			{Name: "adult", Keywords: []string{"adults only", "beer", "wine", "pivn*", "vinobrani", "degustac*", "pro dospele"}, Delta: -8},
		},
	},
	domain.ProfileFamily: {
		Affinities: []Rule{
			{Name: "festival", Keywords: []string{"festival*", "slavnost*", "jarmark", "pout*", "trh*", "market"}, Delta: affinityBonus},
			{Name: "zoo", Keywords: []string{"zoo", "zoologick*", "aquarium", "akvari*", "farm*", "statek"}, Delta: affinityBonus},
			{Name: "outdoor trip", Keywords: []string{"picnic", "hike", "trip", "piknik", "vylet*", "turistik*", "hrad", "hrady", "zamek", "zamky"}, Delta: affinityBonus},
			{Name: "family", Keywords: []string{"family", "families", "rodin*", "pro celou rodinu", "den deti", "detsky den"}, Delta: affinityBonus},
		},
		Unsuitable: []Rule{
			{Name: "nightlife", Keywords: []string{"nightlife", "nightclub", "club night", "nocni klub", "diskotek*"}, Delta: -5},
			{Name: "adult", Keywords: []string{"adults only", "pro dospele", "degustac*"}, Delta: -5},
		},
	},
}

// Rules returns the keyword rule table for a profile.
func Rules(p domain.AudienceProfile) ProfileRules {
	return rulesByProfile[p]
}
