// ABOUTME: Random adjective and noun pairs for the /random-words endpoint
// ABOUTME: Word lists are short enough that any pair fits in ten characters

package words

import "math/rand/v2"

// MaxLen bounds the length of a joined pair, separator included.
const MaxLen = 10

var adjectives = []string{
	"red", "big", "shy", "calm", "bold", "cool", "fast", "wild", "odd", "warm",
}

var nouns = []string{
	"cat", "fox", "owl", "bear", "wolf", "hawk", "frog", "moth", "lynx", "crab",
}

// Pair is an adjective and a noun.
type Pair struct {
	Words     string `json:"words"`
	Adjective string `json:"adjective"`
	Noun      string `json:"noun"`
}

// Generator picks pairs from the word lists.
type Generator struct {
	intn func(n int) int
}

// NewGenerator returns a Generator using the global random source.
func NewGenerator() *Generator {
	return &Generator{intn: rand.IntN}
}

// NewSeededGenerator returns a deterministic Generator.
func NewSeededGenerator(seed uint64) *Generator {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return &Generator{intn: r.IntN}
}

// Pair returns a random pair.
func (g *Generator) Pair() Pair {
	adj := adjectives[g.intn(len(adjectives))]
	noun := nouns[g.intn(len(nouns))]
	return Pair{
		Words:     adj + " " + noun,
		Adjective: adj,
		Noun:      noun,
	}
}
