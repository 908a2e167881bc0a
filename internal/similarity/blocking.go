package similarity

import (
	"slices"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/sells-group/vcf-dupe/internal/config"
	"github.com/sells-group/vcf-dupe/internal/contact"
)

// Pair indexes two records of a loaded set, I < J.
type Pair struct {
	I, J int
}

// Blocker reduces the O(n²) pair space to records that share at least one
// cheap key. It only decides which pairs get scored, never whether they
// match.
type Blocker struct {
	strategy string
}

// NewBlocker returns a Blocker for one of the config.Blocking* strategies.
// Unknown strategies behave like config.BlockingNone.
func NewBlocker(strategy string) *Blocker {
	return &Blocker{strategy: strategy}
}

// Keys returns the block keys of r: a name key, plus every normalized email
// and phone. Records without a name use the name guessed from their first
// email.
func (b *Blocker) Keys(r *contact.Record) []string {
	view := contact.Normalize(r)
	var keys []string

	name := view.Name
	if !name.Present && len(view.Emails) > 0 {
		name = contact.NormalizeName(contact.GuessName(view.Emails[0].Value))
	}
	if name.Present {
		switch b.strategy {
		case config.BlockingPhonetic:
			for _, tok := range strings.Fields(name.Value) {
				primary, secondary := matchr.DoubleMetaphone(tok)
				for _, code := range []string{primary, secondary} {
					if code != "" {
						keys = append(keys, "n:"+code)
					}
				}
			}
		default:
			keys = append(keys, "n:"+string([]rune(name.Value)[:1]))
		}
	}
	for _, e := range view.Emails {
		keys = append(keys, "e:"+e.Value)
	}
	for _, p := range view.Phones {
		keys = append(keys, "p:"+p.Value)
	}

	slices.Sort(keys)
	return slices.Compact(keys)
}

// Pairs returns the candidate pairs of records in index order.
func (b *Blocker) Pairs(records []*contact.Record) []Pair {
	if b.strategy != config.BlockingInitial && b.strategy != config.BlockingPhonetic {
		out := make([]Pair, 0, len(records)*(len(records)-1)/2)
		for i := range records {
			for j := i + 1; j < len(records); j++ {
				out = append(out, Pair{I: i, J: j})
			}
		}
		return out
	}

	blocks := make(map[string][]int)
	for i, r := range records {
		for _, k := range b.Keys(r) {
			blocks[k] = append(blocks[k], i)
		}
	}

	seen := make(map[Pair]struct{})
	for _, members := range blocks {
		for x := 0; x < len(members); x++ {
			for y := x + 1; y < len(members); y++ {
				seen[Pair{I: members[x], J: members[y]}] = struct{}{}
			}
		}
	}

	out := make([]Pair, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b Pair) int {
		if a.I != b.I {
			return a.I - b.I
		}
		return a.J - b.J
	})
	return out
}
