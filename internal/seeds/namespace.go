package seeds

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Namespace is the prefix tag of a seed plus the mode every seed under it
// must be built with.
type Namespace struct {
	Tag  string `json:"tag"`
	Mode Mode   `json:"mode"`
}

// Built-in namespaces for the shipped visual effects.
var (
	Crash      = mustRegister("crash", ModeOutcome)
	Climb      = mustRegister("climb", ModeOutcome)
	Ladder     = mustRegister("ladder", ModeOutcome)
	SlotReel   = mustRegister("slotreel", ModeOutcome)
	Roulette   = mustRegister("roulette", ModeOutcome)
	Magic8     = mustRegister("magic8", ModeOutcome)
	HiLo       = mustRegister("hilo", ModeOutcome)
	Poker      = mustRegister("poker", ModeOutcome)
	Plinko     = mustRegister("plinko", ModeOutcome)
	Blackjack  = mustRegister("blackjack", ModeOutcome)
	CoinFlip   = mustRegister("coinflip", ModeOutcome)
	DiceAnim   = mustRegister("dice-anim", ModeAmbient)
	Coins      = mustRegister("coins", ModeAmbient)
	LobbySpawn = mustRegister("lobbyspawn", ModeAmbient)
	Starfield  = mustRegister("stars", ModeFixed)
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Namespace)
)

// Register claims tag for mode. Tags are unique across modes so two features
// can never produce the same seed text.
func Register(tag string, mode Mode) (Namespace, error) {
	if err := validateTag(tag); err != nil {
		return Namespace{}, err
	}
	if mode < ModeOutcome || mode > ModeFixed {
		return Namespace{}, fmt.Errorf("%w: %d", ErrUnknownMode, int(mode))
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if existing, ok := registry[tag]; ok {
		return Namespace{}, fmt.Errorf("%w: %q (%s)", ErrDuplicateNamespace, tag, existing.Mode)
	}
	ns := Namespace{Tag: tag, Mode: mode}
	registry[tag] = ns
	return ns, nil
}

func mustRegister(tag string, mode Mode) Namespace {
	ns, err := Register(tag, mode)
	if err != nil {
		panic(err)
	}
	return ns
}

// Lookup returns the registered namespace for tag.
func Lookup(tag string) (Namespace, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	ns, ok := registry[tag]
	return ns, ok
}

// Namespaces lists registered namespaces sorted by tag.
func Namespaces() []Namespace {
	registryMu.RLock()
	out := make([]Namespace, 0, len(registry))
	for _, ns := range registry {
		out = append(out, ns)
	}
	registryMu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out
}

func validateTag(tag string) error {
	if tag == "" {
		return fmt.Errorf("%w: empty", ErrInvalidNamespace)
	}
	if strings.ContainsAny(tag, Separator+" \t\r\n") {
		return fmt.Errorf("%w: %q", ErrInvalidNamespace, tag)
	}
	return nil
}
