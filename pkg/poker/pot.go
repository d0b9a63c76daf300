package poker

import (
	"fmt"
	"sort"

	"github.com/decred/slog"
)

// Pot represents one layer of the total pot. The first layer is the main
// pot; later layers are side pots restricted to the players who funded them.
type Pot struct {
	Amount      int64
	Eligibility []bool // index-aligned with the hand's players slice
}

// NewPot creates an empty pot layer for nPlayers seats
func NewPot(nPlayers int) *Pot {
	return &Pot{
		Eligibility: make([]bool, nPlayers),
	}
}

// MakeEligible marks a player as eligible to win this pot
func (p *Pot) MakeEligible(playerIndex int) {
	p.Eligibility[playerIndex] = true
}

// IsEligible checks if a player is eligible to win this pot
func (p *Pot) IsEligible(playerIndex int) bool {
	return p.Eligibility[playerIndex]
}

// PotManager tracks per-player bets and partitions them into main/side pots
// for distribution.
type PotManager struct {
	log         slog.Logger
	Pots        []*Pot
	CurrentBets map[int]int64 // bet per player index, this street
	TotalBets   map[int]int64 // bet per player index, whole hand
}

// NewPotManager creates a pot manager for nPlayers seats
func NewPotManager(nPlayers int, log slog.Logger) *PotManager {
	if log == nil {
		log = slog.Disabled
	}
	return &PotManager{
		log:         log,
		Pots:        []*Pot{NewPot(nPlayers)}, // placeholder; layers built at settlement
		CurrentBets: make(map[int]int64),
		TotalBets:   make(map[int]int64),
	}
}

// AddBet records chips entering the pot. Layering happens at settlement;
// this only tracks totals.
func (pm *PotManager) AddBet(playerIndex int, amount int64) {
	pm.CurrentBets[playerIndex] += amount
	pm.TotalBets[playerIndex] += amount
}

// ResetCurrentBets resets the per-street bets for a new betting round
func (pm *PotManager) ResetCurrentBets() {
	pm.CurrentBets = make(map[int]int64)
}

// Total returns the total amount across all player contributions
func (pm *PotManager) Total() int64 {
	var total int64
	for _, bet := range pm.TotalBets {
		total += bet
	}
	return total
}

// ReturnUncalledBet returns the uncalled portion of the highest bet to the
// player who made it. Without this, streets that end with everyone else
// all-in or folded would create a side pot only the bettor can win.
func (pm *PotManager) ReturnUncalledBet(players []*Player) {
	var hi, second int64
	hiPlayer := -1

	for idx, bet := range pm.CurrentBets {
		if bet > hi {
			second = hi
			hi = bet
			hiPlayer = idx
		} else if bet > second {
			second = bet
		}
	}

	if hiPlayer >= 0 && hi > second {
		uncalled := hi - second
		players[hiPlayer].Stack += uncalled
		players[hiPlayer].StreetInvested -= uncalled
		players[hiPlayer].TotalInvested -= uncalled
		pm.CurrentBets[hiPlayer] -= uncalled
		pm.TotalBets[hiPlayer] -= uncalled
	}
}

// ComputeRake returns the operator's cut for a pot: rakeBps basis points of
// the pot, truncated, capped at rakeCap.
func ComputeRake(pot int64, rakeBps int64, rakeCap int64) int64 {
	rake := pot * rakeBps / 10000
	if rakeCap > 0 && rake > rakeCap {
		rake = rakeCap
	}
	if rake < 0 {
		rake = 0
	}
	return rake
}

// BuildPots rebuilds main/side pots from total bets and fold status. For
// each distinct contribution level, ascending, a layer covers the slice of
// every bet between the previous level and this one; eligibility is every
// non-folded player who contributed at least this level.
func (pm *PotManager) BuildPots(players []*Player) {
	n := len(players)

	seen := map[int64]bool{}
	for i := 0; i < n; i++ {
		if b := pm.TotalBets[i]; b > 0 {
			seen[b] = true
		}
	}
	if len(seen) == 0 {
		pm.Pots = []*Pot{NewPot(n)}
		return
	}

	levels := make([]int64, 0, len(seen))
	for b := range seen {
		levels = append(levels, b)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })

	pots := make([]*Pot, 0, len(levels))
	prev := int64(0)

	for _, lvl := range levels {
		p := NewPot(n)
		for i := 0; i < n; i++ {
			if players[i] != nil && !players[i].HasFolded && pm.TotalBets[i] >= lvl {
				p.Eligibility[i] = true
			}
		}
		// Each player contributes min(totalBet, lvl) - prev to this layer.
		for i := 0; i < n; i++ {
			tb := pm.TotalBets[i]
			if tb > prev {
				c := tb
				if c > lvl {
					c = lvl
				}
				c -= prev
				p.Amount += c
			}
		}
		pots = append(pots, p)
		prev = lvl
	}

	pm.Pots = pots
}

// takeRake shrinks the pot layers by the rake amount, starting from the last
// layer so a short stack's main pot is raked only after the side pots are
// exhausted.
func (pm *PotManager) takeRake(rake int64) {
	for i := len(pm.Pots) - 1; i >= 0 && rake > 0; i-- {
		cut := rake
		if cut > pm.Pots[i].Amount {
			cut = pm.Pots[i].Amount
		}
		pm.Pots[i].Amount -= cut
		rake -= cut
	}
}

// Settle builds the pot layers, removes rake and pays every layer to the
// best eligible showdown hand. Ties split evenly; the odd chip goes to the
// tied winner in the earliest seat. Each (winner, layer) credit is returned
// so the caller can record matching ledger transactions.
func (pm *PotManager) Settle(players []*Player, rake int64) ([]PotWinner, error) {
	pm.BuildPots(players)
	pm.takeRake(rake)

	var winners []PotWinner

	for pi, pot := range pm.Pots {
		if pot.Amount == 0 {
			continue
		}

		label := "main pot"
		if pi > 0 {
			label = fmt.Sprintf("side pot %d", pi)
		}

		var alive []int
		for idx, elig := range pot.Eligibility {
			if elig && players[idx] != nil && !players[idx].HasFolded {
				alive = append(alive, idx)
			}
		}

		if len(alive) == 0 {
			return nil, fmt.Errorf("pot %d has no eligible players (amount %d)", pi, pot.Amount)
		}

		// Uncontested layer: pay the sole eligible player without a
		// showdown comparison.
		if len(alive) == 1 {
			w := alive[0]
			players[w].Stack += pot.Amount
			class := ""
			if players[w].HandValue != nil {
				class = players[w].HandValue.Rank.String()
			}
			winners = append(winners, PotWinner{
				PlayerID:  players[w].ID,
				PotLabel:  label,
				Amount:    pot.Amount,
				HandClass: class,
			})
			continue
		}

		var best *HandValue
		var bestIdxs []int
		for _, idx := range alive {
			hv := players[idx].HandValue
			if hv == nil {
				return nil, fmt.Errorf("pot %d: player %s reached showdown without an evaluated hand", pi, players[idx].ID)
			}
			if best == nil || CompareHands(*hv, *best) > 0 {
				best = hv
				bestIdxs = []int{idx}
			} else if CompareHands(*hv, *best) == 0 {
				bestIdxs = append(bestIdxs, idx)
			}
		}

		share := pot.Amount / int64(len(bestIdxs))
		rem := pot.Amount % int64(len(bestIdxs))
		// bestIdxs ascends in seat order; the earliest seat takes the
		// odd chip.
		for i, idx := range bestIdxs {
			add := share
			if i == 0 {
				add += rem
			}
			players[idx].Stack += add
			winners = append(winners, PotWinner{
				PlayerID:  players[idx].ID,
				PotLabel:  label,
				Amount:    add,
				HandClass: players[idx].HandValue.Rank.String(),
			})
			pm.log.Debugf("%s: %s wins %d with %s", label, players[idx].ID, add, players[idx].HandValue.Description)
		}
	}

	return winners, nil
}
