package games

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stickntrade/casino/internal/domain"
)

// script is a Source returning a fixed sequence of draws.
type script struct {
	t    *testing.T
	vals []int
	i    int
}

func (s *script) Intn(n int) int {
	s.t.Helper()
	if s.i >= len(s.vals) {
		s.t.Fatalf("scripted source exhausted after %d draws", s.i)
	}
	v := s.vals[s.i]
	s.i++
	if v < 0 || v >= n {
		s.t.Fatalf("scripted draw %d out of range for Intn(%d)", v, n)
	}
	return v
}

// cardDraws returns the Intn sequence that deals the given ranks, all
// in spades.
func cardDraws(ranks ...Rank) []int {
	vals := make([]int, 0, len(ranks)*2)
	for _, r := range ranks {
		vals = append(vals, int(r)-1, 0)
	}
	return vals
}

func TestDragonTigerDeal(t *testing.T) {
	g := NewDragonTiger()

	t.Run("HigherRankWins", func(t *testing.T) {
		src := &script{t: t, vals: cardDraws(King, 3)}
		out := g.Deal(src).(DragonTigerOutcome)
		assert.Equal(t, ChoiceDragon, out.Winner())
	})

	t.Run("AceIsLow", func(t *testing.T) {
		src := &script{t: t, vals: cardDraws(Ace, 2)}
		out := g.Deal(src).(DragonTigerOutcome)
		assert.Equal(t, ChoiceTiger, out.Winner())
	})

	t.Run("EqualRanksTie", func(t *testing.T) {
		src := &script{t: t, vals: cardDraws(7, 7)}
		out := g.Deal(src).(DragonTigerOutcome)
		assert.Equal(t, ChoiceTie, out.Winner())
	})
}

func TestDragonTigerPayout(t *testing.T) {
	g := NewDragonTiger()

	win := DragonTigerOutcome{Result: ChoiceDragon}
	tie := DragonTigerOutcome{Result: ChoiceTie}

	assert.Equal(t, domain.Ratio(200), g.Payout(ChoiceDragon, win))
	assert.Equal(t, domain.RatioLose, g.Payout(ChoiceTiger, win))
	assert.Equal(t, domain.RatioLose, g.Payout(ChoiceTie, win))

	assert.Equal(t, domain.Ratio(900), g.Payout(ChoiceTie, tie))
	// A tie forfeits side wagers on this table (unlike Baccarat).
	assert.Equal(t, domain.RatioLose, g.Payout(ChoiceDragon, tie))
	assert.Equal(t, domain.RatioLose, g.Payout(ChoiceTiger, tie))
}

func TestSicBoDeal(t *testing.T) {
	g := NewSicBo()

	tests := []struct {
		name string
		dice []int // Intn values, roll = value+1
		want string
	}{
		{"SmallSum", []int{0, 1, 2}, ChoiceSmall},  // 1+2+3 = 6
		{"BoundarySmall", []int{2, 2, 3}, ChoiceSmall}, // 3+3+4 = 10
		{"BigSum", []int{3, 4, 5}, ChoiceBig},      // 4+5+6 = 15
		{"BoundaryBig", []int{2, 3, 3}, ChoiceBig}, // 3+4+4 = 11
		{"Triple", []int{1, 1, 1}, ResultTriple},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &script{t: t, vals: tt.dice}
			out := g.Deal(src).(SicBoOutcome)
			assert.Equal(t, tt.want, out.Winner())
		})
	}
}

func TestSicBoPayout(t *testing.T) {
	g := NewSicBo()

	small := SicBoOutcome{Result: ChoiceSmall}
	triple := SicBoOutcome{Result: ResultTriple}

	assert.Equal(t, domain.RatioWin, g.Payout(ChoiceSmall, small))
	assert.Equal(t, domain.RatioLose, g.Payout(ChoiceBig, small))

	// Triples pay no Small/Big bettor.
	assert.Equal(t, domain.RatioLose, g.Payout(ChoiceSmall, triple))
	assert.Equal(t, domain.RatioLose, g.Payout(ChoiceBig, triple))
}

func TestColorsPayout(t *testing.T) {
	g := NewColors()
	out := ColorsOutcome{Symbols: [3]string{"red", "red", "blue"}}

	// Two matches return triple the stake: 10 -> 30.
	ratio := g.Payout("red", out)
	assert.Equal(t, domain.Credits(30), ratio.Apply(10))

	// One match doubles it.
	assert.Equal(t, domain.Credits(20), g.Payout("blue", out).Apply(10))

	// No match loses everything.
	assert.Equal(t, domain.Credits(0), g.Payout("green", out).Apply(10))
}

func TestColorsDeal(t *testing.T) {
	g := NewColors()
	src := &script{t: t, vals: []int{0, 0, 1}}
	out := g.Deal(src).(ColorsOutcome)
	assert.Equal(t, [3]string{"red", "red", "blue"}, out.Symbols)
	assert.Equal(t, "red,red,blue", out.Winner())
}

func TestCoinAndDie(t *testing.T) {
	assert.Equal(t, CoinHeads, FlipCoin(&script{t: t, vals: []int{0}}))
	assert.Equal(t, CoinTails, FlipCoin(&script{t: t, vals: []int{1}}))
	assert.True(t, ValidCoinChoice(CoinHeads))
	assert.False(t, ValidCoinChoice("edge"))

	assert.Equal(t, DieLow, DieSide(3))
	assert.Equal(t, DieHigh, DieSide(4))
	assert.Equal(t, 6, RollDie(&script{t: t, vals: []int{5}}))
	assert.False(t, ValidDieChoice("seven"))
}

func TestTables(t *testing.T) {
	tables := Tables()
	require.Len(t, tables, 4)

	seen := make(map[string]bool)
	for _, g := range tables {
		require.NotEmpty(t, g.ID())
		require.False(t, seen[g.ID()], "duplicate table id %s", g.ID())
		seen[g.ID()] = true
	}
}
