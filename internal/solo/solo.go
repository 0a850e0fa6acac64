// Package solo runs single-player sessions: blackjack against the
// dealer, coin flips, and die rolls. Unlike the shared tables there is
// no clock; a session advances only on the player's own actions.
package solo

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/stickntrade/casino/internal/domain"
	"github.com/stickntrade/casino/internal/games"
	"github.com/stickntrade/casino/internal/rng"
)

var (
	ErrSessionActive   = errors.New("a session is already active")
	ErrNoSession       = errors.New("no active session")
	ErrInvalidStake    = errors.New("stake must be positive")
	ErrInvalidChoice   = errors.New("invalid choice")
	ErrSessionFinished = errors.New("session already finished")
)

// Ledger is the slice of the credit store solo games need.
type Ledger interface {
	Debit(ctx context.Context, accountID string, amount domain.Credits, reason domain.EntryReason, detail string) (domain.Credits, error)
	Credit(ctx context.Context, accountID string, amount domain.Credits, reason domain.EntryReason, detail string) (domain.Credits, error)
}

// Gate blocks play for banned accounts or when gaming is disabled.
type Gate interface {
	CheckWagering(ctx context.Context, accountID string) error
}

// Limits validates stakes.
type Limits interface {
	Check(tableID string, stake domain.Credits) error
}

// Payout ratios in hundredths.
const (
	blackjackWin     = domain.Ratio(200)
	blackjackNatural = domain.Ratio(250)
	blackjackPush    = domain.RatioRefund
	evenMoney        = domain.Ratio(200)
)

// BlackjackState describes a hand in progress or just finished.
type BlackjackState struct {
	SessionID   string          `json:"session_id"`
	Stake       domain.Credits  `json:"stake"`
	PlayerCards []games.Card    `json:"player_cards"`
	PlayerScore int             `json:"player_score"`
	DealerCards []games.Card    `json:"dealer_cards"`
	DealerScore int             `json:"dealer_score"`
	Finished    bool            `json:"finished"`
	Result      string          `json:"result,omitempty"` // win, lose, push, blackjack
	Payout      domain.Credits  `json:"payout"`
	Balance     *domain.Credits `json:"balance,omitempty"`
}

type session struct {
	id     string
	stake  domain.Credits
	player []games.Card
	dealer []games.Card // dealer[1] hidden until the hand finishes
	dealt  bool
	done   bool
}

// Service tracks at most one blackjack session per account.
type Service struct {
	ledger Ledger
	gate   Gate
	limits Limits
	src    rng.Source

	mu       sync.Mutex
	sessions map[string]*session
}

// New creates the solo game service.
func New(ledger Ledger, gate Gate, limits Limits, src rng.Source) *Service {
	return &Service{
		ledger:   ledger,
		gate:     gate,
		limits:   limits,
		src:      src,
		sessions: make(map[string]*session),
	}
}

func (s *Service) checkStake(ctx context.Context, accountID, tableID string, stake domain.Credits) error {
	if stake <= 0 {
		return ErrInvalidStake
	}
	if err := s.limits.Check(tableID, stake); err != nil {
		return err
	}
	return s.gate.CheckWagering(ctx, accountID)
}

// StartBlackjack debits the stake and deals the opening hand. A natural
// resolves the session immediately.
func (s *Service) StartBlackjack(ctx context.Context, accountID string, stake domain.Credits) (*BlackjackState, error) {
	if err := s.checkStake(ctx, accountID, "blackjack", stake); err != nil {
		return nil, err
	}

	// Reserve the account's slot before the debit so two concurrent
	// starts cannot both pass the check and double-debit.
	sess := &session{id: uuid.New().String(), stake: stake}
	s.mu.Lock()
	if cur, ok := s.sessions[accountID]; ok && !cur.done {
		s.mu.Unlock()
		return nil, ErrSessionActive
	}
	s.sessions[accountID] = sess
	s.mu.Unlock()

	if _, err := s.ledger.Debit(ctx, accountID, stake, domain.ReasonWager, "blackjack"); err != nil {
		s.mu.Lock()
		if s.sessions[accountID] == sess {
			delete(s.sessions, accountID)
		}
		s.mu.Unlock()
		return nil, err
	}

	s.mu.Lock()
	sess.player = games.DrawCards(s.src, 2)
	sess.dealer = games.DrawCards(s.src, 2)
	sess.dealt = true

	if !games.IsNatural(sess.player) {
		st := s.state(sess, false)
		s.mu.Unlock()
		return st, nil
	}

	// Dealer natural pushes, anything else pays 2.5x.
	ratio, result := blackjackNatural, "blackjack"
	if games.IsNatural(sess.dealer) {
		ratio, result = blackjackPush, "push"
	}
	st := s.finishLocked(accountID, sess, result, ratio)
	s.mu.Unlock()
	return s.credit(ctx, accountID, st)
}

// Hit draws a card for the player. A bust ends the session with the
// stake lost.
func (s *Service) Hit(ctx context.Context, accountID string) (*BlackjackState, error) {
	s.mu.Lock()
	sess, err := s.activeLocked(accountID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	sess.player = append(sess.player, games.DrawCard(s.src))
	if !games.IsBust(sess.player) {
		st := s.state(sess, false)
		s.mu.Unlock()
		return st, nil
	}
	st := s.finishLocked(accountID, sess, "lose", domain.RatioLose)
	s.mu.Unlock()
	return s.credit(ctx, accountID, st)
}

// Stand finishes the player's hand; the dealer draws to 17 and the
// session settles.
func (s *Service) Stand(ctx context.Context, accountID string) (*BlackjackState, error) {
	s.mu.Lock()
	sess, err := s.activeLocked(accountID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	sess.dealer = games.DealerPlay(sess.dealer, s.src)

	playerScore := games.BlackjackScore(sess.player)
	dealerScore := games.BlackjackScore(sess.dealer)

	var result string
	var ratio domain.Ratio
	switch {
	case games.IsBust(sess.dealer), playerScore > dealerScore:
		result, ratio = "win", blackjackWin
	case playerScore == dealerScore:
		result, ratio = "push", blackjackPush
	default:
		result, ratio = "lose", domain.RatioLose
	}
	st := s.finishLocked(accountID, sess, result, ratio)
	s.mu.Unlock()
	return s.credit(ctx, accountID, st)
}

// Discard abandons any active session without a refund. Called on
// disconnect; an abandoned hand is a lost hand.
func (s *Service) Discard(accountID string) {
	s.mu.Lock()
	sess, ok := s.sessions[accountID]
	delete(s.sessions, accountID)
	s.mu.Unlock()

	if ok && !sess.done {
		log.WithFields(log.Fields{
			"account": accountID,
			"stake":   sess.stake,
		}).Info("blackjack session abandoned")
	}
}

// activeLocked returns the account's playable session. The caller holds
// s.mu. An undealt session is a reservation whose debit is still in
// flight and cannot be played yet.
func (s *Service) activeLocked(accountID string) (*session, error) {
	sess, ok := s.sessions[accountID]
	if !ok || !sess.dealt {
		return nil, ErrNoSession
	}
	if sess.done {
		return nil, ErrSessionFinished
	}
	return sess, nil
}

// finishLocked settles the hand and frees the account's slot. The
// caller holds s.mu; the payout credit happens after it is released.
func (s *Service) finishLocked(accountID string, sess *session, result string, ratio domain.Ratio) *BlackjackState {
	sess.done = true
	if s.sessions[accountID] == sess {
		delete(s.sessions, accountID)
	}
	st := s.state(sess, true)
	st.Result = result
	st.Payout = ratio.Apply(sess.stake)
	return st
}

func (s *Service) credit(ctx context.Context, accountID string, st *BlackjackState) (*BlackjackState, error) {
	if st.Payout > 0 {
		balance, err := s.ledger.Credit(ctx, accountID, st.Payout, domain.ReasonPayout, "blackjack "+st.Result)
		if err != nil {
			log.WithError(err).WithField("account", accountID).Error("failed to credit blackjack payout")
			return nil, err
		}
		st.Balance = &balance
	}
	return st, nil
}

func (s *Service) state(sess *session, revealDealer bool) *BlackjackState {
	st := &BlackjackState{
		SessionID:   sess.id,
		Stake:       sess.stake,
		PlayerCards: sess.player,
		PlayerScore: games.BlackjackScore(sess.player),
		Finished:    sess.done,
	}
	if revealDealer {
		st.DealerCards = sess.dealer
		st.DealerScore = games.BlackjackScore(sess.dealer)
	} else {
		// Only the up card is visible while the hand is live.
		st.DealerCards = sess.dealer[:1]
		st.DealerScore = games.BlackjackScore(sess.dealer[:1])
	}
	return st
}

// FlipResult is the settled outcome of a coin flip or die roll.
type FlipResult struct {
	Choice  string         `json:"choice"`
	Outcome string         `json:"outcome"`
	Roll    int            `json:"roll,omitempty"`
	Won     bool           `json:"won"`
	Payout  domain.Credits `json:"payout"`
	Balance domain.Credits `json:"balance"`
}

// PlayCoin settles a single coin flip: even money on heads or tails.
func (s *Service) PlayCoin(ctx context.Context, accountID, choice string, stake domain.Credits) (*FlipResult, error) {
	if !games.ValidCoinChoice(choice) {
		return nil, ErrInvalidChoice
	}
	if err := s.checkStake(ctx, accountID, "coin", stake); err != nil {
		return nil, err
	}

	balance, err := s.ledger.Debit(ctx, accountID, stake, domain.ReasonWager, "coin "+choice)
	if err != nil {
		return nil, err
	}

	outcome := games.FlipCoin(s.src)
	res := &FlipResult{Choice: choice, Outcome: outcome, Balance: balance}
	if outcome == choice {
		res.Won = true
		res.Payout = evenMoney.Apply(stake)
		res.Balance, err = s.ledger.Credit(ctx, accountID, res.Payout, domain.ReasonPayout, "coin "+outcome)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

// PlayDice settles a single d6 roll: even money on low (1-3) or
// high (4-6).
func (s *Service) PlayDice(ctx context.Context, accountID, choice string, stake domain.Credits) (*FlipResult, error) {
	if !games.ValidDieChoice(choice) {
		return nil, ErrInvalidChoice
	}
	if err := s.checkStake(ctx, accountID, "dice", stake); err != nil {
		return nil, err
	}

	balance, err := s.ledger.Debit(ctx, accountID, stake, domain.ReasonWager, "dice "+choice)
	if err != nil {
		return nil, err
	}

	roll := games.RollDie(s.src)
	outcome := games.DieSide(roll)
	res := &FlipResult{Choice: choice, Outcome: outcome, Roll: roll, Balance: balance}
	if outcome == choice {
		res.Won = true
		res.Payout = evenMoney.Apply(stake)
		res.Balance, err = s.ledger.Credit(ctx, accountID, res.Payout, domain.ReasonPayout, "dice "+outcome)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}
