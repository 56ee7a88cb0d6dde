/*
wallet.go - Per-channel balances folded from ledger entries

PURPOSE:
  Answers "how much is in each wallet?" for the dashboard and for a single
  shift's in-progress position. Balances are never stored: they are folded
  from ledger entries on every read, so an entry confirmed a second ago is
  already reflected.

FOLD:
  For each entry on a wallet channel (cash, card, mobile; never bank):
    confirmed entries -> Confirmed += signed amount
    pending entries   -> Pending   += signed amount
    rejected entries  -> ignored

SEE ALSO:
  - shift.go: ShiftSummary uses the same signed fold on drawer channels
*/
package cashdesk

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// BalanceFilter restricts the fold. Zero fields are ignored.
type BalanceFilter struct {
	From    *time.Time
	To      *time.Time
	ShiftID ShiftID
}

// ChannelBalance is the signed position of one channel.
type ChannelBalance struct {
	Confirmed decimal.Decimal
	Pending   decimal.Decimal
}

// Balances maps every wallet channel to its balance. All wallet channels are
// present, zero when nothing matched.
type Balances map[Channel]ChannelBalance

// Total sums confirmed and pending across channels.
func (b Balances) Total() ChannelBalance {
	total := ChannelBalance{Confirmed: decimal.Zero, Pending: decimal.Zero}
	for _, cb := range b {
		total.Confirmed = total.Confirmed.Add(cb.Confirmed)
		total.Pending = total.Pending.Add(cb.Pending)
	}
	return total
}

// WalletAggregator computes channel balances from the ledger.
type WalletAggregator struct {
	deps
}

// ComputeBalances folds the matching entries. Deterministic and side-effect
// free: identical filters with no intervening writes give identical results.
func (w *WalletAggregator) ComputeBalances(ctx context.Context, f BalanceFilter) (Balances, error) {
	entries, err := w.store.ListEntries(ctx, EntryFilter{
		From:     f.From,
		To:       f.To,
		ShiftID:  f.ShiftID,
		Channels: WalletChannels,
		Statuses: []EntryStatus{EntryConfirmed, EntryPending},
	})
	if err != nil {
		return nil, err
	}
	return FoldBalances(entries), nil
}

// FoldBalances folds entries into wallet balances. Entries on non-wallet
// channels and rejected entries are skipped.
func FoldBalances(entries []LedgerEntry) Balances {
	out := make(Balances, len(WalletChannels))
	for _, ch := range WalletChannels {
		out[ch] = ChannelBalance{Confirmed: decimal.Zero, Pending: decimal.Zero}
	}

	for _, e := range entries {
		if !e.Channel.InWallet() {
			continue
		}
		cb := out[e.Channel]
		switch e.Status {
		case EntryConfirmed:
			cb.Confirmed = cb.Confirmed.Add(e.Signed())
		case EntryPending:
			cb.Pending = cb.Pending.Add(e.Signed())
		default:
			continue
		}
		out[e.Channel] = cb
	}
	return out
}
