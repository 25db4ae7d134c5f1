package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

const (
	inMemoryFee       = 1_000
	inMemoryGenesisID = "inmemory-v1"
)

var (
	errOverspend   = errors.New("overspend")
	errNotOptedIn  = errors.New("receiver not opted in to asset")
	errUnknownKind = errors.New("unknown submission kind")
)

type inMemoryAccount struct {
	balance uint64
	assets  map[uint64]uint64
}

type inMemoryLedger struct {
	mu          sync.RWMutex
	round       uint64
	accounts    map[string]*inMemoryAccount
	assets      map[uint64]AssetInfo
	transfers   []Transfer
	submissions []Submission
	nextAssetID uint64
	nextTxID    uint64
	// historyLag holds back TransfersTo by this many rounds, like an indexer
	// trailing the node.
	historyLag uint64

	beforeSubmit func(Submission) error
	afterSubmit  func(Submission, Transfer)
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit tests.
// Every accepted submission is confirmed in its own round.
func NewInMemory() Facade {
	return &inMemoryLedger{
		round:       1,
		accounts:    make(map[string]*inMemoryAccount),
		assets:      make(map[uint64]AssetInfo),
		nextAssetID: 1,
	}
}

func (l *inMemoryLedger) CurrentParams(_ context.Context) (Params, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Params{
		Fee:         inMemoryFee,
		FirstRound:  l.round,
		LastRound:   l.round,
		GenesisHash: []byte(inMemoryGenesisID),
		GenesisID:   inMemoryGenesisID,
	}, nil
}

func (l *inMemoryLedger) AccountInfo(_ context.Context, address string) (AccountInfo, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	info := AccountInfo{Address: address, Assets: map[uint64]uint64{}}
	acct, ok := l.accounts[address]
	if !ok {
		return info, nil
	}
	info.Balance = acct.balance
	for id, amount := range acct.assets {
		info.Assets[id] = amount
	}
	return info, nil
}

func (l *inMemoryLedger) AssetInfo(_ context.Context, assetID uint64) (AssetInfo, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	asset, ok := l.assets[assetID]
	if !ok {
		return AssetInfo{}, ErrAssetNotFound
	}
	return asset, nil
}

func (l *inMemoryLedger) TransfersTo(_ context.Context, address string, fromRound, toRound uint64) (TransferPage, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	through := toRound
	if indexed := l.indexedRound(); indexed < through {
		through = indexed
	}
	page := TransferPage{Through: through}
	for _, t := range l.transfers {
		if t.To != address || t.Round < fromRound || t.Round > through {
			continue
		}
		page.Transfers = append(page.Transfers, cloneTransfer(t))
	}
	return page, nil
}

func (l *inMemoryLedger) indexedRound() uint64 {
	if l.historyLag >= l.round {
		return 0
	}
	return l.round - l.historyLag
}

func (l *inMemoryLedger) Submit(_ context.Context, sub Submission) (string, error) {
	l.mu.RLock()
	before := l.beforeSubmit
	l.mu.RUnlock()
	if before != nil {
		if err := before(sub); err != nil {
			return "", &SubmissionError{Kind: sub.Kind, Err: err}
		}
	}

	l.mu.Lock()
	transfer, err := l.apply(sub)
	after := l.afterSubmit
	l.mu.Unlock()
	if err != nil {
		return "", &SubmissionError{Kind: sub.Kind, Err: err}
	}

	if after != nil {
		after(sub, transfer)
	}
	return transfer.ID, nil
}

// apply validates and commits sub in a new round. Callers hold l.mu.
func (l *inMemoryLedger) apply(sub Submission) (Transfer, error) {
	sender, ok := l.accounts[sub.Sender.Address]
	if !ok || sender.balance < inMemoryFee {
		return Transfer{}, errOverspend
	}

	var transfer Transfer
	switch sub.Kind {
	case KindAssetCreate:
		if sub.Asset == nil {
			return Transfer{}, fmt.Errorf("asset params are required")
		}
		id := l.nextAssetID
		l.nextAssetID++
		l.assets[id] = AssetInfo{
			ID:       id,
			Creator:  sub.Sender.Address,
			UnitName: sub.Asset.UnitName,
			Name:     sub.Asset.Name,
			Total:    sub.Asset.Total,
			Decimals: sub.Asset.Decimals,
		}
		sender.assets[id] = sub.Asset.Total
		transfer = Transfer{Type: TypeAssetConfig, From: sub.Sender.Address, AssetID: id, Note: sub.Note}
	case KindAssetTransfer:
		if _, exists := l.assets[sub.AssetID]; !exists {
			return Transfer{}, ErrAssetNotFound
		}
		if sub.Receiver == sub.Sender.Address && sub.Amount == 0 {
			if _, held := sender.assets[sub.AssetID]; !held {
				sender.assets[sub.AssetID] = 0
			}
		} else {
			held, optedIn := sender.assets[sub.AssetID]
			if !optedIn || held < sub.Amount {
				return Transfer{}, errOverspend
			}
			receiver, ok := l.accounts[sub.Receiver]
			if !ok {
				return Transfer{}, errNotOptedIn
			}
			if _, optedIn := receiver.assets[sub.AssetID]; !optedIn {
				return Transfer{}, errNotOptedIn
			}
			sender.assets[sub.AssetID] -= sub.Amount
			receiver.assets[sub.AssetID] += sub.Amount
		}
		transfer = Transfer{
			Type:    TypeAssetTransfer,
			From:    sub.Sender.Address,
			To:      sub.Receiver,
			Amount:  sub.Amount,
			AssetID: sub.AssetID,
			Note:    sub.Note,
		}
	default:
		return Transfer{}, errUnknownKind
	}

	sender.balance -= inMemoryFee
	l.round++
	l.nextTxID++
	transfer.ID = fmt.Sprintf("tx-%d", l.nextTxID)
	transfer.Round = l.round
	l.transfers = append(l.transfers, transfer)
	l.submissions = append(l.submissions, sub)
	return cloneTransfer(transfer), nil
}

func (l *inMemoryLedger) account(address string) *inMemoryAccount {
	acct, ok := l.accounts[address]
	if !ok {
		acct = &inMemoryAccount{assets: make(map[uint64]uint64)}
		l.accounts[address] = acct
	}
	return acct
}

func cloneTransfer(t Transfer) Transfer {
	if t.Note != nil {
		t.Note = append([]byte(nil), t.Note...)
	}
	return t
}
