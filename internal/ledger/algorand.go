package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/algorand/go-algorand-sdk/v2/client/v2/algod"
	"github.com/algorand/go-algorand-sdk/v2/client/v2/indexer"
	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"
)

const indexerPageLimit = 1000

// AlgorandLedger talks to an algod node for state and submissions and to an
// indexer for transaction history.
type AlgorandLedger struct {
	algod   *algod.Client
	indexer *indexer.Client
}

// NewAlgorandLedger constructs an Algorand-backed facade.
func NewAlgorandLedger(algodClient *algod.Client, indexerClient *indexer.Client) *AlgorandLedger {
	return &AlgorandLedger{algod: algodClient, indexer: indexerClient}
}

// CurrentParams returns the suggested parameters; LastRound is the latest confirmed round.
func (l *AlgorandLedger) CurrentParams(ctx context.Context) (Params, error) {
	sp, err := l.algod.SuggestedParams().Do(ctx)
	if err != nil {
		return Params{}, fmt.Errorf("suggested params: %w", err)
	}
	return Params{
		Fee:         uint64(sp.MinFee),
		FirstRound:  uint64(sp.FirstRoundValid),
		LastRound:   uint64(sp.FirstRoundValid),
		GenesisHash: sp.GenesisHash,
		GenesisID:   sp.GenesisID,
	}, nil
}

// AccountInfo returns the balance and asset holdings of address.
func (l *AlgorandLedger) AccountInfo(ctx context.Context, address string) (AccountInfo, error) {
	acct, err := l.algod.AccountInformation(address).Do(ctx)
	if err != nil {
		if isNotFound(err) {
			return AccountInfo{}, ErrAccountNotFound
		}
		return AccountInfo{}, fmt.Errorf("account information: %w", err)
	}
	info := AccountInfo{Address: address, Balance: acct.Amount, Assets: make(map[uint64]uint64, len(acct.Assets))}
	for _, holding := range acct.Assets {
		info.Assets[holding.AssetId] = holding.Amount
	}
	return info, nil
}

// AssetInfo resolves an asset id to its parameters.
func (l *AlgorandLedger) AssetInfo(ctx context.Context, assetID uint64) (AssetInfo, error) {
	asset, err := l.algod.GetAssetByID(assetID).Do(ctx)
	if err != nil {
		if isNotFound(err) {
			return AssetInfo{}, ErrAssetNotFound
		}
		return AssetInfo{}, fmt.Errorf("asset information: %w", err)
	}
	return AssetInfo{
		ID:       asset.Index,
		Creator:  asset.Params.Creator,
		UnitName: asset.Params.UnitName,
		Name:     asset.Params.Name,
		Total:    asset.Params.Total,
		Decimals: uint32(asset.Params.Decimals),
	}, nil
}

// TransfersTo pages through the indexer for transfers received by address.
// The indexer may trail algod, so the page only covers rounds up to the
// indexer's current round.
func (l *AlgorandLedger) TransfersTo(ctx context.Context, address string, fromRound, toRound uint64) (TransferPage, error) {
	var (
		out     []Transfer
		next    string
		through = toRound
	)
	for {
		req := l.indexer.LookupAccountTransactions(address).
			MinRound(fromRound).
			MaxRound(toRound).
			Limit(indexerPageLimit)
		if next != "" {
			req = req.NextToken(next)
		}
		resp, err := req.Do(ctx)
		if err != nil {
			return TransferPage{}, fmt.Errorf("lookup transactions: %w", err)
		}
		if resp.CurrentRound < through {
			through = resp.CurrentRound
		}
		for _, txn := range resp.Transactions {
			t := Transfer{
				ID:    txn.Id,
				Type:  txn.Type,
				From:  txn.Sender,
				Note:  txn.Note,
				Round: txn.ConfirmedRound,
			}
			switch txn.Type {
			case TypeAssetTransfer:
				t.To = txn.AssetTransferTransaction.Receiver
				t.Amount = txn.AssetTransferTransaction.Amount
				t.AssetID = txn.AssetTransferTransaction.AssetId
			case TypePayment:
				t.To = txn.PaymentTransaction.Receiver
				t.Amount = txn.PaymentTransaction.Amount
			}
			if t.To != address {
				continue
			}
			out = append(out, t)
		}
		if resp.NextToken == "" || len(resp.Transactions) == 0 {
			break
		}
		next = resp.NextToken
	}

	page := TransferPage{Through: through}
	for _, t := range out {
		if t.Round <= through {
			page.Transfers = append(page.Transfers, t)
		}
	}
	// Account lookups page newest first.
	sort.SliceStable(page.Transfers, func(i, j int) bool { return page.Transfers[i].Round < page.Transfers[j].Round })
	return page, nil
}

// Submit builds, signs and broadcasts sub.
func (l *AlgorandLedger) Submit(ctx context.Context, sub Submission) (string, error) {
	sp, err := l.algod.SuggestedParams().Do(ctx)
	if err != nil {
		return "", fmt.Errorf("suggested params: %w", err)
	}
	if sub.ValidRounds > 0 {
		sp.LastRoundValid = sp.FirstRoundValid + types.Round(sub.ValidRounds)
	}

	var txn types.Transaction
	switch sub.Kind {
	case KindAssetTransfer:
		txn, err = transaction.MakeAssetTransferTxn(sub.Sender.Address, sub.Receiver, sub.Amount, sub.Note, sp, "", sub.AssetID)
	case KindAssetCreate:
		if sub.Asset == nil {
			return "", &SubmissionError{Kind: sub.Kind, Err: errors.New("asset params are required")}
		}
		addr := sub.Sender.Address
		txn, err = transaction.MakeAssetCreateTxn(addr, sub.Note, sp,
			sub.Asset.Total, sub.Asset.Decimals, false,
			addr, addr, addr, addr,
			sub.Asset.UnitName, sub.Asset.Name, sub.Asset.URL, "")
	default:
		return "", &SubmissionError{Kind: sub.Kind, Err: errUnknownKind}
	}
	if err != nil {
		return "", &SubmissionError{Kind: sub.Kind, Err: err}
	}

	_, signed, err := crypto.SignTransaction(sub.Sender.PrivateKey, txn)
	if err != nil {
		return "", &SubmissionError{Kind: sub.Kind, Err: fmt.Errorf("sign: %w", err)}
	}
	txID, err := l.algod.SendRawTransaction(signed).Do(ctx)
	if err != nil {
		return "", &SubmissionError{Kind: sub.Kind, Err: err}
	}
	return txID, nil
}

// notFoundPrefix is how the SDK renders a 404 response. Its common.NotFound
// is declared as a plain error interface, so errors.As cannot single it out.
const notFoundPrefix = "HTTP 404:"

func isNotFound(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), notFoundPrefix)
}
