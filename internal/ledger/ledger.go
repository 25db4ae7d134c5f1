package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/a2f-auth/a2f/internal/identity"
)

var (
	// ErrAssetNotFound occurs when the requested asset id does not exist on the ledger.
	ErrAssetNotFound = errors.New("asset not found")

	// ErrAccountNotFound indicates the ledger holds no record for the address.
	ErrAccountNotFound = errors.New("account not found")
)

const (
	// TypeAssetTransfer marks transfers of an asset between accounts. It is the
	// only transfer type the handshake reacts to.
	TypeAssetTransfer = "axfer"
	// TypeAssetConfig marks asset creation and reconfiguration.
	TypeAssetConfig = "acfg"
	// TypePayment marks native currency payments.
	TypePayment = "pay"
)

const (
	// KindAssetTransfer submits a token transfer (including zero-amount opt-ins).
	KindAssetTransfer = "asset_transfer"
	// KindAssetCreate submits a token creation.
	KindAssetCreate = "asset_create"
)

// Transfer is a confirmed ledger record addressed to an account.
type Transfer struct {
	ID      string
	Type    string
	From    string
	To      string
	Amount  uint64
	AssetID uint64
	Note    []byte
	Round   uint64
}

// Params are the current network parameters used to build transactions.
type Params struct {
	Fee         uint64
	FirstRound  uint64
	LastRound   uint64
	GenesisHash []byte
	GenesisID   string
}

// AccountInfo captures the native balance and token holdings of an address.
type AccountInfo struct {
	Address string
	Balance uint64
	Assets  map[uint64]uint64
}

// Holds reports whether the account is opted into the asset.
func (a AccountInfo) Holds(assetID uint64) bool {
	_, ok := a.Assets[assetID]
	return ok
}

// AssetInfo describes a token known to the ledger.
type AssetInfo struct {
	ID       uint64
	Creator  string
	UnitName string
	Name     string
	Total    uint64
	Decimals uint32
}

// AssetParams are the creation parameters of a new token.
type AssetParams struct {
	Total    uint64
	Decimals uint32
	UnitName string
	Name     string
	URL      string
}

// Submission is an unsigned transaction intent. The facade builds, signs with
// the sender identity and broadcasts it.
type Submission struct {
	Kind        string
	Sender      identity.Identity
	Receiver    string
	AssetID     uint64
	Amount      uint64
	Note        []byte
	Asset       *AssetParams
	ValidRounds uint64
}

// SubmissionError is returned when the ledger rejects a signed transaction.
type SubmissionError struct {
	Kind string
	Err  error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit %s: %v", e.Kind, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// IsSubmissionError reports whether err carries a ledger rejection.
func IsSubmissionError(err error) bool {
	var subErr *SubmissionError
	return errors.As(err, &subErr)
}

// TransferPage is the history found for a round range. Through is the highest
// round the history source had caught up to, never above the requested upper
// bound. Rounds after Through were not searched and must be asked for again.
type TransferPage struct {
	Transfers []Transfer
	Through   uint64
}

// Facade is the contract implemented by ledger backends (e.g. Algorand).
type Facade interface {
	CurrentParams(ctx context.Context) (Params, error)
	AccountInfo(ctx context.Context, address string) (AccountInfo, error)
	AssetInfo(ctx context.Context, assetID uint64) (AssetInfo, error)
	// TransfersTo returns transfers received by address in rounds
	// [fromRound, page.Through], in ledger order.
	TransfersTo(ctx context.Context, address string, fromRound, toRound uint64) (TransferPage, error)
	Submit(ctx context.Context, sub Submission) (string, error)
}

// AssetTransfer builds a token transfer submission.
func AssetTransfer(sender identity.Identity, receiver string, assetID, amount uint64, note []byte, validRounds uint64) Submission {
	return Submission{
		Kind:        KindAssetTransfer,
		Sender:      sender,
		Receiver:    receiver,
		AssetID:     assetID,
		Amount:      amount,
		Note:        note,
		ValidRounds: validRounds,
	}
}

// OptIn builds the zero-amount self transfer that lets an account hold assetID.
func OptIn(sender identity.Identity, assetID, validRounds uint64) Submission {
	return AssetTransfer(sender, sender.Address, assetID, 0, nil, validRounds)
}
