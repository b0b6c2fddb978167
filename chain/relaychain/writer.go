package relaychain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/snowfork/go-substrate-rpc-client/v4/types"

	log "github.com/sirupsen/logrus"
)

const RemarkWithEventCall = "System.remark_with_event"

var (
	ErrSubmissionRejected = errors.New("extrinsic submission rejected")
	ErrFinalization       = errors.New("extrinsic did not finalize")
	ErrEventsUnavailable  = errors.New("extrinsic events unavailable")
)

type ErrorKind int

const (
	ErrorNone ErrorKind = iota
	ErrorSubmit
	ErrorFinalization
	ErrorEvents
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorNone:
		return "none"
	case ErrorSubmit:
		return "submit"
	case ErrorFinalization:
		return "finalization"
	case ErrorEvents:
		return "events"
	}
	return "unknown"
}

// SubmissionOutcome describes one remark submission. Succeeded is only
// meaningful once Finalized is set, and reports whether the block carried a
// System.ExtrinsicSuccess event for the extrinsic. Failed reports a
// System.ExtrinsicFailed event instead.
type SubmissionOutcome struct {
	Accepted  bool
	Finalized bool
	Succeeded bool
	Failed    bool
	Nonce     uint64
	BlockHash types.Hash
	Error     ErrorKind
}

type RemarkWriter struct {
	conn            *Connection
	mortalEraPeriod uint64
	mu              sync.Mutex
}

func NewRemarkWriter(conn *Connection, mortalEraPeriod uint64) *RemarkWriter {
	if mortalEraPeriod == 0 {
		mortalEraPeriod = DefaultMortalEraPeriod
	}
	return &RemarkWriter{
		conn:            conn,
		mortalEraPeriod: mortalEraPeriod,
	}
}

func (wr *RemarkWriter) Start(_ context.Context) error {
	if err := ValidateMortalEraPeriod(wr.mortalEraPeriod); err != nil {
		return err
	}

	rv, err := wr.conn.API().RPC.State.GetRuntimeVersionLatest()
	if err != nil {
		return fmt.Errorf("fetch runtime version: %w", err)
	}

	log.WithFields(log.Fields{
		"specName":           rv.SpecName,
		"specVersion":        rv.SpecVersion,
		"transactionVersion": rv.TransactionVersion,
		"account":            wr.conn.Keypair().Address,
	}).Info("Remark writer ready")

	return nil
}

// AccountExists reports whether the relay account has on-chain state.
func (wr *RemarkWriter) AccountExists(_ context.Context) (bool, error) {
	_, ok, err := wr.conn.QueryAccount()
	return ok, err
}

// WriteRemarkAndWatch signs and submits System.remark_with_event carrying
// remark, then blocks until the extrinsic is finalized or leaves the pool.
// Calls are serialized; the nonce is read from chain state on every call.
func (wr *RemarkWriter) WriteRemarkAndWatch(ctx context.Context, remark []byte) (SubmissionOutcome, error) {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	var outcome SubmissionOutcome

	ext, err := wr.prepExtrinsic(RemarkWithEventCall, types.NewBytes(remark))
	if err != nil {
		outcome.Error = ErrorSubmit
		return outcome, fmt.Errorf("%w: prepare extrinsic: %w", ErrSubmissionRejected, err)
	}
	outcome.Nonce = nonce(ext)

	sub, err := wr.conn.API().RPC.Author.SubmitAndWatchExtrinsic(*ext)
	if err != nil {
		outcome.Error = ErrorSubmit
		return outcome, fmt.Errorf("%w: %w", ErrSubmissionRejected, err)
	}
	defer sub.Unsubscribe()
	outcome.Accepted = true

	logger := log.WithField("nonce", outcome.Nonce)

	for {
		select {
		case <-ctx.Done():
			outcome.Error = ErrorFinalization
			return outcome, ctx.Err()
		case err := <-sub.Err():
			outcome.Error = ErrorFinalization
			return outcome, fmt.Errorf("%w: subscription failed: %w", ErrFinalization, err)
		case status := <-sub.Chan():
			// https://github.com/paritytech/substrate/blob/29aca981db5e8bf8b5538e6c7920ded917013ef3/primitives/transaction-pool/src/pool.rs#L56-L127
			if status.IsDropped || status.IsInvalid || status.IsUsurped || status.IsFinalityTimeout {
				outcome.Error = ErrorFinalization
				return outcome, fmt.Errorf("%w: extrinsic %s", ErrFinalization, reason(&status))
			}
			if status.IsInBlock {
				logger.WithField("block", status.AsInBlock.Hex()).Debug("Extrinsic included in block")
				continue
			}
			if status.IsFinalized {
				outcome.Finalized = true
				outcome.BlockHash = status.AsFinalized
				logger.WithField("block", status.AsFinalized.Hex()).Debug("Extrinsic finalized")

				result, err := wr.dispatchResult(status.AsFinalized, ext)
				if err != nil {
					outcome.Error = ErrorEvents
					return outcome, fmt.Errorf("%w: %w", ErrEventsUnavailable, err)
				}
				outcome.Succeeded = result == dispatchSucceeded
				outcome.Failed = result == dispatchFailed
				return outcome, nil
			}
		}
	}
}

func (wr *RemarkWriter) queryAccountNonce() (uint32, error) {
	accountInfo, ok, err := wr.conn.QueryAccount()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("no account info found for %s", wr.conn.Keypair().Address)
	}

	return uint32(accountInfo.Nonce), nil
}

func (wr *RemarkWriter) prepExtrinsic(extrinsicName string, payload ...interface{}) (*types.Extrinsic, error) {
	meta, err := wr.conn.API().RPC.State.GetMetadataLatest()
	if err != nil {
		return nil, err
	}

	c, err := types.NewCall(meta, extrinsicName, payload...)
	if err != nil {
		return nil, err
	}

	nonce, err := wr.queryAccountNonce()
	if err != nil {
		return nil, err
	}

	latestHash, latestHeader, err := wr.conn.GetFinalizedHeader()
	if err != nil {
		return nil, err
	}

	rv, err := wr.conn.API().RPC.State.GetRuntimeVersionLatest()
	if err != nil {
		return nil, err
	}

	ext := types.NewExtrinsic(c)
	era := NewMortalEra(uint64(latestHeader.Number), wr.mortalEraPeriod)

	o := types.SignatureOptions{
		BlockHash:          latestHash,
		Era:                era,
		GenesisHash:        wr.conn.GenesisHash(),
		Nonce:              types.NewUCompactFromUInt(uint64(nonce)),
		SpecVersion:        rv.SpecVersion,
		Tip:                types.NewUCompactFromUInt(0),
		TransactionVersion: rv.TransactionVersion,
	}

	err = ext.Sign(*wr.conn.Keypair(), o)
	if err != nil {
		return nil, err
	}

	return &ext, nil
}

func nonce(ext *types.Extrinsic) uint64 {
	nonce := big.Int(ext.Signature.Nonce)
	return nonce.Uint64()
}

func reason(status *types.ExtrinsicStatus) string {
	switch {
	case status.IsInBlock:
		return "InBlock"
	case status.IsDropped:
		return "Dropped"
	case status.IsInvalid:
		return "Invalid"
	case status.IsUsurped:
		return "Usurped"
	case status.IsFinalityTimeout:
		return "FinalityTimeout"
	}
	return ""
}
