// Copyright 2020 Snowfork
// SPDX-License-Identifier: LGPL-3.0-only

package chain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// BlockRecord identifies one finalized block on the source chain.
type BlockRecord struct {
	Number uint64
	Hash   common.Hash
}

func NewBlockRecord(number uint64, hash common.Hash) BlockRecord {
	return BlockRecord{Number: number, Hash: hash}
}

func (r BlockRecord) String() string {
	return fmt.Sprintf("%d (%s)", r.Number, r.Hash.Hex())
}
