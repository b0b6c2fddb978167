// Copyright 2020 Snowfork
// SPDX-License-Identifier: LGPL-3.0-only

package relaychain

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/snowfork/go-substrate-rpc-client/v4/types"
)

// Must be a power of two between 4 and 65536 (inclusive)
const DefaultMortalEraPeriod = uint64(64)

func ValidateMortalEraPeriod(period uint64) error {
	if period < 4 || period > 65536 || bits.OnesCount64(period) != 1 {
		return fmt.Errorf("mortal era period %d is not a power of two between 4 and 65536", period)
	}
	return nil
}

// NewMortalEra returns an era of the given period that starts at the
// checkpoint block. The period must pass ValidateMortalEraPeriod.
func NewMortalEra(checkpoint uint64, period uint64) types.ExtrinsicEra {
	// Adapted from https://substrate.dev/rustdocs/v2.0.1/src/sp_runtime/generic/era.rs.html#66
	phase := checkpoint % period

	quantizeFactor := period >> 12
	if quantizeFactor < 1 {
		quantizeFactor = 1
	}
	quantizedPhase := phase / quantizeFactor * quantizeFactor

	encoded := uint16(math.Log2(float64(period))-1) | uint16((quantizedPhase/quantizeFactor)<<4)

	return types.ExtrinsicEra{
		IsMortalEra: true,
		AsMortalEra: types.MortalEra{
			First:  byte(encoded),
			Second: byte(encoded >> 8),
		},
	}
}
