package relaychain

import (
	"bytes"
	"fmt"

	"github.com/snowfork/go-substrate-rpc-client/v4/scale"
	"github.com/snowfork/go-substrate-rpc-client/v4/types"

	log "github.com/sirupsen/logrus"
)

type dispatchResult int

const (
	dispatchUnknown dispatchResult = iota
	dispatchSucceeded
	dispatchFailed
)

// dispatchResult locates ext in the finalized block and reads the
// System.ExtrinsicSuccess / System.ExtrinsicFailed event emitted for it.
func (wr *RemarkWriter) dispatchResult(blockHash types.Hash, ext *types.Extrinsic) (dispatchResult, error) {
	block, err := wr.conn.API().RPC.Chain.GetBlock(blockHash)
	if err != nil {
		return dispatchUnknown, fmt.Errorf("fetch block %s: %w", blockHash.Hex(), err)
	}

	index, found, err := extrinsicIndex(block.Block.Extrinsics, ext)
	if err != nil {
		return dispatchUnknown, err
	}
	if !found {
		log.WithField("block", blockHash.Hex()).Warn("Extrinsic not found in finalized block")
		return dispatchUnknown, nil
	}

	meta, err := wr.conn.API().RPC.State.GetMetadata(blockHash)
	if err != nil {
		return dispatchUnknown, fmt.Errorf("fetch metadata at %s: %w", blockHash.Hex(), err)
	}

	key, err := types.CreateStorageKey(meta, "System", "Events", nil, nil)
	if err != nil {
		return dispatchUnknown, fmt.Errorf("create storage key for System.Events: %w", err)
	}

	raw, err := wr.conn.API().RPC.State.GetStorageRaw(key, blockHash)
	if err != nil {
		return dispatchUnknown, fmt.Errorf("get storage for System.Events: %w", err)
	}

	decoder, err := newEventDecoder(meta)
	if err != nil {
		return dispatchUnknown, err
	}

	records, err := decoder.decode(*raw)
	if err != nil {
		return dispatchUnknown, fmt.Errorf("decode System.Events: %w", err)
	}

	return classifyDispatch(records, uint32(index)), nil
}

func extrinsicIndex(extrinsics []types.Extrinsic, ext *types.Extrinsic) (int, bool, error) {
	want, err := types.EncodeToHexString(*ext)
	if err != nil {
		return 0, false, fmt.Errorf("encode extrinsic: %w", err)
	}

	for i, candidate := range extrinsics {
		got, err := types.EncodeToHexString(candidate)
		if err != nil {
			return 0, false, fmt.Errorf("encode block extrinsic %d: %w", i, err)
		}
		if got == want {
			return i, true, nil
		}
	}

	return 0, false, nil
}

func classifyDispatch(records []eventRecord, index uint32) dispatchResult {
	for _, record := range records {
		if !record.Phase.IsApplyExtrinsic || record.Phase.AsApplyExtrinsic != index {
			continue
		}
		if record.Pallet != "System" {
			continue
		}
		switch record.Name {
		case "ExtrinsicSuccess":
			return dispatchSucceeded
		case "ExtrinsicFailed":
			return dispatchFailed
		}
	}
	return dispatchUnknown
}

// eventRecord is the part of a frame_system EventRecord needed to attribute
// an event to an extrinsic. Event fields are skipped, not decoded.
type eventRecord struct {
	Phase  types.Phase
	Pallet string
	Name   string
}

type eventPallet struct {
	name   string
	events int64
}

// eventDecoder walks System.Events using the runtime's type registry, so
// events unknown to this binary are skipped instead of failing the decode.
type eventDecoder struct {
	registry map[int64]*types.Si1Type
	pallets  map[uint8]eventPallet
}

func newEventDecoder(meta *types.Metadata) (*eventDecoder, error) {
	if meta.Version != 14 {
		return nil, fmt.Errorf("unsupported metadata version %d", meta.Version)
	}

	v14 := &meta.AsMetadataV14
	registry := make(map[int64]*types.Si1Type, len(v14.Lookup.Types))
	for i := range v14.Lookup.Types {
		entry := &v14.Lookup.Types[i]
		registry[entry.ID.Int64()] = &entry.Type
	}

	pallets := make(map[uint8]eventPallet)
	for i := range v14.Pallets {
		pallet := &v14.Pallets[i]
		if !pallet.HasEvents {
			continue
		}
		pallets[uint8(pallet.Index)] = eventPallet{
			name:   string(pallet.Name),
			events: pallet.Events.Type.Int64(),
		}
	}

	return &eventDecoder{registry: registry, pallets: pallets}, nil
}

// decode reads a SCALE encoded Vec<EventRecord>.
func (d *eventDecoder) decode(raw []byte) ([]eventRecord, error) {
	decoder := scale.NewDecoder(bytes.NewReader(raw))

	count, err := decoder.DecodeUintCompact()
	if err != nil {
		return nil, fmt.Errorf("decode event count: %w", err)
	}

	var records []eventRecord
	for i := uint64(0); i < count.Uint64(); i++ {
		record, err := d.decodeRecord(decoder)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		records = append(records, record)
	}

	return records, nil
}

func (d *eventDecoder) decodeRecord(decoder *scale.Decoder) (eventRecord, error) {
	var record eventRecord

	err := decoder.Decode(&record.Phase)
	if err != nil {
		return record, fmt.Errorf("decode phase: %w", err)
	}

	palletIndex, err := decoder.ReadOneByte()
	if err != nil {
		return record, err
	}
	eventIndex, err := decoder.ReadOneByte()
	if err != nil {
		return record, err
	}

	pallet, ok := d.pallets[palletIndex]
	if !ok {
		return record, fmt.Errorf("no pallet with events at index %d", palletIndex)
	}
	enum, ok := d.registry[pallet.events]
	if !ok || !enum.Def.IsVariant {
		return record, fmt.Errorf("event type %d of pallet %s is not an enum", pallet.events, pallet.name)
	}
	variant, ok := findVariant(&enum.Def.Variant, eventIndex)
	if !ok {
		return record, fmt.Errorf("no event %d in pallet %s", eventIndex, pallet.name)
	}

	record.Pallet = pallet.name
	record.Name = string(variant.Name)

	for i := range variant.Fields {
		err = d.skip(decoder, variant.Fields[i].Type.Int64())
		if err != nil {
			return record, fmt.Errorf("%s.%s: %w", record.Pallet, record.Name, err)
		}
	}

	topics, err := decoder.DecodeUintCompact()
	if err != nil {
		return record, fmt.Errorf("decode topics: %w", err)
	}
	err = discard(decoder, topics.Uint64()*32)
	if err != nil {
		return record, fmt.Errorf("decode topics: %w", err)
	}

	return record, nil
}

// skip consumes one value of type id.
func (d *eventDecoder) skip(decoder *scale.Decoder, id int64) error {
	typ, ok := d.registry[id]
	if !ok {
		return fmt.Errorf("type %d not in registry", id)
	}
	def := &typ.Def

	switch {
	case def.IsComposite:
		for i := range def.Composite.Fields {
			if err := d.skip(decoder, def.Composite.Fields[i].Type.Int64()); err != nil {
				return err
			}
		}
		return nil
	case def.IsVariant:
		index, err := decoder.ReadOneByte()
		if err != nil {
			return err
		}
		variant, ok := findVariant(&def.Variant, index)
		if !ok {
			return fmt.Errorf("no variant %d in type %d", index, id)
		}
		for i := range variant.Fields {
			if err := d.skip(decoder, variant.Fields[i].Type.Int64()); err != nil {
				return err
			}
		}
		return nil
	case def.IsSequence:
		n, err := decoder.DecodeUintCompact()
		if err != nil {
			return err
		}
		return d.skipN(decoder, def.Sequence.Type.Int64(), n.Uint64())
	case def.IsArray:
		return d.skipN(decoder, def.Array.Type.Int64(), uint64(def.Array.Len))
	case def.IsTuple:
		for i := range def.Tuple {
			if err := d.skip(decoder, def.Tuple[i].Int64()); err != nil {
				return err
			}
		}
		return nil
	case def.IsPrimitive:
		if def.Primitive.Si0TypeDefPrimitive == types.IsStr {
			n, err := decoder.DecodeUintCompact()
			if err != nil {
				return err
			}
			return discard(decoder, n.Uint64())
		}
		size, ok := primitiveSize(def.Primitive.Si0TypeDefPrimitive)
		if !ok {
			return fmt.Errorf("unsupported primitive %d", def.Primitive.Si0TypeDefPrimitive)
		}
		return discard(decoder, size)
	case def.IsCompact:
		_, err := decoder.DecodeUintCompact()
		return err
	case def.IsBitSequence:
		bits, err := decoder.DecodeUintCompact()
		if err != nil {
			return err
		}
		store, ok := d.fixedSize(def.BitSequence.BitStoreType.Int64())
		if !ok {
			return fmt.Errorf("unsupported bit store type in type %d", id)
		}
		width := store * 8
		return discard(decoder, (bits.Uint64()+width-1)/width*store)
	}

	return fmt.Errorf("unsupported definition for type %d", id)
}

func (d *eventDecoder) skipN(decoder *scale.Decoder, elem int64, n uint64) error {
	if size, ok := d.fixedSize(elem); ok {
		return discard(decoder, n*size)
	}
	for i := uint64(0); i < n; i++ {
		if err := d.skip(decoder, elem); err != nil {
			return err
		}
	}
	return nil
}

// fixedSize reports the encoded size of fixed-width primitive types.
func (d *eventDecoder) fixedSize(id int64) (uint64, bool) {
	typ, ok := d.registry[id]
	if !ok || !typ.Def.IsPrimitive {
		return 0, false
	}
	return primitiveSize(typ.Def.Primitive.Si0TypeDefPrimitive)
}

func primitiveSize(p types.Si0TypeDefPrimitive) (uint64, bool) {
	switch p {
	case types.IsBool, types.IsU8, types.IsI8:
		return 1, true
	case types.IsU16, types.IsI16:
		return 2, true
	case types.IsChar, types.IsU32, types.IsI32:
		return 4, true
	case types.IsU64, types.IsI64:
		return 8, true
	case types.IsU128, types.IsI128:
		return 16, true
	case types.IsU256, types.IsI256:
		return 32, true
	}
	return 0, false
}

func findVariant(def *types.Si1TypeDefVariant, index uint8) (*types.Si1Variant, bool) {
	for i := range def.Variants {
		if uint8(def.Variants[i].Index) == index {
			return &def.Variants[i], true
		}
	}
	return nil, false
}

func discard(decoder *scale.Decoder, n uint64) error {
	var buf [64]byte
	for n > 0 {
		chunk := uint64(len(buf))
		if n < chunk {
			chunk = n
		}
		if err := decoder.Read(buf[:chunk]); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}
