package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/proofofburn/burnkit/burnkey"
	"github.com/proofofburn/burnkit/db"
	"github.com/proofofburn/burnkit/db/prefixeddb"
	"github.com/proofofburn/burnkit/types"
)

// BurnKeyRecord is a found burn key, the parameters it was derived for and
// the last known state of its burn address. The key material is immutable;
// only the balance fields are ever updated.
type BurnKeyRecord struct {
	Wallet         common.Address  `json:"wallet" cbor:"1,keyasint"`
	Index          uint64          `json:"index" cbor:"2,keyasint"`
	Version        burnkey.Version `json:"version" cbor:"3,keyasint"`
	BurnKey        *types.BigInt   `json:"burnKey,omitempty" cbor:"4,keyasint"`
	BurnAddress    common.Address  `json:"burnAddress" cbor:"5,keyasint"`
	Receiver       common.Address  `json:"receiver" cbor:"6,keyasint"`
	ProverFee      *types.BigInt   `json:"proverFee" cbor:"7,keyasint"`
	BroadcasterFee *types.BigInt   `json:"broadcasterFee" cbor:"8,keyasint"`
	RevealAmount   *types.BigInt   `json:"revealAmount" cbor:"9,keyasint"`
	MinZeroBytes   int             `json:"minZeroBytes" cbor:"10,keyasint"`
	Iterations     uint64          `json:"iterations" cbor:"11,keyasint"`
	Balance        *types.BigInt   `json:"balance,omitempty" cbor:"12,keyasint,omitempty"`
	BalanceBlock   uint64          `json:"balanceBlock,omitempty" cbor:"13,keyasint,omitempty"`
	Consumed       bool            `json:"consumed" cbor:"14,keyasint"`
	CreatedAt      int64           `json:"createdAt" cbor:"15,keyasint"`
}

// NewBurnKeyRecord builds the record of a search result for wallet. For V1
// parameters the fee is stored as the prover fee.
func NewBurnKeyRecord(wallet common.Address, res *burnkey.Result) (*BurnKeyRecord, error) {
	r := &BurnKeyRecord{
		Wallet:       wallet,
		Index:        res.Index,
		BurnKey:      types.NewBigInt(res.BurnKey),
		BurnAddress:  res.BurnAddress,
		MinZeroBytes: res.MinZeroBytes,
		Iterations:   res.Iterations,
		CreatedAt:    time.Now().Unix(),
	}
	switch p := res.Params.(type) {
	case burnkey.ParamsV1:
		r.Version = burnkey.V1
		r.Receiver = p.Receiver
		r.ProverFee = types.NewBigInt(p.Fee)
	case burnkey.ParamsV2:
		r.Version = burnkey.V2
		r.Receiver = p.Receiver
		r.ProverFee = types.NewBigInt(p.ProverFee)
		r.BroadcasterFee = types.NewBigInt(p.BroadcasterFee)
		r.RevealAmount = types.NewBigInt(p.RevealAmount)
	default:
		return nil, fmt.Errorf("unsupported burn parameters %T", res.Params)
	}
	return r, nil
}

// Params rebuilds the burn parameters of the record.
func (r *BurnKeyRecord) Params() (burnkey.Parameters, error) {
	switch r.Version {
	case burnkey.V1:
		return burnkey.ParamsV1{Receiver: r.Receiver, Fee: r.ProverFee.MathBigInt()}, nil
	case burnkey.V2:
		return burnkey.ParamsV2{
			Receiver:       r.Receiver,
			ProverFee:      r.ProverFee.MathBigInt(),
			BroadcasterFee: r.BroadcasterFee.MathBigInt(),
			RevealAmount:   r.RevealAmount.MathBigInt(),
		}, nil
	default:
		return nil, fmt.Errorf("unknown burn protocol version %s", r.Version)
	}
}

// Nullifier derives the nullifier of the record's burn key.
func (r *BurnKeyRecord) Nullifier() (*big.Int, error) {
	return burnkey.Nullifier(r.BurnKey.MathBigInt())
}

func (r *BurnKeyRecord) sameKey(other *BurnKeyRecord) bool {
	return r.Version == other.Version &&
		r.BurnKey.Equal(other.BurnKey) &&
		r.BurnAddress == other.BurnAddress
}

func recordKey(wallet common.Address, index uint64) []byte {
	key := make([]byte, 0, burnKeyRecordKeySize)
	key = append(key, wallet.Bytes()...)
	return binary.BigEndian.AppendUint64(key, index)
}

// ReserveIndex hands out the next unused index of wallet.
func (s *Storage) ReserveIndex(wallet common.Address) (uint64, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	var index uint64
	err := db.Update(s.db, func(tx db.WriteTx) error {
		next, err := nextIndexUnsafe(tx, wallet)
		if err != nil {
			return err
		}
		index = next
		return setNextIndexUnsafe(tx, wallet, next+1)
	})
	if err != nil {
		return 0, fmt.Errorf("reserve index: %w", err)
	}
	return index, nil
}

// NextIndex returns the index ReserveIndex would hand out, without
// reserving it.
func (s *Storage) NextIndex(wallet common.Address) (uint64, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	return nextIndexUnsafe(s.db, wallet)
}

func nextIndexUnsafe(r db.Reader, wallet common.Address) (uint64, error) {
	data, err := prefixeddb.NewPrefixedReader(r, indexCounterPrefix).Get(wallet.Bytes())
	if errors.Is(err, db.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("corrupt index counter for %s", wallet.Hex())
	}
	return binary.BigEndian.Uint64(data), nil
}

func setNextIndexUnsafe(tx db.WriteTx, wallet common.Address, next uint64) error {
	return prefixeddb.NewPrefixedWriteTx(tx, indexCounterPrefix).
		Set(wallet.Bytes(), binary.BigEndian.AppendUint64(nil, next))
}

// SetBurnKey stores a new record. A (wallet, index) slot is written once:
// storing the same key again is a no-op and storing a different one fails
// with ErrKeyAlreadyExists. The index counter is moved past the index.
func (s *Storage) SetBurnKey(r *BurnKeyRecord) error {
	if r == nil || r.BurnKey == nil {
		return fmt.Errorf("%w: empty burn key record", burnkey.ErrInvalidParameter)
	}
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	key := recordKey(r.Wallet, r.Index)
	err := db.Update(s.db, func(tx db.WriteTx) error {
		var existing BurnKeyRecord
		switch err := getArtifact(tx, burnKeyPrefix, key, &existing); {
		case err == nil:
			if existing.sameKey(r) {
				return nil
			}
			return ErrKeyAlreadyExists
		case !errors.Is(err, ErrNotFound):
			return err
		}
		if err := setArtifact(tx, burnKeyPrefix, key, r); err != nil {
			return err
		}
		if err := prefixeddb.NewPrefixedWriteTx(tx, burnAddressPrefix).Set(r.BurnAddress.Bytes(), key); err != nil {
			return err
		}
		next, err := nextIndexUnsafe(tx, r.Wallet)
		if err != nil {
			return err
		}
		if r.Index >= next {
			return setNextIndexUnsafe(tx, r.Wallet, r.Index+1)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("set burn key %s/%d: %w", r.Wallet.Hex(), r.Index, err)
	}
	s.cache.Remove(string(key))
	return nil
}

// BurnKey returns the record of (wallet, index).
func (s *Storage) BurnKey(wallet common.Address, index uint64) (*BurnKeyRecord, error) {
	key := recordKey(wallet, index)
	if r, ok := s.cache.Get(string(key)); ok {
		return &r, nil
	}
	// the cache is only filled under the lock so a fill cannot overwrite a
	// newer record stored by UpdateBalance
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	if r, ok := s.cache.Get(string(key)); ok {
		return &r, nil
	}
	var r BurnKeyRecord
	if err := getArtifact(s.db, burnKeyPrefix, key, &r); err != nil {
		return nil, err
	}
	s.cache.Add(string(key), r)
	return &r, nil
}

// ListBurnKeys returns every record of wallet sorted by index.
func (s *Storage) ListBurnKeys(wallet common.Address) ([]*BurnKeyRecord, error) {
	return s.filterBurnKeys(wallet.Bytes(), nil)
}

// UnconsumedBurnKeys returns the records of every wallet whose nullifier has
// not been seen consumed, by wallet and index.
func (s *Storage) UnconsumedBurnKeys() ([]*BurnKeyRecord, error) {
	return s.filterBurnKeys(nil, func(r *BurnKeyRecord) bool { return !r.Consumed })
}

func (s *Storage) filterBurnKeys(prefix []byte, keep func(*BurnKeyRecord) bool) ([]*BurnKeyRecord, error) {
	var (
		records []*BurnKeyRecord
		decErr  error
	)
	pr := prefixeddb.NewPrefixedReader(s.db, burnKeyPrefix)
	if err := pr.Iterate(prefix, func(_, value []byte) bool {
		r := new(BurnKeyRecord)
		if decErr = DecodeArtifact(value, r); decErr != nil {
			return false
		}
		if keep == nil || keep(r) {
			records = append(records, r)
		}
		return true
	}); err != nil {
		return nil, err
	}
	if decErr != nil {
		return nil, fmt.Errorf("decode burn key record: %w", decErr)
	}
	return records, nil
}

// BurnKeyByAddress returns the record whose burn address is addr.
func (s *Storage) BurnKeyByAddress(addr common.Address) (*BurnKeyRecord, error) {
	key, err := prefixeddb.NewPrefixedReader(s.db, burnAddressPrefix).Get(addr.Bytes())
	if errors.Is(err, db.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(key) != burnKeyRecordKeySize {
		return nil, fmt.Errorf("corrupt burn address index for %s", addr.Hex())
	}
	return s.BurnKey(common.BytesToAddress(key[:20]), binary.BigEndian.Uint64(key[20:]))
}

// UpdateBalance stores the last observed balance of a record's burn address
// and whether its nullifier has been consumed.
func (s *Storage) UpdateBalance(wallet common.Address, index uint64, balance *big.Int, block uint64, consumed bool) (*BurnKeyRecord, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	key := recordKey(wallet, index)
	var r BurnKeyRecord
	err := db.Update(s.db, func(tx db.WriteTx) error {
		if err := getArtifact(tx, burnKeyPrefix, key, &r); err != nil {
			return err
		}
		r.Balance = types.NewBigInt(balance)
		r.BalanceBlock = block
		r.Consumed = consumed
		return setArtifact(tx, burnKeyPrefix, key, &r)
	})
	if err != nil {
		return nil, fmt.Errorf("update balance %s/%d: %w", wallet.Hex(), index, err)
	}
	s.cache.Add(string(key), r)
	return &r, nil
}
