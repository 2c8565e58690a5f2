package burnkey

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Version identifies the burn protocol: it fixes the search preimage layout,
// the Poseidon arity and which bytes of the hash form the address.
type Version uint8

const (
	// V1 is the legacy four input protocol {receiver, fee}. Deprecated: only
	// kept to recover keys generated by early deployments.
	V1 Version = 1
	// V2 is the current six input protocol.
	V2 Version = 2
)

func (v Version) String() string {
	switch v {
	case V1:
		return "v1"
	case V2:
		return "v2"
	default:
		return fmt.Sprintf("v%d", uint8(v))
	}
}

// Parameters are the burn parameters mixed into the search hash and the
// burn address. The set of implementations is closed: ParamsV1 and ParamsV2.
type Parameters interface {
	Version() Version
	// Validate checks that amounts are in the field.
	Validate() error
	// ReceiverAddress is the account that receives the minted coins.
	ReceiverAddress() common.Address

	appendPreimage(dst []byte) []byte
	addressInputs(key *big.Int) []*big.Int
	addressFromHash(h [32]byte) common.Address
}

// ParamsV1 are the legacy burn parameters.
//
// Deprecated: use ParamsV2.
type ParamsV1 struct {
	Receiver common.Address
	Fee      *big.Int
}

func (ParamsV1) Version() Version { return V1 }

func (p ParamsV1) ReceiverAddress() common.Address { return p.Receiver }

func (p ParamsV1) Validate() error {
	return checkField("fee", p.Fee)
}

// receiver(20) || fee(32)
func (p ParamsV1) appendPreimage(dst []byte) []byte {
	dst = append(dst, p.Receiver.Bytes()...)
	return appendWord(dst, p.Fee)
}

func (p ParamsV1) addressInputs(key *big.Int) []*big.Int {
	return []*big.Int{BurnAddressPrefix, key, addressToField(p.Receiver), p.Fee}
}

// V1 deployments took the leading 20 bytes of the hash.
func (ParamsV1) addressFromHash(h [32]byte) common.Address {
	return common.BytesToAddress(h[:common.AddressLength])
}

// ParamsV2 are the burn parameters of the current protocol.
type ParamsV2 struct {
	Receiver       common.Address
	ProverFee      *big.Int
	BroadcasterFee *big.Int
	RevealAmount   *big.Int
}

func (ParamsV2) Version() Version { return V2 }

func (p ParamsV2) ReceiverAddress() common.Address { return p.Receiver }

func (p ParamsV2) Validate() error {
	if err := checkField("prover fee", p.ProverFee); err != nil {
		return err
	}
	if err := checkField("broadcaster fee", p.BroadcasterFee); err != nil {
		return err
	}
	return checkField("reveal amount", p.RevealAmount)
}

// receiver(20) || proverFee(32) || broadcasterFee(32) || revealAmount(32)
func (p ParamsV2) appendPreimage(dst []byte) []byte {
	dst = append(dst, p.Receiver.Bytes()...)
	dst = appendWord(dst, p.ProverFee)
	dst = appendWord(dst, p.BroadcasterFee)
	return appendWord(dst, p.RevealAmount)
}

func (p ParamsV2) addressInputs(key *big.Int) []*big.Int {
	return []*big.Int{
		BurnAddressPrefix, key, addressToField(p.Receiver),
		p.ProverFee, p.BroadcasterFee, p.RevealAmount,
	}
}

func (ParamsV2) addressFromHash(h [32]byte) common.Address {
	return common.BytesToAddress(h[32-common.AddressLength:])
}

// ParseAddress parses a 0x prefixed, 40 hex digit address. Unlike
// common.HexToAddress it never truncates or pads.
func ParseAddress(s string) (common.Address, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return common.Address{}, invalidParameter("address %q has no 0x prefix", s)
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, invalidParameter("address %q is not 20 hex encoded bytes", s)
	}
	return common.HexToAddress(s), nil
}

// appendWord appends x as a 32 byte big-endian word. x must be validated.
func appendWord(dst []byte, x *big.Int) []byte {
	w, overflow := uint256.FromBig(x)
	if overflow {
		panic("burnkey: word overflow")
	}
	b := w.Bytes32()
	return append(dst, b[:]...)
}

func addressToField(a common.Address) *big.Int {
	return new(big.Int).SetBytes(a.Bytes())
}
