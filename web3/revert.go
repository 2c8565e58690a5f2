package web3

import (
	"errors"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/proofofburn/burnkit/web3/rpc"
)

const unknownRevert = "transaction failed"

var revertPatterns = []*regexp.Regexp{
	regexp.MustCompile(`execution reverted:?\s*(.+?)(?:\n|$)`),
	regexp.MustCompile(`reverted with reason string ['"](.+?)['"]`),
	regexp.MustCompile(`^Error:\s*(.+)`),
}

// RevertReason extracts a readable revert reason from a failed call or
// transaction error. ABI encoded Error(string) data wins over the message
// text.
func RevertReason(err error) string {
	if err == nil {
		return ""
	}
	if rpcErr := rpc.ParseError(err); rpcErr != nil && len(rpcErr.Data) > 0 {
		if reason, uerr := abi.UnpackRevert(rpcErr.Data); uerr == nil {
			return reason
		}
	}
	var rpcErr *rpc.RPCError
	msg := err.Error()
	if errors.As(err, &rpcErr) {
		msg = rpcErr.Message
	}
	for _, re := range revertPatterns {
		if m := re.FindStringSubmatch(msg); m != nil {
			if reason := strings.TrimSpace(m[1]); reason != "" {
				return reason
			}
		}
	}
	if line, _, _ := strings.Cut(msg, "\n"); line != "" && len(line) < 200 {
		return strings.TrimSpace(line)
	}
	return unknownRevert
}
