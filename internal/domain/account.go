package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NormalizeAccount validates an EVM account address and returns its
// canonical lowercase hex form. All actor identities in the engine (market
// creators, bettors, proposers, disputers) are addresses in this form.
func NormalizeAccount(addr string) (string, error) {
	if !common.IsHexAddress(addr) {
		return "", ErrInvalidAccount
	}
	return strings.ToLower(common.HexToAddress(addr).Hex()), nil
}
