// Copyright 2025 Certen Protocol
//
// Contract reads needed by handlers and the fee gate: getLastRoot() against
// an anchor contract. Grounded on pkg/ethereum/client.go's CallContract
// (ABI-pack the call, CallContract, ABI-unpack the result).

package evmsource

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const getLastRootABI = `[{
	"name": "getLastRoot",
	"type": "function",
	"constant": true,
	"inputs": [],
	"outputs": [{"name": "", "type": "bytes32"}]
}]`

var getLastRootMethod abi.Method

func init() {
	parsed, err := abi.JSON(strings.NewReader(getLastRootABI))
	if err != nil {
		panic(fmt.Sprintf("evmsource: parse getLastRoot ABI: %v", err))
	}
	getLastRootMethod = parsed.Methods["getLastRoot"]
}

// GetRoot reads the anchor contract's current merkle root.
func (c *Client) GetRoot(ctx context.Context, anchor common.Address) ([32]byte, error) {
	var root [32]byte
	result, err := c.rpc.CallContract(ctx, ethereum.CallMsg{
		To:   &anchor,
		Data: getLastRootMethod.ID,
	}, nil)
	if err != nil {
		return root, fmt.Errorf("call getLastRoot: %w", err)
	}
	outputs, err := getLastRootMethod.Outputs.Unpack(result)
	if err != nil {
		return root, fmt.Errorf("unpack getLastRoot result: %w", err)
	}
	if len(outputs) != 1 {
		return root, fmt.Errorf("getLastRoot: expected 1 output, got %d", len(outputs))
	}
	root, ok := outputs[0].([32]byte)
	if !ok {
		return root, fmt.Errorf("getLastRoot: unexpected output type %T", outputs[0])
	}
	return root, nil
}
