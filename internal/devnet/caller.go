package devnet

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"stacks-fundraising/internal/clarity"
	"stacks-fundraising/internal/domain"
	"stacks-fundraising/internal/network"
	"stacks-fundraising/internal/stacks"
	"stacks-fundraising/internal/txbuilder"
)

// Caller signs requests with the selected devnet wallet and broadcasts them.
type Caller struct {
	client   stacks.Client
	selector *Selector
	params   network.Params
	fee      uint64
}

// NewCaller creates a Caller.
func NewCaller(client stacks.Client, selector *Selector, params network.Params, fee uint64) *Caller {
	return &Caller{client: client, selector: selector, params: params, fee: fee}
}

// Call signs req with the current wallet, broadcasts it and returns the txid.
func (c *Caller) Call(ctx context.Context, req txbuilder.TransactionRequest) (string, error) {
	w := c.selector.Current()

	tx, err := Convert(req, c.params)
	if err != nil {
		return "", err
	}
	tx.Signer = stacks.SignerHash(w.PrivateKey().PubKey())
	tx.Fee = c.fee

	nonce, err := c.client.GetAccountNonce(ctx, w.Address)
	if err != nil {
		return "", fmt.Errorf("account nonce: %w", err)
	}
	tx.Nonce = nonce

	if err := tx.Sign(w.PrivateKey()); err != nil {
		return "", err
	}
	raw, err := tx.Serialize()
	if err != nil {
		return "", err
	}

	txID, err := c.client.BroadcastTransaction(ctx, raw)
	if err != nil {
		return "", fmt.Errorf("broadcast: %w", err)
	}

	log.WithFields(log.Fields{
		"wallet": w.Label,
		"nonce":  nonce,
		"txid":   txID,
	}).Debug("devnet transaction broadcast")
	return txID, nil
}

// Convert maps a request to an unsigned transaction for params' chain.
func Convert(req txbuilder.TransactionRequest, params network.Params) (*stacks.ContractCallTx, error) {
	issuer, err := clarity.ParseStandardPrincipal(req.ContractAddress)
	if err != nil {
		return nil, fmt.Errorf("contract address: %w", err)
	}

	args := make([]clarity.Value, 0, len(req.FunctionArgs))
	for i, a := range req.FunctionArgs {
		v, err := clarity.DecodeHex(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		args = append(args, v)
	}

	mode := stacks.PostConditionModeDeny
	if req.PostConditionMode == "allow" {
		mode = stacks.PostConditionModeAllow
	}

	pcs := make([]stacks.PostCondition, 0, len(req.PostConditions))
	for i, pc := range req.PostConditions {
		converted, err := convertPostCondition(pc)
		if err != nil {
			return nil, fmt.Errorf("post-condition %d: %w", i, err)
		}
		pcs = append(pcs, converted)
	}

	return &stacks.ContractCallTx{
		Version:           params.TransactionVersion,
		ChainID:           params.ChainID,
		PostConditionMode: mode,
		PostConditions:    pcs,
		Payload: stacks.ContractCall{
			Contract:     clarity.ContractPrincipal{Issuer: issuer, Name: req.ContractName},
			FunctionName: req.FunctionName,
			Args:         args,
		},
	}, nil
}

func convertPostCondition(pc txbuilder.PostCondition) (stacks.PostCondition, error) {
	if pc.Address == "" {
		return stacks.PostCondition{}, domain.ErrPreconditionUnmet
	}
	principal, err := clarity.ParsePrincipal(pc.Address)
	if err != nil {
		return stacks.PostCondition{}, err
	}
	code, err := stacks.ParseConditionCode(pc.Condition)
	if err != nil {
		return stacks.PostCondition{}, err
	}

	out := stacks.PostCondition{Principal: principal, Code: code, Amount: pc.Amount}
	if pc.Type != txbuilder.PostConditionFT {
		return out, nil
	}

	contractID, assetName, ok := strings.Cut(pc.Asset, "::")
	if !ok || assetName == "" {
		return stacks.PostCondition{}, fmt.Errorf("%w: asset %q", stacks.ErrInvalidTransaction, pc.Asset)
	}
	contract, err := clarity.ParsePrincipal(contractID)
	if err != nil {
		return stacks.PostCondition{}, err
	}
	cp, ok := contract.(clarity.ContractPrincipal)
	if !ok {
		return stacks.PostCondition{}, fmt.Errorf("%w: asset contract %q", stacks.ErrInvalidTransaction, contractID)
	}
	out.Asset = &stacks.AssetInfo{Contract: cp, AssetName: assetName}
	return out, nil
}
