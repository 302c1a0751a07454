package rpcserver

import (
	"context"
	"errors"

	"github.com/btpc-network/btpc/consensus"
	"github.com/btpc-network/btpc/mempool"
	"github.com/btpc-network/btpc/nodeerrors"
	"github.com/btpc-network/btpc/utxo"
	"github.com/btpc-network/btpc/wallet"
)

// classify turns any error a handler returns into the stable nodeerrors.Error
// envelope the outermost dispatcher converts into a JSON-RPC error response
// (spec §7 "the outermost RPC handler converts every error into a structured
// response with a stable kind and a user-safe user_message"). Errors already
// tagged by a collaborator package keep their specific meaning; everything
// else degrades to a generic, sanitized wrapper rather than leaking a raw
// Go error string to the client.
func classify(err error) *nodeerrors.Error {
	if err == nil {
		return nil
	}

	var nerr *nodeerrors.Error
	if errors.As(err, &nerr) {
		return nerr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return nodeerrors.New(nodeerrors.RPCTimeout, "the request timed out", err)
	}

	var verr *consensus.ValidationError
	if errors.As(err, &verr) {
		if verr.Code == consensus.ErrParse {
			return nodeerrors.New(nodeerrors.MalformedInput, "the supplied data could not be parsed", err)
		}
		return nodeerrors.NewConsensusViolation(verr.Msg, err)
	}

	var aerr *mempool.AdmissionError
	if errors.As(err, &aerr) {
		if aerr.Code == mempool.ErrConsensusRejected {
			return nodeerrors.NewConsensusViolation(aerr.Msg, err)
		}
		return nodeerrors.New(nodeerrors.MalformedInput, aerr.Msg, err)
	}

	switch {
	case errors.Is(err, wallet.ErrInsufficientFunds):
		return nodeerrors.New(nodeerrors.InsufficientFunds, "the wallet does not have enough spendable funds for this transaction", err)
	case errors.Is(err, wallet.ErrUtxoContended), errors.Is(err, utxo.ErrAlreadyReserved):
		return nodeerrors.New(nodeerrors.UtxoContended, "one or more coins needed for this transaction are already reserved by another request", err)
	case errors.Is(err, wallet.ErrMissingSeed):
		return nodeerrors.New(nodeerrors.MissingSeed, "this key has no signing material available", err)
	case errors.Is(err, wallet.ErrDecryptionFailed):
		return nodeerrors.New(nodeerrors.DecryptionFailed, "the password is incorrect or the file is corrupt", err)
	case errors.Is(err, wallet.ErrBadMagic), errors.Is(err, wallet.ErrUnsupportedVersion):
		return nodeerrors.New(nodeerrors.MalformedInput, "not a recognized wallet or backup file", err)
	case errors.Is(err, wallet.ErrWalletLocked):
		return nodeerrors.New(nodeerrors.ValidationFailure, "wallet is locked", err)
	case errors.Is(err, wallet.ErrUnknownAddress):
		return nodeerrors.New(nodeerrors.ValidationFailure, "address is not known to this wallet", err)
	case errors.Is(err, errUnknownWallet):
		return nodeerrors.New(nodeerrors.ValidationFailure, "no such wallet_id", err)
	case errors.Is(err, errUnknownMethod):
		return nodeerrors.New(nodeerrors.MalformedInput, "unknown RPC method", err)
	}

	return nodeerrors.New(nodeerrors.ValidationFailure, "the request could not be completed", err)
}
