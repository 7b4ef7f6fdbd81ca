// Copyright 2025 BPI Labs
//
// blskeygen generates a validator's BLS12-381 epoch key material
// offline, either fresh or deterministically from a validator/chain
// id pair, and writes it to the path a running bpci-node will load it
// from at startup.

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/bpinet/bpci/pkg/bls"
)

func main() {
	var (
		out         = flag.String("out", "./bls_validator.key", "path to write the generated key file")
		validatorID = flag.String("validator-id", "", "derive the key deterministically from this validator id")
		chainID     = flag.String("chain-id", "", "chain id paired with -validator-id for deterministic derivation")
	)
	flag.Parse()

	if err := bls.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "initialize BLS backend: %v\n", err)
		os.Exit(1)
	}

	km := bls.NewKeyManager(*out)

	switch {
	case *validatorID != "" && *chainID != "":
		if err := km.GenerateFromValidatorID(*validatorID, *chainID); err != nil {
			fmt.Fprintf(os.Stderr, "generate deterministic key: %v\n", err)
			os.Exit(1)
		}
		if err := km.SaveKey(); err != nil {
			fmt.Fprintf(os.Stderr, "save key: %v\n", err)
			os.Exit(1)
		}
	case *validatorID != "" || *chainID != "":
		fmt.Fprintln(os.Stderr, "-validator-id and -chain-id must be supplied together")
		os.Exit(1)
	default:
		if err := km.GenerateNewKey(); err != nil {
			fmt.Fprintf(os.Stderr, "generate key: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("wrote BLS key to %s\n", *out)
	fmt.Printf("public key: %s\n", km.GetPublicKeyHex())
}
