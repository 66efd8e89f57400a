package main

import (
	"fmt"
	"math/big"

	"github.com/spf13/cobra"

	"hypercertsIndexer/internal/token"
)

func runToken(cmd *cobra.Command, args []string) error {
	id, ok := new(big.Int).SetString(args[0], 0)
	if !ok || !token.InRange(id) {
		return fmt.Errorf("invalid token id %q", args[0])
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "claim_id:       %s\n", token.ClaimIDOf(id))
	fmt.Fprintf(out, "fraction_index: %s\n", token.FractionIndex(id))
	fmt.Fprintf(out, "is_claim:       %t\n", token.IsClaim(id))
	return nil
}
