package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kbaxter/serialforge/internal/checksum"
	"github.com/kbaxter/serialforge/internal/codec"
)

func newChecksumCmd() *cobra.Command {
	var algo string

	cmd := &cobra.Command{
		Use:   "checksum <hex-bytes>",
		Short: "Compute a checksum over hex-encoded bytes",
		Example: `  serialforge checksum --algo MOD256 010203
  serialforge checksum --algo CRC16 "01 03 00 00 00 0A"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := checksum.ParseAlgorithm(algo)
			if err != nil {
				return err
			}
			data, err := codec.DecodeHex(args[0])
			if err != nil {
				return err
			}
			sum, err := checksum.Sum(a, data)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "%s over %d bytes: 0x%0*X\n", a, len(data), a.Size()*2, sum)
			return nil
		},
	}

	cmd.Flags().StringVar(&algo, "algo", "MOD256", "Algorithm: MOD256, XOR or CRC16")

	return cmd
}
