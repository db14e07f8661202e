package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/brojonat/rawtx/service/txcodec"
	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

func decodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "decode",
		Usage:     "Decode a Base58 or Base64 transaction",
		ArgsUsage: "RAW_TRANSACTION|-",
		Description: `Decode a serialized transaction and print its structure.

The encoding is detected: input that is valid Base58 is treated as Base58,
anything else as Base64. Pass "-" to read the transaction from stdin.

Examples:
  rawtx decode AQAB...
  rawtx decode --strict --jq '.message.accountKeys[0]' -`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "strict",
				Usage: "Also check signature count, header consistency and index bounds",
			},
			&cli.StringFlag{
				Name:  "jq",
				Usage: "jq filter applied to the JSON form of the transaction",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: raw transaction or -")
			}

			input := c.Args().First()
			if input == "-" {
				b, err := io.ReadAll(c.App.Reader)
				if err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
				input = string(b)
			}

			display, err := txcodec.DecodeDisplay(input, c.Bool("strict"))
			if err != nil {
				return err
			}

			out := c.App.Writer
			if filter := c.String("jq"); filter != "" {
				results, err := applyJQ(filter, display)
				if err != nil {
					return err
				}
				for _, r := range results {
					if err := writeJSON(out, r); err != nil {
						return err
					}
				}
				return nil
			}

			if c.Bool("json") {
				return writeJSON(out, display)
			}
			printTransaction(out, display)
			return nil
		},
	}
}

// applyJQ runs filter over the JSON form of v and collects every result.
func applyJQ(filter string, v interface{}) ([]interface{}, error) {
	query, err := gojq.Parse(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
	}

	// gojq only understands plain JSON values
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var input interface{}
	if err := json.Unmarshal(b, &input); err != nil {
		return nil, err
	}

	var results []interface{}
	iter := code.Run(input)
	for {
		r, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := r.(error); ok {
			return nil, fmt.Errorf("jq filter failed: %w", err)
		}
		results = append(results, r)
	}
	return results, nil
}

func printTransaction(w io.Writer, d *txcodec.DisplayTransaction) {
	h := d.Message.Header
	fmt.Fprintf(w, "Version:          %s\n", d.Version)
	if d.Encoding != "" {
		fmt.Fprintf(w, "Encoding:         %s\n", d.Encoding)
	}
	fmt.Fprintf(w, "Recent Blockhash: %s\n", d.Message.RecentBlockhash)
	fmt.Fprintf(w, "Header:           %d required, %d readonly signed, %d readonly unsigned\n",
		h.NumRequiredSignatures, h.NumReadonlySignedAccounts, h.NumReadonlyUnsignedAccounts)

	fmt.Fprintf(w, "\nSignatures (%d):\n", len(d.Signatures))
	for i, sig := range d.Signatures {
		fmt.Fprintf(w, "  [%d] %s\n", i, sig)
	}

	fmt.Fprintf(w, "\nAccount Keys (%d):\n", len(d.Message.AccountKeys))
	for i, key := range d.Message.AccountKeys {
		fmt.Fprintf(w, "  [%d] %s\n", i, key)
	}

	fmt.Fprintf(w, "\nInstructions (%d):\n", len(d.Message.Instructions))
	for i, ix := range d.Message.Instructions {
		fmt.Fprintf(w, "  [%d] program=%d accounts=%s data=%s\n",
			i, ix.ProgramIDIndex, formatIndexes(ix.AccountKeyIndexes), ix.Data)
	}

	if len(d.Message.AddressTableLookups) > 0 {
		fmt.Fprintf(w, "\nAddress Table Lookups (%d):\n", len(d.Message.AddressTableLookups))
		for i, l := range d.Message.AddressTableLookups {
			fmt.Fprintf(w, "  [%d] %s writable=%s readonly=%s\n",
				i, l.AccountKey, formatIndexes(l.WritableIndexes), formatIndexes(l.ReadonlyIndexes))
		}
	}
}

func formatIndexes(idx []int) string {
	parts := make([]string, len(idx))
	for i, v := range idx {
		parts[i] = fmt.Sprint(v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
