package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// writeJSON writes v as indented JSON to path, or to the command's stdout
// when path is empty.
func writeJSON(cmd *cobra.Command, path string, v any) error {
	if path == "" {
		return encodeJSON(cmd.OutOrStdout(), v)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	return errors.Join(encodeJSON(f, v), f.Close())
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
