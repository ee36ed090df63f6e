package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/SudoSuOps/swarmpool/internal/style"
	"github.com/SudoSuOps/swarmpool/pkg/schema"
)

func newValidateCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file.json>",
		Short: "Run a snapshot through the schema gate",
		Long: `Validate a snapshot file against its registered schema.

All violations are reported, not just the first. The signature is not
checked here; the gate runs before signing in the publication pipeline.

Examples:
  swarm validate job.json
  swarm validate proof.json --kind proof`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, stdout, stderr, args[0])
		},
	}
	cmd.Flags().String("kind", "", "Snapshot kind; defaults to the file's type field")
	return cmd
}

func runValidate(cmd *cobra.Command, stdout, stderr io.Writer, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	kindFlag, _ := cmd.Flags().GetString("kind")
	if kindFlag == "" {
		kindFlag, _ = doc["type"].(string)
	}
	kind, err := schema.ParseKind(kindFlag)
	if err != nil {
		return err
	}

	res := schema.Validate(doc, kind)
	if res.Valid {
		fmt.Fprintf(stdout, "%s %s is a valid %s snapshot\n",
			style.Success.Render(style.IconPass), path, kind)
		return nil
	}
	fmt.Fprintf(stderr, "%s %s failed the %s gate:\n",
		style.Error.Render(style.IconFail), path, kind)
	for _, violation := range res.Errors {
		fmt.Fprintf(stderr, "  %s %s\n", style.Dim.Render("-"), violation)
	}
	return errExit
}
