package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	queryexec "github.com/v0idness/archipanion-ve/internal/query/execution"
	"github.com/v0idness/archipanion-ve/internal/query/model"
	chiTransport "github.com/v0idness/archipanion-ve/internal/transport/chi"
)

var queryCmd = &cobra.Command{
	Use:   "query <schema> [description.json]",
	Short: "Answer an information need description (read from stdin without a file)",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	var in io.Reader = os.Stdin
	if len(args) == 2 {
		f, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read description: %w", err)
	}
	desc, err := model.Parse(data)
	if err != nil {
		return err
	}

	return withApp(cmd, func(a *app) error {
		results, err := a.query.Query(cmd.Context(), args[0], desc)
		if err != nil {
			return err
		}
		if results == nil {
			results = []queryexec.Result{}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(chiTransport.QueryResponse{Retrievables: results})
	})
}
