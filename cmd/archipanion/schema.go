package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	schemauc "github.com/v0idness/archipanion-ve/internal/usecase/schema"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Inspect, initialize and drop schemas",
}

var schemaAboutCmd = &cobra.Command{
	Use:   "about [schema]",
	Short: "Describe one schema, or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSchemaAbout,
}

var schemaInitCmd = &cobra.Command{
	Use:   "init <schema>",
	Short: "Create the storage entities of a schema",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchemaInit,
}

var schemaDropCmd = &cobra.Command{
	Use:   "drop <schema>",
	Short: "Delete all stored data of a schema",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchemaDrop,
}

var flagDropYes bool

func init() {
	schemaDropCmd.Flags().BoolVar(&flagDropYes, "yes", false, "confirm deletion")
	schemaCmd.AddCommand(schemaAboutCmd, schemaInitCmd, schemaDropCmd)
	rootCmd.AddCommand(schemaCmd)
}

func runSchemaAbout(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(a *app) error {
		var infos []schemauc.Info
		if len(args) == 1 {
			info, err := a.schemas.About(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			infos = append(infos, info)
		} else {
			infos = a.schemas.List(cmd.Context())
		}
		for i, info := range infos {
			if i > 0 {
				fmt.Println()
			}
			printSchema(info)
		}
		return nil
	})
}

func printSchema(info schemauc.Info) {
	fmt.Printf("Schema %s (%s), initialized: %t\n", info.Name, info.Connection, info.Initialized)
	if len(info.Pipelines) > 0 {
		fmt.Printf("Pipelines: %s\n", strings.Join(info.Pipelines, ", "))
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FIELD\tANALYSER\tCONTENT\tDESCRIPTOR\tINITIALIZED\tCOUNT")
	for _, f := range info.Fields {
		count := "-"
		if f.Descriptors != nil {
			count = strconv.Itoa(*f.Descriptors)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\n",
			f.Name, f.Analyser, strings.Join(f.ContentTypes, ","), f.DescriptorType, f.Initialized, count)
	}
	_ = w.Flush()
}

func runSchemaInit(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(a *app) error {
		created, err := a.schemas.Initialize(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Initialized schema %s: %d entities created\n", args[0], created)
		return nil
	})
}

func runSchemaDrop(cmd *cobra.Command, args []string) error {
	if !flagDropYes {
		return fmt.Errorf("dropping %s deletes all its data; pass --yes to confirm", args[0])
	}
	return withApp(cmd, func(a *app) error {
		dropped, err := a.schemas.Drop(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Dropped schema %s: %d entities removed\n", args[0], dropped)
		return nil
	})
}
